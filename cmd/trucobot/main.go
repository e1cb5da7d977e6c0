// cmd/trucobot joins a served match as a random-move player. It is handy for
// playing against yourself and for soak testing the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/truco/internal/bot"
	"github.com/jason-s-yu/truco/internal/config"
	"github.com/jason-s-yu/truco/internal/game"
	"github.com/jason-s-yu/truco/internal/models"
	"github.com/jason-s-yu/truco/internal/truco"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	level, err := logrus.ParseLevel(config.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	matchID := os.Getenv("TRUCO_MATCH_ID")
	token := os.Getenv("TRUCO_AUTH_TOKEN")
	if matchID == "" || token == "" {
		logger.Fatal("TRUCO_MATCH_ID and TRUCO_AUTH_TOKEN are required")
	}
	server := strings.TrimSuffix(config.GetEnv("TRUCO_SERVER_URL", "ws://localhost:8080"), "/")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	header.Set("Cookie", "auth_token="+token)
	conn, _, err := websocket.Dial(ctx, server+"/game/ws/"+matchID, &websocket.DialOptions{
		Subprotocols: []string{"truco"},
		HTTPHeader:   header,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to join match")
	}
	defer conn.CloseNow()

	log := logger.WithField("match_id", matchID)
	policy := bot.NewRandom(int64(config.GetEnvInt("TRUCO_BOT_SEED", 0)))
	if err := play(ctx, conn, policy, log); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("bot stopped")
	}
	conn.Close(websocket.StatusNormalClosure, "bye")
}

// play answers sync events until the match ends.
func play(ctx context.Context, conn *websocket.Conn, policy bot.Policy, log *logrus.Entry) error {
	var seat *bot.Seat
	for {
		var ev game.GameEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch ev.Type {
		case game.EventPrivateSyncState:
			if ev.State == nil {
				continue
			}
			if paused, _ := ev.Payload["paused"].(bool); paused {
				log.Debug("match paused, waiting for the other seat")
				continue
			}
			if seat == nil {
				s, err := bot.NewSeat(*ev.State, ev.Payload, policy, log)
				if err != nil {
					return err
				}
				seat = s
				log.WithField("seat", seat.Adapter().Seat()).Info("seated")
			}
			act, ok, err := seat.OnSync(*ev.State)
			if err != nil {
				log.WithError(err).Warn("could not apply server state, resyncing")
				seat.OnRejected()
				if err := send(ctx, conn, "sync_request", nil); err != nil {
					return err
				}
				continue
			}
			if ok {
				log.WithField("action", act.String()).Debug("playing")
				if err := send(ctx, conn, "action", &act); err != nil {
					return err
				}
			}

		case game.EventPrivateActionRejected:
			log.WithField("reason", ev.Payload["message"]).Info("move refused")
			if seat != nil {
				seat.OnRejected()
			}
			if err := send(ctx, conn, "sync_request", nil); err != nil {
				return err
			}

		case game.EventGameResumed:
			if err := send(ctx, conn, "sync_request", nil); err != nil {
				return err
			}

		case game.EventGameEnd:
			log.WithField("payload", ev.Payload).Info("match over")
			return nil
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, typ string, act *truco.Action) error {
	msg := models.GameAction{Type: typ}
	if act != nil {
		raw, err := json.Marshal(act)
		if err != nil {
			return err
		}
		msg.Action = raw
	}
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
