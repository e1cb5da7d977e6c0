// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/game"
	"github.com/jason-s-yu/truco/internal/middleware"
	"github.com/jason-s-yu/truco/internal/models"
	"github.com/jason-s-yu/truco/internal/truco"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must ask for.
const Subprotocol = "truco"

// Message types a client may send.
const (
	MsgAction      = "action"
	MsgSyncRequest = "sync_request"
	MsgPing        = "ping"
)

// GameWSHandler upgrades the HTTP connection to WebSocket for a specific match.
// It authenticates the user, verifies they hold a seat, registers the connection,
// and then runs the read loop until the client goes away.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid game_id format", http.StatusBadRequest)
			return
		}
		userID, err := authenticate(r)
		if err != nil {
			logger.WithError(err).Debug("websocket authentication failed")
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		g, err := gs.LoadMatch(r.Context(), gameID)
		if err != nil {
			writeLoadError(w, logger, gameID, err)
			return
		}
		if !g.HasUser(userID) {
			http.Error(w, "you are not a player in this game", http.StatusForbidden)
			return
		}
		g.Mu.Lock()
		over := g.GameOver
		g.Mu.Unlock()
		if over {
			http.Error(w, "game has already ended", http.StatusGone)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: gs.OriginPatterns,
		})
		if err != nil {
			logger.WithError(err).WithField("match_id", gameID).Warn("websocket accept error")
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal server error during handler exit")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, fmt.Sprintf("client must use the '%s' subprotocol", Subprotocol))
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		log := logger.WithFields(logrus.Fields{"match_id": gameID, "user_id": userID})
		writer := gs.register(c, log)
		defer gs.unregister(c)

		stale := seatConn(g, userID)
		if err := g.HandleReconnect(userID, c); err != nil {
			c.Close(InvalidUserIDError, "you are not a player in this game")
			return
		}
		if stale != nil && stale != c {
			if old := gs.writerFor(stale); old != nil {
				old.shutdown(websocket.StatusPolicyViolation, "replaced by a newer connection")
			}
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		err = readGameMessages(ctx, c, writer, g, userID, log)

		g.DropConn(userID, c)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// seatConn is the connection currently attached to userID's seat.
func seatConn(g *game.TrucoGame, userID uuid.UUID) *websocket.Conn {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	for _, p := range g.Seats {
		if p.ID == userID {
			return p.Conn
		}
	}
	return nil
}

// readGameMessages reads client messages until the connection closes and
// routes them to the match. It returns nil on a normal closure.
func readGameMessages(ctx context.Context, c *websocket.Conn, w *connWriter, g *game.TrucoGame, userID uuid.UUID, log *logrus.Entry) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			log.WithField("type", msgType).Warn("ignoring non-text message")
			continue
		}

		var msg models.GameAction
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Debug("invalid JSON from client")
			sendWsError(w, "invalid JSON format")
			continue
		}

		switch msg.Type {
		case MsgAction:
			var act truco.Action
			if err := json.Unmarshal(msg.Action, &act); err != nil {
				sendWsError(w, fmt.Sprintf("invalid action: %v", err))
				continue
			}
			g.Mu.Lock()
			err := g.HandlePlayerAction(userID, act)
			g.Mu.Unlock()
			if err != nil {
				log.WithError(err).WithField("action", act.String()).Debug("action rejected")
			}

		case MsgSyncRequest:
			g.Mu.Lock()
			err := g.SendSyncState(userID)
			g.Mu.Unlock()
			if err != nil {
				sendWsError(w, err.Error())
			}

		case MsgPing:
			w.SendJSON(map[string]string{"type": "pong"})

		default:
			sendWsError(w, fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

// sendWsError sends a structured error message to the client.
func sendWsError(w *connWriter, errorMsg string) {
	w.SendJSON(map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}

func writeLoadError(w http.ResponseWriter, logger *logrus.Logger, id uuid.UUID, err error) {
	if errors.Is(err, models.ErrMatchNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	logger.WithError(err).WithField("match_id", id).Error("failed to load match")
	http.Error(w, "failed to load game", http.StatusInternalServerError)
}
