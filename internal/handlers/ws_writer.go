// internal/handlers/ws_writer.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/game"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout   = 5 * time.Second
	sendQueueDepth = 64
)

// connWriter owns the write side of one websocket. Events are queued so the
// game lock is never held across a network write, and they leave in order.
type connWriter struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
	log  *logrus.Entry
}

func newConnWriter(conn *websocket.Conn, log *logrus.Entry) *connWriter {
	w := &connWriter{
		conn: conn,
		out:  make(chan []byte, sendQueueDepth),
		done: make(chan struct{}),
		log:  log,
	}
	go w.run()
	return w
}

func (w *connWriter) run() {
	for {
		select {
		case <-w.done:
			return
		case data := <-w.out:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := w.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				w.log.WithError(err).Warn("failed to write websocket message")
				w.shutdown(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// Send queues data without blocking. A client that cannot keep up is
// disconnected.
func (w *connWriter) Send(data []byte) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.out <- data:
		return true
	case <-w.done:
		return false
	default:
		w.log.Warn("send queue full, dropping client")
		w.shutdown(websocket.StatusPolicyViolation, "client too slow")
		return false
	}
}

// SendJSON marshals msg and queues it.
func (w *connWriter) SendJSON(msg interface{}) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		w.log.WithError(err).Error("failed to marshal websocket message")
		return false
	}
	return w.Send(data)
}

// Stop ends the writer. Queued messages are dropped.
func (w *connWriter) Stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *connWriter) shutdown(code websocket.StatusCode, reason string) {
	w.once.Do(func() {
		close(w.done)
		// Close waits for the peer's handshake; never do that on the caller's goroutine.
		go w.conn.Close(code, reason)
	})
}

func (gs *GameServer) register(conn *websocket.Conn, log *logrus.Entry) *connWriter {
	w := newConnWriter(conn, log)
	gs.writersMu.Lock()
	gs.writers[conn] = w
	gs.writersMu.Unlock()
	return w
}

func (gs *GameServer) unregister(conn *websocket.Conn) {
	gs.writersMu.Lock()
	w, ok := gs.writers[conn]
	delete(gs.writers, conn)
	gs.writersMu.Unlock()
	if ok {
		w.Stop()
	}
}

func (gs *GameServer) writerFor(conn *websocket.Conn) *connWriter {
	if conn == nil {
		return nil
	}
	gs.writersMu.Lock()
	defer gs.writersMu.Unlock()
	return gs.writers[conn]
}

// createBroadcastFunc returns a function suitable for TrucoGame.BroadcastFn.
// It is called with the game lock held, so it reads the seats directly and
// only queues the bytes.
func (gs *GameServer) createBroadcastFunc(g *game.TrucoGame) func(ev game.GameEvent) {
	return func(ev game.GameEvent) {
		data := game.EventBytes(ev)
		for _, p := range g.Seats {
			if !p.Connected {
				continue
			}
			if w := gs.writerFor(p.Conn); w != nil {
				w.Send(data)
			}
		}
	}
}

// createBroadcastToPlayerFunc returns a function suitable for TrucoGame.BroadcastToPlayerFn.
func (gs *GameServer) createBroadcastToPlayerFunc(g *game.TrucoGame) func(userID uuid.UUID, ev game.GameEvent) {
	return func(userID uuid.UUID, ev game.GameEvent) {
		for _, p := range g.Seats {
			if p.ID != userID || !p.Connected {
				continue
			}
			if w := gs.writerFor(p.Conn); w != nil {
				w.Send(game.EventBytes(ev))
			}
			return
		}
	}
}
