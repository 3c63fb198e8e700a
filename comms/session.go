package comms

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	STATUS_INTERVAL = 100 * time.Millisecond
	WRITE_WAIT      = time.Second
)

// ServeCommands answers every JSON command read from conn with a Reply until the peer goes
// away.
func ServeCommands(conn *websocket.Conn, c *Conductor, logger *log.Logger) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Printf("[%s] read: %v", conn.RemoteAddr(), err)
			}
			return
		}

		var reply Reply
		var cmd Cmd
		if err := json.Unmarshal(msg, &cmd); err != nil {
			reply = Reply{Error: "invalid json"}
		} else {
			reply = replyFor(c.ProcessCommand(cmd))
			if !reply.Ok {
				logger.Printf("[%s] %s: %s", conn.RemoteAddr(), cmd.Cmd, reply.Error)
			}
		}

		conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT))
		if err := conn.WriteJSON(reply); err != nil {
			logger.Printf("[%s] write: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

// StreamStatus pushes a StatePayload every interval until ctx is done or the peer goes away.
func StreamStatus(ctx context.Context, conn *websocket.Conn, v Vehicle, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the peer only ever sends control frames; reading is what notices it leaving
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if interval <= 0 {
		interval = STATUS_INTERVAL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT))
		if err := conn.WriteJSON(NewStatePayload(v.Status())); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
