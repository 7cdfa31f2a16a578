package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit  = 4 * 1024
	pongWait   = 60 * time.Second
	frameData  = "overview"
	frameError = "error"
)

// SnapshotFunc produces the payload pushed to one viewer.
type SnapshotFunc func(ctx context.Context) (interface{}, error)

// Frame is one message on the wire.
type Frame struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	At    string      `json:"at"`
}

type fatalError struct{ err error }

func (e fatalError) Error() string { return e.err.Error() }
func (e fatalError) Unwrap() error { return e.err }

// Fatal marks a snapshot error that ends the feed after it is reported.
func Fatal(err error) error {
	return fatalError{err: err}
}

// Connection pushes snapshots to one dashboard viewer.
type Connection struct {
	id           string
	ws           *websocket.Conn
	snapshot     SnapshotFunc
	interval     time.Duration
	pingInterval time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
}

// ID returns identifier.
func (c *Connection) ID() string {
	return c.id
}

// run blocks until the viewer leaves, the snapshot fails fatally or ctx ends.
func (c *Connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(ctx)
	}()
	c.readPump()
	cancel()
	<-done
}

// readPump drains control frames; viewers send nothing else.
func (c *Connection) readPump() {
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("feed read closed", zap.String("conn_id", c.id), zap.Error(err))
			return
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	defer c.ws.Close()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	ping := time.NewTicker(c.pingInterval)
	defer ping.Stop()

	if !c.push(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.push(ctx) {
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// push sends one snapshot and reports whether the feed should continue.
func (c *Connection) push(ctx context.Context) bool {
	data, err := c.snapshot(ctx)
	frame := Frame{Type: frameData, Data: data, At: time.Now().UTC().Format(time.RFC3339)}
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logger.Warn("feed snapshot failed", zap.String("conn_id", c.id), zap.Error(err))
		frame = Frame{Type: frameError, Error: err.Error(), At: frame.At}
	}
	payload, mErr := json.Marshal(frame)
	if mErr != nil {
		c.logger.Error("feed encode failed", zap.Error(mErr))
		return false
	}
	if err := c.write(websocket.TextMessage, payload); err != nil {
		return false
	}
	var fatal fatalError
	if errors.As(err, &fatal) {
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, fatal.Error()))
		return false
	}
	return true
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}
