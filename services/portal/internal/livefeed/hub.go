// Package livefeed pushes periodic dashboard snapshots over WebSockets.
package livefeed

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClosed is returned when a viewer arrives after Shutdown.
var ErrClosed = errors.New("livefeed: hub closed")

// Options tunes the feed.
type Options struct {
	Interval     time.Duration
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// Hub upgrades viewers and tracks their connections until shutdown.
type Hub struct {
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	connections map[string]*Connection
	closed      bool
	wg          sync.WaitGroup
}

// NewHub builds hub.
func NewHub(opts Options, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		opts:   opts.withDefaults(),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin,
		},
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[string]*Connection),
	}
}

// Interval is the snapshot period.
func (h *Hub) Interval() time.Duration {
	return h.opts.Interval
}

// Serve upgrades the request and streams snapshots until the viewer leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, snapshot SnapshotFunc) {
	if h.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := &Connection{
		id:           uuid.NewString(),
		ws:           ws,
		snapshot:     snapshot,
		interval:     h.opts.Interval,
		pingInterval: h.opts.PingInterval,
		writeTimeout: h.opts.WriteTimeout,
		logger:       h.logger,
	}
	if err := h.add(conn); err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.opts.WriteTimeout))
		ws.Close()
		return
	}
	h.logger.Info("feed viewer connected", zap.String("conn_id", conn.id))

	go func() {
		defer h.remove(conn.id)
		conn.run(h.ctx)
	}()
}

// add registers conn. The WaitGroup is only grown under mu while the hub is
// open, so Shutdown never waits on a counter that can still increase.
func (h *Hub) add(conn *Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.connections[conn.ID()] = conn
	h.wg.Add(1)
	return nil
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.connections, id)
	h.mu.Unlock()
	h.wg.Done()
}

// Count returns the number of open viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Shutdown closes every viewer and waits for their goroutines.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
	h.wg.Wait()
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
