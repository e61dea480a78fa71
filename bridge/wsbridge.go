package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WSNotifier delivers sync nudges over a websocket to a worker process.
// The connection is dialed lazily and re-dialed after failures; a nudge
// that cannot be delivered is dropped, per the bridge contract.
type WSNotifier struct {
	url         string
	dialTimeout time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// WSNotifierOption configures a WSNotifier.
type WSNotifierOption func(*WSNotifier)

// WithDialTimeout sets the bound on connection establishment.
func WithDialTimeout(timeout time.Duration) WSNotifierOption {
	return func(n *WSNotifier) {
		n.dialTimeout = timeout
	}
}

// WithWSLogger sets the notifier's logger.
func WithWSLogger(logger *slog.Logger) WSNotifierOption {
	return func(n *WSNotifier) {
		n.logger = logger
	}
}

// NewWSNotifier creates a websocket notifier for the given worker URL.
func NewWSNotifier(url string, opts ...WSNotifierOption) *WSNotifier {
	n := &WSNotifier{
		url:         url,
		dialTimeout: 5 * time.Second,
		logger:      slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends one sync message, dialing if needed. A write failure drops
// the connection so the next nudge re-dials.
func (n *WSNotifier) Notify(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil {
		dialCtx, cancel := context.WithTimeout(ctx, n.dialTimeout)
		conn, _, err := websocket.Dial(dialCtx, n.url, nil)
		cancel()
		if err != nil {
			return fmt.Errorf("bridge: dialing worker: %w", err)
		}
		n.conn = conn
	}

	if err := wsjson.Write(ctx, n.conn, Message{Type: MessageTypeSync}); err != nil {
		n.conn.Close(websocket.StatusInternalError, "write failed")
		n.conn = nil
		return fmt.Errorf("bridge: writing nudge: %w", err)
	}
	return nil
}

// Close closes the worker connection if one is open.
func (n *WSNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil {
		return nil
	}
	err := n.conn.Close(websocket.StatusNormalClosure, "")
	n.conn = nil
	return err
}

// WSListener is the worker side of the bridge: an HTTP handler accepting
// websocket connections and invoking the handler for every sync message.
type WSListener struct {
	handler func(context.Context)
	logger  *slog.Logger
}

// NewWSListener creates a listener that calls handler on every sync nudge.
func NewWSListener(handler func(context.Context), logger *slog.Logger) *WSListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &WSListener{handler: handler, logger: logger}
}

// ServeHTTP upgrades the connection and reads sync messages until the peer
// disconnects. Unknown message types are ignored.
func (l *WSListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		l.logger.Warn("bridge accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		if msg.Type == MessageTypeSync {
			l.handler(ctx)
		}
	}
}
