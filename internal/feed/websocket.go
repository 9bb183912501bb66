package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	closeWriteTimeout       = time.Second
	maxMessageSize          = 1 << 20 // 1MB
)

// WebSocketConfig configures a [WebSocketTransport].
type WebSocketConfig struct {
	// URL is the ws:// or wss:// feed address.
	URL string

	// Headers are sent with the handshake request.
	Headers map[string]string

	// HandshakeTimeout bounds the opening handshake. Zero means 10s.
	HandshakeTimeout time.Duration

	// Decoder decodes text frames. Nil means the default field paths.
	Decoder *Decoder

	// Logger receives decode failures. Nil means slog.Default().
	Logger *slog.Logger
}

// WebSocketTransport reads spot status events from a WebSocket feed.
//
// The transport performs a single connection attempt. It does not reconnect;
// a dropped connection ends Run and is reported by the [Subscription].
type WebSocketTransport struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
}

// NewWebSocketTransport creates a [WebSocketTransport].
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.Decoder == nil {
		cfg.Decoder = NewDecoder("", "")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WebSocketTransport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Name returns "websocket".
func (t *WebSocketTransport) Name() string {
	return "websocket"
}

// Run dials the feed and reads frames until ctx is done or the connection
// ends. A close frame with a normal or going-away code returns nil.
func (t *WebSocketTransport) Run(ctx context.Context, emit func(Message)) error {
	header := http.Header{}
	for key, value := range t.cfg.Headers {
		header.Set(key, value)
	}

	conn, resp, err := t.dialer.DialContext(ctx, t.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.cfg.URL, err)
	}

	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() { _ = conn.Close() })
	}
	defer closeConn()

	conn.SetReadLimit(maxMessageSize)
	emit(Message{Kind: KindOpen})

	// unblock ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() {
		deadline := time.Now().Add(closeWriteTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		closeConn()
	})
	defer stop()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("feed closed with code %d: %w", closeErr.Code, err)
			}
			return fmt.Errorf("read: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		events, err := t.cfg.Decoder.Decode(data)
		if err != nil {
			t.cfg.Logger.Warn("undecodable feed payload", "transport", t.Name(), "error", err)
			emit(Message{Kind: KindInvalid, Err: err})
			continue
		}
		for _, ev := range events {
			emit(Message{Kind: KindEvent, Event: ev})
		}
	}
}
