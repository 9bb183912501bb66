package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 10 * time.Second
)

// connection pooling limits; a feed talks to a single host
const (
	defaultMaxIdleConns    = 4
	defaultMaxConnsPerHost = 2
	defaultIdleConnTimeout = 60 * time.Second
)

// HTTPConfig configures an [HTTPTransport].
type HTTPConfig struct {
	// URL returns either a single event object or an array of events.
	URL string

	// Headers are sent with every request.
	Headers map[string]string

	// Interval between polls. Zero means 5s.
	Interval time.Duration

	// Timeout is the per-request timeout. Zero means 10s.
	Timeout time.Duration

	// Decoder decodes response bodies. Nil means the default field paths.
	Decoder *Decoder

	// Logger receives poll failures. Nil means slog.Default().
	Logger *slog.Logger
}

// HTTPTransport polls a JSON endpoint for spot status events.
//
// Health follows the last poll: a successful request reports [KindOpen] and
// a failed one [KindError]. Signals are only emitted when the outcome flips,
// so a steady feed produces events and nothing else.
type HTTPTransport struct {
	cfg        HTTPConfig
	httpClient *http.Client
}

// NewHTTPTransport creates an [HTTPTransport].
//
// Timeouts are applied per request via context, not as a global client
// timeout.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPollTimeout
	}
	if cfg.Decoder == nil {
		cfg.Decoder = NewDecoder("", "")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPTransport{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConns,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Name returns "http".
func (t *HTTPTransport) Name() string {
	return "http"
}

// Run polls immediately and then every interval until ctx is done.
// Idle connections are released before Run returns.
func (t *HTTPTransport) Run(ctx context.Context, emit func(Message)) error {
	defer t.closeIdle()

	logger := t.cfg.Logger.With("transport", t.Name(), "url", t.cfg.URL)
	healthy := false
	first := true

	poll := func() {
		body, err := t.fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if healthy || first {
				logger.Warn("feed poll failed", "error", err)
				emit(Message{Kind: KindError, Err: err})
			}
			healthy, first = false, false
			return
		}
		if !healthy {
			emit(Message{Kind: KindOpen})
		}
		healthy, first = true, false

		events, err := t.cfg.Decoder.Decode(body)
		if err != nil {
			logger.Warn("undecodable feed payload", "error", err)
			emit(Message{Kind: KindInvalid, Err: err})
			return
		}
		for _, ev := range events {
			emit(Message{Kind: KindEvent, Event: ev})
		}
	}

	poll()

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			poll()
		}
	}
}

// fetch performs a single GET with the per-request timeout.
// Non-2xx responses are errors. Bodies are limited to 1MB.
func (t *HTTPTransport) fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range t.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

func (t *HTTPTransport) closeIdle() {
	if transport, ok := t.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
