package parkboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jpalmerr/parkboard/internal/feed"
)

// FeedKind selects the transport of a live [Feed].
type FeedKind string

const (
	// FeedWebSocket reads JSON text frames from a WebSocket.
	FeedWebSocket FeedKind = "websocket"

	// FeedMQTT subscribes to a topic on an MQTT v5 broker.
	FeedMQTT FeedKind = "mqtt"

	// FeedHTTP polls a JSON endpoint.
	FeedHTTP FeedKind = "http"
)

const (
	defaultFeedTimeout  = 10 * time.Second
	defaultFeedInterval = 5 * time.Second
)

// allowed URL schemes per feed kind
var feedSchemes = map[FeedKind][]string{
	FeedWebSocket: {"ws", "wss"},
	FeedMQTT:      {"mqtt", "mqtts", "tcp", "ssl", "tls", "ws", "wss"},
	FeedHTTP:      {"http", "https"},
}

// Feed describes the live spot-status source.
//
// Feed is immutable after creation via [NewFeed]. Every feed publishes
// events shaped like {"spotId": "spot_3", "status": "occupied"}; the field
// paths can be changed with [WithFeedFields].
type Feed struct {
	kind               FeedKind
	url                string
	topic              string
	headers            map[string]string
	timeout            time.Duration
	interval           time.Duration
	spotIDField        string
	statusField        string
	username           string
	password           string
	clientID           string
	qos                byte
	insecureSkipVerify bool
}

// Kind returns the feed's transport kind.
func (f Feed) Kind() FeedKind {
	return f.kind
}

// URL returns the feed address.
func (f Feed) URL() string {
	return f.url
}

// Topic returns the MQTT topic filter. Empty for other kinds.
func (f Feed) Topic() string {
	return f.topic
}

// Headers returns a copy of the headers sent with WebSocket handshakes and
// HTTP polls.
func (f Feed) Headers() map[string]string {
	return copyMap(f.headers)
}

// Timeout returns the handshake (WebSocket), connect (MQTT) or request
// (HTTP) timeout.
func (f Feed) Timeout() time.Duration {
	return f.timeout
}

// Interval returns the HTTP polling interval.
func (f Feed) Interval() time.Duration {
	return f.interval
}

// Fields returns the dot paths of the spot id and status fields.
func (f Feed) Fields() (spotID, status string) {
	return f.spotIDField, f.statusField
}

// NewFeed creates a [Feed] of the given kind.
//
// The URL scheme must match the kind: ws/wss for [FeedWebSocket],
// http/https for [FeedHTTP] and mqtt/mqtts/tcp/ssl/tls/ws/wss for
// [FeedMQTT]. An MQTT feed also requires [WithFeedTopic].
//
// Example:
//
//	f, err := parkboard.NewFeed(parkboard.FeedWebSocket, "wss://feed.example.com/spots",
//	    parkboard.WithFeedHeaders("Authorization", "Bearer token"),
//	)
func NewFeed(kind FeedKind, rawURL string, opts ...FeedOption) (Feed, error) {
	schemes, ok := feedSchemes[kind]
	if !ok {
		return Feed{}, fmt.Errorf("unknown feed kind %q", kind)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Feed{}, errors.New("invalid feed URL: " + err.Error())
	}
	if !containsString(schemes, parsedURL.Scheme) {
		return Feed{}, fmt.Errorf("%s feed URL must use one of the schemes %v", kind, schemes)
	}
	if parsedURL.Host == "" {
		return Feed{}, errors.New("feed URL must have a host")
	}

	cfg := &feedConfig{
		headers:     make(map[string]string),
		timeout:     defaultFeedTimeout,
		interval:    defaultFeedInterval,
		spotIDField: feed.DefaultSpotIDPath,
		statusField: feed.DefaultStatusPath,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Feed{}, err
		}
	}

	if kind == FeedMQTT && cfg.topic == "" {
		return Feed{}, errors.New("mqtt feed requires a topic")
	}

	return Feed{
		kind:               kind,
		url:                rawURL,
		topic:              cfg.topic,
		headers:            cfg.headers,
		timeout:            cfg.timeout,
		interval:           cfg.interval,
		spotIDField:        cfg.spotIDField,
		statusField:        cfg.statusField,
		username:           cfg.username,
		password:           cfg.password,
		clientID:           cfg.clientID,
		qos:                cfg.qos,
		insecureSkipVerify: cfg.insecureSkipVerify,
	}, nil
}

// transport builds the internal transport for the feed.
func (f Feed) transport(logger *slog.Logger) (feed.Transport, error) {
	decoder := feed.NewDecoder(f.spotIDField, f.statusField)

	switch f.kind {
	case FeedWebSocket:
		return feed.NewWebSocketTransport(feed.WebSocketConfig{
			URL:              f.url,
			Headers:          copyMap(f.headers),
			HandshakeTimeout: f.timeout,
			Decoder:          decoder,
			Logger:           logger,
		}), nil
	case FeedMQTT:
		return feed.NewMQTTTransport(feed.MQTTConfig{
			URL:                f.url,
			Topic:              f.topic,
			QoS:                f.qos,
			ClientID:           f.clientID,
			Username:           f.username,
			Password:           f.password,
			InsecureSkipVerify: f.insecureSkipVerify,
			ConnectTimeout:     f.timeout,
			Decoder:            decoder,
			Logger:             logger,
		})
	case FeedHTTP:
		return feed.NewHTTPTransport(feed.HTTPConfig{
			URL:      f.url,
			Headers:  copyMap(f.headers),
			Interval: f.interval,
			Timeout:  f.timeout,
			Decoder:  decoder,
			Logger:   logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown feed kind %q", f.kind)
	}
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
