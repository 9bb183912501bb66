package feed

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

const (
	defaultMQTTKeepAlive      = 30
	defaultMQTTConnectTimeout = 10 * time.Second
	defaultMQTTReconnectDelay = 3 * time.Second
	mqttDisconnectTimeout     = 5 * time.Second
)

// MQTTConfig configures an [MQTTTransport].
type MQTTConfig struct {
	// URL is the broker address, e.g. mqtt://localhost:1883 or mqtts://...
	URL string

	// Topic is the topic filter to subscribe to. Wildcards are allowed.
	Topic string

	// QoS is the subscription quality of service (0, 1 or 2).
	QoS byte

	// ClientID identifies the client to the broker. Empty means a random
	// "parkboard-<uuid>" id.
	ClientID string

	Username string
	Password string

	// InsecureSkipVerify disables broker certificate verification.
	InsecureSkipVerify bool

	// KeepAlive in seconds. Zero means 30.
	KeepAlive uint16

	// ConnectTimeout bounds each connection attempt. Zero means 10s.
	ConnectTimeout time.Duration

	// ReconnectDelay is the constant backoff between attempts. Zero means 3s.
	ReconnectDelay time.Duration

	// Decoder decodes publish payloads. Nil means the default field paths.
	Decoder *Decoder

	// Logger receives connection and decode diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// MQTTTransport subscribes to spot status events on an MQTT broker.
//
// Reconnection is handled by autopaho. A disconnect requested by the broker
// is reported as [KindConnecting]; a client-side failure (a failed connect
// attempt or a dropped network connection) as [KindError]. Every
// re-established connection is reported as [KindOpen].
type MQTTTransport struct {
	cfg       MQTTConfig
	serverURL *url.URL
}

// NewMQTTTransport creates an [MQTTTransport]. It fails when the broker URL
// does not parse or the topic is empty.
func NewMQTTTransport(cfg MQTTConfig) (*MQTTTransport, error) {
	serverURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %w", err)
	}
	if serverURL.Scheme == "" || serverURL.Host == "" {
		return nil, fmt.Errorf("invalid broker URL %q: scheme and host required", cfg.URL)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid QoS %d: must be 0, 1 or 2", cfg.QoS)
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "parkboard-" + uuid.NewString()
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = defaultMQTTKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultMQTTConnectTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultMQTTReconnectDelay
	}
	if cfg.Decoder == nil {
		cfg.Decoder = NewDecoder("", "")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &MQTTTransport{cfg: cfg, serverURL: serverURL}, nil
}

// Name returns "mqtt".
func (t *MQTTTransport) Name() string {
	return "mqtt"
}

// Run connects to the broker and blocks until ctx is done, then disconnects
// and waits for the connection manager to exit.
func (t *MQTTTransport) Run(ctx context.Context, emit func(Message)) error {
	logger := t.cfg.Logger.With("transport", t.Name(), "broker", t.serverURL.Redacted())

	var password []byte
	if t.cfg.Password != "" {
		password = []byte(t.cfg.Password)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{t.serverURL},
		KeepAlive:                     t.cfg.KeepAlive,
		CleanStartOnInitialConnection: true,
		ReconnectBackoff:              autopaho.NewConstantBackoff(t.cfg.ReconnectDelay),
		ConnectTimeout:                t.cfg.ConnectTimeout,
		ConnectUsername:               t.cfg.Username,
		ConnectPassword:               password,
		TlsCfg: &tls.Config{
			InsecureSkipVerify: t.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for test brokers
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			logger.Debug("mqtt connection up")
			if _, err := cm.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: t.cfg.Topic, QoS: t.cfg.QoS},
				},
			}); err != nil {
				logger.Warn("mqtt subscribe failed", "topic", t.cfg.Topic, "error", err)
				emit(Message{Kind: KindError, Err: fmt.Errorf("subscribe %s: %w", t.cfg.Topic, err)})
				return
			}
			emit(Message{Kind: KindOpen})
		},
		OnConnectError: func(err error) {
			logger.Warn("mqtt connection failed, retrying", "error", err)
			t.clientError(emit, err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: t.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					t.handlePublish(logger, pr.Packet, emit)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				logger.Warn("mqtt client error", "error", err)
				t.clientError(emit, err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				logger.Warn("mqtt server requested disconnect", "reason", disconnectReason(d))
				t.serverDisconnect(emit)
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	<-ctx.Done()

	disconnectCtx, cancel := context.WithTimeout(context.Background(), mqttDisconnectTimeout)
	defer cancel()
	if err := cm.Disconnect(disconnectCtx); err != nil {
		logger.Debug("mqtt disconnect", "error", err)
	}
	<-cm.Done()

	return nil
}

// clientError reports a failed attempt or a dropped connection.
func (t *MQTTTransport) clientError(emit func(Message), err error) {
	emit(Message{Kind: KindError, Err: err})
}

// serverDisconnect reports a broker-requested disconnect; autopaho
// reconnects on its own.
func (t *MQTTTransport) serverDisconnect(emit func(Message)) {
	emit(Message{Kind: KindConnecting})
}

func disconnectReason(d *paho.Disconnect) string {
	if d == nil || d.Properties == nil {
		return ""
	}
	return d.Properties.ReasonString
}

func (t *MQTTTransport) handlePublish(logger *slog.Logger, p *paho.Publish, emit func(Message)) {
	events, err := t.cfg.Decoder.Decode(p.Payload)
	if err != nil {
		logger.Warn("undecodable feed payload", "topic", p.Topic, "error", err)
		emit(Message{Kind: KindInvalid, Err: err})
		return
	}
	for _, ev := range events {
		emit(Message{Kind: KindEvent, Event: ev})
	}
}
