package parkboard

import (
	"errors"
	"strings"
	"time"
)

// feedConfig holds mutable state during feed construction.
type feedConfig struct {
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

// FeedOption is a function that configures a [Feed] during construction.
//
// Options return an error if validation fails. Options that only apply to
// one transport kind are ignored by the others.
type FeedOption func(*feedConfig) error

// WithFeedHeaders adds headers to WebSocket handshakes and HTTP polls.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	f, err := parkboard.NewFeed(parkboard.FeedHTTP, url,
//	    parkboard.WithFeedHeaders("Authorization", "Bearer token123"),
//	)
func WithFeedHeaders(keyValues ...string) FeedOption {
	return func(cfg *feedConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithFeedHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithFeedTimeout sets the handshake, connect or request timeout.
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFeedTimeout(d time.Duration) FeedOption {
	return func(cfg *feedConfig) error {
		if d <= 0 {
			return errors.New("feed timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithFeedInterval sets the polling interval of an HTTP feed.
// Defaults to 5 seconds.
//
// Returns an error if the interval is below one second.
func WithFeedInterval(d time.Duration) FeedOption {
	return func(cfg *feedConfig) error {
		if d < time.Second {
			return errors.New("feed interval must be at least 1s")
		}
		cfg.interval = d
		return nil
	}
}

// WithFeedFields sets the dot paths of the spot id and status fields in
// feed payloads. Defaults to "spotId" and "status".
//
// Example:
//
//	// for payloads like {"data": {"spot": "spot_3", "state": "empty"}}
//	parkboard.WithFeedFields("data.spot", "data.state")
//
// Returns an error if either path is empty or has an empty segment.
func WithFeedFields(spotIDPath, statusPath string) FeedOption {
	return func(cfg *feedConfig) error {
		for _, p := range []string{spotIDPath, statusPath} {
			if p == "" || strings.HasPrefix(p, ".") || strings.HasSuffix(p, ".") || strings.Contains(p, "..") {
				return errors.New("feed field path is invalid: " + p)
			}
		}
		cfg.spotIDField = spotIDPath
		cfg.statusField = statusPath
		return nil
	}
}

// WithFeedTopic sets the MQTT topic filter. Wildcards are allowed.
func WithFeedTopic(topic string) FeedOption {
	return func(cfg *feedConfig) error {
		if strings.TrimSpace(topic) == "" {
			return errors.New("feed topic cannot be empty")
		}
		cfg.topic = topic
		return nil
	}
}

// WithFeedQoS sets the MQTT subscription quality of service.
//
// Returns an error if qos is not 0, 1 or 2.
func WithFeedQoS(qos int) FeedOption {
	return func(cfg *feedConfig) error {
		if qos < 0 || qos > 2 {
			return errors.New("feed QoS must be 0, 1 or 2")
		}
		cfg.qos = byte(qos)
		return nil
	}
}

// WithFeedCredentials sets the MQTT username and password.
func WithFeedCredentials(username, password string) FeedOption {
	return func(cfg *feedConfig) error {
		cfg.username = username
		cfg.password = password
		return nil
	}
}

// WithFeedClientID sets the MQTT client id. Defaults to a random
// "parkboard-<uuid>".
func WithFeedClientID(id string) FeedOption {
	return func(cfg *feedConfig) error {
		cfg.clientID = id
		return nil
	}
}

// WithFeedInsecureSkipVerify disables TLS certificate verification for
// MQTT brokers. Intended for local test brokers only.
func WithFeedInsecureSkipVerify() FeedOption {
	return func(cfg *feedConfig) error {
		cfg.insecureSkipVerify = true
		return nil
	}
}
