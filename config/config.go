// Package config provides YAML configuration parsing for ParkBoard.
//
// This package enables running ParkBoard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Kingston Parking
//	port: 8080
//	tracked_location: loc4
//
//	feed:
//	  kind: websocket
//	  url: ${PARKBOARD_FEED_URL:-ws://localhost:9000/ws}
//
//	locations:
//	  - id: loc4
//	    name: University Parking
//	    total_spots: 10
//	    price_per_hour: 1.5
//
//	spot_blocks:
//	  - location: loc4
//	    zone: A
//	    count: 10
//	    statuses: [available, occupied, available, expired]
//	    occupied_until: 2h
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultPort = 8080

// Config is the root configuration structure for ParkBoard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "ParkBoard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// TrackedLocation is the location whose spots follow the live feed.
	// Defaults to "loc4".
	TrackedLocation string `yaml:"tracked_location"`

	// Feed is the live status feed. Optional.
	Feed *FeedConfig `yaml:"feed"`

	Locations  []LocationConfig  `yaml:"locations"`
	Spots      []SpotConfig      `yaml:"spots"`
	SpotBlocks []SpotBlockConfig `yaml:"spot_blocks"`
	Sessions   []SessionConfig   `yaml:"sessions"`
	Users      []UserConfig      `yaml:"users"`
}

// FeedConfig defines the live status feed.
type FeedConfig struct {
	// Kind is the transport: "websocket", "mqtt" or "http".
	Kind string `yaml:"kind"`

	// URL is the feed address.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Headers are sent with WebSocket handshakes and HTTP polls.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds handshakes, broker connects and poll requests.
	Timeout Duration `yaml:"timeout"`

	// Interval is the HTTP polling interval. Must be at least 1s.
	Interval Duration `yaml:"interval"`

	// Fields overrides the dot paths of the spot id and status fields.
	Fields FieldsConfig `yaml:"fields"`

	// MQTT settings. Username and password support environment variable
	// substitution.
	Topic              string `yaml:"topic"`
	QoS                int    `yaml:"qos"`
	ClientID           string `yaml:"client_id"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// FieldsConfig names the JSON fields of a feed event.
type FieldsConfig struct {
	SpotID string `yaml:"spot_id"`
	Status string `yaml:"status"`
}

// LocationConfig defines a parking location.
type LocationConfig struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Address      string  `yaml:"address"`
	TotalSpots   int     `yaml:"total_spots"`
	PricePerHour float64 `yaml:"price_per_hour"`
	Rating       float64 `yaml:"rating"`
	Distance     string  `yaml:"distance"`
}

// SpotConfig defines a single parking spot.
type SpotConfig struct {
	ID       string `yaml:"id"`
	Location string `yaml:"location"`

	// Number is the spot number as shown on the grid. Quote padded numbers
	// ("07") so YAML keeps them as strings.
	Number string `yaml:"number"`
	Zone   string `yaml:"zone"`

	// Status is "available", "occupied" or "expired". Defaults to available.
	Status string `yaml:"status"`

	OccupiedSince *Instant `yaml:"occupied_since"`
	OccupiedUntil *Instant `yaml:"occupied_until"`
	Accessible    bool     `yaml:"accessible"`
	UserName      string   `yaml:"user_name"`
	Vehicle       string   `yaml:"vehicle"`
	Price         float64  `yaml:"price"`
}

// SpotBlockConfig defines a run of numbered spots that expands into
// individual spots.
//
// For example, {location: loc1, zone: B, start: 1, count: 3, pad: 2}
// expands to spots "01", "02" and "03" in zones B-01, B-02 and B-03 with
// ids spot-loc1-1, spot-loc1-2 and spot-loc1-3.
type SpotBlockConfig struct {
	Location string `yaml:"location"`

	// Zone is the zone prefix; each spot's zone is "<zone>-<number>".
	Zone string `yaml:"zone"`

	// Start is the first spot number. Defaults to 0.
	Start int `yaml:"start"`

	// Count is the number of spots. Must be positive.
	Count int `yaml:"count"`

	// Pad zero-pads spot numbers to this width.
	Pad int `yaml:"pad"`

	// Statuses is cycled over the spots in order. Defaults to all available.
	Statuses []string `yaml:"statuses"`

	// OccupiedUntil applies to occupied spots of the block.
	OccupiedUntil *Instant `yaml:"occupied_until"`

	// AccessibleEvery marks every spot whose number is a multiple of it
	// as accessible. Zero disables.
	AccessibleEvery int `yaml:"accessible_every"`

	// Price is the price per hour of the spots.
	Price float64 `yaml:"price"`
}

// SessionConfig defines a recorded parking session.
type SessionConfig struct {
	ID            string   `yaml:"id"`
	UserID        string   `yaml:"user_id"`
	UserName      string   `yaml:"user_name"`
	Location      string   `yaml:"location"`
	Spot          string   `yaml:"spot"`
	SpotNumber    string   `yaml:"spot_number"`
	Zone          string   `yaml:"zone"`
	Start         *Instant `yaml:"start"`
	End           *Instant `yaml:"end"`
	Status        string   `yaml:"status"`
	Amount        float64  `yaml:"amount"`
	PaymentStatus string   `yaml:"payment_status"`
	PaymentMethod string   `yaml:"payment_method"`
}

// UserConfig defines a registered user.
type UserConfig struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Email         string   `yaml:"email"`
	Phone         string   `yaml:"phone"`
	TotalSessions int      `yaml:"total_sessions"`
	TotalSpent    float64  `yaml:"total_spent"`
	JoinDate      *Instant `yaml:"join_date"`
	LastActive    *Instant `yaml:"last_active"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Instant is a point in time given either as an RFC 3339 timestamp or as a
// duration relative to load time ("-2h" is two hours ago, "90m" is ninety
// minutes from now). Relative instants keep demo fixtures fresh.
type Instant struct {
	abs    time.Time
	offset time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Instant.
func (in *Instant) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*in = Instant{abs: t}
		return nil
	}
	offset, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid instant %q: want RFC 3339 time or relative duration", s)
	}
	*in = Instant{offset: offset}
	return nil
}

// Resolve returns the instant, resolving relative values against now.
func (in Instant) Resolve(now time.Time) time.Time {
	if !in.abs.IsZero() {
		return in.abs
	}
	return now.Add(in.offset)
}

// RelativeInstant returns an Instant offset from load time.
func RelativeInstant(offset time.Duration) *Instant {
	return &Instant{offset: offset}
}

// AbsoluteInstant returns an Instant fixed at t.
func AbsoluteInstant(t time.Time) *Instant {
	return &Instant{abs: t}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the feed URL, headers and
// credentials. Port defaults to 8080.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var (
	spotStatuses    = []string{"available", "occupied", "expired"}
	sessionStatuses = []string{"active", "completed", "cancelled"}
	paymentStatuses = []string{"paid", "pending", "failed"}
	feedKinds       = []string{"websocket", "mqtt", "http"}
)

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if len(c.Locations) == 0 {
		return errors.New("at least one location must be defined")
	}

	locations := make(map[string]bool, len(c.Locations))
	for i, loc := range c.Locations {
		if loc.ID == "" {
			return fmt.Errorf("locations[%d]: id is required", i)
		}
		if loc.Name == "" {
			return fmt.Errorf("locations[%d] (%s): name is required", i, loc.ID)
		}
		if locations[loc.ID] {
			return fmt.Errorf("locations[%d] (%s): duplicate id", i, loc.ID)
		}
		if loc.TotalSpots < 0 || loc.PricePerHour < 0 {
			return fmt.Errorf("locations[%d] (%s): total_spots and price_per_hour cannot be negative", i, loc.ID)
		}
		locations[loc.ID] = true
	}

	if c.TrackedLocation != "" && !locations[c.TrackedLocation] {
		return fmt.Errorf("tracked_location %q is not a defined location", c.TrackedLocation)
	}

	spots := make(map[string]bool, len(c.Spots))
	for i := range c.Spots {
		s := &c.Spots[i]
		ctx := fmt.Sprintf("spots[%d]", i)
		if s.ID == "" {
			return fmt.Errorf("%s: id is required", ctx)
		}
		ctx = fmt.Sprintf("%s (%s)", ctx, s.ID)
		if spots[s.ID] {
			return fmt.Errorf("%s: duplicate id", ctx)
		}
		spots[s.ID] = true
		if !locations[s.Location] {
			return fmt.Errorf("%s: unknown location %q", ctx, s.Location)
		}
		if s.Number == "" {
			return fmt.Errorf("%s: number is required", ctx)
		}
		if s.Status == "" {
			s.Status = "available"
		}
		if !contains(spotStatuses, s.Status) {
			return fmt.Errorf("%s: status must be one of %v, got %q", ctx, spotStatuses, s.Status)
		}
	}

	for i := range c.SpotBlocks {
		b := &c.SpotBlocks[i]
		ctx := fmt.Sprintf("spot_blocks[%d]", i)
		if !locations[b.Location] {
			return fmt.Errorf("%s: unknown location %q", ctx, b.Location)
		}
		if b.Zone == "" {
			return fmt.Errorf("%s: zone is required", ctx)
		}
		if b.Count < 1 {
			return fmt.Errorf("%s: count must be positive, got %d", ctx, b.Count)
		}
		if b.Start < 0 || b.Pad < 0 || b.AccessibleEvery < 0 {
			return fmt.Errorf("%s: start, pad and accessible_every cannot be negative", ctx)
		}
		for _, st := range b.Statuses {
			if !contains(spotStatuses, st) {
				return fmt.Errorf("%s: status must be one of %v, got %q", ctx, spotStatuses, st)
			}
		}
		// generated ids must not collide with explicit spots or other blocks
		for n := b.Start; n < b.Start+b.Count; n++ {
			id := blockSpotID(b.Location, n)
			if spots[id] {
				return fmt.Errorf("%s: spot id %q is already defined", ctx, id)
			}
			spots[id] = true
		}
	}

	sessions := make(map[string]bool, len(c.Sessions))
	for i, s := range c.Sessions {
		ctx := fmt.Sprintf("sessions[%d]", i)
		if s.ID == "" {
			return fmt.Errorf("%s: id is required", ctx)
		}
		ctx = fmt.Sprintf("%s (%s)", ctx, s.ID)
		if sessions[s.ID] {
			return fmt.Errorf("%s: duplicate id", ctx)
		}
		sessions[s.ID] = true
		if !locations[s.Location] {
			return fmt.Errorf("%s: unknown location %q", ctx, s.Location)
		}
		if !contains(sessionStatuses, s.Status) {
			return fmt.Errorf("%s: status must be one of %v, got %q", ctx, sessionStatuses, s.Status)
		}
		if !contains(paymentStatuses, s.PaymentStatus) {
			return fmt.Errorf("%s: payment_status must be one of %v, got %q", ctx, paymentStatuses, s.PaymentStatus)
		}
		if s.Amount < 0 {
			return fmt.Errorf("%s: amount cannot be negative", ctx)
		}
		if s.Start == nil {
			return fmt.Errorf("%s: start is required", ctx)
		}
	}

	users := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		ctx := fmt.Sprintf("users[%d]", i)
		if u.ID == "" {
			return fmt.Errorf("%s: id is required", ctx)
		}
		ctx = fmt.Sprintf("%s (%s)", ctx, u.ID)
		if users[u.ID] {
			return fmt.Errorf("%s: duplicate id", ctx)
		}
		users[u.ID] = true
		if u.Name == "" {
			return fmt.Errorf("%s: name is required", ctx)
		}
		if u.TotalSessions < 0 || u.TotalSpent < 0 {
			return fmt.Errorf("%s: total_sessions and total_spent cannot be negative", ctx)
		}
	}

	if c.Feed != nil {
		if err := c.Feed.expandAndValidate(); err != nil {
			return fmt.Errorf("feed: %w", err)
		}
	}

	return nil
}

func (f *FeedConfig) expandAndValidate() error {
	if !contains(feedKinds, f.Kind) {
		return fmt.Errorf("kind must be one of %v, got %q", feedKinds, f.Kind)
	}

	if f.URL == "" {
		return errors.New("url is required")
	}
	expanded, err := expandEnvVars(f.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	f.URL = expanded

	parsedURL, err := url.Parse(f.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("url must have a scheme and host, got %q", f.URL)
	}

	for k, v := range f.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		f.Headers[k] = expanded
	}

	if f.Username, err = expandEnvVars(f.Username); err != nil {
		return fmt.Errorf("username: %w", err)
	}
	if f.Password, err = expandEnvVars(f.Password); err != nil {
		return fmt.Errorf("password: %w", err)
	}

	if f.Timeout != 0 && f.Timeout.Duration() < time.Second {
		return fmt.Errorf("timeout must be at least 1s if specified, got %s", f.Timeout.Duration())
	}
	if f.Interval != 0 && f.Interval.Duration() < time.Second {
		return fmt.Errorf("interval must be at least 1s if specified, got %s", f.Interval.Duration())
	}

	if (f.Fields.SpotID == "") != (f.Fields.Status == "") {
		return errors.New("fields: spot_id and status must be set together")
	}

	if f.Kind == "mqtt" && f.Topic == "" {
		return errors.New("topic is required for mqtt feeds")
	}
	if f.QoS < 0 || f.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", f.QoS)
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
