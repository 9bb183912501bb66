package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jpalmerr/parkboard"
)

// BuildOptions converts parsed configuration into SDK options for
// [parkboard.New].
//
// Spot blocks are expanded into individual spots after the explicit spots.
// Relative instants are resolved against the current time.
func BuildOptions(cfg *Config) ([]parkboard.Option, error) {
	return buildOptions(cfg, time.Now())
}

func buildOptions(cfg *Config, now time.Time) ([]parkboard.Option, error) {
	opts := []parkboard.Option{
		parkboard.WithPort(cfg.Port),
		parkboard.WithLocations(BuildLocations(cfg)...),
		parkboard.WithSpots(buildSpots(cfg, now)...),
		parkboard.WithSessions(buildSessions(cfg, now)...),
		parkboard.WithUsers(buildUsers(cfg, now)...),
	}

	if cfg.Title != "" {
		opts = append(opts, parkboard.WithTitle(cfg.Title))
	}
	if cfg.TrackedLocation != "" {
		opts = append(opts, parkboard.WithLiveTracking(cfg.TrackedLocation))
	}

	if cfg.Feed != nil {
		f, err := BuildFeed(cfg.Feed)
		if err != nil {
			return nil, fmt.Errorf("feed: %w", err)
		}
		opts = append(opts, parkboard.WithFeed(f))
	}

	return opts, nil
}

// BuildLocations converts the configured locations.
func BuildLocations(cfg *Config) []parkboard.Location {
	locations := make([]parkboard.Location, 0, len(cfg.Locations))
	for _, lc := range cfg.Locations {
		locations = append(locations, parkboard.Location{
			ID:           lc.ID,
			Name:         lc.Name,
			Address:      lc.Address,
			TotalSpots:   lc.TotalSpots,
			PricePerHour: lc.PricePerHour,
			Rating:       lc.Rating,
			Distance:     lc.Distance,
		})
	}
	return locations
}

// BuildSpots converts the configured spots and expands spot blocks.
func BuildSpots(cfg *Config) []parkboard.Spot {
	return buildSpots(cfg, time.Now())
}

func buildSpots(cfg *Config, now time.Time) []parkboard.Spot {
	var spots []parkboard.Spot

	for _, sc := range cfg.Spots {
		spots = append(spots, parkboard.Spot{
			ID:            sc.ID,
			LocationID:    sc.Location,
			Number:        sc.Number,
			Zone:          sc.Zone,
			Status:        parkboard.SpotStatus(sc.Status),
			OccupiedSince: resolve(sc.OccupiedSince, now),
			OccupiedUntil: resolve(sc.OccupiedUntil, now),
			Accessible:    sc.Accessible,
			UserName:      sc.UserName,
			Vehicle:       sc.Vehicle,
			Price:         sc.Price,
		})
	}

	for _, bc := range cfg.SpotBlocks {
		spots = append(spots, expandBlock(bc, now)...)
	}

	return spots
}

// expandBlock generates the spots of a block in number order.
func expandBlock(bc SpotBlockConfig, now time.Time) []parkboard.Spot {
	spots := make([]parkboard.Spot, 0, bc.Count)
	for i := 0; i < bc.Count; i++ {
		n := bc.Start + i
		number := padNumber(n, bc.Pad)

		status := parkboard.SpotAvailable
		if len(bc.Statuses) > 0 {
			status = parkboard.SpotStatus(bc.Statuses[i%len(bc.Statuses)])
		}

		spot := parkboard.Spot{
			ID:         blockSpotID(bc.Location, n),
			LocationID: bc.Location,
			Number:     number,
			Zone:       bc.Zone + "-" + number,
			Status:     status,
			Accessible: bc.AccessibleEvery > 0 && n%bc.AccessibleEvery == 0,
			Price:      bc.Price,
		}
		if status == parkboard.SpotOccupied {
			spot.OccupiedUntil = resolve(bc.OccupiedUntil, now)
		}
		spots = append(spots, spot)
	}
	return spots
}

// blockSpotID is the id of the spot numbered n in a block, e.g. "spot-loc1-7".
func blockSpotID(location string, n int) string {
	return fmt.Sprintf("spot-%s-%d", location, n)
}

// padNumber zero-pads n to width digits.
func padNumber(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// BuildSessions converts the configured sessions.
func BuildSessions(cfg *Config) []parkboard.Session {
	return buildSessions(cfg, time.Now())
}

func buildSessions(cfg *Config, now time.Time) []parkboard.Session {
	sessions := make([]parkboard.Session, 0, len(cfg.Sessions))
	for _, sc := range cfg.Sessions {
		sess := parkboard.Session{
			ID:            sc.ID,
			UserID:        sc.UserID,
			UserName:      sc.UserName,
			LocationID:    sc.Location,
			SpotID:        sc.Spot,
			SpotNumber:    sc.SpotNumber,
			Zone:          sc.Zone,
			End:           resolve(sc.End, now),
			Status:        parkboard.SessionStatus(sc.Status),
			Amount:        sc.Amount,
			PaymentStatus: parkboard.PaymentStatus(sc.PaymentStatus),
			PaymentMethod: sc.PaymentMethod,
		}
		if sc.Start != nil {
			sess.Start = sc.Start.Resolve(now)
		}
		sessions = append(sessions, sess)
	}
	return sessions
}

// BuildUsers converts the configured users.
func BuildUsers(cfg *Config) []parkboard.User {
	return buildUsers(cfg, time.Now())
}

func buildUsers(cfg *Config, now time.Time) []parkboard.User {
	users := make([]parkboard.User, 0, len(cfg.Users))
	for _, uc := range cfg.Users {
		u := parkboard.User{
			ID:            uc.ID,
			Name:          uc.Name,
			Email:         uc.Email,
			Phone:         uc.Phone,
			TotalSessions: uc.TotalSessions,
			TotalSpent:    uc.TotalSpent,
		}
		if uc.JoinDate != nil {
			u.JoinDate = uc.JoinDate.Resolve(now)
		}
		if uc.LastActive != nil {
			u.LastActive = uc.LastActive.Resolve(now)
		}
		users = append(users, u)
	}
	return users
}

// BuildFeed converts a feed configuration into a [parkboard.Feed].
func BuildFeed(fc *FeedConfig) (parkboard.Feed, error) {
	var opts []parkboard.FeedOption

	if len(fc.Headers) > 0 {
		opts = append(opts, parkboard.WithFeedHeaders(mapToKeyValuePairs(fc.Headers)...))
	}
	if fc.Timeout != 0 {
		opts = append(opts, parkboard.WithFeedTimeout(fc.Timeout.Duration()))
	}
	if fc.Interval != 0 {
		opts = append(opts, parkboard.WithFeedInterval(fc.Interval.Duration()))
	}
	if fc.Fields.SpotID != "" {
		opts = append(opts, parkboard.WithFeedFields(fc.Fields.SpotID, fc.Fields.Status))
	}

	if fc.Kind == string(parkboard.FeedMQTT) {
		opts = append(opts,
			parkboard.WithFeedTopic(fc.Topic),
			parkboard.WithFeedQoS(fc.QoS),
		)
		if fc.ClientID != "" {
			opts = append(opts, parkboard.WithFeedClientID(fc.ClientID))
		}
		if fc.Username != "" {
			opts = append(opts, parkboard.WithFeedCredentials(fc.Username, fc.Password))
		}
		if fc.InsecureSkipVerify {
			opts = append(opts, parkboard.WithFeedInsecureSkipVerify())
		}
	}

	return parkboard.NewFeed(parkboard.FeedKind(fc.Kind), fc.URL, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

func resolve(in *Instant, now time.Time) *time.Time {
	if in == nil {
		return nil
	}
	t := in.Resolve(now)
	return &t
}
