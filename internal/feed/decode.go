package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Default payload field paths.
const (
	DefaultSpotIDPath = "spotId"
	DefaultStatusPath = "status"
)

var (
	// ErrMissingSpotID is returned when a payload has no usable spot id.
	ErrMissingSpotID = errors.New("missing spot id")

	// ErrMissingStatus is returned when a payload has no usable status.
	ErrMissingStatus = errors.New("missing status")
)

// Decoder turns feed payloads into [Event] values.
//
// Field paths use dot notation to navigate nested objects, so a feed that
// publishes {"data": {"spot": "spot_3", "state": "empty"}} is decoded with
// paths "data.spot" and "data.state".
//
// A payload may be a single JSON object or an array of objects.
type Decoder struct {
	spotIDPath []string
	statusPath []string
}

// NewDecoder creates a [Decoder]. Empty paths fall back to
// [DefaultSpotIDPath] and [DefaultStatusPath].
func NewDecoder(spotIDPath, statusPath string) *Decoder {
	if spotIDPath == "" {
		spotIDPath = DefaultSpotIDPath
	}
	if statusPath == "" {
		statusPath = DefaultStatusPath
	}
	return &Decoder{
		spotIDPath: strings.Split(spotIDPath, "."),
		statusPath: strings.Split(statusPath, "."),
	}
}

// Decode parses body into one or more events.
//
// An array payload is decoded element by element and fails on the first
// bad element. Status values are lowercased; they are not validated here.
func (d *Decoder) Decode(body []byte) ([]Event, error) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch v := data.(type) {
	case []interface{}:
		events := make([]Event, 0, len(v))
		for i, item := range v {
			ev, err := d.decodeOne(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			events = append(events, ev)
		}
		return events, nil
	default:
		ev, err := d.decodeOne(v)
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	}
}

func (d *Decoder) decodeOne(data interface{}) (Event, error) {
	spotID := extractJSONPath(data, d.spotIDPath)
	if spotID == "" {
		return Event{}, ErrMissingSpotID
	}
	status := extractJSONPath(data, d.statusPath)
	if status == "" {
		return Event{}, ErrMissingStatus
	}
	return Event{
		SpotID: spotID,
		Status: strings.ToLower(status),
	}, nil
}

// extractJSONPath walks a JSON structure using dot notation parts.
// Numbers are formatted without a fractional part when integral.
func extractJSONPath(data interface{}, parts []string) string {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = obj[part]
		if !ok {
			return ""
		}
	}

	switch v := current.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
