// Package points defines core types shared across the monitoring subsystems.
package points

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Key identifies one monitored route/date pair.
type Key struct {
	Origin string `json:"origin"`
	Date   string `json:"date"`
}

// NewKey builds a Key from an origin code and a calendar date string.
func NewKey(origin, date string) Key {
	return Key{Origin: strings.TrimSpace(origin), Date: strings.TrimSpace(date)}
}

// String returns the persisted form "<origin>-<date>".
func (k Key) String() string {
	return k.Origin + "-" + k.Date
}

// Keys returns the cross product of origins and dates in iteration order:
// every date of the first origin, then every date of the second, and so on.
func Keys(origins, dates []string) []Key {
	keys := make([]Key, 0, len(origins)*len(dates))
	for _, origin := range origins {
		for _, date := range dates {
			keys = append(keys, NewKey(origin, date))
		}
	}
	return keys
}

// PricePoint is a single observation read from the page.
type PricePoint struct {
	RawText    string
	Value      int64
	ObservedAt time.Time
}

// NewPricePoint parses raw and stamps it with observedAt.
func NewPricePoint(raw string, observedAt time.Time) (PricePoint, error) {
	value, err := ParsePoints(raw)
	if err != nil {
		return PricePoint{}, err
	}
	return PricePoint{RawText: raw, Value: value, ObservedAt: observedAt}, nil
}

// NoSignal reports whether the point carries no usable value.
func (p PricePoint) NoSignal() bool {
	return p.Value == 0
}

// BestRecord is the lowest value ever observed for a key.
type BestRecord struct {
	Points      string    `json:"points"`
	PointsValue int64     `json:"points_value"`
	LastUpdated time.Time `json:"last_updated"`
}

// naiveTimestampLayout matches ISO-8601 timestamps written without an offset,
// with or without fractional seconds.
const naiveTimestampLayout = "2006-01-02T15:04:05.999999999"

// UnmarshalJSON accepts last_updated as RFC 3339 or as a naive local timestamp.
func (r *BestRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Points      string `json:"points"`
		PointsValue int64  `json:"points_value"`
		LastUpdated string `json:"last_updated"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	updated, err := ParseTimestamp(raw.LastUpdated)
	if err != nil {
		return err
	}
	*r = BestRecord{Points: raw.Points, PointsValue: raw.PointsValue, LastUpdated: updated}
	return nil
}

// ParseTimestamp parses an RFC 3339 timestamp, falling back to a naive
// timestamp in local time. Empty text yields the zero time.
func ParseTimestamp(text string) (time.Time, error) {
	if text == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(naiveTimestampLayout, text, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", text, err)
	}
	return ts, nil
}

// AlertEvent is produced when a record-breaking value is below the threshold.
type AlertEvent struct {
	Key       Key        `json:"key"`
	Point     PricePoint `json:"point"`
	Threshold int64      `json:"threshold"`
}

// Observation pairs a key with the point read for it during a sweep.
type Observation struct {
	Key   Key
	Point PricePoint
}

// ParsePoints converts page text like "348.000" into 348000. Dots, commas and
// whitespace are treated as separators; empty text yields zero.
func ParsePoints(text string) (int64, error) {
	var (
		value  int64
		digits int
	)
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			if digits >= 18 {
				return 0, fmt.Errorf("parse points %q: value too large", text)
			}
			value = value*10 + int64(r-'0')
			digits++
		case r == '.' || r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\u00a0':
		default:
			return 0, fmt.Errorf("parse points %q: unexpected character %q", text, r)
		}
	}
	return value, nil
}
