package oracle

import (
	"math"
	"time"
)

const daysPerMonth = 30.44

// Score observed inactivity of one wallet
type Score struct {
	Months   float64   `json:"months"`
	DiffDays int64     `json:"diff_days"`
	LastTxAt time.Time `json:"last_tx_at"`
}

// BucketScore maps whole days since the last transaction to months.
// Up to a week counts as active.
func BucketScore(diffDays int64) float64 {
	switch {
	case diffDays <= 7:
		return 0.25
	case diffDays <= 30:
		return 1
	case diffDays <= 60:
		return 2
	default:
		return math.Round(float64(diffDays) / daysPerMonth)
	}
}

// DiffDays whole days between last and now, truncated
func DiffDays(last, now time.Time) int64 {
	return int64(now.UTC().Sub(last.UTC()) / (24 * time.Hour))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts ISO-8601 with or without a zone; zoneless values are UTC
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
