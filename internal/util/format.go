package util

import (
	"fmt"
	"time"
)

// FormatTokens formats a token count with K/M suffix for readability.
// Examples: 500 -> "500", 1500 -> "1.5K", 1500000 -> "1.5M"
func FormatTokens(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// FormatDuration rounds d to milliseconds below a second and to tenths of a
// second above.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// FormatTime formats t as "2006-01-02 15:04" in local time, or "-" when zero.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// dbLayout is fixed width so stored timestamps sort lexically.
const dbLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTimeDB formats t in UTC the way timestamps are stored.
func FormatTimeDB(t time.Time) string {
	return t.UTC().Format(dbLayout)
}

// ParseTimeDB parses a stored timestamp, accepting RFC3339 and the SQLite
// "YYYY-MM-DD HH:MM:SS" layout. Returns zero time if parsing fails.
func ParseTimeDB(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

// SinceForPeriod returns the start of a reporting period relative to now.
// Supported periods: "today", "week", "month". Anything else, including
// "all", returns the zero time.
func SinceForPeriod(period string, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case "today":
		return day
	case "week":
		return day.AddDate(0, 0, -7)
	case "month":
		return day.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}
