package relay

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sambot/internal/domain"
)

// EventTimeLayout renders event timestamps at second precision.
const EventTimeLayout = "2006-01-02 15:04:05"

// DisplayTitle returns the war-room title for a snippet title.
func DisplayTitle(title string) string {
	if title == domain.UntitledTitle {
		return "#Warroom"
	}
	return "#Warroom " + title
}

// FormatEventTime parses a Slack Unix timestamp ("1700000000.000100") and
// formats it in loc. Fractional seconds are truncated.
func FormatEventTime(eventTS string, loc *time.Location) (string, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(eventTS), 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return "", fmt.Errorf("invalid event_ts %q", eventTS)
	}
	if loc == nil {
		loc = time.Local
	}
	whole := math.Floor(secs)
	// float64(math.MaxInt64) rounds up to 2^63, which no int64 holds.
	if whole < math.MinInt64 || whole >= math.MaxInt64 {
		return "", fmt.Errorf("event_ts %q out of range", eventTS)
	}
	nanos := int64((secs - whole) * 1e9)
	return time.Unix(int64(whole), nanos).In(loc).Format(EventTimeLayout), nil
}

// BuildTitle returns "{event time} - {display title}".
func BuildTitle(eventTS, title string, loc *time.Location) (string, error) {
	ts, err := FormatEventTime(eventTS, loc)
	if err != nil {
		return "", err
	}
	return ts + " - " + DisplayTitle(title), nil
}
