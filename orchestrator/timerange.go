// Package orchestrator decides when the background monitoring of extraction
// requests is allowed to run: always, inside weekly time windows, or never.
package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/geonexus/extractd/errors"
)

// TimeRange is one weekly recurring activity window: a day-of-week span and a
// time-of-day span. Days run 1 (Monday) through 7 (Sunday). A range whose
// start day is after its end day wraps across the week boundary, meaning from
// the start day through the end of the week, then from the start of the week
// through the end day. The time-of-day span applies on each covered day;
// spans crossing midnight are not supported and must be expressed as two
// adjacent ranges.
type TimeRange struct {
	StartDay  int    `json:"startDay"`
	EndDay    int    `json:"endDay"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// IsValid reports whether the range is well formed: days within 1 to 7,
// parseable "HH:MM" times, and an end time that is not strictly before the
// start time.
func (r TimeRange) IsValid() bool {
	if r.StartDay < 1 || r.StartDay > 7 || r.EndDay < 1 || r.EndDay > 7 {
		return false
	}

	start, err := parseMinuteOfDay(r.StartTime)
	if err != nil {
		return false
	}
	end, err := parseMinuteOfDay(r.EndTime)
	if err != nil {
		return false
	}

	return end >= start
}

// IsInRange reports whether the given instant falls inside the window.
func (r TimeRange) IsInRange(now time.Time) bool {
	if !r.IsValid() {
		return false
	}

	if !r.coversDay(isoWeekday(now)) {
		return false
	}

	start, _ := parseMinuteOfDay(r.StartTime)
	end, _ := parseMinuteOfDay(r.EndTime)
	minute := now.Hour()*60 + now.Minute()

	return minute >= start && minute <= end
}

func (r TimeRange) coversDay(day int) bool {
	if r.StartDay <= r.EndDay {
		return day >= r.StartDay && day <= r.EndDay
	}
	// Week wrap: start day through Sunday, then Monday through end day
	return day >= r.StartDay || day <= r.EndDay
}

// isoWeekday maps a time to the 1 (Monday) through 7 (Sunday) convention.
func isoWeekday(t time.Time) int {
	day := int(t.Weekday())
	if day == 0 {
		return 7
	}
	return day
}

// parseMinuteOfDay converts an "HH:MM" string to minutes since midnight.
// "24:00" is accepted as an end-of-day boundary.
func parseMinuteOfDay(value string) (int, error) {
	if len(value) != 5 || value[2] != ':' {
		return 0, errors.Newf("invalid time of day %q", value)
	}

	hour, ok := parseTwoDigits(value[0], value[1])
	if !ok {
		return 0, errors.Newf("invalid time of day %q", value)
	}
	minute, ok := parseTwoDigits(value[3], value[4])
	if !ok {
		return 0, errors.Newf("invalid time of day %q", value)
	}

	if minute > 59 {
		return 0, errors.Newf("invalid time of day %q", value)
	}
	if hour > 24 || (hour == 24 && minute != 0) {
		return 0, errors.Newf("invalid time of day %q", value)
	}

	return hour*60 + minute, nil
}

func parseTwoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// TimeRangeCollection is the set of weekly windows attached to the
// time-window scheduling mode.
type TimeRangeCollection []TimeRange

// IsValid reports whether every contained range is valid. An empty
// collection is valid but never matches any instant.
func (c TimeRangeCollection) IsValid() bool {
	for _, r := range c {
		if !r.IsValid() {
			return false
		}
	}
	return true
}

// IsInRanges reports whether the given instant falls inside any window.
func (c TimeRangeCollection) IsInRanges(now time.Time) bool {
	for _, r := range c {
		if r.IsInRange(now) {
			return true
		}
	}
	return false
}

// Equal compares two collections structurally, order included.
func (c TimeRangeCollection) Equal(other TimeRangeCollection) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// ParseTimeRanges decodes the JSON array form used by the settings storage.
// An empty string yields an empty collection.
func ParseTimeRanges(raw string) (TimeRangeCollection, error) {
	if raw == "" {
		return TimeRangeCollection{}, nil
	}

	var ranges TimeRangeCollection
	if err := json.Unmarshal([]byte(raw), &ranges); err != nil {
		return nil, errors.Wrap(err, "failed to decode time ranges")
	}
	return ranges, nil
}

// MarshalTimeRanges renders a collection as its JSON array form.
func MarshalTimeRanges(ranges TimeRangeCollection) (string, error) {
	if ranges == nil {
		ranges = TimeRangeCollection{}
	}
	data, err := json.Marshal(ranges)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode time ranges")
	}
	return string(data), nil
}
