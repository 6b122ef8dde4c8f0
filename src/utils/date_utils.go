package utils

import (
	"strings"
	"time"
)

// RecordTimestampFormat is the layout the account service uses for
// transaction timestamps, e.g. "10/14/2025 03:04 PM".
const RecordTimestampFormat = "01/02/2006 03:04 PM"

const (
	RecordDateFormat = "01/02/2006"
	RecordTimeFormat = "03:04 PM"
)

// ParseRecordTimestamp parses a history timestamp. It falls back to the
// separate date and time fields and returns the zero time when neither parses.
func ParseRecordTimestamp(timestamp, date, clock string) time.Time {
	if t, err := time.Parse(RecordTimestampFormat, strings.TrimSpace(timestamp)); err == nil {
		return t
	}
	if date == "" {
		return time.Time{}
	}
	if t, err := time.Parse(RecordTimestampFormat, strings.TrimSpace(date+" "+clock)); err == nil {
		return t
	}
	if t, err := time.Parse(RecordDateFormat, strings.TrimSpace(date)); err == nil {
		return t
	}
	return time.Time{}
}

var serverTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseServerTime parses the account service's ISO timestamps, which may
// omit the zone. Zone-less values are taken as UTC.
func ParseServerTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range serverTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
