// Package clock holds the pure time parsing, conversion and formatting
// shared by the tools and the gateway. Nothing here touches the network.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts for user-facing time strings.
const (
	LayoutFull      = "2006-01-02 15:04:05 MST"
	LayoutClock     = "15:04"
	LayoutClockZone = "15:04 MST"
)

// ParseError reports a time string that is not a 24-hour HH:MM value.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid time %q: expected 24-hour HH:MM", e.Input)
}

// ParseClock parses a 24-hour "HH:MM" string. Surrounding whitespace and
// trailing components after the minutes ("15:04:05") are tolerated.
func ParseClock(s string) (hour, minute int, err error) {
	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) < 2 {
		return 0, 0, &ParseError{Input: s}
	}
	hour, err = strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return 0, 0, &ParseError{Input: s}
	}
	minute, err = strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return 0, 0, &ParseError{Input: s}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, &ParseError{Input: s}
	}
	return hour, minute, nil
}

// Conversion is a wall-clock reading moved between two zones, plus the
// actual current time in each so answers can anchor themselves.
type Conversion struct {
	SourceClock string // the parsed HH:MM, normalized
	TargetClock string // the same instant in the target zone
	SourceNow   string // current HH:MM zone in the source zone
	TargetNow   string // current HH:MM zone in the target zone
}

// Convert interprets timeStr as today's wall clock in src and maps it to
// dst. "Today" is the date now has in the source zone.
func Convert(timeStr string, src, dst *time.Location, now time.Time) (Conversion, error) {
	hour, minute, err := ParseClock(timeStr)
	if err != nil {
		return Conversion{}, err
	}
	today := now.In(src)
	at := time.Date(today.Year(), today.Month(), today.Day(), hour, minute, 0, 0, src)
	return Conversion{
		SourceClock: at.Format(LayoutClock),
		TargetClock: at.In(dst).Format(LayoutClock),
		SourceNow:   now.In(src).Format(LayoutClockZone),
		TargetNow:   now.In(dst).Format(LayoutClockZone),
	}, nil
}
