// Package xtime provides the session-timezone timestamp used by the
// backtest engine and configuration loader. It generalizes the teacher's
// hardcoded IST location into a configurable zone, since futures contracts
// trade continuously and have no market-hours/holiday calendar.
package xtime

import (
	"fmt"
	"time"
)

// Minute is the engine's fixed step resolution.
const Minute = time.Minute

// Session wraps a *time.Location used to format and truncate timestamps
// for one backtest/agent run. The zero value uses UTC.
type Session struct {
	loc *time.Location
}

// NewSession loads the named zone, falling back to UTC if it cannot be
// resolved (matching the teacher's fixed-zone fallback in timeutil.go).
func NewSession(name string) *Session {
	if name == "" {
		return &Session{loc: time.UTC}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}
	return &Session{loc: loc}
}

// Location returns the underlying timezone.
func (s *Session) Location() *time.Location {
	if s == nil || s.loc == nil {
		return time.UTC
	}
	return s.loc
}

// Now returns the current time in this session's zone, truncated to the
// minute — the backtest engine never deals in sub-minute resolution.
func (s *Session) Now() time.Time {
	return s.TruncateMinute(time.Now())
}

// In converts t into this session's zone without truncation.
func (s *Session) In(t time.Time) time.Time {
	return t.In(s.Location())
}

// TruncateMinute zeroes the seconds/nanoseconds component of t, in this
// session's zone.
func (s *Session) TruncateMinute(t time.Time) time.Time {
	t = s.In(t)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// layouts are tried in order, matching §6's "YYYY, YYYY-MM, YYYY-MM-DD,
// …T HH, … HH:MM, … HH:MM:SS (zero-filled to seconds)" grammar.
var layouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15",
	"2006-01-02 15",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseFlexible parses a config timestamp against the §6 grammar, zero-
// filling missing trailing components (a bare "2026" means
// 2026-01-01T00:00:00 in the session's zone).
func (s *Session) ParseFlexible(value string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, s.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("xtime: value %q does not match any supported timestamp layout", value)
}

// FormatMinute renders t as "2006-01-02 15:04" in this session's zone.
func (s *Session) FormatMinute(t time.Time) string {
	return s.In(t).Format("2006-01-02 15:04")
}

// AddMinutes advances t by n minutes.
func AddMinutes(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * Minute)
}
