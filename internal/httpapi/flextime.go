package httpapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"emargement/internal/apperr"
	"emargement/internal/attendance"
)

type flexKind int

const (
	flexEmpty flexKind = iota
	flexInstant
	flexLocal
	flexDate
	flexClock
)

// FlexTime accepts the time shapes clients send: an RFC 3339 instant, a
// zoneless date-time, a bare date (2006-01-02) or a bare time of day
// (15:04). All but the first only become instants once placed in a
// location.
type FlexTime struct {
	kind  flexKind
	t     time.Time
	clock attendance.Clock
}

// ParseFlexTime reads s; an empty string yields the zero FlexTime.
func ParseFlexTime(s string) (FlexTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FlexTime{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return FlexTime{kind: flexInstant, t: t}, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return FlexTime{kind: flexLocal, t: t}, nil
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return FlexTime{kind: flexDate, t: t}, nil
	}
	if c, err := attendance.ParseClock(s); err == nil {
		return FlexTime{kind: flexClock, clock: c}, nil
	}
	return FlexTime{}, apperr.Invalid("unrecognised time %q (want RFC 3339, YYYY-MM-DD or HH:MM)", s)
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = FlexTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return apperr.Invalid("time must be a string, got %s", string(data))
	}
	parsed, err := ParseFlexTime(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f FlexTime) IsZero() bool { return f.kind == flexEmpty }

// On resolves f to an instant. Dates become midnight and clock values are
// placed on the calendar day of day, both in loc.
func (f FlexTime) On(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	switch f.kind {
	case flexInstant:
		return f.t
	case flexLocal:
		return time.Date(f.t.Year(), f.t.Month(), f.t.Day(), f.t.Hour(), f.t.Minute(), f.t.Second(), 0, loc)
	case flexDate:
		return time.Date(f.t.Year(), f.t.Month(), f.t.Day(), 0, 0, 0, 0, loc)
	case flexClock:
		return f.clock.On(day, loc)
	}
	return time.Time{}
}

// Ptr is On for optional fields: zero input gives nil.
func (f *FlexTime) Ptr(day time.Time, loc *time.Location) *time.Time {
	if f == nil || f.IsZero() {
		return nil
	}
	t := f.On(day, loc)
	return &t
}
