package attendance

import (
	"time"

	"emargement/internal/apperr"
)

// DefaultGracePeriod is how long after the start an arrival still counts as late.
const DefaultGracePeriod = 10 * time.Minute

// Classify compares the hour and minute of arrival against start.
// An arrival exactly at start+grace is still late.
func Classify(start, arrival time.Time, grace time.Duration) Status {
	s := minuteOfDay(start)
	a := minuteOfDay(arrival)
	g := int(grace / time.Minute)
	switch {
	case a > s+g:
		return Absent
	case a > s:
		return Late
	default:
		return Present
	}
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Classifier applies Classify with a configured grace period, reading both
// instants as wall-clock times in Location.
type Classifier struct {
	Grace    time.Duration
	Location *time.Location
}

// NewClassifier falls back to the default grace period and UTC.
func NewClassifier(grace time.Duration, loc *time.Location) Classifier {
	if grace < 0 {
		grace = DefaultGracePeriod
	}
	if loc == nil {
		loc = time.UTC
	}
	return Classifier{Grace: grace, Location: loc}
}

func (c Classifier) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Classify converts both instants to the classifier's location first.
func (c Classifier) Classify(start, arrival time.Time) Status {
	loc := c.location()
	return Classify(start.In(loc), arrival.In(loc), c.Grace)
}

// Resolve returns the status and arrival time to store for one entry.
//
// An explicit Absent always wins and clears the arrival. Otherwise an
// arrival is mandatory; when a status is also given it must agree with
// the classification of that arrival.
func (c Classifier) Resolve(start time.Time, requested *Status, arrival *time.Time) (Status, *time.Time, error) {
	if requested != nil && !requested.Valid() {
		return "", nil, apperr.Invalid("unknown status %q", *requested)
	}
	if requested != nil && *requested == Absent {
		return Absent, nil, nil
	}
	if arrival == nil || arrival.IsZero() {
		if requested == nil {
			return "", nil, apperr.Invalid("arrival time or status is required")
		}
		return "", nil, apperr.Invalid("arrival time is required for status %s", *requested)
	}

	derived := c.Classify(start, *arrival)
	if requested != nil && *requested != derived {
		return "", nil, apperr.Invalid("status %s does not match arrival %s (expected %s)",
			*requested, arrival.In(c.location()).Format("15:04"), derived)
	}
	if derived == Absent {
		return Absent, nil, nil
	}
	at := arrival.UTC()
	return derived, &at, nil
}
