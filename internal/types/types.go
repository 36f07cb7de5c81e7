package types

import (
	"fmt"
	"time"
)

// DateLayout is the DD/MM/YYYY form accepted for the st and et arguments.
const DateLayout = "02/01/2006"

// TimeWindow is the query period. Each store applies its own bound semantics:
// the operational store excludes both ends, the threat-intel store includes
// Start and excludes End.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseDate parses a DD/MM/YYYY string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &DateParseError{Value: s, Err: err}
	}
	return t, nil
}

// NewWindow parses the literal start and end arguments.
func NewWindow(st, et string) (TimeWindow, error) {
	start, err := ParseDate(st)
	if err != nil {
		return TimeWindow{}, err
	}
	end, err := ParseDate(et)
	if err != nil {
		return TimeWindow{}, err
	}
	return TimeWindow{Start: start, End: end}, nil
}

// Empty reports whether no instant can satisfy either bound semantics.
func (w TimeWindow) Empty() bool {
	return !w.End.After(w.Start)
}

// ContainsOpen reports start < t < end.
func (w TimeWindow) ContainsOpen(t time.Time) bool {
	return t.After(w.Start) && t.Before(w.End)
}

// ContainsHalfOpen reports start <= t < end.
func (w TimeWindow) ContainsHalfOpen(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s to %s", w.Start.Format(time.DateTime), w.End.Format(time.DateTime))
}
