/*
expand.go - RecurrenceExpander

PURPOSE:
  Produces the ordered occurrence starts of a Rule inside a bounded window.
  Calendar arithmetic (interval stepping, ordinal weekdays, negative month
  days) is delegated to rrule-go; this file maps a Rule onto rrule options
  and applies the engine's termination and ordering contract on top.

TERMINATION (whichever comes first):
  - Count occurrences emitted, counted from the anchor
  - an occurrence on or after RecurrenceEndDate (exclusive)
  - an occurrence on or after Window.End (exclusive)
  - the MaxOccurrences safety cap

ORDERING:
  Occurrences are strictly increasing with no duplicates. Window.Start only
  filters what is emitted; numbering still starts at the anchor, so the same
  occurrence gets the same SequenceNumber no matter which window produced it.

LAZINESS:
  Sequence pulls one instant at a time from the rrule iterator. A never-ending
  rule is only safe to drain with a bounded window.
*/
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	// DefaultMaxOccurrences caps a single expansion.
	DefaultMaxOccurrences = 5000
)

var rruleFrequencies = map[Frequency]rrule.Frequency{
	FreqDaily:   rrule.DAILY,
	FreqWeekly:  rrule.WEEKLY,
	FreqMonthly: rrule.MONTHLY,
	FreqYearly:  rrule.YEARLY,
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Occurrence is one expanded start instant.
type Occurrence struct {
	Start time.Time
	// Index is the 1-based position counted from the anchor.
	Index int
}

// OccurrenceSource yields occurrences in increasing order.
type OccurrenceSource interface {
	Next() (Occurrence, bool)
}

// =============================================================================
// EXPANDER
// =============================================================================

// Expander expands a single rule.
type Expander struct {
	rule           Rule
	rr             *rrule.RRule
	MaxOccurrences int
}

// NewExpander converts rule into rrule options. The rule should already have
// passed ValidateRule; malformed day codes are reported here.
func NewExpander(rule Rule) (*Expander, error) {
	freq, ok := rruleFrequencies[rule.Frequency]
	if !ok {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, rule.Frequency)
	}

	opt := rrule.ROption{
		Freq:       freq,
		Dtstart:    rule.RecurrenceStartDate,
		Interval:   rule.Interval,
		Bymonth:    rule.ByMonth,
		Bymonthday: rule.ByMonthDay,
	}
	if rule.Count != nil {
		opt.Count = *rule.Count
	}
	for _, code := range rule.ByDay {
		dc, err := ParseDayCode(code)
		if err != nil {
			return nil, err
		}
		wd := rruleWeekdays[dc.Weekday]
		if dc.Ordinal != 0 {
			wd = wd.Nth(dc.Ordinal)
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}

	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	return &Expander{rule: rule, rr: rr, MaxOccurrences: DefaultMaxOccurrences}, nil
}

// Sequence returns a lazy occurrence iterator bounded by w.
func (e *Expander) Sequence(w Window) *Sequence {
	return &Sequence{
		next:    e.rr.Iterator(),
		window:  w,
		endDate: e.rule.RecurrenceEndDate,
		max:     e.MaxOccurrences,
	}
}

// Expand drains the sequence for rule inside w. It refuses to drain a
// never-ending rule without a window end.
func Expand(rule Rule, w Window) ([]Occurrence, error) {
	if w.Bounded() && !w.Start.IsZero() && w.End.Before(w.Start) {
		return nil, ErrInvalidWindow
	}
	if !w.Bounded() && !rule.IsBounded() {
		return nil, ErrUnboundedExpansion
	}

	e, err := NewExpander(rule)
	if err != nil {
		return nil, err
	}

	seq := e.Sequence(w)
	var out []Occurrence
	for {
		occ, ok := seq.Next()
		if !ok {
			break
		}
		out = append(out, occ)
	}
	return out, nil
}

// =============================================================================
// SEQUENCE - Lazy iterator
// =============================================================================

// Sequence is a lazy, strictly increasing occurrence iterator.
type Sequence struct {
	next    rrule.Next
	window  Window
	endDate *time.Time
	max     int

	index     int
	emitted   int
	last      time.Time
	done      bool
	truncated bool
}

// Next returns the next occurrence, or false once the sequence is exhausted.
func (s *Sequence) Next() (Occurrence, bool) {
	for !s.done {
		t, ok := s.next()
		if !ok {
			s.done = true
			break
		}
		s.index++

		if s.endDate != nil && !t.Before(*s.endDate) {
			s.done = true
			break
		}
		if s.window.Bounded() && !t.Before(s.window.End) {
			s.done = true
			break
		}
		if !s.window.Start.IsZero() && t.Before(s.window.Start) {
			continue
		}
		if s.emitted > 0 && !t.After(s.last) {
			continue
		}
		if s.max > 0 && s.emitted >= s.max {
			s.truncated = true
			s.done = true
			break
		}

		s.last = t
		s.emitted++
		return Occurrence{Start: t, Index: s.index}, true
	}
	return Occurrence{}, false
}

// Truncated reports whether the sequence stopped at the safety cap.
func (s *Sequence) Truncated() bool { return s.truncated }

// Emitted returns how many occurrences have been returned so far.
func (s *Sequence) Emitted() int { return s.emitted }
