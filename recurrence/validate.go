package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// VALIDATION RESULT - Reporting contract, never thrown
// =============================================================================

// ValidationResult is returned by both validators. Callers decide whether to
// reject the definition or surface the messages to a user.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

type collector struct {
	errors []string
}

func (c *collector) add(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *collector) result() ValidationResult {
	if c.errors == nil {
		return ValidationResult{IsValid: true, Errors: []string{}}
	}
	return ValidationResult{IsValid: false, Errors: c.errors}
}

// =============================================================================
// DAY CODES
// =============================================================================

// weekdayCodes are the seven valid two-letter weekday abbreviations.
var weekdayCodes = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// DayCode is a parsed byDay entry: a weekday with an optional signed ordinal.
// Ordinal 0 means "every such weekday in the period".
type DayCode struct {
	Ordinal int
	Weekday time.Weekday
	Code    string // the two-letter weekday code
}

// IsWeekdayCode reports whether the last two characters of s are a valid
// weekday code. The ordinal prefix is not inspected.
func IsWeekdayCode(s string) bool {
	if len(s) < 2 {
		return false
	}
	_, ok := weekdayCodes[s[len(s)-2:]]
	return ok
}

// ParseDayCode splits "1MO", "-1FR", "+2TU" or "WE" into ordinal and weekday.
func ParseDayCode(s string) (DayCode, error) {
	s = strings.TrimSpace(s)
	if !IsWeekdayCode(s) {
		return DayCode{}, fmt.Errorf("%w: %q", ErrInvalidDayCode, s)
	}
	code := s[len(s)-2:]
	dc := DayCode{Weekday: weekdayCodes[code], Code: code}

	prefix := s[:len(s)-2]
	if prefix == "" {
		return dc, nil
	}
	n, err := strconv.Atoi(prefix)
	if err != nil || n == 0 {
		return DayCode{}, fmt.Errorf("%w: %q has a malformed ordinal", ErrInvalidDayCode, s)
	}
	dc.Ordinal = n
	return dc, nil
}

// =============================================================================
// INPUT VALIDATION - Not-yet-persisted definition
// =============================================================================

// ValidateRecurrenceInput checks a recurrence definition against the start of
// the event it will repeat. All violations are accumulated.
func ValidateRecurrenceInput(in RecurrenceInput, anchor time.Time) ValidationResult {
	var c collector

	if in.Frequency == "" {
		c.add("frequency is required")
	} else if !in.Frequency.Valid() {
		c.add("invalid frequency %q: must be one of DAILY, WEEKLY, MONTHLY, YEARLY", in.Frequency)
	}

	if in.EndDate != nil && !in.EndDate.After(anchor) {
		c.add("endDate must be after the event start date")
	}
	if in.Count != nil && *in.Count < 1 {
		c.add("count must be at least 1")
	}
	if in.Interval != nil && *in.Interval < 1 {
		c.add("interval must be at least 1")
	}
	if in.Frequency == FreqYearly && in.Never {
		c.add("yearly recurrences cannot be never-ending; set an endDate or count")
	}

	terminations := 0
	if in.Count != nil {
		terminations++
	}
	if in.EndDate != nil {
		terminations++
	}
	if in.Never {
		terminations++
	}
	switch {
	case terminations == 0:
		c.add("recurrence must set one of count, endDate or never")
	case terminations > 1:
		c.add("recurrence must set only one of count, endDate or never")
	}

	checkConstraints(&c, in.ByDay, in.ByMonth, in.ByMonthDay)
	return c.result()
}

// =============================================================================
// RULE VALIDATION - Already-persisted rule
// =============================================================================

// ValidateRule checks a persisted rule before it is used for expansion. It is
// looser than ValidateRecurrenceInput: it does not re-check the termination
// policy shape, only the bounds that would break expansion.
func ValidateRule(r Rule) ValidationResult {
	var c collector

	if r.Frequency == "" {
		c.add("frequency is required")
	} else if !r.Frequency.Valid() {
		c.add("invalid frequency %q: must be one of DAILY, WEEKLY, MONTHLY, YEARLY", r.Frequency)
	}
	if r.Interval < 1 {
		c.add("interval must be at least 1")
	}
	if r.Count != nil && *r.Count < 1 {
		c.add("count must be at least 1")
	}
	if r.RecurrenceEndDate != nil && !r.RecurrenceEndDate.After(r.RecurrenceStartDate) {
		c.add("recurrenceEndDate must be after recurrenceStartDate")
	}

	checkConstraints(&c, r.ByDay, r.ByMonth, r.ByMonthDay)
	return c.result()
}

func checkConstraints(c *collector, byDay []string, byMonth, byMonthDay []int) {
	for _, d := range byDay {
		if !IsWeekdayCode(d) {
			c.add("invalid byDay value %q: must end with one of SU, MO, TU, WE, TH, FR, SA", d)
		}
	}
	for _, m := range byMonth {
		if m < 1 || m > 12 {
			c.add("invalid byMonth value %d: must be between 1 and 12", m)
		}
	}
	for _, d := range byMonthDay {
		if d == 0 || d < -31 || d > 31 {
			c.add("invalid byMonthDay value %d: must be nonzero and between -31 and 31", d)
		}
	}
}
