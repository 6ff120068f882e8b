package recurrence_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recurrence-engine/recurrence"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

var anchor = at(2025, time.March, 3, 9) // a Monday

// =============================================================================
// INPUT VALIDATION TESTS
// =============================================================================

func TestValidateRecurrenceInput_ValidShapes(t *testing.T) {
	cases := map[string]recurrence.RecurrenceInput{
		"count":    {Frequency: recurrence.FreqDaily, Count: intPtr(5)},
		"endDate":  {Frequency: recurrence.FreqWeekly, EndDate: timePtr(anchor.AddDate(0, 2, 0)), ByDay: []string{"MO", "WE"}},
		"never":    {Frequency: recurrence.FreqMonthly, Never: true, ByDay: []string{"1MO"}},
		"yearly":   {Frequency: recurrence.FreqYearly, Count: intPtr(3), ByMonth: []int{3}},
		"interval": {Frequency: recurrence.FreqDaily, Interval: intPtr(2), Count: intPtr(5)},
		"lastDay":  {Frequency: recurrence.FreqMonthly, Never: true, ByMonthDay: []int{-1}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			res := recurrence.ValidateRecurrenceInput(in, anchor)
			assert.True(t, res.IsValid, "errors: %v", res.Errors)
			assert.NotNil(t, res.Errors)
			assert.Empty(t, res.Errors)
		})
	}
}

func TestValidateRecurrenceInput_SingleRejections(t *testing.T) {
	cases := []struct {
		name    string
		in      recurrence.RecurrenceInput
		message string
	}{
		{"missing frequency", recurrence.RecurrenceInput{Count: intPtr(1)}, "frequency is required"},
		{"unknown frequency", recurrence.RecurrenceInput{Frequency: "HOURLY", Count: intPtr(1)}, "invalid frequency"},
		{"end before start", recurrence.RecurrenceInput{Frequency: recurrence.FreqDaily, EndDate: timePtr(anchor.Add(-time.Hour))}, "endDate must be after"},
		{"end equals start", recurrence.RecurrenceInput{Frequency: recurrence.FreqDaily, EndDate: timePtr(anchor)}, "endDate must be after"},
		{"zero count", recurrence.RecurrenceInput{Frequency: recurrence.FreqDaily, Count: intPtr(0)}, "count must be at least 1"},
		{"zero interval", recurrence.RecurrenceInput{Frequency: recurrence.FreqDaily, Interval: intPtr(0), Count: intPtr(2)}, "interval must be at least 1"},
		{"yearly never", recurrence.RecurrenceInput{Frequency: recurrence.FreqYearly, Never: true}, "yearly recurrences cannot be never-ending"},
		{"no termination", recurrence.RecurrenceInput{Frequency: recurrence.FreqDaily}, "must set one of"},
		{"two terminations", recurrence.RecurrenceInput{Frequency: recurrence.FreqDaily, Count: intPtr(2), Never: true}, "must set only one of"},
		{"bad weekday", recurrence.RecurrenceInput{Frequency: recurrence.FreqWeekly, Count: intPtr(2), ByDay: []string{"XX"}}, "invalid byDay value"},
		{"month 13", recurrence.RecurrenceInput{Frequency: recurrence.FreqYearly, Count: intPtr(2), ByMonth: []int{13}}, "invalid byMonth value"},
		{"month 0", recurrence.RecurrenceInput{Frequency: recurrence.FreqYearly, Count: intPtr(2), ByMonth: []int{0}}, "invalid byMonth value"},
		{"month day 0", recurrence.RecurrenceInput{Frequency: recurrence.FreqMonthly, Count: intPtr(2), ByMonthDay: []int{0}}, "invalid byMonthDay value"},
		{"month day 32", recurrence.RecurrenceInput{Frequency: recurrence.FreqMonthly, Count: intPtr(2), ByMonthDay: []int{32}}, "invalid byMonthDay value"},
		{"month day -32", recurrence.RecurrenceInput{Frequency: recurrence.FreqMonthly, Count: intPtr(2), ByMonthDay: []int{-32}}, "invalid byMonthDay value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := recurrence.ValidateRecurrenceInput(tc.in, anchor)
			assert.False(t, res.IsValid)
			require.Len(t, res.Errors, 1, "errors: %v", res.Errors)
			assert.Contains(t, res.Errors[0], tc.message)
		})
	}
}

func TestValidateRecurrenceInput_AccumulatesAllViolations(t *testing.T) {
	// GIVEN: A definition with four independent problems
	// WHEN: Validating
	// THEN: All four are reported, none short-circuits the others

	in := recurrence.RecurrenceInput{
		Frequency:  recurrence.FreqYearly,
		Interval:   intPtr(0),
		Never:      true,
		ByMonth:    []int{14},
		ByMonthDay: []int{0},
	}
	res := recurrence.ValidateRecurrenceInput(in, anchor)

	assert.False(t, res.IsValid)
	assert.Len(t, res.Errors, 4)
}

func TestValidateRecurrenceInput_OrdinalPrefixNotInspected(t *testing.T) {
	// Only the trailing weekday code is checked; "1MO" and "-1FR" pass.
	in := recurrence.RecurrenceInput{
		Frequency: recurrence.FreqMonthly,
		Never:     true,
		ByDay:     []string{"1MO", "-1FR", "+2TU"},
	}
	res := recurrence.ValidateRecurrenceInput(in, anchor)
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
}

// =============================================================================
// RULE VALIDATION TESTS
// =============================================================================

func TestValidateRule_SkipsTerminationShape(t *testing.T) {
	// GIVEN: A persisted yearly never-ending rule (rejected at input time)
	// WHEN: Validating it as a rule
	// THEN: It passes; only bounds that break expansion are checked

	r := recurrence.Rule{
		Frequency:           recurrence.FreqYearly,
		Interval:            1,
		Never:               true,
		RecurrenceStartDate: anchor,
	}
	res := recurrence.ValidateRule(r)
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
}

func TestValidateRule_Rejections(t *testing.T) {
	r := recurrence.Rule{
		Frequency:           "",
		Interval:            0,
		Count:               intPtr(-1),
		RecurrenceStartDate: anchor,
		RecurrenceEndDate:   timePtr(anchor.Add(-time.Hour)),
		ByDay:               []string{"M"},
	}
	res := recurrence.ValidateRule(r)

	assert.False(t, res.IsValid)
	assert.Len(t, res.Errors, 5)
	assert.Contains(t, res.Errors[0], "frequency is required")
}

// =============================================================================
// DAY CODE TESTS
// =============================================================================

func TestParseDayCode(t *testing.T) {
	cases := []struct {
		in      string
		ordinal int
		weekday time.Weekday
	}{
		{"MO", 0, time.Monday},
		{"1MO", 1, time.Monday},
		{"-1FR", -1, time.Friday},
		{"+2TU", 2, time.Tuesday},
		{"SU", 0, time.Sunday},
	}
	for _, tc := range cases {
		dc, err := recurrence.ParseDayCode(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.ordinal, dc.Ordinal, tc.in)
		assert.Equal(t, tc.weekday, dc.Weekday, tc.in)
	}
}

func TestParseDayCode_Malformed(t *testing.T) {
	for _, in := range []string{"", "M", "XX", "0MO", "aMO", "1-MO"} {
		_, err := recurrence.ParseDayCode(in)
		assert.ErrorIs(t, err, recurrence.ErrInvalidDayCode, in)
	}
}
