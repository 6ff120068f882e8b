package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recurrence-engine/overlay"
)

func views() []overlay.EventInstanceView {
	start := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	return []overlay.EventInstanceView{
		{InstanceID: "inst-1", RuleID: "rule-1", EventID: "ev-1", SequenceNumber: 1, Name: "Shift", Location: "Warehouse", StartAt: start, EndAt: start.Add(3 * time.Hour)},
		{InstanceID: "inst-2", RuleID: "rule-1", EventID: "ev-1", SequenceNumber: 2, Name: "Shift (moved)", Description: "Dock B", StartAt: start.AddDate(0, 0, 8), EndAt: start.AddDate(0, 0, 8).Add(time.Hour), Overridden: true},
	}
}

func TestFeed_WriteParsesBack(t *testing.T) {
	// GIVEN: Two effective instances, the second overridden
	// WHEN: Writing the feed and parsing it back
	// THEN: Each instance is one VEVENT carrying its effective values

	var buf bytes.Buffer
	feed := Feed{Name: "Shifts", Stamp: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, feed.Write(&buf, views()))

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "inst-1", first.Id())
	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Warehouse", first.GetProperty(ics.ComponentPropertyLocation).Value)
	assert.Equal(t, "rule-1", first.GetProperty(PropertyRuleID).Value)
	assert.Nil(t, first.GetProperty(ics.ComponentPropertyDescription))

	second := events[1]
	assert.Equal(t, "Shift (moved)", second.GetProperty(ics.ComponentPropertySummary).Value)
	assert.Equal(t, "2", second.GetProperty(PropertySequenceNumber).Value)
	end, err := second.GetEndAt()
	require.NoError(t, err)
	assert.True(t, end.Equal(time.Date(2025, time.March, 11, 10, 0, 0, 0, time.UTC)))
}

func TestFeed_NoRRule(t *testing.T) {
	out := Feed{}.Build(views()).Serialize()
	assert.NotContains(t, out, "RRULE")
	assert.Contains(t, out, "METHOD:PUBLISH")
}

func TestFeed_Empty(t *testing.T) {
	cal := Feed{}.Build(nil)
	assert.Empty(t, cal.Events())
}
