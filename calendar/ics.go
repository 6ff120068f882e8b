/*
Package calendar exports effective event instances as iCalendar.

PURPOSE:
  Subscribers (phones, desktop calendars) consume a rule's materialized
  instances as a VCALENDAR with one VEVENT per instance. Exceptions are
  already applied: a renamed or shifted instance appears renamed or shifted.

  No RRULE is emitted. The engine owns expansion, so clients never expand a
  rule differently than the generation worker did.

SEE ALSO:
  - overlay/service.go: EffectiveEventInstances
  - api/handlers.go: GET /rules/{ruleID}/calendar.ics
*/
package calendar

import (
	"io"
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/warp/recurrence-engine/overlay"
)

const productID = "-//warp//recurrence-engine//EN"

// Custom VEVENT properties carrying engine identifiers.
const (
	PropertyRuleID         ics.ComponentProperty = "X-RECURRENCE-RULE-ID"
	PropertyEventID        ics.ComponentProperty = "X-RECURRENCE-EVENT-ID"
	PropertySequenceNumber ics.ComponentProperty = "X-RECURRENCE-SEQUENCE"
)

// Feed renders instance views as one calendar.
type Feed struct {
	Name string
	// Stamp is written as DTSTAMP on every event; zero means time.Now.
	Stamp time.Time
}

// Build returns the calendar for views. Views are emitted in the given order.
func (f Feed) Build(views []overlay.EventInstanceView) *ics.Calendar {
	stamp := f.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if f.Name != "" {
		cal.SetName(f.Name)
	}

	for _, v := range views {
		ev := cal.AddEvent(string(v.InstanceID))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(v.StartAt.UTC())
		ev.SetEndAt(v.EndAt.UTC())
		ev.SetSummary(v.Name)
		if v.Description != "" {
			ev.SetDescription(v.Description)
		}
		if v.Location != "" {
			ev.SetLocation(v.Location)
		}
		ev.SetProperty(PropertyRuleID, string(v.RuleID))
		ev.SetProperty(PropertyEventID, string(v.EventID))
		ev.SetProperty(PropertySequenceNumber, strconv.Itoa(v.SequenceNumber))
	}
	return cal
}

// Write serializes the calendar for views to w.
func (f Feed) Write(w io.Writer, views []overlay.EventInstanceView) error {
	_, err := io.WriteString(w, f.Build(views).Serialize())
	return err
}
