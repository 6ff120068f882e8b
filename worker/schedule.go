/*
Package worker runs the periodic generation and cleanup passes.

PURPOSE:
  Two jobs keep materialized instances in step with wall-clock time:
    GenerationWorker: materializes occurrences inside [now - retention, now + horizon)
    CleanupWorker:    retires instances that ended before now - retention

  Both are plain RunOnce(ctx) passes. Runner fires them on a cron schedule.

TIME:
  Every "now" comes from an injected Clock. Tests drive a FakeClock; the
  server uses RealClock.

MULTI-REPLICA:
  There is no leader election or distributed lock. Overlapping passes on
  several replicas are safe because instance creation is insert-if-absent
  and retirement only deletes rows older than the cutoff.

SEE ALSO:
  - recurrence/materialize.go: InstanceMaterializer
  - recurrence/store.go: RetireInstances
*/
package worker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned for cron expressions that cannot be used.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Default schedules.
const (
	DefaultGenerationCron = "0 * * * *"
	DefaultCleanupCron    = "0 2 * * *"
)

// minCronFields is the minimum number of space-separated fields accepted.
const minCronFields = 5

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Schedule computes fire times from a cron expression.
type Schedule struct {
	expr  string
	sched cron.Schedule
}

// ParseSchedule parses a five-field (or six-field, seconds first) cron
// expression. Descriptors such as "@hourly" are rejected.
func ParseSchedule(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if n := len(strings.Fields(expr)); n < minCronFields {
		return Schedule{}, fmt.Errorf("%w: %q has %d fields, need at least %d", ErrInvalidSchedule, expr, n, minCronFields)
	}
	s, err := parser.Parse(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
	}
	return Schedule{expr: expr, sched: s}, nil
}

// MustParseSchedule is ParseSchedule for constants.
func MustParseSchedule(expr string) Schedule {
	s, err := ParseSchedule(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the first fire time strictly after t.
func (s Schedule) Next(t time.Time) time.Time {
	return s.sched.Next(t)
}

func (s Schedule) String() string { return s.expr }
