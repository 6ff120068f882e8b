package worker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recurrence-engine/worker"
)

func TestParseSchedule_Defaults(t *testing.T) {
	now := time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)

	gen, err := worker.ParseSchedule(worker.DefaultGenerationCron)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC), gen.Next(now))

	cleanup, err := worker.ParseSchedule(worker.DefaultCleanupCron)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 4, 2, 0, 0, 0, time.UTC), cleanup.Next(now))
}

func TestParseSchedule_SixFieldsWithSeconds(t *testing.T) {
	s, err := worker.ParseSchedule("30 */15 * * * *")
	require.NoError(t, err)

	now := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 3, 9, 0, 30, 0, time.UTC), s.Next(now))
}

func TestParseSchedule_Rejects(t *testing.T) {
	for _, expr := range []string{"", "@hourly", "* * * *", "61 * * * *", "0 25 * * *", "not a cron at all"} {
		_, err := worker.ParseSchedule(expr)
		assert.ErrorIs(t, err, worker.ErrInvalidSchedule, expr)
	}
}

func TestMustParseSchedule_Panics(t *testing.T) {
	assert.Panics(t, func() { worker.MustParseSchedule("bad") })
	assert.NotPanics(t, func() { worker.MustParseSchedule("*/5 * * * *") })
}
