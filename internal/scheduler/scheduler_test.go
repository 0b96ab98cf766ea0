package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickJob struct {
	name  string
	ticks chan struct{}
}

func (j *tickJob) Name() string { return j.name }

func (j *tickJob) Run() error {
	select {
	case j.ticks <- struct{}{}:
	default:
	}
	return nil
}

func TestScheduler_AddJob_InvalidSchedule(t *testing.T) {
	sched := New(zerolog.Nop())

	err := sched.AddJob("not-a-schedule", &tickJob{name: "sweep"})
	require.Error(t, err)
	assert.Empty(t, sched.Jobs())
}

func TestScheduler_AddJob_RegistersNames(t *testing.T) {
	sched := New(zerolog.Nop())

	require.NoError(t, sched.AddJob("@daily", &tickJob{name: "sweep"}))
	require.NoError(t, sched.AddJob("@daily", &tickJob{name: "db_maintenance"}))

	assert.Equal(t, []string{"sweep", "db_maintenance"}, sched.Jobs())
}

func TestScheduler_RunsJobOnSchedule(t *testing.T) {
	sched := New(zerolog.Nop())
	job := &tickJob{name: "sweep", ticks: make(chan struct{}, 1)}

	// Six-field schedule with seconds: fires every second.
	require.NoError(t, sched.AddJob("* * * * * *", job))
	sched.Start()
	defer sched.Stop()

	select {
	case <-job.ticks:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}
}
