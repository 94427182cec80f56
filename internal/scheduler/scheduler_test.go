package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/calorie-helper/internal/config"
	"github.com/vladimiradmaev/calorie-helper/internal/services"
)

type recordingSyncer struct{ days []time.Time }

func (r *recordingSyncer) SyncAllUsers(_ context.Context, day time.Time) int {
	r.days = append(r.days, day)
	return 1
}

type stubVerifier struct {
	calls int
	err   error
}

func (s *stubVerifier) Verify(context.Context) ([]services.Discrepancy, error) {
	s.calls++
	return nil, s.err
}

var defaults = config.ScheduleConfig{Sync: "55 23 * * *", Verify: "@weekly", VerifyBatch: 5}

func TestNewRegistersJobs(t *testing.T) {
	s, err := New(defaults, time.UTC, &recordingSyncer{}, &stubVerifier{})
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s, err = New(defaults, time.UTC, nil, &stubVerifier{})
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(config.ScheduleConfig{Sync: "every night", Verify: "@weekly"}, time.UTC, &recordingSyncer{}, nil)
	assert.ErrorContains(t, err, "invalid sync schedule")
}

func TestSyncJobUsesUserDay(t *testing.T) {
	loc := time.FixedZone("YEKT", 5*60*60)
	syncer := &recordingSyncer{}
	s, err := New(defaults, loc, syncer, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 22, 18, 55, 0, 0, time.UTC) }

	s.syncJob()

	require.Len(t, syncer.days, 1)
	assert.Equal(t, 23, syncer.days[0].Day())
	assert.Equal(t, loc, syncer.days[0].Location())
}

func TestVerifyJobSurvivesErrors(t *testing.T) {
	v := &stubVerifier{err: errors.New("oracle down")}
	s, err := New(defaults, time.UTC, nil, v)
	require.NoError(t, err)

	s.verifyJob()
	s.verifyJob()
	assert.Equal(t, 2, v.calls)
}

func TestRunStopsWithContext(t *testing.T) {
	s, err := New(defaults, time.UTC, &recordingSyncer{}, &stubVerifier{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
