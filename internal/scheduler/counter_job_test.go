package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeCounter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCounter) RefreshAllClaimsMade(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

type fakePlayers struct {
	calls atomic.Int32
}

func (f *fakePlayers) RefreshPlayers(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return 2, nil
}

func TestRunOnceRefreshesQuestsThenPlayers(t *testing.T) {
	quests, players := &fakeCounter{}, &fakePlayers{}
	s := NewCounterScheduler(quests, players, "")

	require.NoError(t, s.RunOnce(context.Background()))
	assert.EqualValues(t, 1, quests.calls.Load())
	assert.EqualValues(t, 1, players.calls.Load())

	quests.err = errors.New("db gone")
	assert.Error(t, s.RunOnce(context.Background()))
	assert.EqualValues(t, 1, players.calls.Load(), "players are not refreshed after a counter failure")
}

func TestRunOnceSkipsWhileRunning(t *testing.T) {
	quests, players := &fakeCounter{}, &fakePlayers{}
	s := NewCounterScheduler(quests, players, "")
	s.running.Store(true)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, quests.calls.Load())
}

func TestStartRejectsBadCron(t *testing.T) {
	s := NewCounterScheduler(&fakeCounter{}, &fakePlayers{}, "not a cron")
	assert.Error(t, s.Start())
}

func TestStartStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewCounterScheduler(&fakeCounter{}, &fakePlayers{}, "*/1 * * * * *")
	require.NoError(t, s.Start())
	s.Stop()
}
