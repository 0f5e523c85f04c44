package blockchain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"quest-launchpad/internal/config"
)

type fakeSource struct {
	confirmed int64
	logs      []types.Log
	ranges    [][2]int64
}

func (f *fakeSource) GetConfirmBlockNumber(ctx context.Context) (int64, error) {
	return f.confirmed, nil
}

func (f *fakeSource) GetClaimLogs(ctx context.Context, start, end int64) ([]types.Log, error) {
	f.ranges = append(f.ranges, [2]int64{start, end})
	return f.logs, nil
}

type fakeCheckpoint struct {
	mu     sync.Mutex
	blocks map[string]int64
}

func (f *fakeCheckpoint) GetLastProcessed(ctx context.Context, chainID, stream string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks[chainID+"/"+stream], nil
}

func (f *fakeCheckpoint) MarkProcessed(ctx context.Context, chainID, stream string, block int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocks == nil {
		f.blocks = map[string]int64{}
	}
	f.blocks[chainID+"/"+stream] = block
	return nil
}

type fakeSink struct {
	claims []IndexedClaim
	err    error
}

func (f *fakeSink) RecordIndexed(ctx context.Context, c IndexedClaim) error {
	if f.err != nil {
		return f.err
	}
	f.claims = append(f.claims, c)
	return nil
}

func testChainConfig() *config.ChainConfig {
	return &config.ChainConfig{ID: "mantle-sepolia", BatchSize: 10, PullInterval: 1}
}

func TestProcessNewBlocksIndexesClaims(t *testing.T) {
	log := rewardLog(t, testQuest, testPlayer, big.NewInt(7))
	log.BlockNumber = 103
	log.TxHash[0] = 0xab

	removed := *log
	removed.Removed = true

	source := &fakeSource{confirmed: 250, logs: []types.Log{*log, removed}}
	checkpoint := &fakeCheckpoint{}
	sink := &fakeSink{}
	l := NewEventListener(testChainConfig(), source, checkpoint, sink)

	next, err := l.ProcessNewBlocks(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, int64(109), next)
	assert.Equal(t, [][2]int64{{100, 109}}, source.ranges)

	require.Len(t, sink.claims, 1)
	assert.Equal(t, testQuest, sink.claims[0].Quest)
	assert.Equal(t, testPlayer, sink.claims[0].Player)
	assert.Equal(t, uint64(103), sink.claims[0].BlockNumber)

	last, _ := checkpoint.GetLastProcessed(context.Background(), "mantle-sepolia", StreamRewardClaimed)
	assert.Equal(t, int64(109), last)
}

func TestProcessNewBlocksKeepsCheckpointOnSinkFailure(t *testing.T) {
	source := &fakeSource{confirmed: 120, logs: []types.Log{*rewardLog(t, testQuest, testPlayer, big.NewInt(1))}}
	checkpoint := &fakeCheckpoint{}
	l := NewEventListener(testChainConfig(), source, checkpoint, &fakeSink{err: errors.New("db down")})

	next, err := l.ProcessNewBlocks(context.Background(), 99)
	assert.Error(t, err)
	assert.Equal(t, int64(99), next)

	last, _ := checkpoint.GetLastProcessed(context.Background(), "mantle-sepolia", StreamRewardClaimed)
	assert.Zero(t, last)
}

func TestProcessNewBlocksNothingConfirmed(t *testing.T) {
	source := &fakeSource{confirmed: 50}
	l := NewEventListener(testChainConfig(), source, &fakeCheckpoint{}, &fakeSink{})

	next, err := l.ProcessNewBlocks(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), next)
	assert.Empty(t, source.ranges)
}

func TestListenerStopsWithoutLeaking(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewEventListener(testChainConfig(), &fakeSource{}, &fakeCheckpoint{}, &fakeSink{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, l.Run(ctx))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
