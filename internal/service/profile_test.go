package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quest-launchpad/internal/eligibility"
	"quest-launchpad/internal/models"
)

func TestLevelFor(t *testing.T) {
	cases := []struct {
		xp    int64
		level int
		title string
		next  int64
	}{
		{0, 1, "Newcomer", 100},
		{99, 1, "Newcomer", 100},
		{100, 2, "Explorer", 500},
		{500, 3, "Adventurer", 1000},
		{1000, 4, "Quest Seeker", 2500},
		{2500, 6, "Quest Hunter", 5000},
		{5000, 8, "Quest Master", 10000},
		{10000, 10, "Quest Legend", 0},
		{250000, 10, "Quest Legend", 0},
	}
	for _, tc := range cases {
		l := LevelFor(tc.xp)
		assert.Equal(t, tc.level, l.Level, "xp %d", tc.xp)
		assert.Equal(t, tc.title, l.Title, "xp %d", tc.xp)
		assert.Equal(t, tc.next, NextLevelXP(tc.xp), "xp %d", tc.xp)
	}
}

func TestProfileAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 6; i++ {
		q := &models.Quest{
			Address:         fmt.Sprintf("0x%040x", 0x100+i),
			Name:            "q",
			QuestType:       models.QuestTypeVerification,
			RewardToken:     other.Hex(),
			RewardPerClaim:  "1",
			MaxClaims:       10,
			ExpiryTimestamp: fixedNow.Add(time.Hour).Unix(),
			CreatorWallet:   other.Hex(),
			IsActive:        true,
		}
		require.NoError(t, f.quests.Create(ctx, q))

		_, err := f.svc.Submit(ctx, q.Address, player)
		require.NoError(t, err)
		if i < 2 {
			_, err = f.svc.Submit(ctx, q.Address, other)
			require.NoError(t, err)
		}
	}

	profiles := NewProfileService(f.claims, f.players)

	p, err := profiles.Profile(ctx, player.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(600), p.XP)
	assert.Equal(t, int64(6), p.ClaimsCount)
	assert.Equal(t, "Adventurer", p.Level.Title)
	assert.Equal(t, int64(1000), p.NextLevelXP)
	assert.Equal(t, int64(1), p.Rank)
	assert.Len(t, p.Claims, 6)

	board, err := profiles.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, int64(600), board[0].XP)
	assert.Equal(t, "Explorer", board[1].Level.Title)

	n, err := profiles.RefreshPlayers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	nobody, err := profiles.Profile(ctx, "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Zero(t, nobody.XP)
	assert.Zero(t, nobody.Rank)
	assert.Equal(t, "Newcomer", nobody.Level.Title)
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(2, time.Minute)
	now := fixedNow
	store.now = func() time.Time { return now }

	q := questAddr.Hex()
	store.Merge(q, player.Hex(), eligibility.ChannelState{QRVerified: true})
	got := store.Merge(q, player.Hex(), eligibility.ChannelState{})
	assert.True(t, got.QRVerified, "merging never clears a verified channel")

	// keys are case-insensitive
	assert.True(t, store.Get(q, "0x5a1710d2fb3f2ec02cea9405f306b27a8cd4711b").QRVerified)

	now = now.Add(2 * time.Minute)
	assert.False(t, store.Get(q, player.Hex()).QRVerified)

	store.Merge(q, player.Hex(), eligibility.ChannelState{LocationVerified: true})
	store.End(q, player.Hex())
	assert.Equal(t, eligibility.ChannelState{}, store.Get(q, player.Hex()))

	for i := 0; i < 5; i++ {
		store.Merge(fmt.Sprintf("0x%040x", i), player.Hex(), eligibility.ChannelState{SocialVerified: true})
	}
	assert.Equal(t, 2, store.Len())
}
