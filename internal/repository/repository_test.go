package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quest-launchpad/internal/models"
	"quest-launchpad/internal/testutil"
)

const (
	questAddr = "0x894844bD5104e6D27C2Cf7DAAa97002959996118"
	walletA   = "0x5A1710D2fb3f2eC02cEa9405f306B27a8Cd4711B"
	walletB   = "0xc1480FD6Cb8Ad7e97078A3e7c02a6D364CBaFB37"
)

func newQuest(addr string, qt models.QuestType) *models.Quest {
	return &models.Quest{
		Address:         addr,
		Name:            "Coffee crawl",
		QuestType:       qt,
		RewardToken:     "0x0000000000000000000000000000000000000001",
		RewardPerClaim:  "1000000000000000000",
		MaxClaims:       10,
		ExpiryTimestamp: time.Now().Add(time.Hour).Unix(),
		CreatorWallet:   walletB,
		IsActive:        true,
		Metadata:        models.JSONB{models.MetaLatitude: 37.7749, models.MetaLongitude: -122.4194},
	}
}

func TestQuestRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewQuestRepository(testutil.NewDB(t))

	require.NoError(t, repo.Create(ctx, newQuest(questAddr, models.QuestTypeMap)))
	require.NoError(t, repo.Create(ctx, newQuest("0x0000000000000000000000000000000000000abc", models.QuestTypeQR)))

	q, err := repo.GetByAddress(ctx, questAddr)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "0x894844bd5104e6d27c2cf7daaa97002959996118", q.Address)
	assert.NotEmpty(t, q.ID)
	lat, lng, _, ok := q.Location()
	assert.True(t, ok)
	assert.Equal(t, 37.7749, lat)
	assert.Equal(t, -122.4194, lng)

	missing, err := repo.GetByAddress(ctx, "0x0000000000000000000000000000000000000def")
	require.NoError(t, err)
	assert.Nil(t, missing)

	qr, err := repo.List(ctx, QuestFilter{Type: models.QuestTypeQR})
	require.NoError(t, err)
	assert.Len(t, qr, 1)

	require.NoError(t, repo.SetActive(ctx, questAddr, false))
	active, err := repo.List(ctx, QuestFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, models.QuestTypeQR, active[0].QuestType)
}

func TestClaimUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	quests := NewQuestRepository(db)
	claims := NewClaimRepository(db)

	quest := newQuest(questAddr, models.QuestTypeMap)
	require.NoError(t, quests.Create(ctx, quest))

	first := &models.QuestClaim{QuestID: quest.ID, QuestAddress: questAddr, PlayerWallet: walletA, TxHash: "0x01", XPEarned: 100, Source: models.ClaimSourceSubmit}
	inserted, err := claims.Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	again := &models.QuestClaim{QuestID: quest.ID, QuestAddress: questAddr, PlayerWallet: walletA, TxHash: "0x01", XPEarned: 100, Source: models.ClaimSourceIndexer}
	inserted, err = claims.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := claims.CountByQuest(ctx, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	exists, err := claims.Exists(ctx, quest.ID, walletA)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = claims.Exists(ctx, quest.ID, walletB)
	require.NoError(t, err)
	assert.False(t, exists)

	made, err := quests.RefreshClaimsMade(ctx, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), made)

	reloaded, err := quests.GetByAddress(ctx, questAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.ClaimsMade)
}

func TestClaimTotalsAndPlayers(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	quests := NewQuestRepository(db)
	claims := NewClaimRepository(db)
	players := NewPlayerRepository(db)

	for i := 0; i < 3; i++ {
		q := newQuest(fmt.Sprintf("0x%040x", i+1), models.QuestTypeVerification)
		require.NoError(t, quests.Create(ctx, q))

		_, err := claims.Upsert(ctx, &models.QuestClaim{QuestID: q.ID, QuestAddress: q.Address, PlayerWallet: walletA, TxHash: "0x01", XPEarned: 100, Source: models.ClaimSourceConfirm})
		require.NoError(t, err)
		if i == 0 {
			_, err = claims.Upsert(ctx, &models.QuestClaim{QuestID: q.ID, QuestAddress: q.Address, PlayerWallet: walletB, TxHash: "0x02", XPEarned: 100, Source: models.ClaimSourceConfirm})
			require.NoError(t, err)
		}
	}

	totals, err := claims.SumXPByWallet(ctx, walletA)
	require.NoError(t, err)
	assert.Equal(t, int64(300), totals.XP)
	assert.Equal(t, int64(3), totals.Claims)

	none, err := claims.SumXPByWallet(ctx, "0x00000000000000000000000000000000000000ff")
	require.NoError(t, err)
	assert.Zero(t, none.XP)

	history, err := claims.ListByWallet(ctx, walletA, 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	all, err := claims.TotalsByWallet(ctx)
	require.NoError(t, err)
	require.NoError(t, players.Save(ctx, all))
	// saving twice overwrites instead of accumulating
	require.NoError(t, players.Save(ctx, all))

	board, err := players.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "0x5a1710d2fb3f2ec02cea9405f306b27a8cd4711b", board[0].WalletAddress)
	assert.Equal(t, int64(300), board[0].XP)
	assert.Equal(t, int64(100), board[1].XP)

	rank, err := players.Rank(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	updated, err := quests.RefreshAllClaimsMade(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	first, err := quests.GetByAddress(ctx, fmt.Sprintf("0x%040x", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.ClaimsMade)
}

func TestBlockRepositoryCheckpoint(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepository(testutil.NewDB(t))

	last, err := repo.GetLastProcessed(ctx, "mantle", "reward_claimed")
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, repo.MarkProcessed(ctx, "mantle", "reward_claimed", 120))
	require.NoError(t, repo.MarkProcessed(ctx, "mantle", "reward_claimed", 90))
	require.NoError(t, repo.MarkProcessed(ctx, "mantle", "other", 5))

	last, err = repo.GetLastProcessed(ctx, "mantle", "reward_claimed")
	require.NoError(t, err)
	assert.Equal(t, int64(120), last)
}

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository(testutil.NewDB(t))

	token := &models.Token{Address: walletB, Name: "Bean", Symbol: "BEAN", Decimals: 18, TotalSupply: "1000", Creator: walletA}
	require.NoError(t, repo.Create(ctx, token))
	require.NoError(t, repo.Create(ctx, &models.Token{Address: walletB, Name: "Dup", Symbol: "DUP", Decimals: 18, TotalSupply: "1", Creator: walletA}))

	got, err := repo.GetByAddress(ctx, walletB)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BEAN", got.Symbol)

	list, err := repo.List(ctx, walletA, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
