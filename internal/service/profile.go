package service

import (
	"context"
	"strings"

	"quest-launchpad/internal/models"
	"quest-launchpad/internal/repository"
	"quest-launchpad/pkg/errors"
)

type Level struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	MinXP int64  `json:"min_xp"`
}

// levels 按门槛从高到低排列
var levels = []Level{
	{Level: 10, Title: "Quest Legend", MinXP: 10000},
	{Level: 8, Title: "Quest Master", MinXP: 5000},
	{Level: 6, Title: "Quest Hunter", MinXP: 2500},
	{Level: 4, Title: "Quest Seeker", MinXP: 1000},
	{Level: 3, Title: "Adventurer", MinXP: 500},
	{Level: 2, Title: "Explorer", MinXP: 100},
	{Level: 1, Title: "Newcomer", MinXP: 0},
}

func LevelFor(xp int64) Level {
	for _, l := range levels {
		if xp >= l.MinXP {
			return l
		}
	}
	return levels[len(levels)-1]
}

// NextLevelXP 返回下一级门槛，已满级时返回 0
func NextLevelXP(xp int64) int64 {
	next := int64(0)
	for _, l := range levels {
		if l.MinXP > xp {
			next = l.MinXP
		}
	}
	return next
}

type Profile struct {
	Wallet      string              `json:"wallet"`
	XP          int64               `json:"xp"`
	ClaimsCount int64               `json:"claims_count"`
	Level       Level               `json:"level"`
	NextLevelXP int64               `json:"next_level_xp,omitempty"`
	Rank        int64               `json:"rank,omitempty"`
	Claims      []models.QuestClaim `json:"claims"`
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Wallet string `json:"wallet"`
	XP     int64  `json:"xp"`
	Claims int64  `json:"claims"`
	Level  Level  `json:"level"`
}

type ProfileService struct {
	claims  *repository.ClaimRepository
	players *repository.PlayerRepository
}

func NewProfileService(claims *repository.ClaimRepository, players *repository.PlayerRepository) *ProfileService {
	return &ProfileService{claims: claims, players: players}
}

// Profile 经验值直接从领取记录汇总，不依赖玩家表是否已刷新
func (s *ProfileService) Profile(ctx context.Context, wallet string) (*Profile, error) {
	wallet = strings.ToLower(wallet)

	totals, err := s.claims.SumXPByWallet(ctx, wallet)
	if err != nil {
		return nil, errors.New(errors.ErrQuestStore, "汇总经验值失败", err)
	}
	history, err := s.claims.ListByWallet(ctx, wallet, 100)
	if err != nil {
		return nil, errors.New(errors.ErrQuestStore, "查询领取历史失败", err)
	}
	rank, err := s.players.Rank(ctx, totals.XP)
	if err != nil {
		return nil, errors.New(errors.ErrQuestStore, "查询排名失败", err)
	}

	return &Profile{
		Wallet:      wallet,
		XP:          totals.XP,
		ClaimsCount: totals.Claims,
		Level:       LevelFor(totals.XP),
		NextLevelXP: NextLevelXP(totals.XP),
		Rank:        rank,
		Claims:      history,
	}, nil
}

func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	players, err := s.players.Leaderboard(ctx, limit)
	if err != nil {
		return nil, errors.New(errors.ErrQuestStore, "查询排行榜失败", err)
	}

	entries := make([]LeaderboardEntry, 0, len(players))
	for i, p := range players {
		entries = append(entries, LeaderboardEntry{
			Rank:   i + 1,
			Wallet: p.WalletAddress,
			XP:     p.XP,
			Claims: p.ClaimsCount,
			Level:  LevelFor(p.XP),
		})
	}
	return entries, nil
}

// RefreshPlayers 从领取记录全量重算玩家表
func (s *ProfileService) RefreshPlayers(ctx context.Context) (int, error) {
	totals, err := s.claims.TotalsByWallet(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.players.Save(ctx, totals); err != nil {
		return 0, err
	}
	return len(totals), nil
}
