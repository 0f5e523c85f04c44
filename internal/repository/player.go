package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quest-launchpad/internal/models"
)

type PlayerRepository struct {
	db *gorm.DB
}

func NewPlayerRepository(db *gorm.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// GetByWallet 不存在时返回 nil, nil
func (r *PlayerRepository) GetByWallet(ctx context.Context, wallet string) (*models.Player, error) {
	var player models.Player
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", strings.ToLower(wallet)).
		First(&player).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &player, err
}

// Save 用聚合结果覆盖玩家行，而不是在旧值上累加
func (r *PlayerRepository) Save(ctx context.Context, totals []WalletTotals) error {
	if len(totals) == 0 {
		return nil
	}

	players := make([]models.Player, 0, len(totals))
	for _, t := range totals {
		players = append(players, models.Player{
			WalletAddress: strings.ToLower(t.PlayerWallet),
			XP:            t.XP,
			ClaimsCount:   t.Claims,
		})
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet_address"}},
			DoUpdates: clause.AssignmentColumns([]string{"xp", "claims_count", "updated_at"}),
		}).
		CreateInBatches(players, 500).Error
}

// Leaderboard 按经验值倒序
func (r *PlayerRepository) Leaderboard(ctx context.Context, limit int) ([]models.Player, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var players []models.Player
	err := r.db.WithContext(ctx).
		Where("xp > 0").
		Order("xp DESC").
		Order("wallet_address ASC").
		Limit(limit).
		Find(&players).Error
	return players, err
}

// Rank 返回名次（从 1 开始），经验值为 0 时返回 0
func (r *PlayerRepository) Rank(ctx context.Context, xp int64) (int64, error) {
	if xp <= 0 {
		return 0, nil
	}

	var ahead int64
	err := r.db.WithContext(ctx).
		Model(&models.Player{}).
		Where("xp > ?", xp).
		Count(&ahead).Error
	return ahead + 1, err
}
