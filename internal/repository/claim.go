package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quest-launchpad/internal/models"
)

type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Exists 钱包是否已有该任务的领取记录
func (r *ClaimRepository) Exists(ctx context.Context, questID, wallet string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.QuestClaim{}).
		Where("quest_id = ? AND player_wallet = ?", questID, strings.ToLower(wallet)).
		Count(&count).Error
	return count > 0, err
}

// Upsert 幂等写入：(quest_id, player_wallet) 冲突时什么都不做
// 返回值表示本次是否新插入
func (r *ClaimRepository) Upsert(ctx context.Context, claim *models.QuestClaim) (bool, error) {
	claim.PlayerWallet = strings.ToLower(claim.PlayerWallet)
	claim.QuestAddress = strings.ToLower(claim.QuestAddress)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "quest_id"}, {Name: "player_wallet"}},
			DoNothing: true,
		}).
		Create(claim)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ClaimRepository) CountByQuest(ctx context.Context, questID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.QuestClaim{}).
		Where("quest_id = ?", questID).
		Count(&count).Error
	return count, err
}

// ListByWallet 获取钱包的领取历史，按时间倒序
func (r *ClaimRepository) ListByWallet(ctx context.Context, wallet string, limit int) ([]models.QuestClaim, error) {
	if limit <= 0 {
		limit = 100
	}

	var claims []models.QuestClaim
	err := r.db.WithContext(ctx).
		Where("player_wallet = ?", strings.ToLower(wallet)).
		Order("claimed_at DESC").
		Limit(limit).
		Find(&claims).Error
	return claims, err
}

type WalletTotals struct {
	PlayerWallet string
	XP           int64
	Claims       int64
}

// SumXPByWallet 汇总钱包的经验值与领取次数
func (r *ClaimRepository) SumXPByWallet(ctx context.Context, wallet string) (WalletTotals, error) {
	wallet = strings.ToLower(wallet)

	var totals WalletTotals
	err := r.db.WithContext(ctx).
		Model(&models.QuestClaim{}).
		Select("COALESCE(SUM(xp_earned), 0) AS xp, COUNT(*) AS claims").
		Where("player_wallet = ?", wallet).
		Scan(&totals).Error
	totals.PlayerWallet = wallet
	return totals, err
}

// TotalsByWallet 全量汇总，供定时任务刷新玩家表
func (r *ClaimRepository) TotalsByWallet(ctx context.Context) ([]WalletTotals, error) {
	var totals []WalletTotals
	err := r.db.WithContext(ctx).
		Model(&models.QuestClaim{}).
		Select("player_wallet, COALESCE(SUM(xp_earned), 0) AS xp, COUNT(*) AS claims").
		Group("player_wallet").
		Scan(&totals).Error
	return totals, err
}
