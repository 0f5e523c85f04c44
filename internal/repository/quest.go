package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"quest-launchpad/internal/models"
)

type QuestRepository struct {
	db *gorm.DB
}

func NewQuestRepository(db *gorm.DB) *QuestRepository {
	return &QuestRepository{db: db}
}

type QuestFilter struct {
	Type       models.QuestType
	ActiveOnly bool
	Creator    string
	Offset     int
	Limit      int
}

// GetByAddress 按合约地址查询任务，不存在时返回 nil, nil
func (r *QuestRepository) GetByAddress(ctx context.Context, address string) (*models.Quest, error) {
	var quest models.Quest
	err := r.db.WithContext(ctx).
		Where("address = ?", strings.ToLower(address)).
		First(&quest).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &quest, err
}

func (r *QuestRepository) Create(ctx context.Context, quest *models.Quest) error {
	return r.db.WithContext(ctx).Create(quest).Error
}

// List 按创建时间倒序，加精任务优先
func (r *QuestRepository) List(ctx context.Context, f QuestFilter) ([]models.Quest, error) {
	q := r.db.WithContext(ctx).Model(&models.Quest{})
	if f.Type != "" {
		q = q.Where("quest_type = ?", f.Type)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.Creator != "" {
		q = q.Where("creator_wallet = ?", strings.ToLower(f.Creator))
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var quests []models.Quest
	err := q.Order("is_boosted DESC").
		Order("created_at DESC").
		Offset(f.Offset).
		Limit(limit).
		Find(&quests).Error
	return quests, err
}

func (r *QuestRepository) SetActive(ctx context.Context, address string, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Quest{}).
		Where("address = ?", strings.ToLower(address)).
		Update("is_active", active).Error
}

// RefreshClaimsMade 用领取记录的计数覆盖缓存列，返回最新计数
func (r *QuestRepository) RefreshClaimsMade(ctx context.Context, questID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.QuestClaim{}).
			Where("quest_id = ?", questID).
			Count(&count).Error; err != nil {
			return err
		}
		return tx.Model(&models.Quest{}).
			Where("id = ?", questID).
			Update("claims_made", count).Error
	})
	return count, err
}

// RefreshAllClaimsMade 定时任务使用，单条语句重算全部任务的计数
func (r *QuestRepository) RefreshAllClaimsMade(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE quests SET claims_made = (
			SELECT COUNT(*) FROM quest_claims WHERE quest_claims.quest_id = quests.id
		)
	`)
	return result.RowsAffected, result.Error
}
