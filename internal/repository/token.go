package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quest-launchpad/internal/models"
)

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create 同一地址重复写入时忽略
func (r *TokenRepository) Create(ctx context.Context, token *models.Token) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).
		Create(token).Error
}

func (r *TokenRepository) GetByAddress(ctx context.Context, address string) (*models.Token, error) {
	var token models.Token
	err := r.db.WithContext(ctx).
		Where("address = ?", strings.ToLower(address)).
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &token, err
}

func (r *TokenRepository) List(ctx context.Context, creator string, limit int) ([]models.Token, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if creator != "" {
		q = q.Where("creator = ?", strings.ToLower(creator))
	}

	var tokens []models.Token
	err := q.Find(&tokens).Error
	return tokens, err
}
