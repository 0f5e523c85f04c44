package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"quest-launchpad/internal/models"
)

type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// GetLastProcessed 返回某条链某个事件流的检查点，没有记录时为 0
func (r *BlockRepository) GetLastProcessed(ctx context.Context, chainID, stream string) (int64, error) {
	var block models.ProcessedBlock
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND stream = ?", chainID, stream).
		First(&block).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return block.BlockNumber, err
}

// MarkProcessed 推进检查点，只前进不后退
func (r *BlockRepository) MarkProcessed(ctx context.Context, chainID, stream string, blockNumber int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProcessedBlock
		err := tx.Where("chain_id = ? AND stream = ?", chainID, stream).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			block := &models.ProcessedBlock{
				ChainID:     chainID,
				Stream:      stream,
				BlockNumber: blockNumber,
			}
			return tx.Create(block).Error
		}

		if err != nil {
			return err
		}

		if blockNumber <= existing.BlockNumber {
			return nil
		}
		return tx.Model(&existing).Update("block_number", blockNumber).Error
	})
}
