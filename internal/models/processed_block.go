package models

import (
	"time"
)

// ProcessedBlock 链上日志索引的检查点，每条链每种事件流一行
type ProcessedBlock struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID     string    `gorm:"uniqueIndex:uk_chain_stream;size:50;not null" json:"chain_id"`
	Stream      string    `gorm:"uniqueIndex:uk_chain_stream;size:50;not null" json:"stream"`
	BlockNumber int64     `gorm:"not null" json:"block_number"`
	ProcessedAt time.Time `gorm:"autoUpdateTime" json:"processed_at"`
}

func (ProcessedBlock) TableName() string {
	return "processed_blocks"
}
