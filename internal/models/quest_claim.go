package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClaimSource string

const (
	ClaimSourceSubmit  ClaimSource = "submit"
	ClaimSourceConfirm ClaimSource = "confirm"
	ClaimSourceIndexer ClaimSource = "indexer"
)

// QuestClaim 每个钱包在每个任务下最多一行
type QuestClaim struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	QuestID      string      `gorm:"size:36;not null;uniqueIndex:uk_quest_player" json:"quest_id"`
	QuestAddress string      `gorm:"size:42;not null;index" json:"quest_address"`
	PlayerWallet string      `gorm:"size:42;not null;uniqueIndex:uk_quest_player;index" json:"player_wallet"`
	TxHash       string      `gorm:"size:66;not null" json:"tx_hash"`
	XPEarned     int64       `gorm:"not null" json:"xp_earned"`
	Source       ClaimSource `gorm:"size:20;not null" json:"source"`
	ClaimedAt    time.Time   `gorm:"autoCreateTime" json:"claimed_at"`
}

func (QuestClaim) TableName() string {
	return "quest_claims"
}

func (c *QuestClaim) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
