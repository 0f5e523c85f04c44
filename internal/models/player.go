package models

import (
	"time"
)

// Player 经验值与领取次数均由 quest_claims 聚合得出
type Player struct {
	WalletAddress string    `gorm:"primaryKey;size:42" json:"wallet_address"`
	XP            int64     `gorm:"not null;default:0;index" json:"xp"`
	ClaimsCount   int64     `gorm:"not null;default:0" json:"claims_count"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Player) TableName() string {
	return "players"
}

// All 返回需要自动迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&Quest{},
		&QuestClaim{},
		&Token{},
		&Player{},
		&ProcessedBlock{},
	}
}
