package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Token struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Address     string    `gorm:"size:42;not null;uniqueIndex" json:"address"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Symbol      string    `gorm:"size:20;not null" json:"symbol"`
	Decimals    uint8     `gorm:"not null" json:"decimals"`
	TotalSupply string    `gorm:"type:decimal(65,0);not null" json:"total_supply"`
	Image       *string   `gorm:"size:512" json:"image"`
	Creator     string    `gorm:"size:42;not null;index" json:"creator"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Token) TableName() string {
	return "tokens"
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Address = strings.ToLower(t.Address)
	t.Creator = strings.ToLower(t.Creator)
	return nil
}
