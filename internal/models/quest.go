package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestType string

const (
	QuestTypeMap          QuestType = "map"
	QuestTypeQR           QuestType = "qr"
	QuestTypeSocial       QuestType = "social"
	QuestTypeVerification QuestType = "verification"
)

func ParseQuestType(s string) (QuestType, error) {
	switch t := QuestType(strings.ToLower(strings.TrimSpace(s))); t {
	case QuestTypeMap, QuestTypeQR, QuestTypeSocial, QuestTypeVerification:
		return t, nil
	default:
		return "", fmt.Errorf("unknown quest type: %q", s)
	}
}

// ContractEnum 工厂合约中的任务类型枚举：0=SIMPLE/VERIFICATION, 1=QR, 2=MAP
// 社交任务在链上按 SIMPLE 处理
func (t QuestType) ContractEnum() uint8 {
	switch t {
	case QuestTypeQR:
		return 1
	case QuestTypeMap:
		return 2
	default:
		return 0
	}
}

// 元数据字段
const (
	MetaLatitude  = "latitude"
	MetaLongitude = "longitude"
	MetaRadius    = "radius"
	MetaQRCode    = "qr_code"
	MetaSocialURL = "social_url"
	MetaTokenType = "token_type"
)

type Quest struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Address         string    `gorm:"size:42;not null;uniqueIndex:uk_quest_address" json:"address"`
	Name            string    `gorm:"size:200;not null" json:"name"`
	Description     string    `gorm:"type:text" json:"description"`
	QuestType       QuestType `gorm:"size:20;not null;index" json:"quest_type"`
	RewardToken     string    `gorm:"size:42;not null" json:"reward_token"`
	RewardPerClaim  string    `gorm:"type:decimal(65,0);not null" json:"reward_per_claim"`
	MaxClaims       int64     `gorm:"not null" json:"max_claims"`
	ClaimsMade      int64     `gorm:"not null;default:0" json:"claims_made"`
	ExpiryTimestamp int64     `gorm:"not null;index" json:"expiry_timestamp"`
	CreatorWallet   string    `gorm:"size:42;not null;index" json:"creator_wallet"`
	IsActive        bool      `gorm:"not null" json:"is_active"`
	ImageURL        *string   `gorm:"size:512" json:"image_url"`
	IsBoosted       bool      `gorm:"not null" json:"is_boosted"`
	ProofType       string    `gorm:"size:20" json:"proof_type"`
	Metadata        JSONB     `gorm:"type:json" json:"metadata"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Quest) TableName() string {
	return "quests"
}

func (q *Quest) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.Address = strings.ToLower(q.Address)
	q.CreatorWallet = strings.ToLower(q.CreatorWallet)
	return nil
}

func (q *Quest) ExpiresAt() time.Time {
	return time.Unix(q.ExpiryTimestamp, 0)
}

// Location 返回地图任务的目标坐标和半径；坐标缺失时 ok 为 false
func (q *Quest) Location() (lat, lng, radius float64, ok bool) {
	lat, hasLat := metaFloat(q.Metadata, MetaLatitude)
	lng, hasLng := metaFloat(q.Metadata, MetaLongitude)
	radius, _ = metaFloat(q.Metadata, MetaRadius)
	return lat, lng, radius, hasLat && hasLng
}

func (q *Quest) QRCode() string {
	if v, ok := q.Metadata[MetaQRCode].(string); ok {
		return v
	}
	return ""
}

func metaFloat(m JSONB, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
