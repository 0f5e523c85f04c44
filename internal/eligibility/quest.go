// Package eligibility decides whether a wallet may claim a quest reward and
// which contract call the claim must use. It performs no I/O: callers load the
// quest, resolve the wallet's claim history and pass live verification signals in.
package eligibility

import (
	"strings"
	"time"

	"quest-launchpad/internal/geo"
	"quest-launchpad/internal/models"
)

// Quest is the subset of a quest record the verifier reads.
type Quest struct {
	Address      string
	Type         models.QuestType
	MaxClaims    int64
	ClaimsMade   int64
	ExpiresAt    time.Time
	IsActive     bool
	Target       *geo.Point
	RadiusMeters float64
	QRCode       string
}

func FromModel(q *models.Quest) Quest {
	snap := Quest{
		Address:    strings.ToLower(q.Address),
		Type:       q.QuestType,
		MaxClaims:  q.MaxClaims,
		ClaimsMade: q.ClaimsMade,
		ExpiresAt:  q.ExpiresAt(),
		IsActive:   q.IsActive,
		QRCode:     q.QRCode(),
	}

	if lat, lng, radius, ok := q.Location(); ok {
		snap.Target = &geo.Point{Lat: lat, Lng: lng}
		snap.RadiusMeters = radius
	}
	return snap
}

func (q Quest) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

func (q Quest) Full() bool {
	return q.ClaimsMade >= q.MaxClaims
}

// Rules holds the deployment constants shared by the verifier and the contracts.
type Rules struct {
	QRPrefix            string
	VerificationTag     string
	DefaultRadiusMeters float64
}

func DefaultRules() Rules {
	return Rules{
		QRPrefix:            "kyra:",
		VerificationTag:     "KYRA",
		DefaultRadiusMeters: 100,
	}
}
