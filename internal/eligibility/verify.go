package eligibility

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"quest-launchpad/internal/attestation"
	"quest-launchpad/internal/geo"
)

var (
	ErrQRMismatch         = errors.New("scanned code does not match this quest")
	ErrOutOfRadius        = errors.New("position outside quest radius")
	ErrAttestationInvalid = errors.New("social attestation rejected")
	ErrWrongChannel       = errors.New("channel does not apply to this quest type")
)

// VerifyQR accepts the quest address (any case), the prefixed form
// "<prefix><address>" (any case) or the exact code stored in quest metadata.
func (r Rules) VerifyQR(q Quest, payload string) error {
	if payload == "" {
		return ErrQRMismatch
	}

	addr := strings.ToLower(q.Address)
	lower := strings.ToLower(payload)
	if lower == addr || lower == strings.ToLower(r.QRPrefix)+addr {
		return nil
	}
	if q.QRCode != "" && payload == q.QRCode {
		return nil
	}
	return ErrQRMismatch
}

// QRPayload is the string a merchant prints for a quest.
func (r Rules) QRPayload(questAddress string) string {
	return r.QRPrefix + questAddress
}

type LocationResult struct {
	DistanceMeters float64 `json:"distance_meters"`
	RadiusMeters   float64 `json:"radius_meters"`
	NoTarget       bool    `json:"no_target"`
	Verified       bool    `json:"verified"`
}

// VerifyLocation checks the haversine distance against the quest radius,
// inclusive at the boundary. Quests without target coordinates pass.
func (r Rules) VerifyLocation(q Quest, pos geo.Position) (LocationResult, error) {
	radius := q.RadiusMeters
	if radius <= 0 {
		radius = r.DefaultRadiusMeters
	}

	if q.Target == nil {
		return LocationResult{RadiusMeters: radius, NoTarget: true, Verified: true}, nil
	}

	res := LocationResult{
		DistanceMeters: geo.Distance(pos.Point, *q.Target),
		RadiusMeters:   radius,
	}
	if res.DistanceMeters <= radius {
		res.Verified = true
		return res, nil
	}
	return res, fmt.Errorf("%w: %.0fm away, need to be within %.0fm", ErrOutOfRadius, res.DistanceMeters, radius)
}

// VerifySocial only trusts attestations signed by the quest signer.
func VerifySocial(q Quest, wallet common.Address, att attestation.Social, v *attestation.Verifier, now time.Time) error {
	if err := v.VerifySocial(att, common.HexToAddress(q.Address), wallet, now); err != nil {
		return fmt.Errorf("%w: %w", ErrAttestationInvalid, err)
	}
	return nil
}
