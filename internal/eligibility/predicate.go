package eligibility

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"quest-launchpad/internal/attestation"
	"quest-launchpad/internal/geo"
)

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotAuthenticated  Reason = "not_authenticated"
	ReasonAlreadyClaimed    Reason = "already_claimed"
	ReasonExpired           Reason = "expired"
	ReasonFull              Reason = "full"
	ReasonInactive          Reason = "inactive"
	ReasonChannelUnverified Reason = "channel_unverified"
)

// Session is the per (quest, wallet) claim attempt. It lives only as long as
// the caller keeps it; nothing here is persisted.
type Session struct {
	Quest         Quest
	Wallet        common.Address
	Authenticated bool
	Channels      ChannelState
	HasClaimed    bool
}

type Decision struct {
	Eligible        bool    `json:"eligible"`
	Reason          Reason  `json:"reason,omitempty"`
	RequiredChannel Channel `json:"required_channel"`
}

// Evaluate is the claimability predicate. Conditions are checked in a fixed
// order and the first failure is reported.
func Evaluate(s Session, now time.Time) Decision {
	d := Decision{RequiredChannel: RequiredChannel(s.Quest.Type)}

	switch {
	case !s.Authenticated:
		d.Reason = ReasonNotAuthenticated
	case s.HasClaimed:
		d.Reason = ReasonAlreadyClaimed
	case s.Quest.Expired(now):
		d.Reason = ReasonExpired
	case s.Quest.Full():
		d.Reason = ReasonFull
	case !s.Quest.IsActive:
		d.Reason = ReasonInactive
	case !s.Channels.Satisfied(d.RequiredChannel):
		d.Reason = ReasonChannelUnverified
	default:
		d.Eligible = true
	}
	return d
}

// ApplyQR marks the QR channel verified on a match. A later mismatch never
// clears an earlier success.
func (s *Session) ApplyQR(r Rules, payload string) error {
	if RequiredChannel(s.Quest.Type) != ChannelQR {
		return ErrWrongChannel
	}
	if err := r.VerifyQR(s.Quest, payload); err != nil {
		return err
	}
	s.Channels.QRVerified = true
	return nil
}

func (s *Session) ApplyLocation(r Rules, pos geo.Position) (LocationResult, error) {
	if RequiredChannel(s.Quest.Type) != ChannelLocation {
		return LocationResult{}, ErrWrongChannel
	}
	res, err := r.VerifyLocation(s.Quest, pos)
	if err != nil {
		return res, err
	}
	s.Channels.LocationVerified = true
	return res, nil
}

func (s *Session) ApplySocial(att attestation.Social, v *attestation.Verifier, now time.Time) error {
	if RequiredChannel(s.Quest.Type) != ChannelSocial {
		return ErrWrongChannel
	}
	if err := VerifySocial(s.Quest, s.Wallet, att, v, now); err != nil {
		return err
	}
	s.Channels.SocialVerified = true
	return nil
}
