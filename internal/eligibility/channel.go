package eligibility

import "quest-launchpad/internal/models"

type Channel string

const (
	ChannelNone     Channel = "none"
	ChannelQR       Channel = "qr"
	ChannelLocation Channel = "location"
	ChannelSocial   Channel = "social"
)

// RequiredChannel maps a quest type to the single channel that gates it.
// Identity quests are checked by the contract and backend at claim time.
func RequiredChannel(t models.QuestType) Channel {
	switch t {
	case models.QuestTypeQR:
		return ChannelQR
	case models.QuestTypeMap:
		return ChannelLocation
	case models.QuestTypeSocial:
		return ChannelSocial
	default:
		return ChannelNone
	}
}

type ChannelState struct {
	QRVerified       bool `json:"qr_verified"`
	LocationVerified bool `json:"location_verified"`
	SocialVerified   bool `json:"social_verified"`
}

func (s ChannelState) Satisfied(c Channel) bool {
	switch c {
	case ChannelQR:
		return s.QRVerified
	case ChannelLocation:
		return s.LocationVerified
	case ChannelSocial:
		return s.SocialVerified
	default:
		return true
	}
}
