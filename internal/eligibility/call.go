package eligibility

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"quest-launchpad/internal/models"
)

const (
	MethodClaim         = "claim"
	MethodClaimWithCode = "claimWithCode"
)

// ClaimCall is the contract call shape for a claim.
type ClaimCall struct {
	Method string       `json:"method"`
	Code   *common.Hash `json:"code,omitempty"`
}

// Args returns the ABI arguments in declaration order.
func (c ClaimCall) Args() []interface{} {
	if c.Code == nil {
		return nil
	}
	return []interface{}{[32]byte(*c.Code)}
}

// VerificationCode is keccak256(abi.encodePacked(address quest, string tag)),
// the value the quest contract recomputes for claimWithCode.
func VerificationCode(quest common.Address, tag string) common.Hash {
	return crypto.Keccak256Hash(quest.Bytes(), []byte(tag))
}

// BuildClaimCall picks the call by quest type, not by the channel that was
// verified: qr quests must use claimWithCode, everything else claim().
func (r Rules) BuildClaimCall(q Quest) ClaimCall {
	if q.Type == models.QuestTypeQR {
		code := VerificationCode(common.HexToAddress(q.Address), r.VerificationTag)
		return ClaimCall{Method: MethodClaimWithCode, Code: &code}
	}
	return ClaimCall{Method: MethodClaim}
}
