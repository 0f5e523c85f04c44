package attestation

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrWrongSigner      = errors.New("signature not produced by the expected signer")
	ErrSubjectMismatch  = errors.New("attestation issued for a different quest or wallet")
	ErrExpired          = errors.New("attestation expired")
	ErrClockSkew        = errors.New("proof timestamp outside accepted window")
	ErrNoSigner         = errors.New("no trusted signer configured")
)

// SignText 按 EIP-191 personal_sign 规则签名，V 取 27/28
func SignText(key *ecdsa.PrivateKey, msg string) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverText 从 personal_sign 签名中恢复签名地址
func RecoverText(msg string, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}

	s := make([]byte, len(sig))
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(msg)), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Social 可信签名者对“某钱包已完成某任务的社交动作”的证明
type Social struct {
	Quest     common.Address `json:"quest"`
	Wallet    common.Address `json:"wallet"`
	ExpiresAt int64          `json:"expires_at"`
	Signature hexutil.Bytes  `json:"signature"`
}

func SocialMessage(quest, wallet common.Address, expiresAt int64) string {
	return fmt.Sprintf("kyra-social:%s:%s:%d",
		strings.ToLower(quest.Hex()), strings.ToLower(wallet.Hex()), expiresAt)
}

// IssueSocial 由持有可信签名私钥的一方调用
func IssueSocial(key *ecdsa.PrivateKey, quest, wallet common.Address, expiresAt time.Time) (Social, error) {
	sig, err := SignText(key, SocialMessage(quest, wallet, expiresAt.Unix()))
	if err != nil {
		return Social{}, err
	}
	return Social{
		Quest:     quest,
		Wallet:    wallet,
		ExpiresAt: expiresAt.Unix(),
		Signature: sig,
	}, nil
}

type Verifier struct {
	Signer common.Address
}

func NewVerifier(signer common.Address) *Verifier {
	return &Verifier{Signer: signer}
}

// VerifySocial 校验签名者、任务与钱包绑定关系以及有效期
func (v *Verifier) VerifySocial(a Social, quest, wallet common.Address, now time.Time) error {
	if v == nil || v.Signer == (common.Address{}) {
		return ErrNoSigner
	}
	if a.Quest != quest || a.Wallet != wallet {
		return ErrSubjectMismatch
	}
	if now.Unix() >= a.ExpiresAt {
		return ErrExpired
	}

	signer, err := RecoverText(SocialMessage(a.Quest, a.Wallet, a.ExpiresAt), a.Signature)
	if err != nil {
		return err
	}
	if signer != v.Signer {
		return ErrWrongSigner
	}
	return nil
}

func AuthMessage(wallet common.Address, issuedAt int64) string {
	return fmt.Sprintf("kyra-auth:%s:%d", strings.ToLower(wallet.Hex()), issuedAt)
}

// VerifyWalletProof 校验钱包对登录消息的自签名
func VerifyWalletProof(wallet common.Address, issuedAt int64, sig []byte, now time.Time, maxSkew time.Duration) error {
	// 按秒比较，issuedAt 可为任意 int64
	skew := int64(maxSkew / time.Second)
	if issuedAt < now.Unix()-skew || issuedAt > now.Unix()+skew {
		return ErrClockSkew
	}

	signer, err := RecoverText(AuthMessage(wallet, issuedAt), sig)
	if err != nil {
		return err
	}
	if signer != wallet {
		return ErrWrongSigner
	}
	return nil
}
