package attestation

import (
	"math"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	questAddr  = common.HexToAddress("0x894844bD5104e6D27C2Cf7DAAa97002959996118")
	otherQuest = common.HexToAddress("0xc1480FD6Cb8Ad7e97078A3e7c02a6D364CBaFB37")
)

func TestSocialAttestationRoundTrip(t *testing.T) {
	signerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	walletKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := crypto.PubkeyToAddress(walletKey.PublicKey)

	now := time.Unix(1_800_000_000, 0)
	att, err := IssueSocial(signerKey, questAddr, wallet, now.Add(10*time.Minute))
	require.NoError(t, err)

	v := NewVerifier(crypto.PubkeyToAddress(signerKey.PublicKey))
	assert.NoError(t, v.VerifySocial(att, questAddr, wallet, now))
}

func TestSocialAttestationRejections(t *testing.T) {
	signerKey, _ := crypto.GenerateKey()
	impostorKey, _ := crypto.GenerateKey()
	walletKey, _ := crypto.GenerateKey()
	wallet := crypto.PubkeyToAddress(walletKey.PublicKey)
	otherWallet := crypto.PubkeyToAddress(impostorKey.PublicKey)

	now := time.Unix(1_800_000_000, 0)
	v := NewVerifier(crypto.PubkeyToAddress(signerKey.PublicKey))

	att, err := IssueSocial(signerKey, questAddr, wallet, now.Add(time.Minute))
	require.NoError(t, err)

	assert.ErrorIs(t, v.VerifySocial(att, otherQuest, wallet, now), ErrSubjectMismatch)
	assert.ErrorIs(t, v.VerifySocial(att, questAddr, otherWallet, now), ErrSubjectMismatch)
	assert.ErrorIs(t, v.VerifySocial(att, questAddr, wallet, now.Add(time.Minute)), ErrExpired)

	forged, err := IssueSocial(impostorKey, questAddr, wallet, now.Add(time.Minute))
	require.NoError(t, err)
	assert.ErrorIs(t, v.VerifySocial(forged, questAddr, wallet, now), ErrWrongSigner)

	att.Signature = att.Signature[:10]
	assert.ErrorIs(t, v.VerifySocial(att, questAddr, wallet, now), ErrInvalidSignature)

	var unset *Verifier
	assert.ErrorIs(t, unset.VerifySocial(att, questAddr, wallet, now), ErrNoSigner)
}

func TestWalletProof(t *testing.T) {
	key, _ := crypto.GenerateKey()
	wallet := crypto.PubkeyToAddress(key.PublicKey)
	now := time.Unix(1_800_000_000, 0)

	sig, err := SignText(key, AuthMessage(wallet, now.Unix()))
	require.NoError(t, err)
	assert.Contains(t, []byte{27, 28}, sig[64])

	assert.NoError(t, VerifyWalletProof(wallet, now.Unix(), sig, now.Add(time.Minute), 5*time.Minute))
	assert.ErrorIs(t, VerifyWalletProof(wallet, now.Unix(), sig, now.Add(time.Hour), 5*time.Minute), ErrClockSkew)

	other, _ := crypto.GenerateKey()
	assert.ErrorIs(t, VerifyWalletProof(crypto.PubkeyToAddress(other.PublicKey), now.Unix(), sig, now, 5*time.Minute), ErrWrongSigner)
}

func TestWalletProofRejectsExtremeTimestamps(t *testing.T) {
	key, _ := crypto.GenerateKey()
	wallet := crypto.PubkeyToAddress(key.PublicKey)
	now := time.Unix(1_800_000_000, 0)

	for _, issuedAt := range []int64{math.MaxInt64 / 2, math.MaxInt64, math.MinInt64, math.MinInt64 / 2, now.Unix() + 301} {
		sig, err := SignText(key, AuthMessage(wallet, issuedAt))
		require.NoError(t, err)
		assert.ErrorIs(t, VerifyWalletProof(wallet, issuedAt, sig, now, 5*time.Minute), ErrClockSkew, "issuedAt %d", issuedAt)
	}

	sig, err := SignText(key, AuthMessage(wallet, now.Unix()+300))
	require.NoError(t, err)
	assert.NoError(t, VerifyWalletProof(wallet, now.Unix()+300, sig, now, 5*time.Minute))
}
