package eligibility

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quest-launchpad/internal/attestation"
	"quest-launchpad/internal/geo"
	"quest-launchpad/internal/models"
)

const questHex = "0x894844bD5104e6D27C2Cf7DAAa97002959996118"

var (
	now    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sf     = geo.Point{Lat: 37.7749, Lng: -122.4194}
	wallet = common.HexToAddress("0x5A1710D2fb3f2eC02cEa9405f306B27a8Cd4711B")
)

func baseQuest(t models.QuestType) Quest {
	return Quest{
		Address:    questHex,
		Type:       t,
		MaxClaims:  10,
		ClaimsMade: 0,
		ExpiresAt:  now.Add(24 * time.Hour),
		IsActive:   true,
	}
}

// metersNorth offsets a point along its meridian.
func metersNorth(p geo.Point, m float64) geo.Point {
	return geo.Point{Lat: p.Lat + m/111194.92664455873, Lng: p.Lng}
}

func TestVerifyQR(t *testing.T) {
	r := DefaultRules()
	q := baseQuest(models.QuestTypeQR)
	q.QRCode = "Secret-Code-7"

	accepted := []string{
		"0x894844bd5104e6d27c2cf7daaa97002959996118",
		"0x894844BD5104E6D27C2CF7DAAA97002959996118",
		"kyra:0x894844bd5104e6d27c2cf7daaa97002959996118",
		"KYRA:0x894844BD5104e6D27C2Cf7DAAa97002959996118",
		"Secret-Code-7",
	}
	for _, payload := range accepted {
		assert.NoError(t, r.VerifyQR(q, payload), payload)
	}

	rejected := []string{
		"",
		"secret-code-7",
		"kyra:0xc1480FD6Cb8Ad7e97078A3e7c02a6D364CBaFB37",
		"https://example.com/?q=0x894844bd5104e6d27c2cf7daaa97002959996118",
		"quest:0x894844bd5104e6d27c2cf7daaa97002959996118",
	}
	for _, payload := range rejected {
		assert.ErrorIs(t, r.VerifyQR(q, payload), ErrQRMismatch, payload)
	}
}

func TestApplyQRRejectionLeavesChannelUnverified(t *testing.T) {
	r := DefaultRules()
	s := Session{Quest: baseQuest(models.QuestTypeQR), Wallet: wallet, Authenticated: true}

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, s.ApplyQR(r, "wrong"), ErrQRMismatch)
		assert.False(t, s.Channels.QRVerified)
		assert.Equal(t, ReasonChannelUnverified, Evaluate(s, now).Reason)
	}

	require.NoError(t, s.ApplyQR(r, r.QRPayload(questHex)))
	assert.True(t, s.Channels.QRVerified)

	// a later bad scan does not undo the verification
	assert.Error(t, s.ApplyQR(r, "wrong"))
	assert.True(t, s.Channels.QRVerified)
	assert.True(t, Evaluate(s, now).Eligible)
}

func TestVerifyLocationRadius(t *testing.T) {
	r := DefaultRules()
	q := baseQuest(models.QuestTypeMap)
	q.Target = &sf
	q.RadiusMeters = 100

	res, err := r.VerifyLocation(q, geo.Position{Point: metersNorth(sf, 80)})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.InDelta(t, 80, res.DistanceMeters, 0.01)

	res, err = r.VerifyLocation(q, geo.Position{Point: metersNorth(sf, 150)})
	assert.ErrorIs(t, err, ErrOutOfRadius)
	assert.False(t, res.Verified)
	assert.InDelta(t, 150, res.DistanceMeters, 0.01)
}

func TestVerifyLocationBoundaryIsInclusive(t *testing.T) {
	r := DefaultRules()
	pos := geo.Position{Point: metersNorth(sf, 100)}

	q := baseQuest(models.QuestTypeMap)
	q.Target = &sf
	q.RadiusMeters = geo.Distance(pos.Point, sf)

	res, err := r.VerifyLocation(q, pos)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, res.RadiusMeters, res.DistanceMeters)
}

func TestVerifyLocationDefaultsAndMissingTarget(t *testing.T) {
	r := DefaultRules()

	q := baseQuest(models.QuestTypeMap)
	res, err := r.VerifyLocation(q, geo.Position{Point: geo.Point{Lat: -33.86, Lng: 151.2}})
	require.NoError(t, err)
	assert.True(t, res.NoTarget)
	assert.True(t, res.Verified)

	q.Target = &sf
	res, err = r.VerifyLocation(q, geo.Position{Point: metersNorth(sf, 99)})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.RadiusMeters)

	_, err = r.VerifyLocation(q, geo.Position{Point: metersNorth(sf, 101)})
	assert.ErrorIs(t, err, ErrOutOfRadius)
}

func TestEvaluateSingleViolations(t *testing.T) {
	eligible := func() Session {
		q := baseQuest(models.QuestTypeMap)
		return Session{
			Quest:         q,
			Wallet:        wallet,
			Authenticated: true,
			Channels:      ChannelState{LocationVerified: true},
		}
	}

	require.True(t, Evaluate(eligible(), now).Eligible)

	cases := []struct {
		name   string
		mutate func(s *Session)
		want   Reason
	}{
		{"not authenticated", func(s *Session) { s.Authenticated = false }, ReasonNotAuthenticated},
		{"already claimed", func(s *Session) { s.HasClaimed = true }, ReasonAlreadyClaimed},
		{"expired at boundary", func(s *Session) { s.Quest.ExpiresAt = now }, ReasonExpired},
		{"expired", func(s *Session) { s.Quest.ExpiresAt = now.Add(-time.Second) }, ReasonExpired},
		{"full", func(s *Session) { s.Quest.ClaimsMade = s.Quest.MaxClaims }, ReasonFull},
		{"over full", func(s *Session) { s.Quest.ClaimsMade = s.Quest.MaxClaims + 1 }, ReasonFull},
		{"inactive", func(s *Session) { s.Quest.IsActive = false }, ReasonInactive},
		{"channel unverified", func(s *Session) { s.Channels.LocationVerified = false }, ReasonChannelUnverified},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := eligible()
			tc.mutate(&s)
			d := Evaluate(s, now)
			assert.False(t, d.Eligible)
			assert.Equal(t, tc.want, d.Reason)
		})
	}
}

func TestEvaluateChannelPerQuestType(t *testing.T) {
	cases := []struct {
		questType models.QuestType
		channels  ChannelState
		want      bool
	}{
		{models.QuestTypeVerification, ChannelState{}, true},
		{models.QuestTypeQR, ChannelState{LocationVerified: true, SocialVerified: true}, false},
		{models.QuestTypeQR, ChannelState{QRVerified: true}, true},
		{models.QuestTypeMap, ChannelState{QRVerified: true}, false},
		{models.QuestTypeSocial, ChannelState{SocialVerified: true}, true},
		{models.QuestTypeSocial, ChannelState{QRVerified: true}, false},
	}

	for _, tc := range cases {
		s := Session{Quest: baseQuest(tc.questType), Wallet: wallet, Authenticated: true, Channels: tc.channels}
		assert.Equal(t, tc.want, Evaluate(s, now).Eligible, "%s %+v", tc.questType, tc.channels)
	}
}

func TestHasClaimedShortCircuitsReverification(t *testing.T) {
	r := DefaultRules()
	q := baseQuest(models.QuestTypeMap)
	q.Target = &sf
	s := Session{Quest: q, Wallet: wallet, Authenticated: true, HasClaimed: true}

	_, err := s.ApplyLocation(r, geo.Position{Point: sf})
	require.NoError(t, err)
	assert.True(t, s.Channels.LocationVerified)

	d := Evaluate(s, now)
	assert.False(t, d.Eligible)
	assert.Equal(t, ReasonAlreadyClaimed, d.Reason)
}

func TestApplyWrongChannel(t *testing.T) {
	r := DefaultRules()
	s := Session{Quest: baseQuest(models.QuestTypeMap)}
	assert.ErrorIs(t, s.ApplyQR(r, questHex), ErrWrongChannel)

	s = Session{Quest: baseQuest(models.QuestTypeQR)}
	_, err := s.ApplyLocation(r, geo.Position{Point: sf})
	assert.ErrorIs(t, err, ErrWrongChannel)
}

func TestApplySocialRequiresTrustedAttestation(t *testing.T) {
	signerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	v := attestation.NewVerifier(crypto.PubkeyToAddress(signerKey.PublicKey))

	s := Session{Quest: baseQuest(models.QuestTypeSocial), Wallet: wallet, Authenticated: true}

	selfSigned, err := attestation.IssueSocial(mustKey(t), common.HexToAddress(questHex), wallet, now.Add(time.Minute))
	require.NoError(t, err)
	assert.ErrorIs(t, s.ApplySocial(selfSigned, v, now), ErrAttestationInvalid)
	assert.False(t, s.Channels.SocialVerified)

	att, err := attestation.IssueSocial(signerKey, common.HexToAddress(questHex), wallet, now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.ApplySocial(att, v, now))
	assert.True(t, Evaluate(s, now).Eligible)
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	return k
}

func TestBuildClaimCallByQuestType(t *testing.T) {
	r := DefaultRules()

	call := r.BuildClaimCall(baseQuest(models.QuestTypeQR))
	assert.Equal(t, MethodClaimWithCode, call.Method)
	require.NotNil(t, call.Code)
	assert.Equal(t,
		"0xb025838fd74b0edd29f6b5fc0cd3cd6ff7378d527a0fb9fbc46dfe13a5cae4bc",
		call.Code.Hex())
	assert.Len(t, call.Args(), 1)

	for _, qt := range []models.QuestType{models.QuestTypeMap, models.QuestTypeSocial, models.QuestTypeVerification} {
		call := r.BuildClaimCall(baseQuest(qt))
		assert.Equal(t, MethodClaim, call.Method, qt)
		assert.Nil(t, call.Code)
		assert.Empty(t, call.Args())
	}
}

func TestVerificationCodeDeterminism(t *testing.T) {
	addr := common.HexToAddress(questHex)
	assert.Equal(t, VerificationCode(addr, "KYRA"), VerificationCode(addr, "KYRA"))

	other := addr
	other[19] ^= 0x01
	assert.NotEqual(t, VerificationCode(addr, "KYRA"), VerificationCode(other, "KYRA"))
	assert.NotEqual(t, VerificationCode(addr, "KYRA"), VerificationCode(addr, "kyra"))

	// the checksum casing of the input address does not matter
	lower := common.HexToAddress("0x894844bd5104e6d27c2cf7daaa97002959996118")
	assert.Equal(t, VerificationCode(addr, "KYRA"), VerificationCode(lower, "KYRA"))
}

func TestFromModel(t *testing.T) {
	m := &models.Quest{
		Address:         questHex,
		QuestType:       models.QuestTypeMap,
		MaxClaims:       10,
		ClaimsMade:      9,
		ExpiryTimestamp: now.Add(time.Hour).Unix(),
		IsActive:        true,
		Metadata:        models.JSONB{models.MetaLatitude: 37.7749, models.MetaLongitude: -122.4194, models.MetaRadius: 100.0},
	}

	q := FromModel(m)
	assert.Equal(t, "0x894844bd5104e6d27c2cf7daaa97002959996118", q.Address)
	require.NotNil(t, q.Target)
	assert.Equal(t, sf, *q.Target)
	assert.Equal(t, 100.0, q.RadiusMeters)
	assert.False(t, q.Full())
	assert.False(t, q.Expired(now))
}
