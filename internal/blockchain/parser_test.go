package blockchain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "quest-launchpad/pkg/errors"
)

var (
	testQuest   = common.HexToAddress("0x894844bD5104e6D27C2Cf7DAAa97002959996118")
	testPlayer  = common.HexToAddress("0x5A1710D2fb3f2eC02cEa9405f306B27a8Cd4711B")
	testToken   = common.HexToAddress("0xc1480FD6Cb8Ad7e97078A3e7c02a6D364CBaFB37")
	testFactory = common.HexToAddress("0x0000000000000000000000000000000000fac701")
)

func rewardLog(t *testing.T, quest, player common.Address, amount *big.Int) *types.Log {
	t.Helper()
	ev := QuestABI.Events[EventRewardClaimed]
	data, err := ev.Inputs.NonIndexed().Pack(amount)
	require.NoError(t, err)
	return &types.Log{
		Address: quest,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(player.Bytes())},
		Data:    data,
	}
}

func TestEventTopics(t *testing.T) {
	assert.Equal(t,
		"0x106f923f993c2149d49b4255ff723acafa1f2d94393f561d3eda32ae348f7241",
		QuestABI.Events[EventRewardClaimed].ID.Hex())
	assert.Contains(t, QuestABI.Methods, "claimWithCode")
	assert.Contains(t, QuestFactoryABI.Methods, "createTokenQuest")
	assert.Contains(t, TokenFactoryABI.Methods, "createToken")
}

func TestFindEventFound(t *testing.T) {
	amount := big.NewInt(5_000_000_000_000_000_000)
	logs := []*types.Log{
		{Address: testToken, Topics: []common.Hash{common.HexToHash("0xddf252ad")}},
		rewardLog(t, testQuest, testPlayer, amount),
	}

	lookup, err := FindEvent[RewardClaimedEvent](QuestABI, EventRewardClaimed, logs, &testQuest)
	require.NoError(t, err)
	require.True(t, lookup.Found())
	assert.Same(t, logs[1], lookup.Log)

	ev, err := lookup.Must()
	require.NoError(t, err)
	assert.Equal(t, testPlayer, ev.Player)
	assert.Equal(t, 0, amount.Cmp(ev.Amount))
}

func TestFindEventNotFoundIsHardError(t *testing.T) {
	lookup, err := FindEvent[RewardClaimedEvent](QuestABI, EventRewardClaimed, nil, nil)
	require.NoError(t, err)
	assert.False(t, lookup.Found())

	_, err = lookup.Must()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrEventNotFound))
}

func TestFindEventFiltersEmitter(t *testing.T) {
	logs := []*types.Log{rewardLog(t, testToken, testPlayer, big.NewInt(1))}

	lookup, err := FindEvent[RewardClaimedEvent](QuestABI, EventRewardClaimed, logs, &testQuest)
	require.NoError(t, err)
	assert.False(t, lookup.Found())

	lookup, err = FindEvent[RewardClaimedEvent](QuestABI, EventRewardClaimed, logs, nil)
	require.NoError(t, err)
	assert.True(t, lookup.Found())
}

func TestFindEventMalformedLog(t *testing.T) {
	log := rewardLog(t, testQuest, testPlayer, big.NewInt(1))
	log.Topics = log.Topics[:1]

	_, err := FindEvent[RewardClaimedEvent](QuestABI, EventRewardClaimed, []*types.Log{log}, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrEventParse))
}

func TestDecodeQuestCreated(t *testing.T) {
	ev := QuestFactoryABI.Events[EventQuestCreated]
	data, err := ev.Inputs.NonIndexed().Pack(uint8(2), testToken)
	require.NoError(t, err)

	log := &types.Log{
		Address: testFactory,
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(testQuest.Bytes()),
			common.BytesToHash(testPlayer.Bytes()),
		},
		Data: data,
	}

	lookup, err := FindEvent[QuestCreatedEvent](QuestFactoryABI, EventQuestCreated, []*types.Log{log}, &testFactory)
	require.NoError(t, err)
	got, err := lookup.Must()
	require.NoError(t, err)

	assert.Equal(t, QuestCreatedEvent{
		QuestAddress: testQuest,
		Creator:      testPlayer,
		QuestType:    2,
		RewardToken:  testToken,
	}, got)
}

func TestDecodeTokenCreated(t *testing.T) {
	ev := TokenFactoryABI.Events[EventTokenCreated]
	data, err := ev.Inputs.NonIndexed().Pack("Coffee Points", "BEAN")
	require.NoError(t, err)

	log := types.Log{
		Address: testFactory,
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(testToken.Bytes()),
			common.BytesToHash(testPlayer.Bytes()),
		},
		Data: data,
	}

	var got TokenCreatedEvent
	require.NoError(t, DecodeEvent(TokenFactoryABI, EventTokenCreated, log, &got))
	assert.Equal(t, testToken, got.TokenAddress)
	assert.Equal(t, "Coffee Points", got.Name)
	assert.Equal(t, "BEAN", got.Symbol)
}

type fakeDataError struct {
	data string
}

func (e fakeDataError) Error() string          { return "execution reverted" }
func (e fakeDataError) ErrorData() interface{} { return e.data }

func TestRevertReason(t *testing.T) {
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	payload, err := abi.Arguments{{Type: stringType}}.Pack("Already claimed")
	require.NoError(t, err)
	data := append(hexutil.MustDecode("0x08c379a0"), payload...)

	assert.Equal(t, "Already claimed", RevertReason(fakeDataError{data: hexutil.Encode(data)}))
	assert.Equal(t, "Quest expired", RevertReason(errors.New("execution reverted: Quest expired")))
	assert.Equal(t, "", RevertReason(errors.New("connection refused")))
	assert.Equal(t, "", RevertReason(nil))
}
