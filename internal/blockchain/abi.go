package blockchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const questABIJSON = `[
  {"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"claimWithCode","stateMutability":"nonpayable","inputs":[{"name":"code","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"hasClaimed","stateMutability":"view","inputs":[{"name":"player","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"fundWithTokens","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"RewardClaimed","anonymous":false,"inputs":[
    {"name":"player","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}
  ]}
]`

const questFactoryABIJSON = `[
  {"type":"function","name":"createTokenQuest","stateMutability":"nonpayable","inputs":[
    {"name":"name","type":"string"},
    {"name":"description","type":"string"},
    {"name":"questType","type":"uint8"},
    {"name":"rewardToken","type":"address"},
    {"name":"rewardPerClaim","type":"uint256"},
    {"name":"maxClaims","type":"uint256"},
    {"name":"expiryTimestamp","type":"uint256"}
  ],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"QuestCreated","anonymous":false,"inputs":[
    {"name":"questAddress","type":"address","indexed":true},
    {"name":"creator","type":"address","indexed":true},
    {"name":"questType","type":"uint8","indexed":false},
    {"name":"rewardToken","type":"address","indexed":false}
  ]}
]`

const tokenFactoryABIJSON = `[
  {"type":"function","name":"createToken","stateMutability":"nonpayable","inputs":[
    {"name":"name","type":"string"},
    {"name":"symbol","type":"string"},
    {"name":"decimals","type":"uint8"},
    {"name":"initialSupply","type":"uint256"},
    {"name":"image","type":"string"}
  ],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"TokenCreated","anonymous":false,"inputs":[
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"creator","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"symbol","type":"string","indexed":false}
  ]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var (
	QuestABI        = mustParseABI(questABIJSON)
	QuestFactoryABI = mustParseABI(questFactoryABIJSON)
	TokenFactoryABI = mustParseABI(tokenFactoryABIJSON)
	ERC20ABI        = mustParseABI(erc20ABIJSON)
)

const (
	EventRewardClaimed = "RewardClaimed"
	EventQuestCreated  = "QuestCreated"
	EventTokenCreated  = "TokenCreated"
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("invalid embedded abi: " + err.Error())
	}
	return parsed
}
