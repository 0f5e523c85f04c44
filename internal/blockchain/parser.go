package blockchain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"quest-launchpad/pkg/errors"
)

type RewardClaimedEvent struct {
	Player common.Address
	Amount *big.Int
}

type QuestCreatedEvent struct {
	QuestAddress common.Address
	Creator      common.Address
	QuestType    uint8
	RewardToken  common.Address
}

type TokenCreatedEvent struct {
	TokenAddress common.Address
	Creator      common.Address
	Name         string
	Symbol       string
}

// EventLookup 是按事件名在回执日志中查找的结果：Found 或 NotFound
type EventLookup[T any] struct {
	Event T
	Log   *types.Log
	name  string
	found bool
}

func (l EventLookup[T]) Found() bool {
	return l.found
}

// Must 在未找到事件时返回 EVENT_NOT_FOUND，调用方不得继续使用零值
func (l EventLookup[T]) Must() (T, error) {
	if !l.found {
		var zero T
		return zero, errors.New(errors.ErrEventNotFound,
			fmt.Sprintf("回执中没有 %s 事件", l.name), nil)
	}
	return l.Event, nil
}

// FindEvent 解码第一条匹配的事件日志。emitter 非空时只接受该合约发出的日志。
// 签名匹配但解码失败的日志视为错误
func FindEvent[T any](contract abi.ABI, name string, logs []*types.Log, emitter *common.Address) (EventLookup[T], error) {
	lookup := EventLookup[T]{name: name}

	event, ok := contract.Events[name]
	if !ok {
		return lookup, errors.New(errors.ErrEventParse, fmt.Sprintf("ABI 中没有事件 %s", name), nil)
	}

	for _, log := range logs {
		if log == nil || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		if emitter != nil && log.Address != *emitter {
			continue
		}

		var out T
		if err := DecodeEvent(contract, name, *log, &out); err != nil {
			return lookup, err
		}
		lookup.Event = out
		lookup.Log = log
		lookup.found = true
		return lookup, nil
	}
	return lookup, nil
}

// DecodeEvent 将一条日志的 indexed 主题与 data 一并解码到 out
func DecodeEvent(contract abi.ABI, name string, log types.Log, out interface{}) error {
	event, ok := contract.Events[name]
	if !ok {
		return errors.New(errors.ErrEventParse, fmt.Sprintf("ABI 中没有事件 %s", name), nil)
	}
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return errors.New(errors.ErrEventParse, fmt.Sprintf("日志不是 %s 事件", name), nil)
	}

	if err := contract.UnpackIntoInterface(out, name, log.Data); err != nil {
		return errors.New(errors.ErrEventParse, fmt.Sprintf("解析 %s data 失败", name), err)
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics)-1 != len(indexed) {
		return errors.New(errors.ErrEventParse,
			fmt.Sprintf("%s 主题数量不符: %d", name, len(log.Topics)), nil)
	}
	if err := abi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
		return errors.New(errors.ErrEventParse, fmt.Sprintf("解析 %s 主题失败", name), err)
	}
	return nil
}

// ParseRewardClaimedLog 供索引器使用
func ParseRewardClaimedLog(log types.Log) (*RewardClaimedEvent, error) {
	var ev RewardClaimedEvent
	if err := DecodeEvent(QuestABI, EventRewardClaimed, log, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
