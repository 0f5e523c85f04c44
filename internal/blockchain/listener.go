package blockchain

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"quest-launchpad/internal/config"
	"quest-launchpad/pkg/logger"
)

// StreamRewardClaimed 领取事件在检查点表中的流名称
const StreamRewardClaimed = "reward_claimed"

// IndexedClaim 由索引器从 RewardClaimed 日志还原的一次领取
type IndexedClaim struct {
	Quest       common.Address
	Player      common.Address
	Amount      *big.Int
	TxHash      common.Hash
	BlockNumber uint64
}

type LogSource interface {
	GetConfirmBlockNumber(ctx context.Context) (int64, error)
	GetClaimLogs(ctx context.Context, startBlock, endBlock int64) ([]types.Log, error)
}

type Checkpoint interface {
	GetLastProcessed(ctx context.Context, chainID, stream string) (int64, error)
	MarkProcessed(ctx context.Context, chainID, stream string, blockNumber int64) error
}

// ClaimSink 接收索引到的领取，必须是幂等的
type ClaimSink interface {
	RecordIndexed(ctx context.Context, claim IndexedClaim) error
}

type EventListener struct {
	chainCfg     *config.ChainConfig
	source       LogSource
	checkpoint   Checkpoint
	sink         ClaimSink
	stopChan     chan struct{}
	isProcessing int32
}

func NewEventListener(chainCfg *config.ChainConfig, source LogSource, checkpoint Checkpoint, sink ClaimSink) *EventListener {
	return &EventListener{
		chainCfg:   chainCfg,
		source:     source,
		checkpoint: checkpoint,
		sink:       sink,
		stopChan:   make(chan struct{}),
	}
}

// Run 从检查点恢复后启动监听
func (l *EventListener) Run(ctx context.Context) error {
	last, err := l.checkpoint.GetLastProcessed(ctx, l.chainCfg.ID, StreamRewardClaimed)
	if err != nil {
		return err
	}
	if last == 0 && l.chainCfg.StartBlock > 0 {
		last = l.chainCfg.StartBlock - 1
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":   l.chainCfg.ID,
		"last_block": last,
	}).Info("领取事件索引器启动")

	l.Start(ctx, last)
	return nil
}

// Start 启动事件监听器
func (l *EventListener) Start(ctx context.Context, startBlock int64) {
	interval := time.Duration(l.chainCfg.PullInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProcessedBlock := startBlock

	for {
		select {
		case <-ctx.Done():
			logger.Info("事件监听器已停止：上下文已取消")
			return
		case <-l.stopChan:
			logger.Info("事件监听器已停止：收到停止信号")
			return
		case <-ticker.C:
			// 检查是否正在处理
			if !atomic.CompareAndSwapInt32(&l.isProcessing, 0, 1) {
				logger.WithFields(map[string]interface{}{
					"chain_id": l.chainCfg.ID,
				}).Warn("上一次处理尚未完成，跳过本次触发")
				continue
			}

			block, err := l.ProcessNewBlocks(ctx, lastProcessedBlock)
			if err != nil {
				logger.Error("处理区块失败:", err)
			} else if block > lastProcessedBlock {
				lastProcessedBlock = block
			}

			atomic.StoreInt32(&l.isProcessing, 0)
		}
	}
}

// Stop 停止事件监听器
func (l *EventListener) Stop() {
	close(l.stopChan)
}

// IsProcessing 返回是否正在处理
func (l *EventListener) IsProcessing() bool {
	return atomic.LoadInt32(&l.isProcessing) == 1
}

// ProcessNewBlocks 处理 lastBlock 之后的一批已确认区块，返回新的检查点
// 任一事件写入失败时不推进检查点，下次从同一位置重试
func (l *EventListener) ProcessNewBlocks(ctx context.Context, lastBlock int64) (int64, error) {
	confirmedBlock, err := l.source.GetConfirmBlockNumber(ctx)
	if err != nil {
		return lastBlock, err
	}

	if confirmedBlock <= lastBlock {
		return lastBlock, nil
	}

	startBlock := lastBlock + 1

	batchSize := int64(l.chainCfg.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}

	maxBatchSize := int64(5000)
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	if confirmedBlock-startBlock >= batchSize {
		confirmedBlock = startBlock + batchSize - 1
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":        l.chainCfg.ID,
		"start_block":     startBlock,
		"confirmed_block": confirmedBlock,
		"batch_size":      batchSize,
	}).Debug("处理新区块")

	logs, err := l.source.GetClaimLogs(ctx, startBlock, confirmedBlock)
	if err != nil {
		return lastBlock, err
	}

	for _, log := range logs {
		if log.Removed {
			continue
		}
		event, err := ParseRewardClaimedLog(log)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"tx_hash": log.TxHash.Hex(),
				"error":   err.Error(),
			}).Warn("解析日志失败，跳过")
			continue
		}

		claim := IndexedClaim{
			Quest:       log.Address,
			Player:      event.Player,
			Amount:      event.Amount,
			TxHash:      log.TxHash,
			BlockNumber: log.BlockNumber,
		}
		if err := l.sink.RecordIndexed(ctx, claim); err != nil {
			return lastBlock, err
		}
	}

	if err := l.checkpoint.MarkProcessed(ctx, l.chainCfg.ID, StreamRewardClaimed, confirmedBlock); err != nil {
		logger.Error("标记区块已处理失败:", err)
		return lastBlock, err
	}

	return confirmedBlock, nil
}
