package blockchain

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"quest-launchpad/internal/config"
	"quest-launchpad/pkg/errors"
	"quest-launchpad/pkg/logger"
)

type Client struct {
	chainCfg *config.ChainConfig
	client   *ethclient.Client
}

// ClaimResult 一次已上链的领取
type ClaimResult struct {
	TxHash      common.Hash
	BlockNumber uint64
	Player      common.Address
	Amount      *big.Int
}

// QuestParams createTokenQuest 的入参
type QuestParams struct {
	Name            string
	Description     string
	QuestType       uint8
	RewardToken     common.Address
	RewardPerClaim  *big.Int
	MaxClaims       *big.Int
	ExpiryTimestamp *big.Int
}

// NewClient 创建指定链的区块链客户端
func NewClient(chainCfg *config.ChainConfig) (*Client, error) {
	client, err := ethclient.Dial(chainCfg.RPCURL)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect,
			fmt.Sprintf("连接RPC失败: %s", chainCfg.RPCURL), err)
	}

	return &Client{
		chainCfg: chainCfg,
		client:   client,
	}, nil
}

// Close 关闭区块链客户端连接
func (c *Client) Close() {
	c.client.Close()
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).SetUint64(c.chainCfg.ChainID)
}

// GetLatestBlockNumber 获取区块链最新区块号
func (c *Client) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.New(errors.ErrBlockFetch, "获取最新区块失败", err)
	}
	return header.Number.Int64(), nil
}

// GetConfirmBlockNumber 获取已确认的最新区块号
// 应用确认区块阈值后返回
func (c *Client) GetConfirmBlockNumber(ctx context.Context) (int64, error) {
	latest, err := c.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := latest - int64(c.chainCfg.ConfirmationBlocks)
	if confirmed < 0 {
		confirmed = 0
	}

	return confirmed, nil
}

// GetBlockTimestamp 获取区块的时间戳
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber int64) (time.Time, error) {
	header, err := c.client.HeaderByNumber(ctx, big.NewInt(blockNumber))
	if err != nil {
		return time.Time{}, errors.New(errors.ErrBlockFetch,
			fmt.Sprintf("获取区块 %d 失败", blockNumber), err)
	}
	return time.Unix(int64(header.Time), 0), nil
}

// GetClaimLogs 获取指定区块范围内全部任务合约的 RewardClaimed 日志
// 注意：RPC节点通常限制每次请求最多10,000个区块
func (c *Client) GetClaimLogs(ctx context.Context, startBlock, endBlock int64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(startBlock),
		ToBlock:   big.NewInt(endBlock),
		Topics:    [][]common.Hash{{QuestABI.Events[EventRewardClaimed].ID}},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrEventParse, "过滤RewardClaimed事件失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":    c.chainCfg.ID,
		"start_block": startBlock,
		"end_block":   endBlock,
		"logs_count":  len(logs),
	}).Info("获取RewardClaimed事件日志")

	return logs, nil
}

func (c *Client) bound(addr common.Address, contract abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(addr, contract, c.client, c.client, c.client)
}

// HasClaimed 查询任务合约中钱包是否已领取
func (c *Client) HasClaimed(ctx context.Context, quest, player common.Address) (bool, error) {
	var out []interface{}
	err := c.bound(quest, QuestABI).Call(&bind.CallOpts{Context: ctx}, &out, "hasClaimed", player)
	if err != nil {
		return false, errors.New(errors.ErrBlockFetch, "查询hasClaimed失败", err)
	}
	if len(out) != 1 {
		return false, errors.New(errors.ErrEventParse, "hasClaimed 返回值数量错误", nil)
	}
	claimed, ok := out[0].(bool)
	if !ok {
		return false, errors.New(errors.ErrEventParse, "hasClaimed 返回值类型错误", nil)
	}
	return claimed, nil
}

func (c *Client) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	var out []interface{}
	err := c.bound(token, ERC20ABI).Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account)
	if err != nil {
		return nil, errors.New(errors.ErrBlockFetch, "查询代币余额失败", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// transact 发送交易并等待回执；回执失败时重放调用以取得合约的 revert 原因
func (c *Client) transact(ctx context.Context, opts *bind.TransactOpts, addr common.Address, contract abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	txOpts := *opts
	txOpts.Context = ctx

	tx, err := c.bound(addr, contract).Transact(&txOpts, method, args...)
	if err != nil {
		if reason := RevertReason(err); reason != "" {
			return nil, errors.New(errors.ErrTxReverted, reason, err)
		}
		return nil, errors.New(errors.ErrTxSubmit, fmt.Sprintf("发送 %s 交易失败", method), err)
	}

	logger.WithFields(map[string]interface{}{
		"chain_id": c.chainCfg.ID,
		"method":   method,
		"to":       strings.ToLower(addr.Hex()),
		"tx_hash":  tx.Hash().Hex(),
	}).Info("交易已发送")

	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, c.revertError(ctx, opts.From, tx, receipt)
	}
	return receipt, nil
}

func (c *Client) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	timeout := time.Duration(c.chainCfg.ReceiptTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.client, tx)
	if err != nil {
		return nil, errors.New(errors.ErrTxSubmit,
			fmt.Sprintf("等待交易 %s 回执失败", tx.Hash().Hex()), err)
	}
	return receipt, nil
}

func (c *Client) revertError(ctx context.Context, from common.Address, tx *types.Transaction, receipt *types.Receipt) error {
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, callErr := c.client.CallContract(ctx, msg, receipt.BlockNumber)

	reason := RevertReason(callErr)
	if reason == "" {
		reason = "transaction failed"
	}
	return errors.New(errors.ErrTxReverted, reason,
		fmt.Errorf("tx %s reverted in block %s", tx.Hash().Hex(), receipt.BlockNumber))
}

// RevertReason 从 RPC 错误中提取 Error(string) 原因，无法解析时返回空串
func RevertReason(err error) string {
	if err == nil {
		return ""
	}

	var dataErr rpc.DataError
	if stderrors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(raw); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}

	const prefix = "execution reverted: "
	if msg := err.Error(); strings.Contains(msg, prefix) {
		return msg[strings.Index(msg, prefix)+len(prefix):]
	}
	return ""
}

// SubmitClaim 用服务端签名器发送领取交易并等待 RewardClaimed 事件
func (c *Client) SubmitClaim(ctx context.Context, opts *bind.TransactOpts, quest common.Address, method string, args ...interface{}) (*ClaimResult, error) {
	receipt, err := c.transact(ctx, opts, quest, QuestABI, method, args...)
	if err != nil {
		return nil, err
	}
	return claimFromReceipt(receipt, quest, opts.From)
}

// ClaimReceipt 校验客户端自行签名的领取交易：成功状态、目标合约、发送方与事件
func (c *Client) ClaimReceipt(ctx context.Context, txHash common.Hash, quest, player common.Address) (*ClaimResult, error) {
	tx, _, err := c.client.TransactionByHash(ctx, txHash)
	if err != nil {
		if stderrors.Is(err, ethereum.NotFound) {
			return nil, errors.New(errors.ErrTxMismatch, "交易不存在", err)
		}
		return nil, errors.New(errors.ErrBlockFetch, "查询交易失败", err)
	}

	if tx.To() == nil || *tx.To() != quest {
		return nil, errors.New(errors.ErrTxMismatch, "交易目标不是该任务合约", nil)
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, errors.New(errors.ErrTxMismatch, "无法恢复交易发送方", err)
	}
	if from != player {
		return nil, errors.New(errors.ErrTxMismatch, "交易发送方与钱包不一致", nil)
	}

	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, c.revertError(ctx, from, tx, receipt)
	}
	return claimFromReceipt(receipt, quest, player)
}

func claimFromReceipt(receipt *types.Receipt, quest, player common.Address) (*ClaimResult, error) {
	lookup, err := FindEvent[RewardClaimedEvent](QuestABI, EventRewardClaimed, receipt.Logs, &quest)
	if err != nil {
		return nil, err
	}
	ev, err := lookup.Must()
	if err != nil {
		return nil, err
	}
	if ev.Player != player {
		return nil, errors.New(errors.ErrTxMismatch, "RewardClaimed 事件的领取人与钱包不一致", nil)
	}

	return &ClaimResult{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Player:      ev.Player,
		Amount:      ev.Amount,
	}, nil
}

// CreateToken 通过代币工厂发行自定义代币
func (c *Client) CreateToken(ctx context.Context, opts *bind.TransactOpts, name, symbol string, decimals uint8, supply *big.Int, image string) (*TokenCreatedEvent, common.Hash, error) {
	factory := common.HexToAddress(c.chainCfg.TokenFactoryAddress)
	receipt, err := c.transact(ctx, opts, factory, TokenFactoryABI, "createToken", name, symbol, decimals, supply, image)
	if err != nil {
		return nil, common.Hash{}, err
	}

	lookup, err := FindEvent[TokenCreatedEvent](TokenFactoryABI, EventTokenCreated, receipt.Logs, &factory)
	if err != nil {
		return nil, receipt.TxHash, err
	}
	ev, err := lookup.Must()
	if err != nil {
		return nil, receipt.TxHash, err
	}
	return &ev, receipt.TxHash, nil
}

// CreateQuest 调用任务工厂创建任务，从 QuestCreated 事件中取得任务地址
func (c *Client) CreateQuest(ctx context.Context, opts *bind.TransactOpts, p QuestParams) (*QuestCreatedEvent, common.Hash, error) {
	factory := common.HexToAddress(c.chainCfg.QuestFactoryAddress)
	receipt, err := c.transact(ctx, opts, factory, QuestFactoryABI, "createTokenQuest",
		p.Name, p.Description, p.QuestType, p.RewardToken, p.RewardPerClaim, p.MaxClaims, p.ExpiryTimestamp)
	if err != nil {
		return nil, common.Hash{}, err
	}

	lookup, err := FindEvent[QuestCreatedEvent](QuestFactoryABI, EventQuestCreated, receipt.Logs, &factory)
	if err != nil {
		return nil, receipt.TxHash, err
	}
	ev, err := lookup.Must()
	if err != nil {
		return nil, receipt.TxHash, err
	}
	return &ev, receipt.TxHash, nil
}

func (c *Client) Approve(ctx context.Context, opts *bind.TransactOpts, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	receipt, err := c.transact(ctx, opts, token, ERC20ABI, "approve", spender, amount)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

func (c *Client) FundWithTokens(ctx context.Context, opts *bind.TransactOpts, quest common.Address, amount *big.Int) (common.Hash, error) {
	receipt, err := c.transact(ctx, opts, quest, QuestABI, "fundWithTokens", amount)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}
