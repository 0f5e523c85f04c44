package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"quest-launchpad/internal/attestation"
	"quest-launchpad/internal/blockchain"
	"quest-launchpad/internal/config"
	"quest-launchpad/internal/eligibility"
	"quest-launchpad/internal/geo"
	"quest-launchpad/internal/metrics"
	"quest-launchpad/internal/models"
	"quest-launchpad/internal/repository"
	"quest-launchpad/pkg/errors"
	"quest-launchpad/pkg/logger"
)

// ClaimChain 领取流程用到的链上操作
type ClaimChain interface {
	HasClaimed(ctx context.Context, quest, player common.Address) (bool, error)
	SubmitClaim(ctx context.Context, opts *bind.TransactOpts, quest common.Address, method string, args ...interface{}) (*blockchain.ClaimResult, error)
	ClaimReceipt(ctx context.Context, txHash common.Hash, quest, player common.Address) (*blockchain.ClaimResult, error)
}

// Signers 服务端托管钱包的签名器来源
type Signers interface {
	Transactor(addr common.Address) (*bind.TransactOpts, error)
}

type ClaimDeps struct {
	Quests   *repository.QuestRepository
	Claims   *repository.ClaimRepository
	Players  *repository.PlayerRepository
	Chain    ClaimChain
	Signers  Signers
	Sessions *SessionStore
	Verifier *attestation.Verifier
}

type ClaimService struct {
	quests   *repository.QuestRepository
	claims   *repository.ClaimRepository
	players  *repository.PlayerRepository
	chain    ClaimChain
	signers  Signers
	sessions *SessionStore
	verifier *attestation.Verifier

	rules           eligibility.Rules
	xpPerClaim      int64
	locationTimeout time.Duration
	chainID         uint64
	now             func() time.Time
}

func NewClaimService(deps ClaimDeps, cfg *config.ClaimConfig, chainID uint64) *ClaimService {
	return &ClaimService{
		quests:   deps.Quests,
		claims:   deps.Claims,
		players:  deps.Players,
		chain:    deps.Chain,
		signers:  deps.Signers,
		sessions: deps.Sessions,
		verifier: deps.Verifier,
		rules: eligibility.Rules{
			QRPrefix:            cfg.QRPrefix,
			VerificationTag:     cfg.VerificationTag,
			DefaultRadiusMeters: cfg.DefaultRadiusMeters,
		},
		xpPerClaim:      cfg.XPPerClaim,
		locationTimeout: time.Duration(cfg.LocationTimeout) * time.Second,
		chainID:         chainID,
		now:             time.Now,
	}
}

func (s *ClaimService) Rules() eligibility.Rules {
	return s.rules
}

// ClaimSession 一次请求内的任务记录与会话状态
type ClaimSession struct {
	Record *models.Quest
	State  eligibility.Session
}

type EligibilityView struct {
	QuestAddress    string                   `json:"quest_address"`
	QuestType       models.QuestType         `json:"quest_type"`
	Wallet          string                   `json:"wallet"`
	Eligible        bool                     `json:"eligible"`
	Reason          eligibility.Reason       `json:"reason,omitempty"`
	RequiredChannel eligibility.Channel      `json:"required_channel"`
	Channels        eligibility.ChannelState `json:"channels"`
	HasClaimed      bool                     `json:"has_claimed"`
	ClaimsMade      int64                    `json:"claims_made"`
	MaxClaims       int64                    `json:"max_claims"`
}

func (s *ClaimService) view(sess *ClaimSession) *EligibilityView {
	d := eligibility.Evaluate(sess.State, s.now())
	return &EligibilityView{
		QuestAddress:    sess.State.Quest.Address,
		QuestType:       sess.State.Quest.Type,
		Wallet:          strings.ToLower(sess.State.Wallet.Hex()),
		Eligible:        d.Eligible,
		Reason:          d.Reason,
		RequiredChannel: d.RequiredChannel,
		Channels:        sess.State.Channels,
		HasClaimed:      sess.State.HasClaimed,
		ClaimsMade:      sess.State.Quest.ClaimsMade,
		MaxClaims:       sess.State.Quest.MaxClaims,
	}
}

// Open 加载任务并解析钱包的领取状态
// 先查链下记录，没有记录时再查合约；合约查询失败按未领取处理
func (s *ClaimService) Open(ctx context.Context, questAddr string, wallet common.Address, authenticated bool) (*ClaimSession, error) {
	quest, err := s.quests.GetByAddress(ctx, questAddr)
	if err != nil {
		return nil, errors.New(errors.ErrQuestStore, "查询任务失败", err)
	}
	if quest == nil {
		return nil, errors.New(errors.ErrQuestNotFound, fmt.Sprintf("任务不存在: %s", questAddr), nil)
	}

	sess := &ClaimSession{
		Record: quest,
		State: eligibility.Session{
			Quest:         eligibility.FromModel(quest),
			Wallet:        wallet,
			Authenticated: authenticated,
		},
	}

	if wallet != (common.Address{}) {
		sess.State.HasClaimed = s.hasClaimed(ctx, quest, wallet)
		sess.State.Channels = s.sessions.Get(quest.Address, wallet.Hex())
	}
	return sess, nil
}

func (s *ClaimService) hasClaimed(ctx context.Context, quest *models.Quest, wallet common.Address) bool {
	exists, err := s.claims.Exists(ctx, quest.ID, wallet.Hex())
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"quest":  quest.Address,
			"wallet": wallet.Hex(),
			"error":  err.Error(),
		}).Warn("查询链下领取记录失败")
	}
	if exists {
		return true
	}
	if s.chain == nil {
		return false
	}

	claimed, err := s.chain.HasClaimed(ctx, common.HexToAddress(quest.Address), wallet)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"quest":  quest.Address,
			"wallet": wallet.Hex(),
			"error":  err.Error(),
		}).Warn("查询合约领取状态失败，按未领取处理")
		return false
	}
	return claimed
}

// Eligibility 返回当前的可领取判定
func (s *ClaimService) Eligibility(ctx context.Context, questAddr string, wallet common.Address, authenticated bool) (*EligibilityView, error) {
	sess, err := s.Open(ctx, questAddr, wallet, authenticated)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func verificationError(channel eligibility.Channel, err error) error {
	metrics.Verifications.WithLabelValues(string(channel), "rejected").Inc()
	if stderrors.Is(err, eligibility.ErrWrongChannel) {
		return errors.New(errors.ErrInvalidArgument, err.Error(), err)
	}
	return errors.New(errors.ErrVerification, err.Error(), err)
}

// VerifyQR 扫码验证，不匹配时可无限次重试
func (s *ClaimService) VerifyQR(ctx context.Context, questAddr string, wallet common.Address, payload string) (*EligibilityView, error) {
	sess, err := s.Open(ctx, questAddr, wallet, true)
	if err != nil {
		return nil, err
	}

	if err := sess.State.ApplyQR(s.rules, strings.TrimSpace(payload)); err != nil {
		return s.view(sess), verificationError(eligibility.ChannelQR, err)
	}

	sess.State.Channels = s.sessions.Merge(sess.Record.Address, wallet.Hex(), sess.State.Channels)
	metrics.Verifications.WithLabelValues(string(eligibility.ChannelQR), "verified").Inc()
	return s.view(sess), nil
}

// LocationReport 客户端上报的定位结果或失败原因
type LocationReport struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy"`
	Timestamp      int64   `json:"timestamp"`
	Error          string  `json:"error,omitempty"`
}

type LocationView struct {
	*EligibilityView
	Location eligibility.LocationResult `json:"location"`
}

// VerifyLocation 校验上报定位与任务目标点的距离
// 定位时间早于超时窗口的视为缓存定位，拒绝
func (s *ClaimService) VerifyLocation(ctx context.Context, questAddr string, wallet common.Address, report LocationReport) (*LocationView, error) {
	sess, err := s.Open(ctx, questAddr, wallet, true)
	if err != nil {
		return nil, err
	}

	locator := geo.ReportedLocator{
		Position: geo.Position{
			Point:          geo.Point{Lat: report.Latitude, Lng: report.Longitude},
			AccuracyMeters: report.AccuracyMeters,
		},
		Failure: report.Error,
	}
	if report.Timestamp > 0 {
		locator.Position.Timestamp = time.UnixMilli(report.Timestamp)
	}

	pos, err := geo.Acquire(ctx, locator, s.locationTimeout, s.locationTimeout, s.now)
	if err != nil {
		return &LocationView{EligibilityView: s.view(sess)}, verificationError(eligibility.ChannelLocation, err)
	}

	res, err := sess.State.ApplyLocation(s.rules, pos)
	if err != nil {
		return &LocationView{EligibilityView: s.view(sess), Location: res}, verificationError(eligibility.ChannelLocation, err)
	}

	sess.State.Channels = s.sessions.Merge(sess.Record.Address, wallet.Hex(), sess.State.Channels)
	metrics.Verifications.WithLabelValues(string(eligibility.ChannelLocation), "verified").Inc()

	logger.WithFields(map[string]interface{}{
		"quest":    sess.Record.Address,
		"wallet":   wallet.Hex(),
		"distance": res.DistanceMeters,
		"radius":   res.RadiusMeters,
	}).Info("定位验证通过")

	return &LocationView{EligibilityView: s.view(sess), Location: res}, nil
}

// VerifySocial 只接受可信签名者签发的社交证明
func (s *ClaimService) VerifySocial(ctx context.Context, questAddr string, wallet common.Address, att attestation.Social) (*EligibilityView, error) {
	sess, err := s.Open(ctx, questAddr, wallet, true)
	if err != nil {
		return nil, err
	}

	if err := sess.State.ApplySocial(att, s.verifier, s.now()); err != nil {
		return s.view(sess), verificationError(eligibility.ChannelSocial, err)
	}

	sess.State.Channels = s.sessions.Merge(sess.Record.Address, wallet.Hex(), sess.State.Channels)
	metrics.Verifications.WithLabelValues(string(eligibility.ChannelSocial), "verified").Inc()
	return s.view(sess), nil
}

func (s *ClaimService) requireEligible(sess *ClaimSession) error {
	d := eligibility.Evaluate(sess.State, s.now())
	if d.Eligible {
		return nil
	}
	metrics.Claims.WithLabelValues(string(sess.State.Quest.Type), "ineligible").Inc()
	return errors.New(errors.ErrNotEligible, string(d.Reason), nil)
}

// PreparedClaim 供客户端自行签名的领取交易
type PreparedClaim struct {
	To      string        `json:"to"`
	ChainID uint64        `json:"chain_id"`
	Method  string        `json:"method"`
	Code    *common.Hash  `json:"code,omitempty"`
	Data    hexutil.Bytes `json:"data"`
}

// Prepare 判定通过后返回按任务类型构造的调用数据
func (s *ClaimService) Prepare(ctx context.Context, questAddr string, wallet common.Address) (*PreparedClaim, error) {
	sess, err := s.Open(ctx, questAddr, wallet, true)
	if err != nil {
		return nil, err
	}
	if err := s.requireEligible(sess); err != nil {
		return nil, err
	}

	call := s.rules.BuildClaimCall(sess.State.Quest)
	data, err := blockchain.QuestABI.Pack(call.Method, call.Args()...)
	if err != nil {
		return nil, errors.New(errors.ErrInvalidArgument, "编码领取调用失败", err)
	}

	return &PreparedClaim{
		To:      sess.State.Quest.Address,
		ChainID: s.chainID,
		Method:  call.Method,
		Code:    call.Code,
		Data:    data,
	}, nil
}

// ClaimOutcome 领取结果；链上已成功时即使簿记失败也视为成功，失败原因放在 BookkeepingWarning
type ClaimOutcome struct {
	QuestAddress       string `json:"quest_address"`
	Wallet             string `json:"wallet"`
	TxHash             string `json:"tx_hash"`
	BlockNumber        uint64 `json:"block_number,omitempty"`
	Method             string `json:"method,omitempty"`
	RewardAmount       string `json:"reward_amount,omitempty"`
	XPEarned           int64  `json:"xp_earned"`
	ClaimsMade         int64  `json:"claims_made"`
	AlreadyRecorded    bool   `json:"already_recorded,omitempty"`
	BookkeepingWarning string `json:"bookkeeping_warning,omitempty"`
}

// Submit 用托管钱包发送领取交易
func (s *ClaimService) Submit(ctx context.Context, questAddr string, wallet common.Address) (*ClaimOutcome, error) {
	sess, err := s.Open(ctx, questAddr, wallet, true)
	if err != nil {
		return nil, err
	}
	if err := s.requireEligible(sess); err != nil {
		return nil, err
	}
	if s.chain == nil || s.signers == nil {
		return nil, errors.New(errors.ErrSignerMissing, "未配置链上签名", nil)
	}

	opts, err := s.signers.Transactor(wallet)
	if err != nil {
		return nil, err
	}

	call := s.rules.BuildClaimCall(sess.State.Quest)
	questType := string(sess.State.Quest.Type)

	res, err := s.chain.SubmitClaim(ctx, opts, common.HexToAddress(sess.Record.Address), call.Method, call.Args()...)
	if err != nil {
		metrics.Claims.WithLabelValues(questType, "failed").Inc()
		logger.WithFields(map[string]interface{}{
			"quest":  sess.Record.Address,
			"wallet": wallet.Hex(),
			"method": call.Method,
			"error":  err.Error(),
		}).Error("领取交易失败")
		return nil, err
	}
	metrics.Claims.WithLabelValues(questType, "claimed").Inc()

	out := s.record(ctx, sess.Record, wallet, res.TxHash, models.ClaimSourceSubmit)
	out.BlockNumber = res.BlockNumber
	out.Method = call.Method
	out.RewardAmount = blockchain.FormatUnits(res.Amount, blockchain.TokenDecimals)
	return out, nil
}

// Confirm 校验客户端自行签名并发送的领取交易，然后记账
func (s *ClaimService) Confirm(ctx context.Context, questAddr string, wallet common.Address, txHash common.Hash) (*ClaimOutcome, error) {
	quest, err := s.quests.GetByAddress(ctx, questAddr)
	if err != nil {
		return nil, errors.New(errors.ErrQuestStore, "查询任务失败", err)
	}
	if quest == nil {
		return nil, errors.New(errors.ErrQuestNotFound, fmt.Sprintf("任务不存在: %s", questAddr), nil)
	}

	exists, err := s.claims.Exists(ctx, quest.ID, wallet.Hex())
	if err != nil {
		return nil, errors.New(errors.ErrQuestStore, "查询领取记录失败", err)
	}
	if exists {
		return &ClaimOutcome{
			QuestAddress:    quest.Address,
			Wallet:          strings.ToLower(wallet.Hex()),
			TxHash:          txHash.Hex(),
			XPEarned:        s.xpPerClaim,
			ClaimsMade:      quest.ClaimsMade,
			AlreadyRecorded: true,
		}, nil
	}
	if s.chain == nil {
		return nil, errors.New(errors.ErrRPConnect, "未配置链上客户端", nil)
	}

	res, err := s.chain.ClaimReceipt(ctx, txHash, common.HexToAddress(quest.Address), wallet)
	if err != nil {
		metrics.Claims.WithLabelValues(string(quest.QuestType), "rejected").Inc()
		return nil, err
	}
	metrics.Claims.WithLabelValues(string(quest.QuestType), "confirmed").Inc()

	out := s.record(ctx, quest, wallet, res.TxHash, models.ClaimSourceConfirm)
	out.BlockNumber = res.BlockNumber
	out.RewardAmount = blockchain.FormatUnits(res.Amount, blockchain.TokenDecimals)
	return out, nil
}

// record 链上成功后的簿记：幂等写入领取记录、重算任务计数、刷新玩家经验值
// 任何一步失败只记录警告，不影响领取结果
func (s *ClaimService) record(ctx context.Context, quest *models.Quest, wallet common.Address, txHash common.Hash, source models.ClaimSource) *ClaimOutcome {
	out := &ClaimOutcome{
		QuestAddress: quest.Address,
		Wallet:       strings.ToLower(wallet.Hex()),
		TxHash:       txHash.Hex(),
		XPEarned:     s.xpPerClaim,
		ClaimsMade:   quest.ClaimsMade,
	}
	s.sessions.End(quest.Address, wallet.Hex())

	var warnings []string
	fail := func(step string, err error) {
		metrics.BookkeepingFailures.Inc()
		warnings = append(warnings, fmt.Sprintf("%s: %v", step, err))
		logger.WithFields(map[string]interface{}{
			"quest":   quest.Address,
			"wallet":  out.Wallet,
			"tx_hash": out.TxHash,
			"step":    step,
			"error":   err.Error(),
		}).Warn("链上领取成功但簿记失败")
	}

	claim := &models.QuestClaim{
		QuestID:      quest.ID,
		QuestAddress: quest.Address,
		PlayerWallet: out.Wallet,
		TxHash:       out.TxHash,
		XPEarned:     s.xpPerClaim,
		Source:       source,
	}
	if _, err := s.claims.Upsert(ctx, claim); err != nil {
		fail("record claim", err)
	}

	if made, err := s.quests.RefreshClaimsMade(ctx, quest.ID); err != nil {
		fail("refresh claims_made", err)
	} else {
		out.ClaimsMade = made
	}

	if err := s.refreshPlayer(ctx, out.Wallet); err != nil {
		fail("refresh player xp", err)
	}

	if len(warnings) > 0 {
		out.BookkeepingWarning = strings.Join(warnings, "; ")
	} else {
		logger.WithFields(map[string]interface{}{
			"quest":       quest.Address,
			"wallet":      out.Wallet,
			"tx_hash":     out.TxHash,
			"source":      source,
			"claims_made": out.ClaimsMade,
		}).Info("领取已记账")
	}
	return out
}

func (s *ClaimService) refreshPlayer(ctx context.Context, wallet string) error {
	totals, err := s.claims.SumXPByWallet(ctx, wallet)
	if err != nil {
		return err
	}
	return s.players.Save(ctx, []repository.WalletTotals{totals})
}

// RecordIndexed 索引器回填链上领取，未知任务直接忽略
func (s *ClaimService) RecordIndexed(ctx context.Context, c blockchain.IndexedClaim) error {
	quest, err := s.quests.GetByAddress(ctx, c.Quest.Hex())
	if err != nil {
		return errors.New(errors.ErrQuestStore, "查询任务失败", err)
	}
	if quest == nil {
		logger.WithFields(map[string]interface{}{
			"quest":   strings.ToLower(c.Quest.Hex()),
			"tx_hash": c.TxHash.Hex(),
		}).Debug("忽略未登记任务的领取事件")
		return nil
	}

	inserted, err := s.claims.Upsert(ctx, &models.QuestClaim{
		QuestID:      quest.ID,
		QuestAddress: quest.Address,
		PlayerWallet: c.Player.Hex(),
		TxHash:       c.TxHash.Hex(),
		XPEarned:     s.xpPerClaim,
		Source:       models.ClaimSourceIndexer,
	})
	if err != nil {
		return errors.New(errors.ErrBookkeeping, "回填领取记录失败", err)
	}
	if !inserted {
		return nil
	}

	metrics.IndexedClaims.Inc()
	if _, err := s.quests.RefreshClaimsMade(ctx, quest.ID); err != nil {
		return errors.New(errors.ErrBookkeeping, "重算任务计数失败", err)
	}
	if err := s.refreshPlayer(ctx, c.Player.Hex()); err != nil {
		return errors.New(errors.ErrBookkeeping, "刷新玩家经验值失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"quest":        quest.Address,
		"wallet":       strings.ToLower(c.Player.Hex()),
		"tx_hash":      c.TxHash.Hex(),
		"block_number": c.BlockNumber,
	}).Info("已回填链上领取")
	return nil
}
