package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"quest-launchpad/internal/blockchain"
	"quest-launchpad/internal/config"
	"quest-launchpad/internal/eligibility"
	"quest-launchpad/internal/geo"
	"quest-launchpad/internal/models"
	"quest-launchpad/internal/repository"
	"quest-launchpad/pkg/errors"
	"quest-launchpad/pkg/logger"
)

// QuestChain 商户发布与注资任务用到的链上操作
type QuestChain interface {
	CreateToken(ctx context.Context, opts *bind.TransactOpts, name, symbol string, decimals uint8, supply *big.Int, image string) (*blockchain.TokenCreatedEvent, common.Hash, error)
	CreateQuest(ctx context.Context, opts *bind.TransactOpts, p blockchain.QuestParams) (*blockchain.QuestCreatedEvent, common.Hash, error)
	Approve(ctx context.Context, opts *bind.TransactOpts, token, spender common.Address, amount *big.Int) (common.Hash, error)
	FundWithTokens(ctx context.Context, opts *bind.TransactOpts, quest common.Address, amount *big.Int) (common.Hash, error)
}

type QuestService struct {
	quests       *repository.QuestRepository
	tokens       *repository.TokenRepository
	chain        QuestChain
	signers      Signers
	rules        eligibility.Rules
	defaultToken string
	now          func() time.Time
}

func NewQuestService(
	quests *repository.QuestRepository,
	tokens *repository.TokenRepository,
	chain QuestChain,
	signers Signers,
	claimCfg *config.ClaimConfig,
	chainCfg *config.ChainConfig,
) *QuestService {
	return &QuestService{
		quests:  quests,
		tokens:  tokens,
		chain:   chain,
		signers: signers,
		rules: eligibility.Rules{
			QRPrefix:            claimCfg.QRPrefix,
			VerificationTag:     claimCfg.VerificationTag,
			DefaultRadiusMeters: claimCfg.DefaultRadiusMeters,
		},
		defaultToken: chainCfg.KyraTokenAddress,
		now:          time.Now,
	}
}

type TokenRequest struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Supply string `json:"supply"`
	Image  string `json:"image"`
}

type CreateQuestRequest struct {
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	QuestType      string        `json:"quest_type"`
	RewardToken    string        `json:"reward_token"`
	RewardPerClaim string        `json:"reward_per_claim"`
	MaxClaims      int64         `json:"max_claims"`
	DurationDays   int           `json:"duration_days"`
	ImageURL       string        `json:"image_url"`
	Latitude       *float64      `json:"latitude,omitempty"`
	Longitude      *float64      `json:"longitude,omitempty"`
	RadiusMeters   float64       `json:"radius,omitempty"`
	QRCode         string        `json:"qr_code,omitempty"`
	SocialURL      string        `json:"social_url,omitempty"`
	CustomToken    *TokenRequest `json:"custom_token,omitempty"`
	Fund           bool          `json:"fund"`
}

type CreatedQuest struct {
	Quest     *models.Quest `json:"quest"`
	TxHash    string        `json:"tx_hash"`
	TokenTx   string        `json:"token_tx_hash,omitempty"`
	FundTx    string        `json:"fund_tx_hash,omitempty"`
	QRPayload string        `json:"qr_payload,omitempty"`
	Warning   string        `json:"warning,omitempty"`
}

type questPlan struct {
	questType models.QuestType
	reward    *big.Int
	expiresAt time.Time
	metadata  models.JSONB
}

func (s *QuestService) validate(req CreateQuestRequest) (*questPlan, error) {
	invalid := func(msg string) error {
		return errors.New(errors.ErrInvalidArgument, msg, nil)
	}

	qt, err := models.ParseQuestType(req.QuestType)
	if err != nil {
		return nil, errors.New(errors.ErrInvalidArgument, err.Error(), err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalid("name is required")
	}
	if req.MaxClaims <= 0 {
		return nil, invalid("max_claims must be positive")
	}
	if req.DurationDays <= 0 {
		return nil, invalid("duration_days must be positive")
	}

	reward, err := blockchain.ParseUnits(req.RewardPerClaim, blockchain.TokenDecimals)
	if err != nil {
		return nil, errors.New(errors.ErrInvalidArgument, "invalid reward_per_claim", err)
	}
	if reward.Sign() == 0 {
		return nil, invalid("reward_per_claim must be positive")
	}

	meta := models.JSONB{}
	if qt == models.QuestTypeMap {
		if (req.Latitude == nil) != (req.Longitude == nil) {
			return nil, invalid("latitude and longitude must be set together")
		}
		if req.Latitude != nil {
			p := geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}
			if !p.Valid() {
				return nil, invalid("coordinates out of range")
			}
			meta[models.MetaLatitude] = p.Lat
			meta[models.MetaLongitude] = p.Lng
		}
		radius := req.RadiusMeters
		if radius <= 0 {
			radius = s.rules.DefaultRadiusMeters
		}
		meta[models.MetaRadius] = radius
	}
	if qt == models.QuestTypeQR && req.QRCode != "" {
		meta[models.MetaQRCode] = req.QRCode
	}
	if qt == models.QuestTypeSocial && req.SocialURL != "" {
		meta[models.MetaSocialURL] = req.SocialURL
	}
	if req.CustomToken != nil {
		meta[models.MetaTokenType] = "custom"
	} else {
		meta[models.MetaTokenType] = "existing"
	}

	return &questPlan{
		questType: qt,
		reward:    reward,
		expiresAt: s.now().Add(time.Duration(req.DurationDays) * 24 * time.Hour),
		metadata:  meta,
	}, nil
}

// Create 发布任务：可选发行自定义代币、调用工厂合约、可选先授权再注资，最后写入链下记录
func (s *QuestService) Create(ctx context.Context, creator common.Address, req CreateQuestRequest) (*CreatedQuest, error) {
	plan, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if s.chain == nil || s.signers == nil {
		return nil, errors.New(errors.ErrSignerMissing, "未配置链上签名", nil)
	}

	opts, err := s.signers.Transactor(creator)
	if err != nil {
		return nil, err
	}

	out := &CreatedQuest{}
	var warnings []string

	rewardToken := req.RewardToken
	if rewardToken == "" {
		rewardToken = s.defaultToken
	}

	if tr := req.CustomToken; tr != nil {
		supply, err := blockchain.ParseUnits(tr.Supply, blockchain.TokenDecimals)
		if err != nil {
			return nil, errors.New(errors.ErrInvalidArgument, "invalid token supply", err)
		}
		ev, txHash, err := s.chain.CreateToken(ctx, opts, tr.Name, tr.Symbol, blockchain.TokenDecimals, supply, tr.Image)
		if err != nil {
			return nil, err
		}
		rewardToken = ev.TokenAddress.Hex()
		out.TokenTx = txHash.Hex()

		token := &models.Token{
			Address:     ev.TokenAddress.Hex(),
			Name:        tr.Name,
			Symbol:      tr.Symbol,
			Decimals:    blockchain.TokenDecimals,
			TotalSupply: supply.String(),
			Creator:     creator.Hex(),
		}
		if tr.Image != "" {
			token.Image = &tr.Image
		}
		if err := s.tokens.Create(ctx, token); err != nil {
			warnings = append(warnings, "token record: "+err.Error())
			logger.WithFields(map[string]interface{}{
				"token": token.Address,
				"error": err.Error(),
			}).Warn("保存代币记录失败")
		}
	}
	if !common.IsHexAddress(rewardToken) {
		return nil, errors.New(errors.ErrInvalidArgument, "reward_token is not a valid address", nil)
	}

	ev, txHash, err := s.chain.CreateQuest(ctx, opts, blockchain.QuestParams{
		Name:            req.Name,
		Description:     req.Description,
		QuestType:       plan.questType.ContractEnum(),
		RewardToken:     common.HexToAddress(rewardToken),
		RewardPerClaim:  plan.reward,
		MaxClaims:       big.NewInt(req.MaxClaims),
		ExpiryTimestamp: big.NewInt(plan.expiresAt.Unix()),
	})
	if err != nil {
		return nil, err
	}
	out.TxHash = txHash.Hex()

	quest := &models.Quest{
		Address:         ev.QuestAddress.Hex(),
		Name:            req.Name,
		Description:     req.Description,
		QuestType:       plan.questType,
		RewardToken:     strings.ToLower(rewardToken),
		RewardPerClaim:  plan.reward.String(),
		MaxClaims:       req.MaxClaims,
		ExpiryTimestamp: plan.expiresAt.Unix(),
		CreatorWallet:   creator.Hex(),
		IsActive:        true,
		ProofType:       string(eligibility.RequiredChannel(plan.questType)),
		Metadata:        plan.metadata,
	}
	if req.ImageURL != "" {
		quest.ImageURL = &req.ImageURL
	}

	if req.Fund {
		total := new(big.Int).Mul(plan.reward, big.NewInt(req.MaxClaims))
		fundTx, err := s.fund(ctx, opts, common.HexToAddress(rewardToken), ev.QuestAddress, total)
		if err != nil {
			warnings = append(warnings, "funding: "+err.Error())
		} else {
			out.FundTx = fundTx.Hex()
		}
	}

	if err := s.quests.Create(ctx, quest); err != nil {
		return nil, errors.New(errors.ErrQuestStore, "链上任务已创建但保存记录失败", err)
	}
	out.Quest = quest
	if plan.questType == models.QuestTypeQR {
		out.QRPayload = s.rules.QRPayload(quest.Address)
	}
	out.Warning = strings.Join(warnings, "; ")

	logger.WithFields(map[string]interface{}{
		"quest":      quest.Address,
		"quest_type": quest.QuestType,
		"creator":    quest.CreatorWallet,
		"tx_hash":    out.TxHash,
	}).Info("任务已发布")

	return out, nil
}

// fund 先授权再注资，每一步都等待回执
func (s *QuestService) fund(ctx context.Context, opts *bind.TransactOpts, token, quest common.Address, amount *big.Int) (common.Hash, error) {
	if _, err := s.chain.Approve(ctx, opts, token, quest, amount); err != nil {
		return common.Hash{}, err
	}
	return s.chain.FundWithTokens(ctx, opts, quest, amount)
}

// Fund 为已有任务补充奖励；amount 为空时按剩余名额注满
func (s *QuestService) Fund(ctx context.Context, creator common.Address, questAddr, amount string) (string, error) {
	quest, err := s.Get(ctx, questAddr)
	if err != nil {
		return "", err
	}
	if s.chain == nil || s.signers == nil {
		return "", errors.New(errors.ErrSignerMissing, "未配置链上签名", nil)
	}

	var value *big.Int
	if amount == "" {
		value, err = RequiredFunding(quest)
	} else {
		value, err = blockchain.ParseUnits(amount, blockchain.TokenDecimals)
	}
	if err != nil {
		return "", errors.New(errors.ErrInvalidArgument, "invalid amount", err)
	}
	if value.Sign() == 0 {
		return "", errors.New(errors.ErrInvalidArgument, "nothing to fund", nil)
	}

	opts, err := s.signers.Transactor(creator)
	if err != nil {
		return "", err
	}

	txHash, err := s.fund(ctx, opts, common.HexToAddress(quest.RewardToken), common.HexToAddress(quest.Address), value)
	if err != nil {
		return "", err
	}
	return txHash.Hex(), nil
}

// RequiredFunding = 每次奖励 × 剩余名额
func RequiredFunding(q *models.Quest) (*big.Int, error) {
	reward, ok := new(big.Int).SetString(q.RewardPerClaim, 10)
	if !ok {
		return nil, fmt.Errorf("invalid reward_per_claim %q", q.RewardPerClaim)
	}
	remaining := q.MaxClaims - q.ClaimsMade
	if remaining < 0 {
		remaining = 0
	}
	return reward.Mul(reward, big.NewInt(remaining)), nil
}

func (s *QuestService) Get(ctx context.Context, address string) (*models.Quest, error) {
	quest, err := s.quests.GetByAddress(ctx, address)
	if err != nil {
		return nil, errors.New(errors.ErrQuestStore, "查询任务失败", err)
	}
	if quest == nil {
		return nil, errors.New(errors.ErrQuestNotFound, fmt.Sprintf("任务不存在: %s", address), nil)
	}
	return quest, nil
}

func (s *QuestService) List(ctx context.Context, f repository.QuestFilter) ([]models.Quest, error) {
	quests, err := s.quests.List(ctx, f)
	if err != nil {
		return nil, errors.New(errors.ErrQuestStore, "查询任务列表失败", err)
	}
	return quests, nil
}

// SetActive 只有创建者可以上下架任务
func (s *QuestService) SetActive(ctx context.Context, caller common.Address, address string, active bool) error {
	quest, err := s.Get(ctx, address)
	if err != nil {
		return err
	}
	if !strings.EqualFold(quest.CreatorWallet, caller.Hex()) {
		return errors.New(errors.ErrInvalidArgument, "only the quest creator can change its status", nil)
	}
	if err := s.quests.SetActive(ctx, address, active); err != nil {
		return errors.New(errors.ErrQuestStore, "更新任务状态失败", err)
	}
	return nil
}

// RefreshClaimsMade 手动重算单个任务的领取计数
func (s *QuestService) RefreshClaimsMade(ctx context.Context, address string) (int64, error) {
	quest, err := s.Get(ctx, address)
	if err != nil {
		return 0, err
	}
	count, err := s.quests.RefreshClaimsMade(ctx, quest.ID)
	if err != nil {
		return 0, errors.New(errors.ErrQuestStore, "重算领取计数失败", err)
	}
	return count, nil
}

// QRPayload 商户打印的二维码内容
func (s *QuestService) QRPayload(ctx context.Context, address string) (string, error) {
	quest, err := s.Get(ctx, address)
	if err != nil {
		return "", err
	}
	if quest.QuestType != models.QuestTypeQR {
		return "", errors.New(errors.ErrInvalidArgument, "quest is not a qr quest", nil)
	}
	return s.rules.QRPayload(quest.Address), nil
}

func (s *QuestService) Tokens(ctx context.Context, creator string, limit int) ([]models.Token, error) {
	return s.tokens.List(ctx, creator, limit)
}
