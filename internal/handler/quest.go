package handler

import (
	"net/http"
	"strings"

	"quest-launchpad/internal/models"
	"quest-launchpad/internal/repository"
	"quest-launchpad/internal/service"
)

type QuestHandler struct {
	questSvc *service.QuestService
}

func NewQuestHandler(questSvc *service.QuestService) *QuestHandler {
	return &QuestHandler{questSvc: questSvc}
}

// ListQuests 支持 type、active、creator 过滤，分页参数 page / page_size
func (h *QuestHandler) ListQuests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.QuestFilter{
		ActiveOnly: q.Get("active") != "false",
		Creator:    q.Get("creator"),
	}
	if t := q.Get("type"); t != "" {
		qt, err := models.ParseQuestType(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Type = qt
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "page_size", 20)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	f.Offset = (page - 1) * pageSize
	f.Limit = pageSize

	quests, err := h.questSvc.List(r.Context(), f)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    quests,
		"page":     page,
		"pageSize": pageSize,
	})
}

func (h *QuestHandler) GetQuest(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	quest, err := h.questSvc.Get(r.Context(), addr)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}

	required, err := service.RequiredFunding(quest)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quest":            quest,
		"required_funding": required.String(),
	})
}

func (h *QuestHandler) CreateQuest(w http.ResponseWriter, r *http.Request) {
	wallet, ok := requireWallet(w, r)
	if !ok {
		return
	}

	var req service.CreateQuestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := h.questSvc.Create(r.Context(), wallet, req)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// FundQuest amount 为空时按剩余名额注满
func (h *QuestHandler) FundQuest(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	wallet, ok := requireWallet(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	txHash, err := h.questSvc.Fund(r.Context(), wallet, addr, strings.TrimSpace(req.Amount))
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quest_address": strings.ToLower(addr),
		"tx_hash":       txHash,
	})
}

func (h *QuestHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	wallet, ok := requireWallet(w, r)
	if !ok {
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.questSvc.SetActive(r.Context(), wallet, addr, req.Active); err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quest_address": strings.ToLower(addr),
		"is_active":     req.Active,
	})
}

func (h *QuestHandler) GetQRPayload(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	payload, err := h.questSvc.QRPayload(r.Context(), addr)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payload": payload})
}

// RefreshCount 手动触发单个任务的计数重算
func (h *QuestHandler) RefreshCount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}

	count, err := h.questSvc.RefreshClaimsMade(r.Context(), addr)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quest_address": strings.ToLower(addr),
		"claims_made":   count,
	})
}

func (h *QuestHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	tokens, err := h.questSvc.Tokens(r.Context(), r.URL.Query().Get("creator"), limit)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}
