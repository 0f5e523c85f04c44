package handler

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"quest-launchpad/internal/attestation"
	"quest-launchpad/internal/middleware"
	"quest-launchpad/internal/service"
)

type ClaimHandler struct {
	claimSvc *service.ClaimService
}

func NewClaimHandler(claimSvc *service.ClaimService) *ClaimHandler {
	return &ClaimHandler{claimSvc: claimSvc}
}

// GetEligibility 未登录也可查询，结果中 reason 为 not_authenticated
func (h *ClaimHandler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	wallet, authenticated := middleware.WalletFrom(r.Context())

	view, err := h.claimSvc.Eligibility(r.Context(), addr, wallet, authenticated)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ClaimHandler) VerifyQR(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	wallet, ok := requireWallet(w, r)
	if !ok {
		return
	}

	var req struct {
		Payload string `json:"payload"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.claimSvc.VerifyQR(r.Context(), addr, wallet, req.Payload)
	if err != nil {
		writeAppError(w, err, map[string]interface{}{"eligibility": view})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ClaimHandler) VerifyLocation(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	wallet, ok := requireWallet(w, r)
	if !ok {
		return
	}

	var report service.LocationReport
	if !decodeBody(w, r, &report) {
		return
	}

	view, err := h.claimSvc.VerifyLocation(r.Context(), addr, wallet, report)
	if err != nil {
		extra := map[string]interface{}{}
		if view != nil {
			extra["eligibility"] = view.EligibilityView
			extra["location"] = view.Location
		}
		writeAppError(w, err, extra)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ClaimHandler) VerifySocial(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	wallet, ok := requireWallet(w, r)
	if !ok {
		return
	}

	var att attestation.Social
	if !decodeBody(w, r, &att) {
		return
	}

	view, err := h.claimSvc.VerifySocial(r.Context(), addr, wallet, att)
	if err != nil {
		writeAppError(w, err, map[string]interface{}{"eligibility": view})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Prepare 返回未签名的领取调用，由客户端钱包签名发送
func (h *ClaimHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	wallet, ok := requireWallet(w, r)
	if !ok {
		return
	}

	prepared, err := h.claimSvc.Prepare(r.Context(), addr, wallet)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, prepared)
}

func (h *ClaimHandler) Submit(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	wallet, ok := requireWallet(w, r)
	if !ok {
		return
	}

	out, err := h.claimSvc.Submit(r.Context(), addr, wallet)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ClaimHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	wallet, ok := requireWallet(w, r)
	if !ok {
		return
	}

	var req struct {
		TxHash string `json:"tx_hash"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(common.FromHex(req.TxHash)) != common.HashLength {
		writeError(w, http.StatusBadRequest, "invalid tx_hash")
		return
	}

	out, err := h.claimSvc.Confirm(r.Context(), addr, wallet, common.HexToHash(req.TxHash))
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
