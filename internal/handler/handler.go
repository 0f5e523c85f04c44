package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"quest-launchpad/internal/eligibility"
	"quest-launchpad/internal/geo"
	"quest-launchpad/internal/middleware"
	"quest-launchpad/pkg/errors"
	"quest-launchpad/pkg/logger"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// verificationCode 每种验证失败对应一个稳定的错误码，前端据此给出不同提示
func verificationCode(err error) string {
	switch {
	case stderrors.Is(err, eligibility.ErrQRMismatch):
		return "qr_mismatch"
	case stderrors.Is(err, eligibility.ErrOutOfRadius):
		return "out_of_radius"
	case stderrors.Is(err, geo.ErrPermissionDenied):
		return "permission_denied"
	case stderrors.Is(err, geo.ErrTimeout):
		return "location_timeout"
	case stderrors.Is(err, geo.ErrStalePosition):
		return "location_stale"
	case stderrors.Is(err, geo.ErrPositionUnavailable):
		return "location_unavailable"
	case stderrors.Is(err, eligibility.ErrAttestationInvalid):
		return "attestation_invalid"
	default:
		return "verification_failed"
	}
}

func messageOf(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// writeAppError 按错误码映射 HTTP 状态；extra 会合并进响应体
func writeAppError(w http.ResponseWriter, err error, extra map[string]interface{}) {
	status := http.StatusInternalServerError
	body := map[string]interface{}{"error": messageOf(err)}

	switch code := errors.CodeOf(err); {
	case errors.HasCode(err, errors.ErrNotEligible):
		status = http.StatusConflict
		body["reason"] = messageOf(err)
	case errors.HasCode(err, errors.ErrVerification):
		status = http.StatusUnprocessableEntity
		body["code"] = verificationCode(err)
	case errors.HasCode(err, errors.ErrQuestNotFound):
		status = http.StatusNotFound
	case errors.HasCode(err, errors.ErrInvalidArgument),
		errors.HasCode(err, errors.ErrTxMismatch),
		errors.HasCode(err, errors.ErrSignerMissing):
		status = http.StatusBadRequest
	case errors.HasCode(err, errors.ErrTxReverted),
		errors.HasCode(err, errors.ErrTxSubmit),
		errors.HasCode(err, errors.ErrEventNotFound),
		errors.HasCode(err, errors.ErrEventParse),
		errors.HasCode(err, errors.ErrRPConnect),
		errors.HasCode(err, errors.ErrPin):
		status = http.StatusBadGateway
	default:
		logger.WithFields(map[string]interface{}{
			"code":  code,
			"error": err.Error(),
		}).Error("请求处理失败")
		body["error"] = "internal error"
	}
	if code := errors.CodeOf(err); code != "" {
		body["error_code"] = code
	}

	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathAddress(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := mux.Vars(r)[name]
	if !common.IsHexAddress(v) {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return v, true
}

// requireWallet 取出鉴权中间件写入的钱包
func requireWallet(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	wallet, ok := middleware.WalletFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "wallet proof required")
		return common.Address{}, false
	}
	return wallet, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
