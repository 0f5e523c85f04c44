package middleware

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"quest-launchpad/internal/attestation"
	"quest-launchpad/internal/metrics"
)

type contextKey string

const walletKey contextKey = "wallet"

const (
	HeaderWallet    = "X-Wallet-Address"
	HeaderIssuedAt  = "X-Wallet-Timestamp"
	HeaderSignature = "X-Wallet-Signature"
)

// WalletAuth 校验钱包对 kyra-auth:<wallet>:<ts> 的签名
type WalletAuth struct {
	maxSkew time.Duration
	now     func() time.Time
}

func NewWalletAuth(maxSkew time.Duration) *WalletAuth {
	return &WalletAuth{maxSkew: maxSkew, now: time.Now}
}

type authFailure struct {
	reason  string
	message string
}

func (a *WalletAuth) authenticate(r *http.Request) (common.Address, *authFailure) {
	walletHex := r.Header.Get(HeaderWallet)
	if walletHex == "" {
		return common.Address{}, &authFailure{"missing", "wallet proof headers required"}
	}
	if !common.IsHexAddress(walletHex) {
		return common.Address{}, &authFailure{"bad_wallet", "invalid wallet address"}
	}
	issuedAt, err := strconv.ParseInt(r.Header.Get(HeaderIssuedAt), 10, 64)
	if err != nil {
		return common.Address{}, &authFailure{"bad_timestamp", "invalid proof timestamp"}
	}
	sig, err := hexutil.Decode(r.Header.Get(HeaderSignature))
	if err != nil {
		return common.Address{}, &authFailure{"bad_signature", "invalid proof signature"}
	}

	wallet := common.HexToAddress(walletHex)
	if err := attestation.VerifyWalletProof(wallet, issuedAt, sig, a.now(), a.maxSkew); err != nil {
		reason := "bad_signature"
		if stderrors.Is(err, attestation.ErrClockSkew) {
			reason = "clock_skew"
		}
		return common.Address{}, &authFailure{reason, err.Error()}
	}
	return wallet, nil
}

// Required 未通过校验直接返回 401
func (a *WalletAuth) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, fail := a.authenticate(r)
		if fail != nil {
			metrics.AuthRejections.WithLabelValues(fail.reason).Inc()
			respondWithError(w, http.StatusUnauthorized, fail.message)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), walletKey, wallet)))
	})
}

// Optional 没有携带签名的请求照常放行，只有签名错误才拒绝
func (a *WalletAuth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderWallet) == "" {
			next.ServeHTTP(w, r)
			return
		}
		a.Required(next).ServeHTTP(w, r)
	})
}

func WalletFrom(ctx context.Context) (common.Address, bool) {
	wallet, ok := ctx.Value(walletKey).(common.Address)
	return wallet, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
