package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf 返回错误链上第一个 AppError 的错误码
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode 判断错误链上是否存在指定错误码
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

var (
	ErrConfigLoad       = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect  = "DATABASE_CONNECT_ERROR"
	ErrRPConnect        = "RPC_CONNECT_ERROR"
	ErrBlockFetch       = "BLOCK_FETCH_ERROR"
	ErrEventParse       = "EVENT_PARSE_ERROR"
	ErrEventNotFound    = "EVENT_NOT_FOUND"
	ErrQuestNotFound    = "QUEST_NOT_FOUND"
	ErrQuestStore       = "QUEST_STORE_ERROR"
	ErrNotEligible      = "NOT_ELIGIBLE"
	ErrVerification     = "VERIFICATION_FAILED"
	ErrTxSubmit         = "TX_SUBMIT_ERROR"
	ErrTxReverted       = "TX_REVERTED"
	ErrTxMismatch       = "TX_MISMATCH"
	ErrBookkeeping      = "BOOKKEEPING_ERROR"
	ErrSignerMissing    = "SIGNER_MISSING"
	ErrPin              = "PIN_ERROR"
	ErrInvalidArgument  = "INVALID_ARGUMENT"
	ErrInvalidChain     = "INVALID_CHAIN_ERROR"
)
