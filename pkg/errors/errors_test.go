package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	assert.Equal(t, "[TX_REVERTED] claim reverted", New(ErrTxReverted, "claim reverted", nil).Error())

	inner := stderrors.New("execution reverted: already claimed")
	err := New(ErrTxReverted, "claim reverted", inner)
	assert.Equal(t, "[TX_REVERTED] claim reverted: execution reverted: already claimed", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestHasCodeWalksNestedAppErrors(t *testing.T) {
	root := New(ErrEventNotFound, "RewardClaimed not found", nil)
	wrapped := fmt.Errorf("confirm: %w", New(ErrTxMismatch, "receipt rejected", root))

	assert.True(t, HasCode(wrapped, ErrTxMismatch))
	assert.True(t, HasCode(wrapped, ErrEventNotFound))
	assert.False(t, HasCode(wrapped, ErrPin))
	assert.Equal(t, ErrTxMismatch, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(stderrors.New("plain")))
}
