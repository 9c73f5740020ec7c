package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsAppErrorThroughFmtWrap(t *testing.T) {
	base := Cooldown("cooldown not elapsed").WithDetail("current_leverage_ratio", "2.1")
	wrapped := fmt.Errorf("rebalance: %w", base)

	got := Wrap(wrapped)
	assert.Same(t, base, got)
	assert.Equal(t, http.StatusConflict, got.HTTPStatus)
	assert.Equal(t, "2.1", got.Details["current_leverage_ratio"])
	assert.True(t, Is(wrapped, ErrCooldown))
}

func TestWrapUnknownErrorIsInternal(t *testing.T) {
	got := Wrap(errors.New("boom"))
	assert.Equal(t, ErrInternal, got.Type)
	assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
	assert.Nil(t, Wrap(nil))
}

func TestUpstreamUnwrapsCause(t *testing.T) {
	cause := errors.New("venue down")
	err := Upstream("trade failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "trade failed: venue down", err.Error())
	assert.Equal(t, ErrorType(""), TypeOf(cause))
}
