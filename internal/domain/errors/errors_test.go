package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := stderrors.New("disk full")

	tests := []struct {
		err    AppError
		code   string
		status int
	}{
		{NewValidationError("bad"), CodeValidation, http.StatusBadRequest},
		{NewInvalidInputError("bad json", cause), CodeInvalidInput, http.StatusBadRequest},
		{NewNotFoundError("missing"), CodeNotFound, http.StatusNotFound},
		{NewConflictError("stale"), CodeConflict, http.StatusConflict},
		{NewPartialReconciliationError("half done", "01HX", cause), CodePartialReconciliation, http.StatusInternalServerError},
		{NewStorageUnavailableError("down", cause), CodeStorageUnavailable, http.StatusServiceUnavailable},
		{NewInternalError("oops", cause), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode)
		})
	}
}

func TestPartialReconciliationCarriesEntryID(t *testing.T) {
	err := NewPartialReconciliationError("half done", "01HX", stderrors.New("write failed"))

	assert.Equal(t, "01HX", err.Details["entryId"])
	assert.EqualError(t, err, "PARTIAL_RECONCILIATION: half done: write failed")
}

func TestWrappingAndMatching(t *testing.T) {
	cause := stderrors.New("timeout")
	wrapped := fmt.Errorf("list entries: %w", NewStorageUnavailableError("ledger unavailable", cause))

	assert.True(t, HasCode(wrapped, CodeStorageUnavailable))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(cause, CodeStorageUnavailable))
	assert.False(t, HasCode(nil, CodeInternal))
	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, NewStorageUnavailableError("any message", nil))
}

func TestWithDetailDoesNotShareMaps(t *testing.T) {
	base := NewConflictError("stale")
	a := base.WithDetail("currentVersion", int64(3))
	b := a.WithDetail("other", true)

	assert.Nil(t, base.Details)
	assert.Len(t, a.Details, 1)
	assert.Len(t, b.Details, 2)
	assert.EqualError(t, a, "CONFLICT: stale")
}
