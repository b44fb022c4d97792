package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorFormat(t *testing.T) {
	appErr := NewAppError(ErrCodeValidationMissingField, "message_id is required", nil)
	assert.Equal(t, "validation_missing_required_field: message_id is required", appErr.Error())
}

func TestAppError_UnwrapAndAs(t *testing.T) {
	underlying := errors.New("connection reset")
	appErr := NewAppError(ErrCodeInternalDB, "failed to list messages", underlying)
	wrapped := fmt.Errorf("refresh: %w", appErr)

	assert.ErrorIs(t, wrapped, underlying)

	var target *AppError
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, ErrCodeInternalDB, target.Code)
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidPayload, http.StatusBadRequest},
		{ErrCodeValidationInvalidReadFlag, http.StatusBadRequest},
		{ErrCodeNotFoundMessage, http.StatusNotFound},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeConflictDisplayRejected, http.StatusConflict},
		{ErrCodeUpstreamSync, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestAppError_WithDetailsDoesNotMutateOriginal(t *testing.T) {
	orig := &AppError{Code: ErrCodeValidationInvalidContent, Message: "bad", Details: map[string]any{"a": 1}}
	withMore := orig.WithDetails(map[string]any{"b": 2})

	assert.Len(t, orig.Details, 1)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, withMore.Details)
}
