package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"labdesk/internal/domain"
	"labdesk/internal/handler"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"wrapped not found", fmt.Errorf("test request tr-9: %w", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"remote 404 is not a gateway error", fmt.Errorf("lab api download invoice: %w", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"receipt too large stays a validation error",
			domain.NewValidationError("receipt", "receipt must not exceed 5 MB").WithCause(domain.ErrFileTooLarge),
			http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"bare file too large", domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"upload failed", fmt.Errorf("%w: timeout", domain.ErrUploadFailed), http.StatusBadGateway, "UPLOAD_FAILED"},
		{"remote", &domain.RemoteError{Op: "mark paid", StatusCode: 500}, http.StatusBadGateway, "REMOTE_UNAVAILABLE"},
		{"nothing to retry", domain.ErrNoPendingRemote, http.StatusConflict, "NO_PENDING_REMOTE_WRITES"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := handler.MapDomainError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
