package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydiary/mall-server/internal/domain"
)

func TestFromError_Mapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{domain.Invalid("email", "is required"), http.StatusBadRequest, CodeInvalidInput, "email is required"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password"},
		{domain.ErrAlreadyLoggedIn, http.StatusConflict, CodeAlreadyLoggedIn, "already logged in on another device"},
		{domain.ErrEmailNotVerified, http.StatusForbidden, CodeEmailNotVerified, "email not verified"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized, "authentication required"},
		{fmt.Errorf("userId does not match session: %w", domain.ErrForbidden), http.StatusForbidden, CodeForbidden, "userId does not match session"},
		{fmt.Errorf("user: %w", domain.ErrNotFound), http.StatusNotFound, CodeNotFound, "not found"},
		{fmt.Errorf("email already registered: %w", domain.ErrConflict), http.StatusConflict, CodeConflict, "email already registered"},
		{fmt.Errorf("verification token expired: %w", domain.ErrGone), http.StatusGone, CodeGone, "verification token expired"},
		{domain.ErrGone, http.StatusGone, CodeGone, "gone"},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, CodeInternalError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}

func TestFromError_ValidationCarriesField(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, httptest.NewRequest(http.MethodPost, "/", nil), domain.Invalid("password", "must be at least 8 characters"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "password", body.Field)
}
