package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ReportsJSONFieldName(t *testing.T) {
	err := Validate(RegisterRequest{
		Email:    "not-an-email",
		Password: "pw123456",
		Name:     "Ann",
		Phone:    "010-1234-5678",
		Address:  "Seoul",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "email", ve.Field)
}

func TestValidate_MissingFields(t *testing.T) {
	err := Validate(RegisterRequest{Email: "a@x.com"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "password", ve.Field)
	assert.Equal(t, "is required", ve.Reason)
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(RegisterRequest{
		Email:    "a@x.com",
		Password: "pw123456",
		Name:     "Ann",
		Phone:    "010-1234-5678",
		Address:  "Seoul",
	}))
	assert.NoError(t, Validate(OrderStatusRequest{Status: "completed"}))
	assert.Error(t, Validate(OrderStatusRequest{Status: "pending"}))
}

func TestValidate_PasswordByteLimitAndPhoneDigits(t *testing.T) {
	req := RegisterRequest{
		Email:    "a@x.com",
		Password: strings.Repeat("비", 24),
		Name:     "Ann",
		Phone:    "010-1234-5678",
		Address:  "Seoul",
	}
	assert.NoError(t, Validate(req), "24 Hangul syllables are exactly 72 bytes")

	req.Password = strings.Repeat("비", 25)
	var ve *ValidationError
	require.True(t, errors.As(Validate(req), &ve))
	assert.Equal(t, "password", ve.Field)
	assert.Equal(t, "must be at most 72 bytes", ve.Reason)

	req.Password = "pw123456"
	req.Phone = "---"
	require.True(t, errors.As(Validate(req), &ve))
	assert.Equal(t, "phone", ve.Field)

	upd := UpdatePasswordRequest{UserID: 12345, NewPassword: strings.Repeat("비", 30)}
	require.True(t, errors.As(Validate(upd), &ve))
	assert.Equal(t, "newPassword", ve.Field)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com "))
	assert.Equal(t, "01012345678", NormalizePhone("010-1234-5678"))
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"annie@x.com": "an***@x.com",
		"ab@x.com":    "a***@x.com",
		"a@x.com":     "a***@x.com",
		"broken":      "***",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}

func TestOrderStatus_CanTransition(t *testing.T) {
	assert.True(t, OrderPending.CanTransition(OrderCompleted))
	assert.True(t, OrderPending.CanTransition(OrderCanceled))
	assert.False(t, OrderCompleted.CanTransition(OrderCanceled))
	assert.False(t, OrderCanceled.CanTransition(OrderPending))
	assert.False(t, OrderPending.CanTransition(OrderPending))
}
