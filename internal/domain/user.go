package domain

import (
	"strings"
	"time"
)

// User holds plaintext PII; the repository encrypts email and phone at rest.
type User struct {
	ID                int64
	Email             string
	PasswordHash      string
	Name              string
	Phone             string
	Address           string
	EmailVerified     bool
	VerificationToken *string
	TokenExpiration   *time.Time
	IsLoggedIn        bool
	LastActivity      time.Time
	CreatedAt         time.Time
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,max=20,phone"`
	Address  string `json:"address" validate:"required,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type FindAccountRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

type UpdatePasswordRequest struct {
	UserID      int64  `json:"userId" validate:"required,gt=0"`
	NewPassword string `json:"newPassword" validate:"required,min=8,maxbytes=72"`
	ResetGrant  string `json:"resetGrant"`
}

type UserInfo struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, Name: u.Name, Phone: u.Phone, Address: u.Address}
}

type PasswordResetToken struct {
	Token      string
	UserID     int64
	Expiration time.Time
	ConsumedAt *time.Time
}

// NormalizeEmail is applied before encryption and blind indexing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps digits only so "010-1234-5678" and "01012345678" match.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskEmail hides most of the local part: "annie@x.com" becomes "an***@x.com".
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local, host := email[:at], email[at:]
	keep := 2
	if len(local) <= keep {
		keep = 1
	}
	return local[:keep] + strings.Repeat("*", 3) + host
}
