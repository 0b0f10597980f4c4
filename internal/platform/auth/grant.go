package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	grantAudience = "mall-api"
	scopeReset    = "password.reset"
)

var ErrInvalidGrant = errors.New("invalid reset grant")

// ResetClaims authorise a single password change. ID carries the reset token.
type ResetClaims struct {
	Sub   int64  `json:"sub"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

type Grants struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGrants(secret string, ttl time.Duration) *Grants {
	return &Grants{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (g *Grants) NewResetGrant(userID int64, resetToken string) (string, error) {
	now := g.now()
	claims := ResetClaims{
		Sub:   userID,
		Scope: scopeReset,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        resetToken,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			Audience:  []string{grantAudience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

func (g *Grants) ParseResetGrant(raw string) (*ResetClaims, error) {
	tok, err := jwt.ParseWithClaims(raw, &ResetClaims{}, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(grantAudience),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidGrant, err)
	}
	claims, ok := tok.Claims.(*ResetClaims)
	if !ok || !tok.Valid || claims.Scope != scopeReset || claims.ID == "" {
		return nil, ErrInvalidGrant
	}
	return claims, nil
}
