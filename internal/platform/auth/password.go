package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// Passwords hashes with the configured algorithm and verifies hashes of
// either kind, so switching PASSWORD_HASHER does not lock out old accounts.
type Passwords struct {
	algo string
	cost int
}

func NewPasswords(algo string, cost int) (*Passwords, error) {
	switch algo {
	case HasherBcrypt:
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
		}
	case HasherArgon2id:
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algo)
	}
	return &Passwords{algo: algo, cost: cost}, nil
}

func (p *Passwords) Hash(password string) (string, error) {
	if p.algo == HasherArgon2id {
		return argon2id.CreateHash(password, argon2id.DefaultParams)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *Passwords) Verify(password, hash string) (bool, error) {
	if strings.HasPrefix(hash, "$argon2id$") {
		return argon2id.ComparePasswordAndHash(password, hash)
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ PasswordHasher = (*Passwords)(nil)
