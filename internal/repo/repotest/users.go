// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/repo/postgres"
)

type Users struct {
	mu     sync.Mutex
	byID   map[int64]*domain.User
	nextID int64
}

func NewUsers() *Users {
	return &Users{byID: make(map[int64]*domain.User), nextID: postgres.MinUserID}
}

func clone(u *domain.User) *domain.User {
	c := *u
	if u.VerificationToken != nil {
		t := *u.VerificationToken
		c.VerificationToken = &t
	}
	if u.TokenExpiration != nil {
		e := *u.TokenExpiration
		c.TokenExpiration = &e
	}
	return &c
}

// Put stores u as-is, for seeding.
func (r *Users) Put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = clone(u)
}

// Get returns a copy of the stored row, or nil.
func (r *Users) Get(id int64) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil
	}
	return clone(u)
}

func (r *Users) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if domain.NormalizeEmail(existing.Email) == domain.NormalizeEmail(u.Email) {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		if domain.NormalizePhone(existing.Phone) == domain.NormalizePhone(u.Phone) {
			return fmt.Errorf("phone already registered: %w", domain.ErrConflict)
		}
	}
	u.ID = r.nextID
	r.nextID++
	r.byID[u.ID] = clone(u)
	return nil
}

func (r *Users) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

func (r *Users) FindByID(_ context.Context, id int64) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *Users) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	return r.find(func(u *domain.User) bool { return domain.NormalizeEmail(u.Email) == email })
}

func (r *Users) FindByPhone(_ context.Context, phone string) (*domain.User, error) {
	phone = domain.NormalizePhone(phone)
	return r.find(func(u *domain.User) bool { return domain.NormalizePhone(u.Phone) == phone })
}

func (r *Users) FindByVerificationToken(_ context.Context, token string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.VerificationToken != nil && *u.VerificationToken == token })
}

func (r *Users) update(id int64, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	fn(u)
	return nil
}

func (r *Users) SetVerificationToken(_ context.Context, id int64, token string, expires time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.VerificationToken = &token
		u.TokenExpiration = &expires
	})
}

func (r *Users) MarkVerified(_ context.Context, id int64) error {
	return r.update(id, func(u *domain.User) { u.EmailVerified = true })
}

func (r *Users) UpdatePassword(_ context.Context, id int64, hash string) error {
	return r.update(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (r *Users) TryLogin(_ context.Context, id int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.IsLoggedIn {
		return false, nil
	}
	u.IsLoggedIn = true
	u.LastActivity = now
	return true, nil
}

func (r *Users) Logout(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.IsLoggedIn = false
	}
	return nil
}

func (r *Users) TouchActivity(_ context.Context, id int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || !u.IsLoggedIn {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	u.LastActivity = now
	return nil
}

func (r *Users) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}

func (r *Users) DeleteExpiredUnverified(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, u := range r.byID {
		if !u.EmailVerified && u.TokenExpiration != nil && u.TokenExpiration.Before(now) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

func (r *Users) LogoutIdle(_ context.Context, cutoff time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0)
	for id, u := range r.byID {
		if u.IsLoggedIn && u.LastActivity.Before(cutoff) {
			u.IsLoggedIn = false
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

var _ postgres.UserRepo = (*Users)(nil)
