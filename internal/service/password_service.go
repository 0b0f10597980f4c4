package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/platform/auth"
	"github.com/mydiary/mall-server/internal/platform/session"
	"github.com/mydiary/mall-server/internal/repo/postgres"
	"github.com/mydiary/mall-server/pkg/events"
	"github.com/mydiary/mall-server/pkg/logger"
)

type PasswordService interface {
	RequestReset(ctx context.Context, req domain.PasswordResetRequest) error
	// VerifyResetToken checks a mailed token and exchanges it for a short-lived grant.
	VerifyResetToken(ctx context.Context, token string) (userID int64, grant string, err error)
	// UpdatePassword needs either a grant for req.UserID or a session of that user.
	UpdatePassword(ctx context.Context, req domain.UpdatePasswordRequest, sessionUserID int64) error
}

type passwordService struct {
	users     postgres.UserRepo
	tokens    postgres.ResetTokenRepo
	sessions  session.Store
	hasher    auth.PasswordHasher
	issuer    auth.Issuer
	grants    *auth.Grants
	notifier  Notifier
	publisher events.Publisher
	now       func() time.Time
}

func NewPasswordService(
	users postgres.UserRepo,
	tokens postgres.ResetTokenRepo,
	sessions session.Store,
	hasher auth.PasswordHasher,
	issuer auth.Issuer,
	grants *auth.Grants,
	notifier Notifier,
	publisher events.Publisher,
) PasswordService {
	return &passwordService{
		users:     users,
		tokens:    tokens,
		sessions:  sessions,
		hasher:    hasher,
		issuer:    issuer,
		grants:    grants,
		notifier:  notifier,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *passwordService) RequestReset(ctx context.Context, req domain.PasswordResetRequest) error {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := domain.Validate(req); err != nil {
		return err
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if u.Name != req.Name || domain.NormalizePhone(u.Phone) != domain.NormalizePhone(req.Phone) {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	ctx = logger.WithUser(ctx, u.ID)

	token, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	t := &domain.PasswordResetToken{Token: token, UserID: u.ID, Expiration: s.issuer.ResetExpiry(s.now())}
	if err := s.tokens.Create(ctx, t); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, u.Email, u.Name, token, t.Expiration); err != nil {
		logger.ErrorContext(ctx, "Failed to send password reset email", "error", err)
		return fmt.Errorf("send reset email: %w", err)
	}
	logger.InfoContext(ctx, "Password reset requested")
	return nil
}

func (s *passwordService) VerifyResetToken(ctx context.Context, token string) (int64, string, error) {
	if token == "" {
		return 0, "", domain.Invalid("token", "is required")
	}
	t, err := s.tokens.Find(ctx, token)
	if err != nil {
		logger.InfoContext(ctx, "Unknown reset token used", "user_id", logger.SystemActor)
		return 0, "", err
	}
	ctx = logger.WithUser(ctx, t.UserID)

	if t.ConsumedAt != nil {
		logger.InfoContext(ctx, "Consumed reset token used")
		return 0, "", fmt.Errorf("reset token already used: %w", domain.ErrGone)
	}
	if s.now().After(t.Expiration) {
		logger.InfoContext(ctx, "Expired reset token used")
		return 0, "", fmt.Errorf("reset token expired: %w", domain.ErrGone)
	}

	grant, err := s.grants.NewResetGrant(t.UserID, t.Token)
	if err != nil {
		return 0, "", fmt.Errorf("issue reset grant: %w", err)
	}
	logger.InfoContext(ctx, "Reset token verified")
	return t.UserID, grant, nil
}

func (s *passwordService) UpdatePassword(ctx context.Context, req domain.UpdatePasswordRequest, sessionUserID int64) error {
	if err := domain.Validate(req); err != nil {
		return err
	}
	ctx = logger.WithUser(ctx, req.UserID)
	now := s.now()

	var resetToken string
	switch {
	case req.ResetGrant != "":
		claims, err := s.grants.ParseResetGrant(req.ResetGrant)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		}
		if claims.Sub != req.UserID {
			return fmt.Errorf("grant issued for another user: %w", domain.ErrForbidden)
		}
		t, err := s.tokens.Find(ctx, claims.ID)
		if err != nil {
			return err
		}
		if t.ConsumedAt != nil || !now.Before(t.Expiration) {
			return fmt.Errorf("reset token already used or expired: %w", domain.ErrGone)
		}
		resetToken = t.Token
	case sessionUserID != 0:
		if sessionUserID != req.UserID {
			return fmt.Errorf("session belongs to another user: %w", domain.ErrForbidden)
		}
	default:
		return domain.ErrUnauthorized
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, req.UserID, hash); err != nil {
		return err
	}

	// The token is burned only once the new password is stored, so a failed
	// write leaves the mailed link usable.
	if resetToken != "" {
		consumed, err := s.tokens.Consume(ctx, resetToken, now)
		if err != nil {
			return fmt.Errorf("consume reset token: %w", err)
		}
		if !consumed {
			logger.WarnContext(ctx, "Reset token consumed concurrently")
		}
	}

	// A changed password ends every session of the account.
	if err := s.users.Logout(ctx, req.UserID); err != nil {
		return fmt.Errorf("clear login flag: %w", err)
	}
	if err := s.sessions.DestroyUser(ctx, req.UserID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("destroy sessions: %w", err)
	}

	logger.InfoContext(ctx, "Password updated")
	events.Emit(ctx, s.publisher, events.UserPasswordChanged, events.UserEvent{UserID: req.UserID, OccurredAt: now})
	return nil
}
