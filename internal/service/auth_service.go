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

// Notifier sends the account mails carrying verification and reset links.
type Notifier interface {
	SendVerification(ctx context.Context, toEmail, name, token string, expires time.Time) error
	SendPasswordReset(ctx context.Context, toEmail, name, token string, expires time.Time) error
}

type AuthService interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, req domain.LoginRequest) (*session.Session, error)
	Logout(ctx context.Context, sessionID string) error
	// Authenticate resolves a session id to its user and slides the session forward.
	Authenticate(ctx context.Context, sessionID string) (int64, error)
	EmailAvailable(ctx context.Context, email string) error
	PhoneAvailable(ctx context.Context, phone string) error
	UserName(ctx context.Context, userID int64) (string, error)
	UserInfo(ctx context.Context, userID int64) (*domain.UserInfo, error)
	FindAccount(ctx context.Context, req domain.FindAccountRequest) (string, error)
}

type authService struct {
	users      postgres.UserRepo
	sessions   session.Store
	hasher     auth.PasswordHasher
	issuer     auth.Issuer
	notifier   Notifier
	publisher  events.Publisher
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAuthService(
	users postgres.UserRepo,
	sessions session.Store,
	hasher auth.PasswordHasher,
	issuer auth.Issuer,
	notifier Notifier,
	publisher events.Publisher,
	sessionTTL time.Duration,
) AuthService {
	return &authService{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		issuer:     issuer,
		notifier:   notifier,
		publisher:  publisher,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	if err := s.PhoneAvailable(ctx, req.Phone); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token, err := auth.NewVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("verification token: %w", err)
	}

	now := s.now()
	expires := s.issuer.VerificationExpiry(now)
	u := &domain.User{
		Email:             req.Email,
		PasswordHash:      hash,
		Name:              req.Name,
		Phone:             req.Phone,
		Address:           req.Address,
		VerificationToken: &token,
		TokenExpiration:   &expires,
		LastActivity:      now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	ctx = logger.WithUser(ctx, u.ID)
	logger.InfoContext(ctx, "Account registered")
	events.Emit(ctx, s.publisher, events.UserRegistered, events.UserEvent{UserID: u.ID, OccurredAt: now})

	// The account stays committed when mail fails; the client can ask for a resend.
	if err := s.notifier.SendVerification(ctx, u.Email, u.Name, token, expires); err != nil {
		logger.ErrorContext(ctx, "Failed to send verification email", "error", err)
		return nil, fmt.Errorf("send verification email: %w", err)
	}
	return u, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return domain.Invalid("token", "is required")
	}
	u, err := s.users.FindByVerificationToken(ctx, token)
	if err != nil {
		return err
	}
	ctx = logger.WithUser(ctx, u.ID)

	now := s.now()
	if u.TokenExpiration == nil || now.After(*u.TokenExpiration) {
		logger.InfoContext(ctx, "Expired verification token used")
		return fmt.Errorf("verification token expired: %w", domain.ErrGone)
	}
	if u.EmailVerified {
		return nil
	}
	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	logger.InfoContext(ctx, "Email verified")
	events.Emit(ctx, s.publisher, events.UserVerified, events.UserEvent{UserID: u.ID, OccurredAt: now})
	return nil
}

// ResendVerification stays silent for unknown emails so it cannot be used to probe accounts.
func (s *authService) ResendVerification(ctx context.Context, email string) error {
	req := domain.EmailRequest{Email: domain.NormalizeEmail(email)}
	if err := domain.Validate(req); err != nil {
		return err
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return fmt.Errorf("email already verified: %w", domain.ErrConflict)
	}

	token, err := auth.NewVerificationToken()
	if err != nil {
		return err
	}
	expires := s.issuer.VerificationExpiry(s.now())
	if err := s.users.SetVerificationToken(ctx, u.ID, token, expires); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	ctx = logger.WithUser(ctx, u.ID)
	if err := s.notifier.SendVerification(ctx, u.Email, u.Name, token, expires); err != nil {
		logger.ErrorContext(ctx, "Failed to resend verification email", "error", err)
		return fmt.Errorf("send verification email: %w", err)
	}
	logger.InfoContext(ctx, "Verification email re-sent")
	return nil
}

// Login checks the password before account state, so state is only revealed to
// callers who know the password.
func (s *authService) Login(ctx context.Context, req domain.LoginRequest) (*session.Session, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		logger.InfoContext(ctx, "Login failed: unknown email")
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ctx = logger.WithUser(ctx, u.ID)

	ok, err := s.hasher.Verify(req.Password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		logger.InfoContext(ctx, "Login failed: wrong password")
		return nil, domain.ErrInvalidCredentials
	}
	if !u.EmailVerified {
		logger.InfoContext(ctx, "Login failed: email not verified")
		return nil, domain.ErrEmailNotVerified
	}

	now := s.now()
	flipped, err := s.users.TryLogin(ctx, u.ID, now)
	if err != nil {
		return nil, fmt.Errorf("set login flag: %w", err)
	}
	if !flipped {
		logger.InfoContext(ctx, "Login failed: already logged in")
		return nil, domain.ErrAlreadyLoggedIn
	}

	sess, err := s.sessions.Create(ctx, u.ID, s.sessionTTL)
	if err != nil {
		if lerr := s.users.Logout(ctx, u.ID); lerr != nil {
			logger.ErrorContext(ctx, "Failed to roll back login flag", "error", lerr)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	logger.InfoContext(ctx, "Login successful")
	events.Emit(ctx, s.publisher, events.UserLoggedIn, events.UserEvent{UserID: u.ID, OccurredAt: now})
	return sess, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	ctx = logger.WithUser(ctx, sess.UserID)
	if err := s.users.Logout(ctx, sess.UserID); err != nil {
		return fmt.Errorf("clear login flag: %w", err)
	}
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	logger.InfoContext(ctx, "Logout successful")
	events.Emit(ctx, s.publisher, events.UserLoggedOut, events.UserEvent{UserID: sess.UserID, OccurredAt: s.now()})
	return nil
}

func (s *authService) Authenticate(ctx context.Context, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, domain.ErrUnauthorized
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return 0, domain.ErrUnauthorized
	}
	if err != nil {
		return 0, err
	}

	if err := s.sessions.Touch(ctx, sessionID, s.sessionTTL); err != nil && !errors.Is(err, session.ErrNotFound) {
		return 0, err
	}
	// A session whose user was logged out elsewhere (sweeper, password change) is stale.
	err = s.users.TouchActivity(ctx, sess.UserID, s.now())
	if errors.Is(err, domain.ErrNotFound) {
		if derr := s.sessions.Destroy(ctx, sessionID); derr != nil {
			logger.ErrorContext(logger.WithUser(ctx, sess.UserID), "Failed to destroy stale session", "error", derr)
		}
		return 0, domain.ErrUnauthorized
	}
	if err != nil {
		return 0, fmt.Errorf("touch activity: %w", err)
	}
	return sess.UserID, nil
}

func (s *authService) EmailAvailable(ctx context.Context, email string) error {
	_, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	default:
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
}

func (s *authService) PhoneAvailable(ctx context.Context, phone string) error {
	_, err := s.users.FindByPhone(ctx, phone)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	default:
		return fmt.Errorf("phone already registered: %w", domain.ErrConflict)
	}
}

func (s *authService) UserName(ctx context.Context, userID int64) (string, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

func (s *authService) UserInfo(ctx context.Context, userID int64) (*domain.UserInfo, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	info := u.Info()
	return &info, nil
}

func (s *authService) FindAccount(ctx context.Context, req domain.FindAccountRequest) (string, error) {
	if err := domain.Validate(req); err != nil {
		return "", err
	}
	u, err := s.users.FindByPhone(ctx, req.Phone)
	if err != nil {
		return "", err
	}
	if u.Name != req.Name {
		return "", fmt.Errorf("account: %w", domain.ErrNotFound)
	}
	logger.InfoContext(logger.WithUser(ctx, u.ID), "Account lookup matched")
	return domain.MaskEmail(u.Email), nil
}
