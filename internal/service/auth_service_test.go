package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/platform/session"
	"github.com/mydiary/mall-server/pkg/events"
)

func registerReq(email string) domain.RegisterRequest {
	return domain.RegisterRequest{
		Email:    email,
		Password: "pw123456",
		Name:     "Ann",
		Phone:    "010-1234-5678",
		Address:  "Seoul",
	}
}

// registerVerified creates an account and verifies it through the mailed token.
func registerVerified(t *testing.T, f *accountFixture, email string) *domain.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), registerReq(email))
	require.NoError(t, err)
	require.NoError(t, f.auth.VerifyEmail(context.Background(), f.notifier.Last().Token))
	return u
}

func TestRegister_StoresHashAndMailsToken(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	u, err := f.auth.Register(ctx, registerReq(" A@X.com "))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, u.ID, int64(10000))
	assert.LessOrEqual(t, u.ID, int64(99999))

	stored, err := f.users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, stored.ID)
	assert.NotEqual(t, "pw123456", stored.PasswordHash)
	assert.False(t, stored.EmailVerified)
	require.NotNil(t, stored.TokenExpiration)
	assert.Equal(t, f.clock.Now().Add(3*time.Hour), *stored.TokenExpiration)

	mail := f.notifier.Last()
	assert.Equal(t, "verification", mail.Kind)
	assert.Equal(t, "a@x.com", mail.To)
	assert.Equal(t, *stored.VerificationToken, mail.Token)
	assert.Contains(t, f.publisher.Subjects(), events.UserRegistered)
}

func TestRegister_Conflicts(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, registerReq("a@x.com"))
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, registerReq("A@x.com"))
	assert.ErrorIs(t, err, domain.ErrConflict)

	req := registerReq("b@x.com")
	req.Phone = "01012345678"
	_, err = f.auth.Register(ctx, req)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	f := newAccountFixture(t)
	req := registerReq("a@x.com")
	req.Password = "short"
	_, err := f.auth.Register(context.Background(), req)

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "password", ve.Field)
}

func TestRegister_MailFailureKeepsAccount(t *testing.T) {
	f := newAccountFixture(t)
	f.notifier.Err = errors.New("smtp down")

	_, err := f.auth.Register(context.Background(), registerReq("a@x.com"))
	require.Error(t, err)

	_, err = f.users.FindByEmail(context.Background(), "a@x.com")
	assert.NoError(t, err)
}

func TestVerifyEmail_Lifecycle(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u, err := f.auth.Register(ctx, registerReq("a@x.com"))
	require.NoError(t, err)
	token := f.notifier.Last().Token

	assert.ErrorIs(t, f.auth.VerifyEmail(ctx, "nope"), domain.ErrNotFound)
	assert.ErrorIs(t, f.auth.VerifyEmail(ctx, ""), domain.ErrValidation)

	require.NoError(t, f.auth.VerifyEmail(ctx, token))
	assert.True(t, f.users.Get(u.ID).EmailVerified)

	// A second click before expiry succeeds.
	require.NoError(t, f.auth.VerifyEmail(ctx, token))
}

func TestVerifyEmail_ExpiredTokenIsGone(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u, err := f.auth.Register(ctx, registerReq("a@x.com"))
	require.NoError(t, err)

	f.clock.Advance(3*time.Hour + time.Second)
	assert.ErrorIs(t, f.auth.VerifyEmail(ctx, f.notifier.Last().Token), domain.ErrGone)
	assert.False(t, f.users.Get(u.ID).EmailVerified)
}

func TestResendVerification(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u, err := f.auth.Register(ctx, registerReq("a@x.com"))
	require.NoError(t, err)
	first := f.notifier.Last().Token

	require.NoError(t, f.auth.ResendVerification(ctx, "nobody@x.com"))
	assert.Len(t, f.notifier.Sent, 1)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.auth.ResendVerification(ctx, "a@x.com"))
	second := f.notifier.Last().Token
	assert.NotEqual(t, first, second)
	assert.Equal(t, f.clock.Now().Add(3*time.Hour), *f.users.Get(u.ID).TokenExpiration)

	assert.ErrorIs(t, f.auth.VerifyEmail(ctx, first), domain.ErrNotFound)
	require.NoError(t, f.auth.VerifyEmail(ctx, second))
	assert.ErrorIs(t, f.auth.ResendVerification(ctx, "a@x.com"), domain.ErrConflict)
}

func TestLogin_States(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, registerReq("a@x.com"))
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	assert.ErrorIs(t, err, domain.ErrEmailNotVerified)

	require.NoError(t, f.auth.VerifyEmail(ctx, f.notifier.Last().Token))

	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "ghost@x.com", Password: "pw123456"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	sess, err := f.auth.Login(ctx, domain.LoginRequest{Email: "A@X.com", Password: "pw123456"})
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	assert.ErrorIs(t, err, domain.ErrAlreadyLoggedIn)

	require.NoError(t, f.auth.Logout(ctx, sess.ID))
	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	assert.NoError(t, err)
}

func TestLogout_Idempotent(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := registerVerified(t, f, "a@x.com")

	sess, err := f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	require.True(t, f.users.Get(u.ID).IsLoggedIn)

	require.NoError(t, f.auth.Logout(ctx, sess.ID))
	assert.False(t, f.users.Get(u.ID).IsLoggedIn)
	assert.NoError(t, f.auth.Logout(ctx, sess.ID))
	assert.NoError(t, f.auth.Logout(ctx, ""))

	_, err = f.auth.Authenticate(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticate_SlidesSessionAndActivity(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := registerVerified(t, f, "a@x.com")

	sess, err := f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	id, err := f.auth.Authenticate(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, f.clock.Now(), f.users.Get(u.ID).LastActivity)

	f.clock.Advance(20 * time.Minute)
	_, err = f.auth.Authenticate(ctx, sess.ID)
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)
	_, err = f.auth.Authenticate(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticate_RejectsSessionOfLoggedOutUser(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := registerVerified(t, f, "a@x.com")

	sess, err := f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	// The flag is cleared outside the session store, as the idle sweep does.
	require.NoError(t, f.users.Logout(ctx, u.ID))

	_, err = f.auth.Authenticate(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.sessions.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	assert.NoError(t, err)
}

func TestAvailabilityAndLookup(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := registerVerified(t, f, "annie@x.com")

	assert.ErrorIs(t, f.auth.EmailAvailable(ctx, "ANNIE@x.com"), domain.ErrConflict)
	assert.NoError(t, f.auth.EmailAvailable(ctx, "other@x.com"))
	assert.ErrorIs(t, f.auth.PhoneAvailable(ctx, "010 1234 5678"), domain.ErrConflict)
	assert.NoError(t, f.auth.PhoneAvailable(ctx, "010-9999-0000"))

	name, err := f.auth.UserName(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", name)

	info, err := f.auth.UserInfo(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "annie@x.com", info.Email)

	_, err = f.auth.UserName(ctx, 12)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	masked, err := f.auth.FindAccount(ctx, domain.FindAccountRequest{Name: "Ann", Phone: "01012345678"})
	require.NoError(t, err)
	assert.Equal(t, "an***@x.com", masked)

	_, err = f.auth.FindAccount(ctx, domain.FindAccountRequest{Name: "Bob", Phone: "01012345678"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
