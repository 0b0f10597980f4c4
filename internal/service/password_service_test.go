package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/repo/repotest"
	"github.com/mydiary/mall-server/pkg/events"
)

func resetReq() domain.PasswordResetRequest {
	return domain.PasswordResetRequest{Email: "a@x.com", Name: "Ann", Phone: "010-1234-5678"}
}

func TestRequestReset_RequiresMatchingIdentity(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	registerVerified(t, f, "a@x.com")

	bad := resetReq()
	bad.Name = "Bob"
	assert.ErrorIs(t, f.passwords.RequestReset(ctx, bad), domain.ErrNotFound)

	bad = resetReq()
	bad.Email = "ghost@x.com"
	assert.ErrorIs(t, f.passwords.RequestReset(ctx, bad), domain.ErrNotFound)

	require.NoError(t, f.passwords.RequestReset(ctx, resetReq()))
	mail := f.notifier.Last()
	assert.Equal(t, "reset", mail.Kind)
	assert.Len(t, mail.Token, 40)
	assert.Equal(t, f.clock.Now().Add(time.Hour), mail.Expires)
}

func TestPasswordReset_FullFlow(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := registerVerified(t, f, "a@x.com")

	sess, err := f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	require.NoError(t, f.passwords.RequestReset(ctx, resetReq()))
	token := f.notifier.Last().Token

	userID, grant, err := f.passwords.VerifyResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)
	require.NotEmpty(t, grant)

	err = f.passwords.UpdatePassword(ctx, domain.UpdatePasswordRequest{
		UserID: u.ID, NewPassword: "new-secret-1", ResetGrant: grant,
	}, 0)
	require.NoError(t, err)

	// Every session ends with the password change.
	_, err = f.auth.Authenticate(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, f.users.Get(u.ID).IsLoggedIn)

	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "new-secret-1"})
	assert.NoError(t, err)

	// The token and its grant are single use.
	_, _, err = f.passwords.VerifyResetToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrGone)
	err = f.passwords.UpdatePassword(ctx, domain.UpdatePasswordRequest{
		UserID: u.ID, NewPassword: "new-secret-2", ResetGrant: grant,
	}, 0)
	assert.ErrorIs(t, err, domain.ErrGone)

	assert.Contains(t, f.publisher.Subjects(), events.UserPasswordChanged)
}

func TestVerifyResetToken_ExpiredAndUnknown(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	registerVerified(t, f, "a@x.com")
	require.NoError(t, f.passwords.RequestReset(ctx, resetReq()))

	_, _, err := f.passwords.VerifyResetToken(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.clock.Advance(time.Hour + time.Second)
	_, _, err = f.passwords.VerifyResetToken(ctx, f.notifier.Last().Token)
	assert.ErrorIs(t, err, domain.ErrGone)
}

func TestUpdatePassword_Authorization(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := registerVerified(t, f, "a@x.com")

	req := domain.UpdatePasswordRequest{UserID: u.ID, NewPassword: "new-secret-1"}
	assert.ErrorIs(t, f.passwords.UpdatePassword(ctx, req, 0), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.passwords.UpdatePassword(ctx, req, u.ID+1), domain.ErrForbidden)

	bad := req
	bad.ResetGrant = "not-a-jwt"
	assert.ErrorIs(t, f.passwords.UpdatePassword(ctx, bad, 0), domain.ErrUnauthorized)

	require.NoError(t, f.passwords.RequestReset(ctx, resetReq()))
	_, grant, err := f.passwords.VerifyResetToken(ctx, f.notifier.Last().Token)
	require.NoError(t, err)
	other := domain.UpdatePasswordRequest{UserID: u.ID + 1, NewPassword: "new-secret-1", ResetGrant: grant}
	assert.ErrorIs(t, f.passwords.UpdatePassword(ctx, other, 0), domain.ErrForbidden)

	require.NoError(t, f.passwords.UpdatePassword(ctx, req, u.ID))
	_, err = f.auth.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "new-secret-1"})
	assert.NoError(t, err)
}

type failingPasswordWrites struct {
	*repotest.Users
}

func (failingPasswordWrites) UpdatePassword(context.Context, int64, string) error {
	return errors.New("connection reset")
}

func TestUpdatePassword_FailedWriteKeepsToken(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := registerVerified(t, f, "a@x.com")

	require.NoError(t, f.passwords.RequestReset(ctx, resetReq()))
	token := f.notifier.Last().Token
	_, grant, err := f.passwords.VerifyResetToken(ctx, token)
	require.NoError(t, err)
	req := domain.UpdatePasswordRequest{UserID: u.ID, NewPassword: "new-secret-1", ResetGrant: grant}

	f.passwords.users = failingPasswordWrites{f.users}
	assert.Error(t, f.passwords.UpdatePassword(ctx, req, 0))
	stored, err := f.tokens.Find(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, stored.ConsumedAt)

	f.passwords.users = f.users
	require.NoError(t, f.passwords.UpdatePassword(ctx, req, 0))
	stored, err = f.tokens.Find(ctx, token)
	require.NoError(t, err)
	assert.NotNil(t, stored.ConsumedAt)
}

func TestUpdatePassword_RejectsPasswordOverBcryptLimit(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := registerVerified(t, f, "a@x.com")

	req := domain.UpdatePasswordRequest{UserID: u.ID, NewPassword: strings.Repeat("비", 30)}
	err := f.passwords.UpdatePassword(ctx, req, u.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
