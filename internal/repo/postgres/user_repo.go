package postgres

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/platform/crypto"
)

const (
	MinUserID = 10000
	MaxUserID = 99999

	// maxIDAttempts bounds rejection sampling of user ids. With n accounts the
	// chance of exhausting all attempts is (n/90000)^32: about 1e-10 at half
	// capacity and 3e-2 at 90% (81000 accounts).
	maxIDAttempts = 32
)

var ErrIDSpaceExhausted = errors.New("could not allocate a free user id")

type UserRepo interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*domain.User, error)
	SetVerificationToken(ctx context.Context, id int64, token string, expires time.Time) error
	MarkVerified(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	// TryLogin flips is_logged_in false->true and reports whether it did.
	TryLogin(ctx context.Context, id int64, now time.Time) (bool, error)
	Logout(ctx context.Context, id int64) error
	// TouchActivity returns domain.ErrNotFound when the user is gone or logged out.
	TouchActivity(ctx context.Context, id int64, now time.Time) error
	Delete(ctx context.Context, id int64) error

	DeleteExpiredUnverified(ctx context.Context, now time.Time) (int64, error)
	LogoutIdle(ctx context.Context, cutoff time.Time) ([]int64, error)
}

type UserRepoImpl struct {
	db     DB
	cipher *crypto.FieldCipher
}

func NewUserRepo(db DB, cipher *crypto.FieldCipher) *UserRepoImpl {
	return &UserRepoImpl{db: db, cipher: cipher}
}

const userCols = `id, email_cipher, password_hash, name, phone_cipher, address,
email_verified, email_verification_token, token_expiration,
is_logged_in, last_activity, created_at`

func (r *UserRepoImpl) Create(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (id, email_cipher, email_index, password_hash, name, phone_cipher, phone_index,
                   address, email_verification_token, token_expiration, last_activity)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING`

	emailCipher, err := r.cipher.Encrypt(u.Email)
	if err != nil {
		return fmt.Errorf("encrypt email: %w", err)
	}
	phoneCipher, err := r.cipher.Encrypt(u.Phone)
	if err != nil {
		return fmt.Errorf("encrypt phone: %w", err)
	}
	emailIndex := r.cipher.BlindIndex(domain.NormalizeEmail(u.Email))
	phoneIndex := r.cipher.BlindIndex(domain.NormalizePhone(u.Phone))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := randomUserID()
		if err != nil {
			return err
		}
		tag, err := r.db.Exec(ctx, q, id, emailCipher, emailIndex, u.PasswordHash, u.Name,
			phoneCipher, phoneIndex, u.Address, u.VerificationToken, u.TokenExpiration, u.LastActivity)
		if err != nil {
			if code, constraint := pgErrorCode(err); code == pgUniqueViolation {
				return conflictFor(constraint)
			}
			return err
		}
		if tag.RowsAffected() == 1 {
			u.ID = id
			return nil
		}
	}
	return ErrIDSpaceExhausted
}

func conflictFor(constraint string) error {
	switch {
	case strings.Contains(constraint, "email"):
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	case strings.Contains(constraint, "phone"):
		return fmt.Errorf("phone already registered: %w", domain.ErrConflict)
	}
	return domain.ErrConflict
}

func randomUserID() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(MaxUserID-MinUserID+1))
	if err != nil {
		return 0, err
	}
	return n.Int64() + MinUserID, nil
}

func (r *UserRepoImpl) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id)
}

func (r *UserRepoImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	idx := r.cipher.BlindIndex(domain.NormalizeEmail(email))
	return r.findOne(ctx, `SELECT `+userCols+` FROM users WHERE email_index=$1`, idx)
}

func (r *UserRepoImpl) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	idx := r.cipher.BlindIndex(domain.NormalizePhone(phone))
	return r.findOne(ctx, `SELECT `+userCols+` FROM users WHERE phone_index=$1`, idx)
}

func (r *UserRepoImpl) FindByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userCols+` FROM users WHERE email_verification_token=$1`, token)
}

func (r *UserRepoImpl) findOne(ctx context.Context, q string, arg any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		u           domain.User
		emailCipher string
		phoneCipher string
	)
	err := r.db.QueryRow(ctx, q, arg).Scan(
		&u.ID, &emailCipher, &u.PasswordHash, &u.Name, &phoneCipher, &u.Address,
		&u.EmailVerified, &u.VerificationToken, &u.TokenExpiration,
		&u.IsLoggedIn, &u.LastActivity, &u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if u.Email, err = r.cipher.Decrypt(emailCipher); err != nil {
		return nil, fmt.Errorf("user %d email: %w", u.ID, err)
	}
	if u.Phone, err = r.cipher.Decrypt(phoneCipher); err != nil {
		return nil, fmt.Errorf("user %d phone: %w", u.ID, err)
	}
	return &u, nil
}

func (r *UserRepoImpl) SetVerificationToken(ctx context.Context, id int64, token string, expires time.Time) error {
	return r.execOne(ctx, `UPDATE users SET email_verification_token=$2, token_expiration=$3 WHERE id=$1`,
		id, token, expires)
}

// MarkVerified keeps the token so a repeated click answers the same way until it expires.
func (r *UserRepoImpl) MarkVerified(ctx context.Context, id int64) error {
	return r.execOne(ctx, `UPDATE users SET email_verified=TRUE WHERE id=$1`, id)
}

func (r *UserRepoImpl) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.execOne(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, id, hash)
}

func (r *UserRepoImpl) TryLogin(ctx context.Context, id int64, now time.Time) (bool, error) {
	const q = `UPDATE users SET is_logged_in=TRUE, last_activity=$2 WHERE id=$1 AND is_logged_in=FALSE`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, q, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepoImpl) Logout(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.Exec(ctx, `UPDATE users SET is_logged_in=FALSE WHERE id=$1`, id)
	return err
}

func (r *UserRepoImpl) TouchActivity(ctx context.Context, id int64, now time.Time) error {
	return r.execOne(ctx, `UPDATE users SET last_activity=$2 WHERE id=$1 AND is_logged_in`, id, now)
}

func (r *UserRepoImpl) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id=$1`, id)
}

func (r *UserRepoImpl) DeleteExpiredUnverified(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM users WHERE email_verified=FALSE AND token_expiration < $1`
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepoImpl) LogoutIdle(ctx context.Context, cutoff time.Time) ([]int64, error) {
	const q = `UPDATE users SET is_logged_in=FALSE WHERE is_logged_in AND last_activity < $1 RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rows, err := r.db.Query(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *UserRepoImpl) execOne(ctx context.Context, q string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	return nil
}

var _ UserRepo = (*UserRepoImpl)(nil)
