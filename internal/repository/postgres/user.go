package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

const userColumns = `id, email, password_hash, first_name, last_name, phone, role, status,
	referral_code, referred_by, email_verified, failed_login_attempts, locked_until,
	last_login_at, timezone, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	user.Touch(now())
	query := `INSERT INTO users (` + userColumns + `) VALUES (
		:id, :email, :password_hash, :first_name, :last_name, :phone, :role, :status,
		:referral_code, :referred_by, :email_verified, :failed_login_attempts, :locked_until,
		:last_login_at, :timezone, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, user)
	return mapError("create user", err)
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, mapError("get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = $1`, model.NormalizeEmail(email))
	if err != nil {
		return nil, mapError("get user by email", err)
	}
	return &user, nil
}

func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, strings.ToUpper(code))
	if err != nil {
		return nil, mapError("get user by referral code", err)
	}
	return &user, nil
}

func (r *userRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE referral_code = $1)`, strings.ToUpper(code))
	if err != nil {
		return false, mapError("check referral code", err)
	}
	return exists, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	user.Touch(now())
	query := `
		UPDATE users SET
			email = :email, password_hash = :password_hash, first_name = :first_name,
			last_name = :last_name, phone = :phone, status = :status,
			email_verified = :email_verified, failed_login_attempts = :failed_login_attempts,
			locked_until = :locked_until, last_login_at = :last_login_at,
			timezone = :timezone, updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return mapError("update user", err)
	}
	return expectRows("update user", res)
}

func (r *userRepository) List(ctx context.Context, filters *model.UserFilters) ([]*model.User, int, error) {
	where := []string{"1=1"}
	var args []interface{}

	if filters.Role != "" {
		args = append(args, filters.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.Search != "" {
		args = append(args, likePattern(filters.Search))
		where = append(where, fmt.Sprintf("(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", len(args), len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE `+cond, args...); err != nil {
		return nil, 0, mapError("count users", err)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + cond + ` ORDER BY created_at DESC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, mapError("list users", err)
	}
	return users, total, nil
}

type referralRepository struct {
	BaseRepository
}

func NewReferralRepository(base BaseRepository) repository.ReferralRepository {
	return &referralRepository{base}
}

func (r *referralRepository) Create(ctx context.Context, referral *model.Referral) error {
	if referral.ID == uuid.Nil {
		referral.ID = uuid.New()
	}
	referral.CreatedAt = now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referrals (id, referrer_id, referred_user_id, code, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		referral.ID, referral.ReferrerID, referral.ReferredUserID, referral.Code, referral.CreatedAt)
	return mapError("create referral", err)
}

func (r *referralRepository) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*model.Referral, error) {
	query := `
		SELECT r.id, r.referrer_id, r.referred_user_id, r.code, r.created_at,
			TRIM(u.first_name || ' ' || u.last_name) AS referred_name, u.email AS referred_email
		FROM referrals r
		JOIN users u ON u.id = r.referred_user_id
		WHERE r.referrer_id = $1
		ORDER BY r.created_at DESC`

	var referrals []*model.Referral
	if err := r.db.SelectContext(ctx, &referrals, query, referrerID); err != nil {
		return nil, mapError("list referrals", err)
	}
	return referrals, nil
}

type deviceRepository struct {
	BaseRepository
}

func NewDeviceRepository(base BaseRepository) repository.DeviceRepository {
	return &deviceRepository{base}
}

func (r *deviceRepository) Upsert(ctx context.Context, d *model.DeviceToken) error {
	d.CreatedAt = now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_tokens (token, user_id, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform`,
		d.Token, d.UserID, d.Platform, d.CreatedAt)
	return mapError("register device", err)
}

func (r *deviceRepository) Delete(ctx context.Context, userID uuid.UUID, token string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return mapError("delete device", err)
	}
	return expectRows("delete device", res)
}

func (r *deviceRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ANY($1)`, pq.Array(tokens))
	return mapError("delete devices", err)
}

func (r *deviceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.DeviceToken, error) {
	var devices []*model.DeviceToken
	err := r.db.SelectContext(ctx, &devices, `
		SELECT token, user_id, platform, created_at FROM device_tokens
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, mapError("list devices", err)
	}
	return devices, nil
}
