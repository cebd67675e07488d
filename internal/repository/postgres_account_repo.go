package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/smartkhata/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

const accountColumns = `id, name, email, phone, password_hash, is_verified,
	otp, otp_expires_at, reset_authorized_until, created_at, updated_at`

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE id = $1`,
		id,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, nil
}

// FindByEmail はメールアドレスでアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE email = $1`,
		email,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, nil
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, a *model.Account) error {
	code, expiresAt := challengeColumns(a.Challenge)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, phone, password_hash, is_verified,
			otp, otp_expires_at, reset_authorized_until, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.Name, a.Email, a.Phone, a.PasswordHash, a.IsVerified,
		code, expiresAt, nullTime(a.ResetAuthorizedUntil), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// Update はアカウントの可変フィールドを上書きする。
func (r *PostgresAccountRepo) Update(ctx context.Context, a *model.Account) error {
	code, expiresAt := challengeColumns(a.Challenge)
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET name = $2, phone = $3, password_hash = $4, is_verified = $5,
		     otp = $6, otp_expires_at = $7, reset_authorized_until = $8, updated_at = $9
		 WHERE id = $1`,
		a.ID, a.Name, a.Phone, a.PasswordHash, a.IsVerified,
		code, expiresAt, nullTime(a.ResetAuthorizedUntil), a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return expectOneRow(result)
}

// DeleteByID は指定IDのアカウントを削除する。
// 関連するtransactionsはCASCADE削除される。
func (r *PostgresAccountRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return expectOneRow(result)
}

// scanAccount は1行をAccountに読み込む。行がない場合は(nil, nil)を返す。
func scanAccount(row *sql.Row) (*model.Account, error) {
	a := &model.Account{}
	var (
		otp          sql.NullString
		otpExpiresAt sql.NullTime
		resetUntil   sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.Phone, &a.PasswordHash, &a.IsVerified,
		&otp, &otpExpiresAt, &resetUntil, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// 2カラムのどちらかが欠けている行はチャレンジなしとして扱う
	if otp.Valid && otpExpiresAt.Valid {
		a.Challenge = &model.OTPChallenge{Code: otp.String, ExpiresAt: otpExpiresAt.Time}
	}
	if resetUntil.Valid {
		t := resetUntil.Time
		a.ResetAuthorizedUntil = &t
	}
	return a, nil
}

func challengeColumns(c *model.OTPChallenge) (sql.NullString, sql.NullTime) {
	if c == nil {
		return sql.NullString{}, sql.NullTime{}
	}
	return sql.NullString{String: c.Code, Valid: true}, sql.NullTime{Time: c.ExpiresAt, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
