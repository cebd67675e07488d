package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/smartkhata/internal/model"
)

const transactionColumns = `id, user_id, type, amount, category, note, payment_mode, date, created_at, updated_at`

// PostgresTransactionRepo はPostgreSQLを使用した取引リポジトリ。
type PostgresTransactionRepo struct {
	db *sql.DB
}

// NewPostgresTransactionRepo はPostgresTransactionRepoを生成する。
func NewPostgresTransactionRepo(db *sql.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

// Create は取引を作成する。
func (r *PostgresTransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.UserID, t.Type, t.Amount, t.Category, t.Note, t.PaymentMode, t.Date, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// FindByID は所有者の取引を取得する。見つからない場合はnilを返す。
func (r *PostgresTransactionRepo) FindByID(ctx context.Context, userID, id string) (*model.Transaction, error) {
	t := &model.Transaction{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Category, &t.Note, &t.PaymentMode, &t.Date, &t.CreatedAt, &t.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction by ID: %w", err)
	}
	return t, nil
}

// ListByUser は所有者の全取引をdate降順で返す。
func (r *PostgresTransactionRepo) ListByUser(ctx context.Context, userID string) ([]*model.Transaction, error) {
	return r.query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1
		 ORDER BY date DESC, created_at DESC`,
		userID,
	)
}

// ListRecent は作成日時の新しい順にlimit件を返す。
func (r *PostgresTransactionRepo) ListRecent(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	return r.query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
}

// Filter は条件に一致する取引をdate降順でページングして返す。
// 2番目の戻り値はページングを適用する前の総件数。
func (r *PostgresTransactionRepo) Filter(ctx context.Context, userID string, f model.TransactionFilter) ([]*model.Transaction, int, error) {
	where, args := buildFilterWhere(userID, f)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM transactions WHERE `+where,
		args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	pageArgs := append(args, f.Limit, f.Offset())
	items, err := r.query(ctx,
		fmt.Sprintf(`SELECT %s FROM transactions WHERE %s
		 ORDER BY date DESC, created_at DESC
		 LIMIT $%d OFFSET $%d`, transactionColumns, where, len(args)+1, len(args)+2),
		pageArgs...,
	)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// buildFilterWhere はフィルタ条件からWHERE句とパラメータを組み立てる。
func buildFilterWhere(userID string, f model.TransactionFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{userID}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.StartDate != nil {
		add("date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("date <= $%d", *f.EndDate)
	}
	return strings.Join(conds, " AND "), args
}

// Update は取引の可変フィールドを上書きする。
func (r *PostgresTransactionRepo) Update(ctx context.Context, t *model.Transaction) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET type = $3, amount = $4, category = $5, note = $6, payment_mode = $7, date = $8, updated_at = $9
		 WHERE id = $1 AND user_id = $2`,
		t.ID, t.UserID, t.Type, t.Amount, t.Category, t.Note, t.PaymentMode, t.Date, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return expectOneRow(result)
}

// Delete は所有者の取引を削除する。
func (r *PostgresTransactionRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectOneRow(result)
}

// DeleteAllByUser は所有者の全取引を削除し、削除件数を返す。
func (r *PostgresTransactionRepo) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear transactions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// SumByCategory は種別・カテゴリごとの合計額を返す。
func (r *PostgresTransactionRepo) SumByCategory(ctx context.Context, userID string) ([]model.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, category, SUM(amount)
		 FROM transactions
		 WHERE user_id = $1
		 GROUP BY type, category
		 ORDER BY type, category`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions: %w", err)
	}
	defer rows.Close()

	var sums []model.CategoryAmount
	for rows.Next() {
		var c model.CategoryAmount
		if err := rows.Scan(&c.Type, &c.Category, &c.Total); err != nil {
			return nil, fmt.Errorf("failed to scan category amount: %w", err)
		}
		sums = append(sums, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category amounts: %w", err)
	}
	return sums, nil
}

func (r *PostgresTransactionRepo) query(ctx context.Context, query string, args ...any) ([]*model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	items := []*model.Transaction{}
	for rows.Next() {
		t := &model.Transaction{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Category, &t.Note, &t.PaymentMode, &t.Date, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return items, nil
}

// compile-time interface check
var _ TransactionRepository = (*PostgresTransactionRepo)(nil)
