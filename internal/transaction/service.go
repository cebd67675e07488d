// Package transaction はアカウントに属する収支記録の管理を提供する。
package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/smartkhata/internal/model"
	"github.com/hitoshi/smartkhata/internal/repository"
)

const (
	// RecentLimit は最近の取引として返す件数。
	RecentLimit = 5
	// MaxNoteLength はメモの最大文字数。
	MaxNoteLength = 100
	// DefaultPageSize はフィルタのデフォルト件数。
	DefaultPageSize = 10
	// MaxPageSize はフィルタの最大件数。
	MaxPageSize = 100

	dateLayout = "2006-01-02"
)

var (
	minAmount = decimal.RequireFromString("0.01")
	// NUMERIC(14,2) に収まる上限
	maxAmount = decimal.New(1, 12)
)

// AccountFinder はアカウントをIDで取得する。
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
}

// Sanitizer は自由記述テキストをプレーンテキストに変換する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service は取引のビジネスロジックを提供する。
type Service struct {
	txs       repository.TransactionRepository
	accounts  AccountFinder
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(txs repository.TransactionRepository, accounts AccountFinder, sanitizer Sanitizer) *Service {
	return &Service{
		txs:       txs,
		accounts:  accounts,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Input は取引の作成・更新の入力。nilの項目は未指定を表す。
type Input struct {
	Type        *string          `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
	Note        *string          `json:"note"`
	PaymentMode *string          `json:"paymentMode"`
	Date        *string          `json:"date"`
}

// FilterInput はクエリ文字列から受け取るフィルタ条件。
type FilterInput struct {
	Type      string
	Category  string
	StartDate string
	EndDate   string
	Page      string
	Limit     string
}

// FilterResult はフィルタ結果の1ページ。
type FilterResult struct {
	Items []*model.Transaction `json:"data"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Pages int                  `json:"pages"`
}

// Add は認証済みアカウントに取引を追加する。
func (s *Service) Add(ctx context.Context, userID string, in Input) (*model.Transaction, error) {
	// 1. 必須項目と値の検証
	if in.Type == nil || in.Amount == nil || in.Category == nil {
		return nil, model.NewInvalidInputError("Type, amount and category are required")
	}
	now := s.now()
	tx := &model.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		PaymentMode: model.PaymentModeCash,
		Date:        now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.apply(tx, in); err != nil {
		return nil, err
	}

	// 2. アカウント状態の確認
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}
	if !account.IsVerified {
		return nil, model.NewNotVerifiedError()
	}

	// 3. 保存
	if err := s.txs.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("取引の作成に失敗しました: %w", err)
	}

	slog.Info("取引を追加しました",
		slog.String("user_id", userID),
		slog.String("transaction_id", tx.ID),
	)
	return tx, nil
}

// List は所有者の全取引を日付の新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Transaction, error) {
	items, err := s.txs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("取引一覧の取得に失敗しました: %w", err)
	}
	return items, nil
}

// Recent は作成日時の新しい順に最大RecentLimit件を返す。
func (s *Service) Recent(ctx context.Context, userID string) ([]*model.Transaction, error) {
	items, err := s.txs.ListRecent(ctx, userID, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("最近の取引の取得に失敗しました: %w", err)
	}
	return items, nil
}

// Update は所有者の取引を部分更新する。
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.Transaction, error) {
	if !isTransactionID(id) {
		return nil, model.NewTransactionNotFoundError(id)
	}
	tx, err := s.txs.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("取引の取得に失敗しました: %w", err)
	}
	if tx == nil {
		return nil, model.NewTransactionNotFoundError(id)
	}

	if err := s.apply(tx, in); err != nil {
		return nil, err
	}
	tx.UpdatedAt = s.now()

	if err := s.txs.Update(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewTransactionNotFoundError(id)
		}
		return nil, fmt.Errorf("取引の更新に失敗しました: %w", err)
	}
	return tx, nil
}

// Delete は所有者の取引を削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if !isTransactionID(id) {
		return model.NewTransactionNotFoundError(id)
	}
	if err := s.txs.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTransactionNotFoundError(id)
		}
		return fmt.Errorf("取引の削除に失敗しました: %w", err)
	}
	return nil
}

// Clear は所有者の全取引を削除し、削除件数を返す。
func (s *Service) Clear(ctx context.Context, userID string) (int64, error) {
	n, err := s.txs.DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("取引の一括削除に失敗しました: %w", err)
	}
	slog.Info("取引を一括削除しました",
		slog.String("user_id", userID),
		slog.Int64("deleted", n),
	)
	return n, nil
}

// Stats は収入・支出の合計、残高、カテゴリ別内訳を返す。
func (s *Service) Stats(ctx context.Context, userID string) (*model.TransactionStats, error) {
	sums, err := s.txs.SumByCategory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("取引の集計に失敗しました: %w", err)
	}

	stats := &model.TransactionStats{
		TotalIncome:       decimal.Zero,
		TotalExpense:      decimal.Zero,
		CategoryBreakdown: []model.CategoryAmount{},
	}
	for _, c := range sums {
		switch c.Type {
		case model.TransactionTypeIncome:
			stats.TotalIncome = stats.TotalIncome.Add(c.Total)
		case model.TransactionTypeExpense:
			stats.TotalExpense = stats.TotalExpense.Add(c.Total)
		}
		stats.CategoryBreakdown = append(stats.CategoryBreakdown, c)
	}
	stats.Balance = stats.TotalIncome.Sub(stats.TotalExpense)
	return stats, nil
}

// Filter は条件に一致する取引をページングして返す。
// 終了日が日付のみの場合はその日の終わりまでを含む。
func (s *Service) Filter(ctx context.Context, userID string, in FilterInput) (*FilterResult, error) {
	f, err := parseFilter(in)
	if err != nil {
		return nil, err
	}

	items, total, err := s.txs.Filter(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("取引の絞り込みに失敗しました: %w", err)
	}

	pages := (total + f.Limit - 1) / f.Limit
	return &FilterResult{
		Items: items,
		Total: total,
		Page:  f.Page,
		Pages: pages,
	}, nil
}

// apply は入力の指定項目を検証してtxに反映する。
// 検証に失敗した場合txは変更しない。
func (s *Service) apply(tx *model.Transaction, in Input) error {
	next := *tx

	if in.Type != nil {
		t, err := parseType(*in.Type)
		if err != nil {
			return err
		}
		next.Type = t
	}
	if in.Amount != nil {
		amount := *in.Amount
		if amount.LessThan(minAmount) {
			return model.NewInvalidInputError("Amount must be at least 0.01")
		}
		if !amount.Round(2).Equal(amount) {
			return model.NewInvalidInputError("Amount can have at most two decimal places")
		}
		if !amount.LessThan(maxAmount) {
			return model.NewInvalidInputError("Amount is too large")
		}
		next.Amount = amount
	}
	if in.Category != nil {
		c, err := parseCategory(*in.Category)
		if err != nil {
			return err
		}
		next.Category = c
	}
	if in.Note != nil {
		note := s.sanitizer.Sanitize(*in.Note)
		if utf8.RuneCountInString(note) > MaxNoteLength {
			return model.NewInvalidInputError(fmt.Sprintf("Note cannot exceed %d characters", MaxNoteLength))
		}
		next.Note = note
	}
	if in.PaymentMode != nil {
		mode := model.PaymentMode(strings.ToLower(strings.TrimSpace(*in.PaymentMode)))
		if !slices.Contains(model.PaymentModes, mode) {
			return model.NewInvalidInputError("Invalid payment mode")
		}
		next.PaymentMode = mode
	}
	if in.Date != nil {
		d, _, err := parseDate(*in.Date)
		if err != nil {
			return err
		}
		next.Date = d
	}

	*tx = next
	return nil
}

// isTransactionID はidが標準形式（36文字）のUUIDかを判定する。
// 形式外のidはどの取引にも一致しないため、ストレージに問い合わせない。
func isTransactionID(id string) bool {
	return len(id) == 36 && uuid.Validate(id) == nil
}

func parseType(raw string) (model.TransactionType, error) {
	t := model.TransactionType(strings.ToLower(strings.TrimSpace(raw)))
	if t != model.TransactionTypeIncome && t != model.TransactionTypeExpense {
		return "", model.NewInvalidInputError("Type must be income or expense")
	}
	return t, nil
}

func parseCategory(raw string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(raw))
	if !slices.Contains(model.Categories, c) {
		return "", model.NewInvalidInputError("Invalid category")
	}
	return c, nil
}

// parseDate はYYYY-MM-DDまたはRFC3339形式の日付を解釈する。
// 2番目の戻り値は日付のみの形式だったかどうか。
func parseDate(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.Parse(dateLayout, raw); err == nil {
		return d, true, nil
	}
	if d, err := time.Parse(time.RFC3339, raw); err == nil {
		return d, false, nil
	}
	return time.Time{}, false, model.NewInvalidInputError("Invalid date format, use YYYY-MM-DD")
}

func parseFilter(in FilterInput) (model.TransactionFilter, error) {
	f := model.TransactionFilter{
		Page:  parsePage(in.Page),
		Limit: parseLimit(in.Limit),
	}

	if in.Type != "" {
		t, err := parseType(in.Type)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if in.Category != "" {
		c, err := parseCategory(in.Category)
		if err != nil {
			return f, err
		}
		f.Category = c
	}
	if in.StartDate != "" {
		d, _, err := parseDate(in.StartDate)
		if err != nil {
			return f, err
		}
		f.StartDate = &d
	}
	if in.EndDate != "" {
		d, dateOnly, err := parseDate(in.EndDate)
		if err != nil {
			return f, err
		}
		if dateOnly {
			d = d.Add(24*time.Hour - time.Nanosecond)
		}
		f.EndDate = &d
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return f, model.NewInvalidInputError("Start date must be before end date")
	}
	return f, nil
}

// parsePage はページ番号を解釈する。不正値は1とする。
func parsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// parseLimit は1ページの件数を解釈する。不正値はDefaultPageSize、上限はMaxPageSize。
func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
