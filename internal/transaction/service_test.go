package transaction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/smartkhata/internal/model"
	"github.com/hitoshi/smartkhata/internal/repository"
	"github.com/hitoshi/smartkhata/internal/security"
)

// --- モック ---

type mockTxRepo struct {
	createFn        func(ctx context.Context, tx *model.Transaction) error
	findByIDFn      func(ctx context.Context, userID, id string) (*model.Transaction, error)
	listByUserFn    func(ctx context.Context, userID string) ([]*model.Transaction, error)
	listRecentFn    func(ctx context.Context, userID string, limit int) ([]*model.Transaction, error)
	filterFn        func(ctx context.Context, userID string, f model.TransactionFilter) ([]*model.Transaction, int, error)
	updateFn        func(ctx context.Context, tx *model.Transaction) error
	deleteFn        func(ctx context.Context, userID, id string) error
	deleteAllFn     func(ctx context.Context, userID string) (int64, error)
	sumByCategoryFn func(ctx context.Context, userID string) ([]model.CategoryAmount, error)
}

func (m *mockTxRepo) Create(ctx context.Context, tx *model.Transaction) error {
	if m.createFn != nil {
		return m.createFn(ctx, tx)
	}
	return nil
}
func (m *mockTxRepo) FindByID(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, userID, id)
	}
	return nil, nil
}
func (m *mockTxRepo) ListByUser(ctx context.Context, userID string) ([]*model.Transaction, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return []*model.Transaction{}, nil
}
func (m *mockTxRepo) ListRecent(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	return m.listRecentFn(ctx, userID, limit)
}
func (m *mockTxRepo) Filter(ctx context.Context, userID string, f model.TransactionFilter) ([]*model.Transaction, int, error) {
	return m.filterFn(ctx, userID, f)
}
func (m *mockTxRepo) Update(ctx context.Context, tx *model.Transaction) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, tx)
	}
	return nil
}
func (m *mockTxRepo) Delete(ctx context.Context, userID, id string) error {
	return m.deleteFn(ctx, userID, id)
}
func (m *mockTxRepo) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	return m.deleteAllFn(ctx, userID)
}
func (m *mockTxRepo) SumByCategory(ctx context.Context, userID string) ([]model.CategoryAmount, error) {
	return m.sumByCategoryFn(ctx, userID)
}

type mockAccounts struct {
	findByIDFn func(ctx context.Context, id string) (*model.Account, error)
}

func (m *mockAccounts) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return m.findByIDFn(ctx, id)
}

func verifiedAccounts() *mockAccounts {
	return &mockAccounts{findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
		return &model.Account{ID: id, IsVerified: true}, nil
	}}
}

func newTestService(repo *mockTxRepo, accounts *mockAccounts) *Service {
	svc := NewService(repo, accounts, security.NewTextSanitizer())
	svc.now = func() time.Time { return time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

const (
	txID1 = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	txID2 = "6ba7b811-9dad-11d1-80b4-00c04fd430c8"
)

func str(s string) *string { return &s }

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func errorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// --- テスト ---

func TestService_Add_Defaults(t *testing.T) {
	var created *model.Transaction
	repo := &mockTxRepo{createFn: func(ctx context.Context, tx *model.Transaction) error {
		created = tx
		return nil
	}}
	svc := newTestService(repo, verifiedAccounts())

	got, err := svc.Add(context.Background(), "u-1", Input{
		Type:     str("Expense"),
		Amount:   amount("250.50"),
		Category: str("food"),
		Note:     str("<b>lunch</b> with team"),
	})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if created != got {
		t.Fatal("expected the created transaction to be returned")
	}
	if got.UserID != "u-1" || got.Type != model.TransactionTypeExpense {
		t.Errorf("unexpected transaction: %+v", got)
	}
	if got.PaymentMode != model.PaymentModeCash {
		t.Errorf("PaymentMode = %q, want cash", got.PaymentMode)
	}
	if !got.Date.Equal(svc.now()) {
		t.Errorf("Date = %v, want now", got.Date)
	}
	if got.Note != "lunch with team" {
		t.Errorf("Note = %q, want sanitized text", got.Note)
	}
	if got.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestService_Add_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"missing amount", Input{Type: str("income"), Category: str("salary")}},
		{"bad type", Input{Type: str("gift"), Amount: amount("10"), Category: str("salary")}},
		{"below minimum", Input{Type: str("income"), Amount: amount("0.001"), Category: str("salary")}},
		{"zero", Input{Type: str("income"), Amount: amount("0"), Category: str("salary")}},
		{"three decimals", Input{Type: str("income"), Amount: amount("10.005"), Category: str("salary")}},
		{"too large", Input{Type: str("income"), Amount: amount("1000000000000"), Category: str("salary")}},
		{"bad category", Input{Type: str("income"), Amount: amount("10"), Category: str("lottery")}},
		{"bad payment mode", Input{Type: str("income"), Amount: amount("10"), Category: str("salary"), PaymentMode: str("cheque")}},
		{"long note", Input{Type: str("income"), Amount: amount("10"), Category: str("salary"), Note: str(strings.Repeat("a", 101))}},
		{"bad date", Input{Type: str("income"), Amount: amount("10"), Category: str("salary"), Date: str("10/04/2025")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &mockAccounts{findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
				t.Fatal("account lookup must not happen for invalid input")
				return nil, nil
			}}
			svc := newTestService(&mockTxRepo{}, accounts)

			_, err := svc.Add(context.Background(), "u-1", tt.in)
			if got := errorCode(err); got != model.ErrCodeInvalidInput {
				t.Errorf("error code = %q (err=%v), want INVALID_INPUT", got, err)
			}
		})
	}
}

func TestService_Add_AccountState(t *testing.T) {
	in := Input{Type: str("income"), Amount: amount("100"), Category: str("salary")}

	t.Run("unverified", func(t *testing.T) {
		accounts := &mockAccounts{findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
			return &model.Account{ID: id}, nil
		}}
		_, err := newTestService(&mockTxRepo{}, accounts).Add(context.Background(), "u-1", in)
		if got := errorCode(err); got != model.ErrCodeNotVerified {
			t.Errorf("error code = %q, want NOT_VERIFIED", got)
		}
	})

	t.Run("deleted", func(t *testing.T) {
		accounts := &mockAccounts{findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
			return nil, nil
		}}
		_, err := newTestService(&mockTxRepo{}, accounts).Add(context.Background(), "u-1", in)
		if got := errorCode(err); got != model.ErrCodeNotFound {
			t.Errorf("error code = %q, want NOT_FOUND", got)
		}
	})
}

func TestService_Add_ParsesDate(t *testing.T) {
	svc := newTestService(&mockTxRepo{}, verifiedAccounts())

	got, err := svc.Add(context.Background(), "u-1", Input{
		Type: str("income"), Amount: amount("10"), Category: str("salary"), Date: str("2025-03-15"),
	})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC); !got.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", got.Date, want)
	}
}

func TestService_Update_Partial(t *testing.T) {
	existing := &model.Transaction{
		ID: txID1, UserID: "u-1", Type: model.TransactionTypeExpense,
		Amount: decimal.NewFromInt(50), Category: "food", PaymentMode: model.PaymentModeUPI,
	}
	repo := &mockTxRepo{
		findByIDFn: func(ctx context.Context, userID, id string) (*model.Transaction, error) {
			return existing, nil
		},
	}
	svc := newTestService(repo, verifiedAccounts())

	got, err := svc.Update(context.Background(), "u-1", txID1, Input{Amount: amount("75.25")})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if !got.Amount.Equal(decimal.RequireFromString("75.25")) {
		t.Errorf("Amount = %s", got.Amount)
	}
	if got.Category != "food" || got.PaymentMode != model.PaymentModeUPI {
		t.Errorf("unspecified fields changed: %+v", got)
	}
}

func TestService_Update_InvalidLeavesTransactionUnchanged(t *testing.T) {
	existing := &model.Transaction{ID: txID1, UserID: "u-1", Type: model.TransactionTypeExpense, Category: "food"}
	repo := &mockTxRepo{
		findByIDFn: func(ctx context.Context, userID, id string) (*model.Transaction, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, tx *model.Transaction) error {
			t.Fatal("Update must not be called")
			return nil
		},
	}
	svc := newTestService(repo, verifiedAccounts())

	_, err := svc.Update(context.Background(), "u-1", txID1, Input{Type: str("income"), Category: str("unknown")})
	if errorCode(err) != model.ErrCodeInvalidInput {
		t.Fatalf("want INVALID_INPUT, got %v", err)
	}
	if existing.Type != model.TransactionTypeExpense {
		t.Error("transaction modified despite validation failure")
	}
}

func TestService_Update_NotOwned(t *testing.T) {
	svc := newTestService(&mockTxRepo{}, verifiedAccounts())

	_, err := svc.Update(context.Background(), "u-2", txID1, Input{Note: str("x")})
	if errorCode(err) != model.ErrCodeTransactionNotFound {
		t.Fatalf("want TRANSACTION_NOT_FOUND, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	repo := &mockTxRepo{deleteFn: func(ctx context.Context, userID, id string) error {
		if id == txID1 {
			return nil
		}
		return repository.ErrNotFound
	}}
	svc := newTestService(repo, verifiedAccounts())

	if err := svc.Delete(context.Background(), "u-1", txID1); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := svc.Delete(context.Background(), "u-1", txID2); errorCode(err) != model.ErrCodeTransactionNotFound {
		t.Fatalf("want TRANSACTION_NOT_FOUND, got %v", err)
	}
}

func TestService_MalformedIDIsNotFound(t *testing.T) {
	repo := &mockTxRepo{
		findByIDFn: func(ctx context.Context, userID, id string) (*model.Transaction, error) {
			t.Fatalf("FindByID must not be called with %q", id)
			return nil, nil
		},
		deleteFn: func(ctx context.Context, userID, id string) error {
			t.Fatalf("Delete must not be called with %q", id)
			return nil
		},
	}
	svc := newTestService(repo, verifiedAccounts())

	for _, id := range []string{"tx-42", "", "1; DROP TABLE transactions", "6ba7b810-9dad-11d1-80b4", "urn:uuid:" + txID1} {
		_, err := svc.Update(context.Background(), "u-1", id, Input{Note: str("x")})
		if errorCode(err) != model.ErrCodeTransactionNotFound {
			t.Errorf("Update(%q) = %v, want TRANSACTION_NOT_FOUND", id, err)
		}
		if err := svc.Delete(context.Background(), "u-1", id); errorCode(err) != model.ErrCodeTransactionNotFound {
			t.Errorf("Delete(%q) = %v, want TRANSACTION_NOT_FOUND", id, err)
		}
	}
}

func TestService_Recent_UsesLimit(t *testing.T) {
	var gotLimit int
	repo := &mockTxRepo{listRecentFn: func(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
		gotLimit = limit
		return []*model.Transaction{}, nil
	}}
	if _, err := newTestService(repo, verifiedAccounts()).Recent(context.Background(), "u-1"); err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if gotLimit != RecentLimit {
		t.Errorf("limit = %d, want %d", gotLimit, RecentLimit)
	}
}

func TestService_Stats(t *testing.T) {
	repo := &mockTxRepo{sumByCategoryFn: func(ctx context.Context, userID string) ([]model.CategoryAmount, error) {
		return []model.CategoryAmount{
			{Type: model.TransactionTypeExpense, Category: "food", Total: decimal.RequireFromString("120.10")},
			{Type: model.TransactionTypeExpense, Category: "rent", Total: decimal.RequireFromString("800.20")},
			{Type: model.TransactionTypeIncome, Category: "salary", Total: decimal.RequireFromString("2000.00")},
		}, nil
	}}

	stats, err := newTestService(repo, verifiedAccounts()).Stats(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if !stats.TotalExpense.Equal(decimal.RequireFromString("920.30")) {
		t.Errorf("TotalExpense = %s", stats.TotalExpense)
	}
	if !stats.TotalIncome.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("TotalIncome = %s", stats.TotalIncome)
	}
	if !stats.Balance.Equal(decimal.RequireFromString("1079.70")) {
		t.Errorf("Balance = %s", stats.Balance)
	}
	if len(stats.CategoryBreakdown) != 3 {
		t.Errorf("breakdown = %d entries, want 3", len(stats.CategoryBreakdown))
	}
}

func TestService_Stats_Empty(t *testing.T) {
	repo := &mockTxRepo{sumByCategoryFn: func(ctx context.Context, userID string) ([]model.CategoryAmount, error) {
		return nil, nil
	}}

	stats, err := newTestService(repo, verifiedAccounts()).Stats(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if !stats.Balance.IsZero() || stats.CategoryBreakdown == nil {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestService_Clear(t *testing.T) {
	repo := &mockTxRepo{deleteAllFn: func(ctx context.Context, userID string) (int64, error) {
		return 7, nil
	}}
	n, err := newTestService(repo, verifiedAccounts()).Clear(context.Background(), "u-1")
	if err != nil || n != 7 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
}

func TestService_Filter(t *testing.T) {
	var got model.TransactionFilter
	repo := &mockTxRepo{filterFn: func(ctx context.Context, userID string, f model.TransactionFilter) ([]*model.Transaction, int, error) {
		got = f
		return []*model.Transaction{{ID: txID1}}, 21, nil
	}}
	svc := newTestService(repo, verifiedAccounts())

	res, err := svc.Filter(context.Background(), "u-1", FilterInput{
		Type:      "expense",
		Category:  "Food",
		StartDate: "2025-01-01",
		EndDate:   "2025-01-31",
		Page:      "2",
		Limit:     "10",
	})
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if res.Total != 21 || res.Page != 2 || res.Pages != 3 {
		t.Errorf("unexpected paging: %+v", res)
	}
	if got.Category != "food" || got.Type != model.TransactionTypeExpense {
		t.Errorf("unexpected filter: %+v", got)
	}
	wantEnd := time.Date(2025, 1, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	if got.EndDate == nil || !got.EndDate.Equal(wantEnd) {
		t.Errorf("EndDate = %v, want end of day %v", got.EndDate, wantEnd)
	}
}

func TestService_Filter_Defaults(t *testing.T) {
	var got model.TransactionFilter
	repo := &mockTxRepo{filterFn: func(ctx context.Context, userID string, f model.TransactionFilter) ([]*model.Transaction, int, error) {
		got = f
		return []*model.Transaction{}, 0, nil
	}}
	svc := newTestService(repo, verifiedAccounts())

	res, err := svc.Filter(context.Background(), "u-1", FilterInput{Page: "abc", Limit: "500"})
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if got.Page != 1 || got.Limit != MaxPageSize {
		t.Errorf("page=%d limit=%d, want 1 and %d", got.Page, got.Limit, MaxPageSize)
	}
	if got.StartDate != nil || got.EndDate != nil || got.Type != "" {
		t.Errorf("unexpected conditions: %+v", got)
	}
	if res.Pages != 0 {
		t.Errorf("Pages = %d, want 0", res.Pages)
	}
}

func TestService_Filter_InvalidRange(t *testing.T) {
	svc := newTestService(&mockTxRepo{}, verifiedAccounts())

	_, err := svc.Filter(context.Background(), "u-1", FilterInput{StartDate: "2025-02-01", EndDate: "2025-01-01"})
	if errorCode(err) != model.ErrCodeInvalidInput {
		t.Fatalf("want INVALID_INPUT, got %v", err)
	}
}
