package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType は取引の種別（収入/支出）を表す。
type TransactionType string

const (
	// TransactionTypeIncome は収入を表す。
	TransactionTypeIncome TransactionType = "income"
	// TransactionTypeExpense は支出を表す。
	TransactionTypeExpense TransactionType = "expense"
)

// PaymentMode は支払い方法を表す。
type PaymentMode string

const (
	PaymentModeCash  PaymentMode = "cash"
	PaymentModeUPI   PaymentMode = "upi"
	PaymentModeCard  PaymentMode = "card"
	PaymentModeBank  PaymentMode = "bank"
	PaymentModeOther PaymentMode = "other"
)

// Categories は取引カテゴリの閉じた列挙。
var Categories = []string{
	"salary", "freelance", "investment", "rent", "food", "groceries",
	"transport", "entertainment", "shopping", "utilities", "education",
	"healthcare", "others",
}

// PaymentModes は支払い方法の閉じた列挙。
var PaymentModes = []PaymentMode{
	PaymentModeCash, PaymentModeUPI, PaymentModeCard, PaymentModeBank, PaymentModeOther,
}

// Transaction はアカウントに属する1件の収支記録を表す。
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Note        string          `json:"note"`
	PaymentMode PaymentMode     `json:"paymentMode"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TransactionFilter は取引一覧の絞り込み条件。
// 空文字列・nilの項目は条件に含めない。
type TransactionFilter struct {
	Type      TransactionType
	Category  string
	StartDate *time.Time
	EndDate   *time.Time // この時刻を含む
	Page      int
	Limit     int
}

// Offset はページ番号から算出したOFFSETを返す。
func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// CategoryAmount は種別・カテゴリごとの合計額を表す。
type CategoryAmount struct {
	Type     TransactionType `json:"type"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// TransactionStats はアカウント単位の収支集計。
type TransactionStats struct {
	TotalIncome       decimal.Decimal  `json:"totalIncome"`
	TotalExpense      decimal.Decimal  `json:"totalExpense"`
	Balance           decimal.Decimal  `json:"balance"`
	CategoryBreakdown []CategoryAmount `json:"categoryBreakdown"`
}
