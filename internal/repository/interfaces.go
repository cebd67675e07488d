// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/smartkhata/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しないことを表す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("email already registered")
)

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail は正規化済みメールアドレスでアカウントを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error

	// Update はアカウントの可変フィールドを上書きする。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, account *model.Account) error

	// DeleteByID は指定IDのアカウントを削除する。
	// 関連するtransactionsはCASCADE削除される。存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error
}

// TransactionRepository は取引データの永続化インターフェース。
// すべての操作は所有者のユーザーIDでスコープされる。
type TransactionRepository interface {
	// Create は取引を作成する。
	Create(ctx context.Context, tx *model.Transaction) error

	// FindByID は所有者の取引を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Transaction, error)

	// ListByUser は所有者の全取引をdate降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Transaction, error)

	// ListRecent は作成日時の新しい順にlimit件を返す。
	ListRecent(ctx context.Context, userID string, limit int) ([]*model.Transaction, error)

	// Filter は条件に一致する取引のページと総件数を返す。
	Filter(ctx context.Context, userID string, filter model.TransactionFilter) ([]*model.Transaction, int, error)

	// Update は取引の可変フィールドを上書きする。所有者以外の場合はErrNotFoundを返す。
	Update(ctx context.Context, tx *model.Transaction) error

	// Delete は所有者の取引を削除する。見つからない場合はErrNotFoundを返す。
	Delete(ctx context.Context, userID, id string) error

	// DeleteAllByUser は所有者の全取引を削除し、削除件数を返す。
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)

	// SumByCategory は種別・カテゴリごとの合計額を返す。
	SumByCategory(ctx context.Context, userID string) ([]model.CategoryAmount, error)
}

// ContactRepository は問い合わせメッセージの永続化インターフェース。
type ContactRepository interface {
	// Create は問い合わせメッセージを保存する。
	Create(ctx context.Context, msg *model.ContactMessage) error
}
