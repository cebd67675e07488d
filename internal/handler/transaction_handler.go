package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/smartkhata/internal/model"
	"github.com/hitoshi/smartkhata/internal/transaction"
)

// TransactionServiceInterface は取引ハンドラーが必要とするサービスインターフェース。
type TransactionServiceInterface interface {
	Add(ctx context.Context, userID string, in transaction.Input) (*model.Transaction, error)
	List(ctx context.Context, userID string) ([]*model.Transaction, error)
	Recent(ctx context.Context, userID string) ([]*model.Transaction, error)
	Update(ctx context.Context, userID, id string, in transaction.Input) (*model.Transaction, error)
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (*model.TransactionStats, error)
	Clear(ctx context.Context, userID string) (int64, error)
	Filter(ctx context.Context, userID string, in transaction.FilterInput) (*transaction.FilterResult, error)
}

// TransactionHandler は取引管理のHTTPハンドラー。
// すべてのエンドポイントは認証ミドルウェアの後に配置する。
type TransactionHandler struct {
	service TransactionServiceInterface
}

// NewTransactionHandler はTransactionHandlerを生成する。
func NewTransactionHandler(service TransactionServiceInterface) *TransactionHandler {
	return &TransactionHandler{service: service}
}

// Add は取引を追加する。
// POST /api/transactions/add
func (h *TransactionHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in transaction.Input
	if err := decodeBody(r, w, &in); err != nil {
		handleServiceError(w, r, err)
		return
	}

	tx, err := h.service.Add(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Transaction added successfully", envelope{"data": tx})
}

// All は全取引を返す。
// GET /api/transactions/all
func (h *TransactionHandler) All(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"data": items, "count": len(items)})
}

// Recent は最近の取引を返す。
// GET /api/transactions/recent-transaction
func (h *TransactionHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.service.Recent(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"data": items})
}

// Update は取引を部分更新する。
// PUT /api/transactions/update/{id}
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in transaction.Input
	if err := decodeBody(r, w, &in); err != nil {
		handleServiceError(w, r, err)
		return
	}

	tx, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Transaction updated successfully", envelope{"data": tx})
}

// Delete は取引を削除する。
// DELETE /api/transactions/delete/{id}
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Transaction deleted successfully", nil)
}

// Stats は収支の集計を返す。
// GET /api/transactions/stats
func (h *TransactionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"data": stats})
}

// Clear は全取引を削除する。
// DELETE /api/transactions/clear
func (h *TransactionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	n, err := h.service.Clear(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "All transactions cleared", envelope{"deletedCount": n})
}

// Filter は条件で絞り込んだ取引を返す。
// GET /api/transactions/filter?type=&category=&startDate=&endDate=&page=&limit=
func (h *TransactionHandler) Filter(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	res, err := h.service.Filter(r.Context(), userID, transaction.FilterInput{
		Type:      q.Get("type"),
		Category:  q.Get("category"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Page:      q.Get("page"),
		Limit:     q.Get("limit"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{
		"data":  res.Items,
		"total": res.Total,
		"page":  res.Page,
		"pages": res.Pages,
	})
}
