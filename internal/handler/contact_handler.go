package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/smartkhata/internal/contact"
	"github.com/hitoshi/smartkhata/internal/model"
)

// ContactServiceInterface は問い合わせハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	Create(ctx context.Context, in contact.Input) (*model.ContactMessage, error)
}

// ContactHandler は公開問い合わせフォームのHTTPハンドラー。
type ContactHandler struct {
	service ContactServiceInterface
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactServiceInterface) *ContactHandler {
	return &ContactHandler{service: service}
}

// Create は問い合わせを受け付ける。
// POST /api/contact/create
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in contact.Input
	if err := decodeBody(r, w, &in); err != nil {
		handleServiceError(w, r, err)
		return
	}

	msg, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Message sent successfully", envelope{"data": msg})
}
