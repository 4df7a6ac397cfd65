package expenses

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gescom-app/gescom/internal/auth"
	"github.com/gescom-app/gescom/internal/platform/httpx"
	"github.com/gescom-app/gescom/internal/shared"
)

// ReceiptEnqueuer schedules background parsing of an uploaded receipt's
// OCR text.
type ReceiptEnqueuer func(ctx context.Context, receiptRef, text string, uploadedBy int64) error

// Handler exposes expense endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueue  ReceiptEnqueuer
	validate *validator.Validate
}

// NewHandler constructs the handler. enqueue may be nil when background
// parsing is disabled.
func NewHandler(logger *slog.Logger, service *Service, enqueue ReceiptEnqueuer) *Handler {
	return &Handler{logger: logger, service: service, enqueue: enqueue, validate: validator.New()}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermExpenseView))
		r.Get("/expenses", h.ListExpenses)
		r.Get("/expenses/{id}", h.ShowExpense)
		r.Get("/expenses/summary", h.MonthlySummary)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermExpenseEdit))
		r.Post("/expenses", h.CreateExpense)
		r.Post("/expenses/receipts", h.UploadReceipt)
		r.Patch("/expenses/{id}", h.UpdateExpense)
		r.Post("/expenses/{id}/submit", h.SubmitExpense)
		r.Post("/expenses/{id}/approve", h.ApproveExpense)
		r.Post("/expenses/{id}/reject", h.RejectExpense)
	})
}

type listExpensesResponse struct {
	Expenses   []Expense         `json:"expenses"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.ParsePageQuery(r)
	req := ListExpensesRequest{Limit: perPage, Offset: shared.Offset(page, perPage)}
	if v := r.URL.Query().Get("status"); v != "" {
		st := ExpenseStatus(v)
		req.Status = &st
	}
	if v := r.URL.Query().Get("category"); v != "" {
		c := Category(v)
		req.Category = &c
	}
	if v := r.URL.Query().Get("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DateFrom = &t
		}
	}
	if v := r.URL.Query().Get("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DateTo = &t
		}
	}

	expenses, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listExpensesResponse{
		Expenses:   expenses,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) ShowExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := r.URL.Query().Get("month"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			month = m
		}
	}
	summary, err := h.service.MonthlySummary(r.Context(), year, month)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	e, err := h.service.Create(r.Context(), req, sess.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}
	var req UpdateExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	e, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) SubmitExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Submit(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) ApproveExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	e, err := h.service.Approve(r.Context(), id, sess.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) RejectExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.expenseID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	e, err := h.service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

type uploadReceiptRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

// UploadReceipt accepts the OCR text of a receipt and schedules its
// parsing. The draft expense appears once the worker has run.
func (h *Handler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	if h.enqueue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "receipt parsing is disabled")
		return
	}
	var req uploadReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	receiptRef := uuid.NewString()
	if err := h.enqueue(r.Context(), receiptRef, req.Text, sess.UserID); err != nil {
		h.logger.Error("enqueue receipt parse", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"receipt_ref": receiptRef})
}

func (h *Handler) expenseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid expense id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrExpenseNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrBadAmounts):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("expenses handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
