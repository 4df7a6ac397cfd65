package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gescom-app/gescom/internal/auth"
	"github.com/gescom-app/gescom/internal/platform/httpx"
	"github.com/gescom-app/gescom/internal/shared"
)

// Handler exposes supplier and bill endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermBillView))
		r.Get("/suppliers", h.ListSuppliers)
		r.Get("/bills", h.ListBills)
		r.Get("/bills/{id}", h.ShowBill)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermBillEdit))
		r.Post("/suppliers", h.CreateSupplier)
		r.Post("/bills", h.CreateBill)
		r.Patch("/bills/{id}", h.UpdateBill)
		r.Post("/bills/{id}/schedule", h.ScheduleBill)
		r.Post("/bills/{id}/pay", h.PayBill)
		r.Post("/bills/{id}/void", h.VoidBill)
	})
}

func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	suppliers, err := h.service.ListSuppliers(r.Context(), activeOnly)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req CreateSupplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

type listBillsResponse struct {
	Bills      []Bill            `json:"bills"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.ParsePageQuery(r)
	req := ListBillsRequest{Limit: perPage, Offset: shared.Offset(page, perPage)}
	if v := r.URL.Query().Get("supplier_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid supplier_id")
			return
		}
		req.SupplierID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := BillStatus(v)
		req.Status = &st
	}
	if v := r.URL.Query().Get("due_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DueFrom = &t
		}
	}
	if v := r.URL.Query().Get("due_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DueTo = &t
		}
	}

	bills, total, err := h.service.ListBills(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listBillsResponse{
		Bills:      bills,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) ShowBill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid bill id")
		return
	}
	bill, err := h.service.GetBillWithDetails(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	bill, err := h.service.CreateBill(r.Context(), req, sess.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid bill id")
		return
	}
	var req UpdateBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	bill, err := h.service.UpdateBill(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) ScheduleBill(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id, _ int64) (*Bill, error) {
		return h.service.Schedule(r.Context(), id)
	})
}

func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id, userID int64) (*Bill, error) {
		return h.service.MarkPaid(r.Context(), id, userID)
	})
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) VoidBill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid bill id")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	bill, err := h.service.Void(r.Context(), id, sess.UserID, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(id, userID int64) (*Bill, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid bill id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	bill, err := fn(id, sess.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBillNotFound), errors.Is(err, ErrSupplierNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrDuplicateNumber):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNoLines):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("billing handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
