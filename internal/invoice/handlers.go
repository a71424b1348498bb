package invoice

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/Prjsupa/vivero-api/internal/common"
)

// Handler exposes invoice endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

// Create handles POST /api/v1/invoices.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CartID string `json:"cartId" validate:"required,uuid"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	dto, err := h.Service.Create(r.Context(), req.CartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": dto})
}

// List handles GET /api/v1/invoices.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	invoices, total, err := h.Service.List(r.Context(), page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{"data": invoices})
}

// Get handles GET /api/v1/invoices/{invoiceID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	dto, err := h.Service.Get(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": dto})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid JSON body", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			var verrs validator.ValidationErrors
			details := any(nil)
			if errors.As(err, &verrs) {
				fields := make(map[string]string, len(verrs))
				for _, fe := range verrs {
					fields[fe.Field()] = fe.Tag()
				}
				details = map[string]any{"fields": fields}
			}
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", details)
			return false
		}
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
}
