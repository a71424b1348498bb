package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/Prjsupa/vivero-api/internal/common"
)

// Handler exposes cart session endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID *string `json:"customerId" validate:"omitempty,uuid"`
	}
	if r.ContentLength > 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}
	dto, err := h.Service.Create(r.Context(), req.CustomerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": dto})
}

// Get handles GET /api/v1/carts/{cartID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	dto, err := h.Service.Get(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": dto})
}

// Delete handles DELETE /api/v1/carts/{cartID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "cartID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddLine handles POST /api/v1/carts/{cartID}/lines.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var in AddLineInput
	if !h.decode(w, r, &in) {
		return
	}
	line, err := h.Service.AddLine(r.Context(), chi.URLParam(r, "cartID"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": line})
}

// UpdateLineQty handles PATCH /api/v1/carts/{cartID}/lines/{lineID}.
func (h *Handler) UpdateLineQty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid JSON body", nil)
		return
	}
	line, removed, err := h.Service.UpdateQty(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "lineID"), req.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if removed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": line})
}

// SetLineDiscount handles PUT /api/v1/carts/{cartID}/lines/{lineID}/discount.
func (h *Handler) SetLineDiscount(w http.ResponseWriter, r *http.Request) {
	var in DiscountInput
	if !h.decode(w, r, &in) {
		return
	}
	line, err := h.Service.SetLineDiscount(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "lineID"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": line})
}

// RemoveLine handles DELETE /api/v1/carts/{cartID}/lines/{lineID}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.RemoveLine(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "lineID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetGeneralDiscount handles PUT /api/v1/carts/{cartID}/discount.
func (h *Handler) SetGeneralDiscount(w http.ResponseWriter, r *http.Request) {
	var in DiscountInput
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.Service.SetGeneralDiscount(r.Context(), chi.URLParam(r, "cartID"), in); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCustomer handles PUT /api/v1/carts/{cartID}/customer.
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID *string `json:"customerId" validate:"omitempty,uuid"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Service.SetCustomer(r.Context(), chi.URLParam(r, "cartID"), req.CustomerID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quote handles GET /api/v1/carts/{cartID}/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	totals, invoiceType, err := h.Service.Quote(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"invoiceType": invoiceType,
			"totals":      totals,
		},
	})
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
