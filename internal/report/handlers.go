package report

import (
	"net/http"
	"time"

	"github.com/Prjsupa/vivero-api/internal/common"
)

// Handler exposes report read endpoints.
type Handler struct {
	Svc *Service
}

// Sales handles GET /api/v1/reports/sales.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.rangeBounds(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "report query failed", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// TopItems handles GET /api/v1/reports/top-items.
func (h *Handler) TopItems(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.rangeBounds(w, r)
	if !ok {
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 10)
	rows, err := h.Svc.TopItems(r.Context(), from, to, limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "report query failed", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// rangeBounds resolves the report window from explicit from/to query params or
// a trailing number of days.
func (h *Handler) rangeBounds(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	now := h.Svc.now()
	var (
		from time.Time
		to   time.Time
		err  error
	)
	if fromStr != "" && toStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid from date", nil)
			return time.Time{}, time.Time{}, false
		}
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid to date", nil)
			return time.Time{}, time.Time{}, false
		}
	} else {
		days := h.Svc.DefaultRange
		if days <= 0 {
			days = 30
		}
		if raw := query.Get("days"); raw != "" {
			parsed := common.AtoiDefault(raw, days)
			if parsed > 0 {
				days = parsed
			}
		}
		to = now
		from = to.AddDate(0, 0, -days)
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "from must be before to", nil)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
