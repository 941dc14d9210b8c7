package quotes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/layerworks/layerworks/internal/platform/httpx"
	"github.com/layerworks/layerworks/internal/rbac"
	"github.com/layerworks/layerworks/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListQuotesRequest{
		Limit:  parseInt(r.URL.Query().Get("limit"), 50),
		Offset: parseInt(r.URL.Query().Get("offset"), 0),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		st := Status(strings.ToLower(status))
		req.Status = &st
	}
	quotes, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	page := 1
	if req.Limit > 0 {
		page = req.Offset/req.Limit + 1
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"quotes":     quotes,
		"total":      total,
		"pagination": shared.NewPagination(page, req.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	quote, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// PDF streams a printable copy of the quote.
func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	quote, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	body, err := RenderPDF(quote)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quote-%d.pdf"`, quote.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Invalid Request",
			Status: http.StatusBadRequest,
			Detail: "malformed quote payload",
			Kind:   string(KindInvalidInput),
		})
		return
	}
	quote, err := h.service.Create(r.Context(), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Location", "/api/quotes/"+strconv.FormatInt(quote.ID, 10))
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Convert(r.Context(), id, currentActor(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(w, r)
	if !ok {
		return
	}
	quote, err := h.service.Cancel(r.Context(), id, currentActor(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	var req SalesSummaryRequest
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if req.From, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "from must be YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if req.To, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "to must be YYYY-MM-DD")
			return
		}
		// The summary window is half-open, so include the whole "to" day.
		req.To = req.To.AddDate(0, 0, 1)
	}
	summary, err := h.service.SalesSummary(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	problem := httpx.ProblemDetail{Kind: string(kind), Detail: err.Error()}
	switch kind {
	case KindNotFound:
		problem.Status, problem.Title = http.StatusNotFound, "Not Found"
	case KindInvalidInput:
		problem.Status, problem.Title = http.StatusBadRequest, "Validation Failed"
		problem.Fields = fieldErrors(err)
	case KindInvalidStatus:
		problem.Status, problem.Title = http.StatusConflict, "Invalid Status"
	case KindInsufficientStock:
		problem.Status, problem.Title = http.StatusConflict, "Insufficient Stock"
	case KindConflict:
		problem.Status, problem.Title = http.StatusConflict, "Conflict"
	default:
		if h.logger != nil {
			h.logger.Error("quotes request failed", slog.Any("error", err))
		}
		problem.Status, problem.Title, problem.Detail = http.StatusInternalServerError, "Internal Error", ""
	}
	httpx.WriteProblem(w, problem)
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return fields
}

func quoteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Invalid Request",
			Status: http.StatusBadRequest,
			Detail: "invalid quote id",
			Kind:   string(KindInvalidInput),
		})
		return 0, false
	}
	return id, true
}

func currentActor(r *http.Request) int64 {
	principal, ok := rbac.PrincipalFromSession(shared.SessionFromContext(r.Context()), nil)
	if !ok {
		return 0
	}
	return principal.UserID
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
