package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockflow/stockflow-backend/internal/stockout/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// RequestHandler handles the stock-out request lifecycle
type RequestHandler struct {
	requests   *service.RequestService
	processor  *service.ProcessorService
	completion *service.CompletionService
	logger     *logger.Logger
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requests *service.RequestService, processor *service.ProcessorService, completion *service.CompletionService, log *logger.Logger) *RequestHandler {
	return &RequestHandler{
		requests:   requests,
		processor:  processor,
		completion: completion,
		logger:     log,
	}
}

// Create creates a new stock-out request
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateRequestInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	req, err := h.requests.Create(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, req)
}

// List lists stock-out requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	status := r.URL.Query().Get("status")

	requests, total, err := h.requests.List(r.Context(), page, perPage, status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, requests, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets a stock-out request by ID
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// Progress reports the fulfillment progress of a request
func (h *RequestHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	progress, err := h.processor.Progress(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, progress)
}

// ProcessedItems lists the processed items recorded for a request
func (h *RequestHandler) ProcessedItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	items, err := h.requests.ProcessedItems(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// AuditTrail lists the audit snapshots for a request's processed items
func (h *RequestHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	audits, err := h.requests.AuditTrail(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, audits)
}

// Complete finalizes a request
func (h *RequestHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Items []service.CompleteItem `json:"items"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.completion.Complete(r.Context(), id, req.Items)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Reject rejects a request
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.requests.Reject(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}
