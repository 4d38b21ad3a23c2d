package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockflow/stockflow-backend/internal/stockout/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ScanHandler handles barcode resolution and scan processing
type ScanHandler struct {
	resolver  *service.ResolverService
	processor *service.ProcessorService
	logger    *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(resolver *service.ResolverService, processor *service.ProcessorService, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		resolver:  resolver,
		processor: processor,
		logger:    log,
	}
}

// Resolve resolves a scanned barcode to a unit
func (h *ScanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	unit, err := h.resolver.Resolve(r.Context(), barcode)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, unit)
}

// ValidateScan reports whether a scan would be accepted, without
// recording anything
func (h *ScanHandler) ValidateScan(w http.ResponseWriter, r *http.Request) {
	stockOutID := chi.URLParam(r, "id")

	var req struct {
		Barcode string `json:"barcode" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	validation, err := h.processor.ValidateScan(r.Context(), stockOutID, req.Barcode)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, validation)
}

// ProcessScan records one scan against a request
func (h *ScanHandler) ProcessScan(w http.ResponseWriter, r *http.Request) {
	stockOutID := chi.URLParam(r, "id")

	var input service.ScanInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	input.StockOutID = stockOutID

	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.processor.ProcessScan(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}
