package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bcgov/lcfs-portal/internal/columns"
	"github.com/bcgov/lcfs-portal/internal/domain"
	"github.com/bcgov/lcfs-portal/internal/middleware"
	"github.com/bcgov/lcfs-portal/internal/pagination"
	"github.com/bcgov/lcfs-portal/internal/query"
	"github.com/bcgov/lcfs-portal/internal/resources"
	"github.com/bcgov/lcfs-portal/internal/usecases"
)

const maxBodySize = 1 << 20

// ReportHandler handles HTTP requests for reports, lists and lookups
type ReportHandler struct {
	usecase *usecases.ReportUsecase
	logger  *zap.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(usecase *usecases.ReportUsecase, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// Routes mounts every endpoint on r
func (h *ReportHandler) Routes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/current", h.GetCurrentReport)   // GET /reports/current
		r.Delete("/current", h.CloseReport)     // DELETE /reports/current
		r.Get("/{id}", h.GetReport)             // GET /reports/{id}
		r.Put("/{id}", h.UpdateReport)          // PUT /reports/{id}
		r.Delete("/{id}", h.DeleteReport)       // DELETE /reports/{id}
		r.Get("/{id}/summary", h.GetSummary)    // GET /reports/{id}/summary
		r.Get("/{id}/export", h.ExportReport)   // GET /reports/{id}/export
		r.Post("/{id}/{resource}/list", h.ListReportResource)
		r.Post("/{id}/{resource}/save", h.SaveLineItem)
	})
	r.Post("/organizations/{orgID}/{resource}/list", h.ListOrganizationResource)
	r.Post("/lists/{resource}", h.ListResource)
	r.Get("/lookups/{resource}", h.Lookup)
	r.Post("/grid/layout", h.GridLayout)
	r.Post("/grid/export", h.GridExport)
}

// queryResponse is the body of every query endpoint
type queryResponse struct {
	Data      any        `json:"data,omitempty"`
	Stale     bool       `json:"stale"`
	FromCache bool       `json:"fromCache"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// GetCurrentReport handles GET /reports/current
func (h *ReportHandler) GetCurrentReport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	report, ok := h.usecase.CurrentReport()
	if !ok {
		h.respondError(w, http.StatusNotFound, "no report is open", requestID)
		return
	}
	h.respondJSON(w, http.StatusOK, report, requestID)
}

// CloseReport handles DELETE /reports/current
func (h *ReportHandler) CloseReport(w http.ResponseWriter, r *http.Request) {
	h.usecase.CloseReport()
	w.WriteHeader(http.StatusNoContent)
}

// GetReport handles GET /reports/{id}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	report, err := h.usecase.GetReport(ctx, id)
	if err != nil {
		h.fail(w, "failed to get report", err, requestID, zap.Int("report_id", id))
		return
	}
	h.respondJSON(w, http.StatusOK, report, requestID)
}

// UpdateReport handles PUT /reports/{id}
func (h *ReportHandler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	var fields map[string]any
	if err := h.decode(r, &fields); err != nil || len(fields) == 0 {
		h.respondError(w, http.StatusBadRequest, "invalid request body", requestID)
		return
	}

	report, err := h.usecase.UpdateReport(ctx, id, fields)
	if err != nil {
		h.fail(w, "failed to update report", err, requestID, zap.Int("report_id", id))
		return
	}
	h.respondJSON(w, http.StatusOK, report, requestID)
}

// DeleteReport handles DELETE /reports/{id}
func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	if err := h.usecase.DeleteReport(ctx, id); err != nil {
		h.fail(w, "failed to delete report", err, requestID, zap.Int("report_id", id))
		return
	}
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary handles GET /reports/{id}/summary
func (h *ReportHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	h.respondResult(w, r, h.usecase.Summary(r.Context(), id).Untyped())
}

// ExportReport handles GET /reports/{id}/export
func (h *ReportHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	dl, err := h.usecase.ExportReport(ctx, id)
	if err != nil {
		h.fail(w, "failed to export report", err, requestID, zap.Int("report_id", id))
		return
	}

	h.writeDownload(w, dl, requestID)
}

func (h *ReportHandler) writeDownload(w http.ResponseWriter, dl *domain.Download, requestID string) {
	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if dl.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	}
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}

// ListReportResource handles POST /reports/{id}/{resource}/list
func (h *ReportHandler) ListReportResource(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	h.list(w, r, chi.URLParam(r, "resource"), map[string]any{resources.ScopeReport: id})
}

// ListOrganizationResource handles POST /organizations/{orgID}/{resource}/list
func (h *ReportHandler) ListOrganizationResource(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	orgID, err := strconv.Atoi(chi.URLParam(r, "orgID"))
	if err != nil || orgID < 1 {
		h.respondError(w, http.StatusBadRequest, "invalid organization id", requestID)
		return
	}
	h.list(w, r, "organization-"+chi.URLParam(r, "resource"), map[string]any{resources.ScopeOrganization: orgID})
}

// ListResource handles POST /lists/{resource}
func (h *ReportHandler) ListResource(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, chi.URLParam(r, "resource"), nil)
}

func (h *ReportHandler) list(w http.ResponseWriter, r *http.Request, resource string, scope map[string]any) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var p pagination.Partial
	if err := h.decode(r, &p); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", requestID)
		return
	}

	res, err := h.usecase.List(ctx, resource, p, scope)
	if err != nil {
		h.fail(w, "failed to list", err, requestID, zap.String("resource", resource))
		return
	}
	h.respondResult(w, r, res)
}

// SaveLineItem handles POST /reports/{id}/{resource}/save
func (h *ReportHandler) SaveLineItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	resource := chi.URLParam(r, "resource")

	var item map[string]any
	if err := h.decode(r, &item); err != nil || item == nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", requestID)
		return
	}

	saved, err := h.usecase.SaveLineItem(ctx, resource, id, item)
	if err != nil {
		h.fail(w, "failed to save line item", err, requestID,
			zap.String("resource", resource),
			zap.Int("report_id", id),
		)
		return
	}
	h.respondJSON(w, http.StatusOK, saved, requestID)
}

// Lookup handles GET /lookups/{resource}; query parameters are the scope
func (h *ReportHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	resource := chi.URLParam(r, "resource")

	scope := make(map[string]any)
	for name, values := range r.URL.Query() {
		if len(values) > 0 && values[0] != "" {
			scope[name] = values[0]
		}
	}

	res, err := h.usecase.Lookup(ctx, resource, scope)
	if err != nil {
		h.fail(w, "failed to look up", err, requestID, zap.String("resource", resource))
		return
	}
	h.respondResult(w, r, res)
}

// layoutRequest is the body of POST /grid/layout
type layoutRequest struct {
	Columns       []columns.ColumnDefinition `json:"columns"`
	State         []columns.ColumnState      `json:"state,omitempty"`
	ViewportWidth float64                    `json:"viewportWidth"`
	RelaxMinWidth *float64                   `json:"relaxMinWidth,omitempty"`
}

type layoutResponse struct {
	columns.LayoutResult
	State []columns.ColumnState `json:"state"`
}

// GridLayout handles POST /grid/layout
func (h *ReportHandler) GridLayout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req layoutRequest
	if err := h.decode(r, &req); err != nil || req.ViewportWidth <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid layout request", requestID)
		return
	}

	grid := columns.NewGrid(req.Columns)
	if len(req.State) > 0 {
		grid.ApplyColumnState(req.State, true)
	}
	if req.RelaxMinWidth != nil {
		columns.RelaxColumnMinWidths(grid, grid, *req.RelaxMinWidth)
	}

	h.respondJSON(w, http.StatusOK, layoutResponse{
		LayoutResult: columns.Layout(grid.ColumnDefs(), req.ViewportWidth),
		State:        grid.ColumnState(),
	}, requestID)
}

// exportRequest is the body of POST /grid/export
type exportRequest struct {
	Resource string                     `json:"resource"`
	Scope    map[string]any             `json:"scope,omitempty"`
	Request  pagination.Partial         `json:"request"`
	Columns  []columns.ColumnDefinition `json:"columns"`
}

// GridExport handles POST /grid/export: the requested list page as xlsx
func (h *ReportHandler) GridExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req exportRequest
	if err := h.decode(r, &req); err != nil || req.Resource == "" {
		h.respondError(w, http.StatusBadRequest, "invalid export request", requestID)
		return
	}

	dl, err := h.usecase.ExportList(ctx, req.Resource, req.Request, req.Scope, req.Columns)
	if err != nil {
		h.fail(w, "failed to export list", err, requestID, zap.String("resource", req.Resource))
		return
	}
	h.writeDownload(w, dl, requestID)
}

// reportID parses the {id} parameter and answers 400 when it is invalid
func (h *ReportHandler) reportID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		h.respondError(w, http.StatusBadRequest, "invalid report id", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return id, true
}

// decode reads a JSON body; an empty body leaves v untouched
func (h *ReportHandler) decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// respondResult writes a query result. A failed refetch that still has the
// previous data answers with that data and stale set.
func (h *ReportHandler) respondResult(w http.ResponseWriter, r *http.Request, res query.Result) {
	requestID := middleware.GetRequestID(r.Context())

	if res.Disabled {
		h.respondError(w, http.StatusBadRequest, domain.ErrScopeRequired.Error(), requestID)
		return
	}

	body := queryResponse{
		Stale:     res.Stale,
		FromCache: res.FromCache,
	}
	if !res.UpdatedAt.IsZero() {
		body.UpdatedAt = &res.UpdatedAt
	}

	if res.Err != nil {
		status := statusFor(res.Err)
		h.logger.Warn("query failed",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Bool("stale", res.Stale),
			zap.Error(res.Err),
		)
		body.Error = res.Err.Error()
		body.RequestID = requestID
		if res.Stale {
			body.Data = res.Data
		}
		h.respondJSON(w, status, body, requestID)
		return
	}

	body.Data = res.Data
	h.respondJSON(w, http.StatusOK, body, requestID)
}

// fail logs err and answers with the matching status
func (h *ReportHandler) fail(w http.ResponseWriter, msg string, err error, requestID string, fields ...zap.Field) {
	status := statusFor(err)
	fields = append(fields, zap.String("request_id", requestID), zap.Int("status", status), zap.Error(err))
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, fields...)
	} else {
		h.logger.Warn(msg, fields...)
	}
	h.respondError(w, status, err.Error(), requestID)
}

// statusFor maps domain errors to HTTP statuses
func statusFor(err error) int {
	var netErr *domain.NetworkError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrScopeRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownResource), errors.Is(err, domain.ErrReportNotFound), domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &netErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondJSON sends a JSON response
func (h *ReportHandler) respondJSON(w http.ResponseWriter, status int, data any, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

// respondError sends an error response
func (h *ReportHandler) respondError(w http.ResponseWriter, status int, message, requestID string) {
	h.respondJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestID,
	}, requestID)
}
