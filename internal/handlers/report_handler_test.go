package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/bcgov/lcfs-portal/internal/cache"
	"github.com/bcgov/lcfs-portal/internal/columns"
	"github.com/bcgov/lcfs-portal/internal/invalidation"
	"github.com/bcgov/lcfs-portal/internal/middleware"
	"github.com/bcgov/lcfs-portal/internal/query"
	"github.com/bcgov/lcfs-portal/internal/reports"
	"github.com/bcgov/lcfs-portal/internal/resources"
	"github.com/bcgov/lcfs-portal/internal/transport"
	"github.com/bcgov/lcfs-portal/internal/usecases"
)

// fakeAPI answers like the LCFS API and counts requests per path
type fakeAPI struct {
	mu     sync.Mutex
	calls  map[string]int
	failed atomic.Bool
}

func (f *fakeAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.Method+" "+r.URL.Path]++
	f.mu.Unlock()

	if f.failed.Load() {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "GET /reports/7":
		_, _ = w.Write([]byte(`{"complianceReportId": 7, "organizationId": 3, "compliancePeriod": "2024", "currentStatus": "Draft"}`))
	case "PUT /reports/7":
		_, _ = w.Write([]byte(`{"complianceReportId": 7, "organizationId": 3, "compliancePeriod": "2024", "currentStatus": "Submitted"}`))
	case "DELETE /reports/7":
		w.WriteHeader(http.StatusNoContent)
	case "GET /reports/7/summary":
		_, _ = w.Write([]byte(`{"summaryId": 70, "canSign": true}`))
	case "GET /reports/7/export":
		w.Header().Set("Content-Type", "application/vnd.ms-excel")
		w.Header().Set("Content-Disposition", `attachment; filename="CR-7.xlsx"`)
		_, _ = w.Write([]byte("xlsx"))
	case "POST /notional-transfers/list":
		_, _ = w.Write([]byte(`{"notionalTransfers": [{"notionalTransferId": 1}], "pagination": {"page": 1, "size": 10, "total": 1, "totalPages": 1}}`))
	case "POST /notional-transfers/save":
		_, _ = w.Write([]byte(`{"notionalTransferId": 2}`))
	case "POST /organization/3/users/list":
		_, _ = w.Write([]byte(`{"users": [{"userProfileId": 11}], "pagination": {"page": 1, "size": 10, "total": 1, "totalPages": 1}}`))
	case "GET /notional-transfers/table-options":
		_, _ = w.Write([]byte(`{"fuelCategories": []}`))
	case "GET /reports/404":
		http.Error(w, "not found", http.StatusNotFound)
	default:
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.NotFound(w, r)
	}
}

type handlerFixture struct {
	api    *fakeAPI
	router http.Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	api := &fakeAPI{calls: make(map[string]int)}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := transport.NewClient(server.URL, logger)
	require.NoError(t, err)

	queries := query.NewClient(cache.NewShardedCache(4, 0), logger, query.WithStaleTime(-1))
	store, err := reports.NewStore(0, logger)
	require.NoError(t, err)
	registry := resources.NewRegistry()
	policy := invalidation.NewPolicy(queries, store, registry, logger)
	usecase := usecases.NewReportUsecase(client, queries, store, policy, registry, logger, 4)
	t.Cleanup(usecase.Shutdown)

	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	NewReportHandler(usecase, logger).Routes(r)

	return &handlerFixture{api: api, router: r}
}

func (f *handlerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// TestGetReport tests opening a report and reading the current one
func TestGetReport(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/reports/current", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/reports/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "Draft", decodeBody(t, w)["currentStatus"])

	w = f.do(t, http.MethodGet, "/reports/current", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, decodeBody(t, w)["complianceReportId"])

	w = f.do(t, http.MethodDelete, "/reports/current", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/reports/current", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestGetReportErrors tests status mapping for bad ids and missing reports
func TestGetReportErrors(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/reports/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid report id", decodeBody(t, w)["error"])

	w = f.do(t, http.MethodGet, "/reports/404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["request_id"])
}

// TestUpdateAndDeleteReport tests report mutations
func TestUpdateAndDeleteReport(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPut, "/reports/7", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/reports/7", `{"currentStatus": "Submitted"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Submitted", decodeBody(t, w)["currentStatus"])

	w = f.do(t, http.MethodDelete, "/reports/7", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, f.api.count("DELETE /reports/7"))
}

// TestListReportResource tests a report scoped list and its cache
func TestListReportResource(t *testing.T) {
	f := newHandlerFixture(t)
	body := `{"page": 1, "size": 10}`

	w := f.do(t, http.MethodPost, "/reports/7/notional-transfers/list", body)
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, false, out["fromCache"])
	data := out["data"].(map[string]any)
	assert.Len(t, data["rows"], 1)

	w = f.do(t, http.MethodPost, "/reports/7/notional-transfers/list", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["fromCache"])
	assert.Equal(t, 1, f.api.count("POST /notional-transfers/list"))

	w = f.do(t, http.MethodPost, "/reports/7/notional-transfers/save", `{"quantity": 5}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody(t, w)["notionalTransferId"])

	w = f.do(t, http.MethodPost, "/reports/7/notional-transfers/list", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["fromCache"], "save invalidates the list")
	assert.Equal(t, 2, f.api.count("POST /notional-transfers/list"))
}

// TestListStaleOnFailure tests that a failed refetch answers with the last page
func TestListStaleOnFailure(t *testing.T) {
	f := newHandlerFixture(t)
	body := `{"page": 1, "size": 10}`

	w := f.do(t, http.MethodPost, "/reports/7/notional-transfers/list", body)
	require.Equal(t, http.StatusOK, w.Code)

	f.api.failed.Store(true)
	w = f.do(t, http.MethodPost, "/reports/7/notional-transfers/save", `{"quantity": 5}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = f.do(t, http.MethodPost, "/reports/7/notional-transfers/list", body)
	require.Equal(t, http.StatusBadGateway, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, true, out["stale"])
	assert.Contains(t, out["error"], "503")
	data := out["data"].(map[string]any)
	assert.Len(t, data["rows"], 1)
}

// TestListValidation tests invalid list requests
func TestListValidation(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"page zero", "/reports/7/notional-transfers/list", `{"page": 0}`, http.StatusBadRequest},
		{"malformed body", "/reports/7/notional-transfers/list", `{`, http.StatusBadRequest},
		{"unknown resource", "/lists/widgets", "", http.StatusNotFound},
		{"missing scope", "/lists/notional-transfers", "", http.StatusBadRequest},
		{"bad organization", "/organizations/x/users/list", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Zero(t, f.api.count("POST /notional-transfers/list"))
}

// TestListOrganizationResource tests organization scoped lists
func TestListOrganizationResource(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/organizations/3/users/list", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Len(t, data["rows"], 1)
	assert.Equal(t, 1, f.api.count("POST /organization/3/users/list"))
}

// TestLookupAndSummary tests lookups scoped by query parameters
func TestLookupAndSummary(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/lookups/notional-transfer-options", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/lookups/notional-transfer-options?compliancePeriod=2024", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w)["data"], "fuelCategories")

	w = f.do(t, http.MethodGet, "/reports/7/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, true, data["canSign"])
}

// TestExportReport tests file download passthrough
func TestExportReport(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/reports/7/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.ms-excel", w.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(w.Header().Get("Content-Disposition"), "CR-7.xlsx"))
	assert.Equal(t, "xlsx", w.Body.String())
}

// TestGridLayout tests layout with and without relaxed min widths
func TestGridLayout(t *testing.T) {
	f := newHandlerFixture(t)

	req := layoutRequest{
		Columns: []columns.ColumnDefinition{
			{Field: "a", MinWidth: columns.Float(80)},
			{Field: "b", Width: columns.Float(150)},
		},
		ViewportWidth: 200,
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/grid/layout", string(body))
	require.Equal(t, http.StatusOK, w.Code)
	var out layoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.HasFlexColumns)
	assert.Equal(t, 230.0, out.MinWidthSum)
	assert.True(t, out.ScrollRequired)

	req.RelaxMinWidth = columns.Float(columns.DefaultRelaxedMinWidth)
	req.State = []columns.ColumnState{{ColID: "b"}, {ColID: "a"}}
	body, err = json.Marshal(req)
	require.NoError(t, err)

	w = f.do(t, http.MethodPost, "/grid/layout", string(body))
	require.Equal(t, http.StatusOK, w.Code)
	out = layoutResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.State, 2)
	assert.Equal(t, "b", out.State[0].ColID, "column order survives relaxing")
	for _, col := range out.Columns {
		assert.Equal(t, 50.0, *col.MinWidth)
	}

	w = f.do(t, http.MethodPost, "/grid/layout", `{"columns": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestGridExport tests exporting a cached list page as xlsx
func TestGridExport(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/reports/7/notional-transfers/list", `{"page": 1, "size": 10}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := `{
		"resource": "notional-transfers",
		"scope": {"complianceReportId": 7},
		"request": {"page": 1, "size": 10},
		"columns": [{"field": "notionalTransferId", "headerName": "ID"}]
	}`
	w = f.do(t, http.MethodPost, "/grid/export", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "notional-transfers.xlsx")
	assert.Equal(t, 1, f.api.count("POST /notional-transfers/list"), "export reads the cached page")

	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(book.GetSheetName(0))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID"}, {"1"}}, rows)

	w = f.do(t, http.MethodPost, "/grid/export", `{"resource": "notional-transfers", "request": {"page": 1, "size": 10}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing scope")

	w = f.do(t, http.MethodPost, "/grid/export", `{"resource": "notional-transfers", "scope": {"complianceReportId": 7}, "request": {"page": 1, "size": 10}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "no columns")
}
