package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/model"
	"github.com/berthwatch/backend/pkg/metrics"
	"github.com/berthwatch/backend/pkg/pdftable/pdftest"
	"github.com/berthwatch/backend/repository"
	"github.com/berthwatch/backend/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct{ data []byte }

func (f staticFetcher) Fetch(context.Context) ([]byte, error) { return f.data, nil }

func testApp(mutate func(*config.Config)) *app {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	return &app{
		cfg:     cfg,
		store:   repository.NewMemoryStore(0),
		fetcher: staticFetcher{data: []byte("not a pdf")},
		metrics: metrics.NewRegistry(),
	}
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func pdfUpload(t *testing.T, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "CQYB.pdf")
	require.NoError(t, err)
	part.Write([]byte(content))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-pdf", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRouterHealth(t *testing.T) {
	router := testApp(nil).router()

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouterMetrics(t *testing.T) {
	router := testApp(func(c *config.Config) { c.Metrics.Enabled = true }).router()

	do(t, router, httptest.NewRequest(http.MethodGet, "/health", nil))
	w := do(t, router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "berthwatch_http_requests_total")
}

func TestRouterLatestShipEmpty(t *testing.T) {
	router := testApp(nil).router()

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/latest-ship", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterShipsUnparseableSource(t *testing.T) {
	router := testApp(nil).router()

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/ships", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRouterUploadUnparseable(t *testing.T) {
	router := testApp(nil).router()

	w := do(t, router, pdfUpload(t, "not a pdf"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// schedule is a two-page berthing schedule with stroked rulings and a
// scaled second page. Two of its three rows qualify.
func schedule() []byte {
	first := pdftest.ScheduleTable(pdftest.Paths, 14, append(pdftest.ScheduleHeader(),
		pdftest.ScheduleRow("01/05-1200", "RORO", "mundra", "ALPHA"),
		pdftest.ScheduleRow("02/05-0800", "BULK", "Mundra", "BETA"),
	))
	second := pdftest.ScheduleTable(pdftest.Rects, 14, [][]string{
		pdftest.ScheduleRow("03/05-1800", "RORO", "Pipavav", "GAMMA"),
	})
	second.Scale = 0.5
	return pdftest.New().AddPage(first.Content()).AddPage(second.Content()).Bytes()
}

func TestRouterUploadThenLatestShip(t *testing.T) {
	router := testApp(nil).router()

	w := do(t, router, pdfUpload(t, string(schedule())))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Count   int    `json:"count"`
		BatchID string `json:"batch_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 2, created.Count)
	require.NotEmpty(t, created.BatchID)

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/latest-ship", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var latest []model.VesselRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	require.Len(t, latest, 2)
	assert.Equal(t, "ALPHA", latest[0].VesselName)
	assert.Equal(t, "Mundra", latest[0].LastPort)
	assert.Equal(t, "GAMMA", latest[1].VesselName)
	assert.Equal(t, "Pipavav", latest[1].LastPort)
	for _, r := range latest {
		assert.Equal(t, created.BatchID, r.BatchID)
	}
}

func TestRouterShipsFromSource(t *testing.T) {
	a := testApp(nil)
	a.fetcher = staticFetcher{data: schedule()}

	router := a.router()

	w := do(t, router, httptest.NewRequest(http.MethodGet, "/ships", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var ships []model.VesselRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ships))
	require.Len(t, ships, 2)
	assert.Equal(t, "BERTH3", ships[1].Remarks)

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/latest-ship", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "/ships does not store a batch")
}

func TestRouterOrders(t *testing.T) {
	router := testApp(nil).router()

	req := httptest.NewRequest(http.MethodPost, "/save-order",
		strings.NewReader(`{"whatsapp_number":"+911","order_date":"2024-03-01","called_date":"2024-03-02","colour":"red"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, router, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, httptest.NewRequest(http.MethodGet, "/latest-orders", nil))
	assert.JSONEq(t, `{"red":"2024-03-01"}`, w.Body.String())
}

func TestRouterUploadRequiresTokenWhenAuthEnabled(t *testing.T) {
	router := testApp(func(c *config.Config) {
		c.Auth.Enabled = true
		c.Auth.JWTSecret = "test-secret"
		c.Users = []config.User{{Username: "ops", Password: "pw"}}
	}).router()

	w := do(t, router, pdfUpload(t, "not a pdf"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ops","password":"pw"}`))
	login.Header.Set("Content-Type", "application/json")
	w = do(t, router, login)
	require.Equal(t, http.StatusOK, w.Code)

	var token struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))

	req := pdfUpload(t, "not a pdf")
	req.Header.Set("Authorization", "Bearer "+token.Token)
	w = do(t, router, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "authorized upload reaches the extractor")
}

func TestRouterLoginDisabledWithoutAuth(t *testing.T) {
	router := testApp(nil).router()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{}`))
	w := do(t, router, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func runExtract(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"extract"}, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestExtractCommandMissingConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "CQYB.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF"), 0o644))

	_, err := runExtract(t, file, "--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "a missing --config file is an error")
}

func TestExtractCommandRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("log:\n  level: error\n"), 0o644))
	file := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(file, []byte("not a pdf"), 0o644))

	out, err := runExtract(t, file, "--config", cfgFile)
	assert.ErrorIs(t, err, service.ErrParse)
	assert.Empty(t, out)
}

func TestExtractCommandArgs(t *testing.T) {
	assert.Equal(t, "extract <file.pdf>", extractCmd.Use)
	assert.Error(t, extractCmd.Args(extractCmd, nil))
	assert.NoError(t, extractCmd.Args(extractCmd, []string{"a.pdf"}))
}

func TestExtractCommandPrintsRecords(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("log:\n  level: error\n"), 0o644))
	file := filepath.Join(dir, "CQYB.pdf")
	require.NoError(t, os.WriteFile(file, schedule(), 0o644))

	out, err := runExtract(t, file, "--config", cfgFile)
	require.NoError(t, err)

	var records []model.VesselRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "ALPHA", records[0].VesselName)
}
