package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mediastow/mediastow/internal/config"
	"github.com/mediastow/mediastow/internal/logger"
	"github.com/mediastow/mediastow/internal/testutil"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := NewServer(tdb.DB, nil, logger.NewStream(16), cfg, tdb.Logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func doRequest(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func doJSON(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name string `json:"name"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if report.Status == "" {
		t.Error("report has no overall status")
	}
	if len(report.Checks) == 0 {
		t.Error("report has no checks")
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var stats struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
}

func TestItemsEndpointEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/items")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var listed []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("items = %d, want 0", len(listed))
	}
}

func TestItemsEndpointUnknownID(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/items/12345")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestScanWithoutSourceFolders(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/scan")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestOrganizeWithoutDestinationRoots(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(srv, http.MethodPost, "/api/organize", `{"ids":[1]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `{"catalogApiKey":"k","sourceFolders":[{"type":"MOVIES","path":"/incoming/movies"}],"moviesRoot":"/library/movies","tvRoot":"/library/tv","autoOrganize":true}`
	rec := doJSON(srv, http.MethodPut, "/api/settings", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = doRequest(srv, http.MethodGet, "/api/settings")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		MoviesRoot    string `json:"moviesRoot"`
		AutoOrganize  bool   `json:"autoOrganize"`
		SourceFolders []struct {
			Type string `json:"type"`
			Path string `json:"path"`
		} `json:"sourceFolders"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if got.MoviesRoot != "/library/movies" {
		t.Errorf("moviesRoot = %q, want %q", got.MoviesRoot, "/library/movies")
	}
	if !got.AutoOrganize {
		t.Error("autoOrganize not persisted")
	}
	if len(got.SourceFolders) != 1 || got.SourceFolders[0].Type != "MOVIES" {
		t.Errorf("sourceFolders = %+v, want one MOVIES folder", got.SourceFolders)
	}
}

func TestSchedulerTasksEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/scheduler/tasks")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var listed []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("tasks = %d, want 2", len(listed))
	}

	ids := map[string]bool{}
	for _, task := range listed {
		ids[task.ID] = true
	}
	if !ids["history-retention"] || !ids["database-optimize"] {
		t.Errorf("task ids = %v, want history-retention and database-optimize", ids)
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	if _, err := srv.stream.Write([]byte(`{"level":"info","message":"hello","component":"test"}`)); err != nil {
		t.Fatalf("write stream: %v", err)
	}

	rec := doRequest(srv, http.MethodGet, "/api/logs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "hello" {
		t.Errorf("entries = %+v, want single hello entry", entries)
	}
}

func TestAPIKeyGuard(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.APIKey = "secret"
	})

	rec := doRequest(srv, http.MethodGet, "/api/stats")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-Api-Key", "secret")
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("header key: status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doRequest(srv, http.MethodGet, "/api/stats?apikey=secret")
	if rec.Code != http.StatusOK {
		t.Errorf("query key: status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-Api-Key", "wrong")
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAPIKeyGuardDisabledByDefault(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestFilesystemBrowseRefused(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Browser.AllowedRoots = []string{"/definitely-not-here"}
	})

	rec := doRequest(srv, http.MethodGet, "/api/filesystem/browse?path=/etc")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHistoryEndpointEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
