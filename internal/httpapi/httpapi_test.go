package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ghcnd-server/internal/config"
	"ghcnd-server/internal/modules/stations/repository"

	_ "github.com/mattn/go-sqlite3"
)

type fakeStatus struct {
	info *repository.LoadInfo
	err  error
}

func (f fakeStatus) Status(context.Context) (*repository.LoadInfo, error) {
	return f.info, f.err
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHealthz(t *testing.T) {
	loadedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		status   CatalogStatus
		wantCode int
		wantBody string
	}{
		{name: "no catalog provider", status: nil, wantCode: http.StatusOK, wantBody: `{"status":"ok","catalog":null}`},
		{name: "not loaded yet", status: fakeStatus{}, wantCode: http.StatusOK, wantBody: `{"status":"ok","catalog":null}`},
		{
			name:     "loaded",
			status:   fakeStatus{info: &repository.LoadInfo{Source: "cache", Stations: 3, LoadedAt: loadedAt}},
			wantCode: http.StatusOK,
			wantBody: `{"status":"ok","catalog":{"source":"cache","stations":3,"loadedAt":"2024-05-01T12:00:00Z"}}`,
		},
		{name: "status error", status: fakeStatus{err: errors.New("no such table")}, wantCode: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := NewMux(openDB(t), tt.status)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d; want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && strings.TrimSpace(rec.Body.String()) != tt.wantBody {
				t.Errorf("body = %s; want %s", rec.Body, tt.wantBody)
			}
		})
	}
}

func TestHealthz_ClosedDB(t *testing.T) {
	db := openDB(t)
	_ = db.Close()
	rec := httptest.NewRecorder()
	NewMux(db, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", rec.Code)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantOrigin string
	}{
		{name: "wildcard", allowed: []string{"*", "http://localhost:5173"}, origin: "https://maps.example", wantOrigin: "*"},
		{name: "listed origin", allowed: []string{"http://localhost:5173", "http://127.0.0.1:5173"}, origin: "http://127.0.0.1:5173", wantOrigin: "http://127.0.0.1:5173"},
		{name: "unlisted origin", allowed: []string{"http://localhost:5173"}, origin: "https://evil.example", wantOrigin: ""},
		{name: "no origin", allowed: []string{"*"}, origin: "", wantOrigin: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stations", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			cors(tt.allowed, okHandler()).ServeHTTP(rec, req)

			if rec.Code != http.StatusTeapot {
				t.Errorf("status = %d; want handler status", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q; want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/data/GME00102380/year", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()

	cors([]string{"http://localhost:5173"}, okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d; want 204", rec.Code)
	}
	h := rec.Header()
	if h.Get("Access-Control-Allow-Methods") != "GET, OPTIONS" || h.Get("Access-Control-Allow-Headers") != "content-type" {
		t.Errorf("preflight headers = %v", h)
	}
	if h.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", h.Get("Access-Control-Allow-Origin"))
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	rec := httptest.NewRecorder()
	requestLogger(logger, okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stations/essen", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "http request" || entry["method"] != "GET" || entry["path"] != "/stations/essen" || entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("log entry = %v", entry)
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("missing duration_ms")
	}
}

func TestNewServer(t *testing.T) {
	cfg := config.Config{HTTPAddr: "127.0.0.1:0", CORSAllowedOrigins: []string{"*"}}
	srv := NewServer(cfg, http.NewServeMux(), nil)
	if srv.Addr != "127.0.0.1:0" || srv.Handler == nil || srv.ReadHeaderTimeout == 0 {
		t.Errorf("server = %+v", srv)
	}
}
