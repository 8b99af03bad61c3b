package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type routeHandler struct {
	path string
}

func (h routeHandler) Register(e *echo.Echo) {
	e.GET(h.path, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET(h.path+"/panic", func(c echo.Context) error {
		panic("boom")
	})
}

func TestNewServer_RegistersHandlersAndLogs(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	srv := NewServer(log, "", routeHandler{path: "/a"}, nil)
	if srv.Addr() != ":8080" {
		t.Fatalf("addr = %q, want :8080", srv.Addr())
	}

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(logs.String(), "msg=request") || !strings.Contains(logs.String(), "uri=/a") {
		t.Fatalf("expected request log, got %s", logs.String())
	}
}

func TestNewServer_RecoversPanics(t *testing.T) {
	t.Parallel()

	srv := NewServer(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), ":0", routeHandler{path: "/a"})
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
