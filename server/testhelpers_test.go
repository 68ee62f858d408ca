package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/config"
	"github.com/taskmesh/taskmesh/dispatch"
	"github.com/taskmesh/taskmesh/executor"
	"github.com/taskmesh/taskmesh/executor/mock"
	"github.com/taskmesh/taskmesh/ledger"
	"github.com/taskmesh/taskmesh/routing"
	"github.com/taskmesh/taskmesh/task"
)

func newTestService(t *testing.T, execs ...executor.Executor) *dispatch.Service {
	t.Helper()
	dir := t.TempDir()

	store, err := task.NewSQLiteStore(filepath.Join(dir, "tasks.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	led, err := ledger.NewSQLiteLedger(filepath.Join(dir, "ledger.db"), ledger.DefaultParams())
	if err != nil {
		t.Fatalf("NewSQLiteLedger: %v", err)
	}
	t.Cleanup(func() { led.Close() })

	reg := executor.NewRegistry()
	for _, e := range execs {
		if err := reg.Register(e); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	svc, err := dispatch.New(dispatch.Config{
		Registry:  store,
		Policy:    routing.NewPolicy(routing.DefaultThresholds(), nil),
		Executors: reg,
		Ledger:    led,
		Retry:     executor.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, BackoffFactor: 2},
		Logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	return svc
}

func newTestServer(t *testing.T, execs ...executor.Executor) *Server {
	t.Helper()
	if len(execs) == 0 {
		execs = []executor.Executor{mock.New("agent-1", routing.ClassLocal)}
	}
	cfg := config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Auth: config.AuthConfig{
			AdminUser: "admin",
			AdminPass: "secret",
			JWTSecret: "test-secret-key-1234567890",
		},
	}
	s := New(cfg, newTestService(t, execs...), "test", nil)
	s.registerRoutes()
	return s
}

// login obtains a bearer token from the test server.
func login(t *testing.T, s *Server) string {
	t.Helper()
	body := `{"username":"admin","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed: %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp["token"]
}

// doJSON issues an authenticated request and decodes the JSON response into out.
func doJSON(t *testing.T, s *Server, token, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	if out != nil && rr.Code < 300 {
		if err := json.NewDecoder(rr.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return rr
}
