package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vrsandeep/anisync-go/internal/config"
	"github.com/vrsandeep/anisync-go/internal/core"
	"github.com/vrsandeep/anisync-go/internal/testutil"
)

type testServer struct {
	*Server
	app    *core.App
	source *testutil.FakeSource
	exec   *testutil.FakeExecutor
	router http.Handler
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{}
	cfg.Download.Path = t.TempDir()
	cfg.Loop.IntervalSeconds = 3600
	cfg.Discovery.Workers = 2
	cfg.Snapshot.TickSeconds = 1

	db := testutil.SetupTestDB(t)
	source := testutil.NewFakeSource()
	exec := testutil.NewFakeExecutor()
	app := core.Assemble(cfg, db, source, exec)
	t.Cleanup(app.Loop().Shutdown)

	server := NewServer(app)
	return &testServer{Server: server, app: app, source: source, exec: exec, router: server.Router()}
}

// do sends a request with an optional JSON body and returns the recorder.
func (ts *testServer) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = bytes.NewBufferString(raw)
		} else {
			b, _ := json.Marshal(body)
			reader = bytes.NewBuffer(b)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	rr := ts.do("GET", "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	rr = ts.do("GET", "/api/executor/version", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("executor version: got %v want %v", rr.Code, http.StatusOK)
	}
	if got := decode[map[string]string](t, rr)["version"]; got != "2.9.3" {
		t.Errorf("Expected executor version 2.9.3, got %q", got)
	}

	ts.exec.FailAll(true)
	rr = ts.do("GET", "/api/executor/version", nil)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("unreachable executor: got %v want %v", rr.Code, http.StatusBadGateway)
	}
}
