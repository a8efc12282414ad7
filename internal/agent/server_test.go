package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/ragent/internal/testutil/testlog"
)

func serve(t *testing.T, s *StatusServer, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestStatusServerRoutes(t *testing.T) {
	testlog.Start(t)
	var mem memoryRouters
	a := New(testConfig("router-a", "router-b"), mem.factory, testlog.Logger(t))
	s := NewStatusServer(a, "ragent", "127.0.0.1:0", nil, testlog.Logger(t))

	if rr := serve(t, s, http.MethodGet, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
	if rr := serve(t, s, http.MethodGet, "/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready before convergence: %d", rr.Code)
	}

	rr := serve(t, s, http.MethodGet, "/routers")
	if rr.Code != http.StatusOK {
		t.Fatalf("routers: %d", rr.Code)
	}
	var body struct {
		Routers []RouterStatus `json:"routers"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode routers: %v", err)
	}
	if len(body.Routers) != 2 || body.Routers[0].ID != "router-a" || body.Routers[0].State != StatePending {
		t.Fatalf("unexpected routers: %+v", body.Routers)
	}

	if rr := serve(t, s, http.MethodGet, "/routers/router-x"); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown router: %d", rr.Code)
	}
	if rr := serve(t, s, http.MethodPost, "/routers/router-b/stop"); rr.Code != http.StatusAccepted {
		t.Fatalf("stop: %d body=%s", rr.Code, rr.Body.String())
	}
	rr = serve(t, s, http.MethodGet, "/routers/router-b")
	var st RouterStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode router: %v", err)
	}
	if st.State != StateCancelled {
		t.Fatalf("expected cancelled router, got %+v", st)
	}

	if rr := serve(t, s, http.MethodGet, "/metrics"); rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
}
