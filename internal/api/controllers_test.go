package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"execution-core/internal/engine"
	"execution-core/internal/events"
	"execution-core/internal/gateway"
	"execution-core/internal/monitor"
	"execution-core/pkg/config"
	"execution-core/pkg/ident"
)

const testJWTSecret = "test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	profile := &config.Profile{
		Policy: config.PolicySettings{MaxAttempts: 3},
		Venues: []config.VenueSettings{
			{Name: "paper-main", Type: "paper", Symbol: "BTCUSDT", StartPrice: "100"},
		},
	}
	metrics := monitor.NewExecutionMetrics()
	bus := events.NewBus()
	registry, err := gateway.NewRegistry(profile, gateway.Deps{Bus: bus, Metrics: metrics})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	async := engine.NewAsyncExecutor(registry, 2, zap.NewNop())
	t.Cleanup(async.Close)

	if err := ConfigureAdmin("admin", "hunter2"); err != nil {
		t.Fatalf("ConfigureAdmin: %v", err)
	}

	return NewServer(registry, async, bus, metrics, ident.New("test"), zap.NewNop(), testJWTSecret,
		SystemMeta{Version: "test", Language: "en"})
}

func doJSON(s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func obtainToken(t *testing.T, s *Server) string {
	t.Helper()
	w := doJSON(s, http.MethodPost, "/api/auth/login", "",
		gin.H{"username": "admin", "password": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response missing token: %s", w.Body.String())
	}
	return resp.Token
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/api/auth/login", "",
		gin.H{"username": "admin", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	w = doJSON(s, http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/api/venues", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	w = doJSON(s, http.MethodGet, "/api/venues", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", w.Code)
	}

	token := obtainToken(t, s)
	w = doJSON(s, http.MethodGet, "/api/venues", token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestExecuteOrderFillsOnPaperVenue(t *testing.T) {
	s := newTestServer(t)
	token := obtainToken(t, s)

	// Buy limit above the simulated mark price fills immediately.
	w := doJSON(s, http.MethodPost, "/api/orders", token, gin.H{
		"venue":  "paper-main",
		"symbol": "BTCUSDT",
		"action": "BUY",
		"price":  "105",
		"size":   "2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var rep struct {
		OrderID     string `json:"order_id"`
		Attempts    int    `json:"attempts"`
		StatusLabel string `json:"status_label"`
		Status      struct {
			Kind      string `json:"kind"`
			FilledQty string `json:"filled_qty"`
		} `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Status.Kind != "FILLED" {
		t.Errorf("status = %s, want FILLED", rep.Status.Kind)
	}
	if rep.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", rep.Attempts)
	}
	if rep.OrderID == "" {
		t.Error("report missing order_id")
	}
	if rep.StatusLabel != "FILLED" {
		t.Errorf("status_label = %s, want FILLED", rep.StatusLabel)
	}
}

func TestExecuteOrderValidation(t *testing.T) {
	s := newTestServer(t)
	token := obtainToken(t, s)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"unknown venue", gin.H{"venue": "nowhere", "action": "BUY", "price": "1", "size": "1"}, http.StatusNotFound},
		{"bad action", gin.H{"venue": "paper-main", "action": "HODL", "price": "1", "size": "1"}, http.StatusBadRequest},
		{"bad size", gin.H{"venue": "paper-main", "action": "BUY", "price": "1", "size": "lots"}, http.StatusBadRequest},
		{"negative price", gin.H{"venue": "paper-main", "action": "BUY", "price": "-5", "size": "1"}, http.StatusBadRequest},
		{"limit without price", gin.H{"venue": "paper-main", "action": "BUY", "size": "1"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(s, http.MethodPost, "/api/orders", token, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestExecuteOrderAsync(t *testing.T) {
	s := newTestServer(t)
	token := obtainToken(t, s)

	w := doJSON(s, http.MethodPost, "/api/orders/async", token, gin.H{
		"venue":  "paper-main",
		"action": "BUY",
		"price":  "105",
		"size":   "1",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID       string `json:"id"`
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" {
		t.Error("missing submission id")
	}
	if resp.ClientID == "" {
		t.Error("client id was not minted")
	}

	s.Async.WaitAll()
	select {
	case res := <-s.Async.Results():
		if res.Err != nil {
			t.Errorf("async execution failed: %v", res.Err)
		}
		if res.ID != resp.ID {
			t.Errorf("result id = %s, want %s", res.ID, resp.ID)
		}
	default:
		t.Error("no result delivered after WaitAll")
	}
}

func TestSystemStatusIsPublic(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/api/system/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Version string `json:"version"`
		Venues  int    `json:"venues"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Version != "test" || resp.Venues != 1 {
		t.Errorf("status response = %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := obtainToken(t, s)

	doJSON(s, http.MethodPost, "/api/orders", token, gin.H{
		"venue":  "paper-main",
		"action": "BUY",
		"price":  "105",
		"size":   "1",
	})

	w := doJSON(s, http.MethodGet, "/api/metrics", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var snap monitor.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Submits == 0 || snap.Fills == 0 {
		t.Errorf("snapshot = %+v, want at least one submit and fill", snap)
	}
}
