package server

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"orgmaturity/internal/framework"
	"orgmaturity/internal/report"
)

func newTestServer(t *testing.T) (*Server, *Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fw, err := framework.Default()
	if err != nil {
		t.Fatalf("default framework: %v", err)
	}
	session, err := NewSession(fw, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	srv := New(session, zap.NewNop(), Options{
		Now: func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	return srv, session
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d\nbody: %s", w.Code, want, w.Body.String())
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body: %v\nbody: %s", err, w.Body.String())
	}
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) report.Report {
	t.Helper()
	requireStatus(t, w, http.StatusOK)
	var rep report.Report
	decodeBody(t, w, &rep)
	return rep
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedBody   map[string]any
	}{
		{name: "GET /health returns OK", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK, expectedBody: map[string]any{"status": "ok"}},
		{name: "unknown route", method: http.MethodGet, path: "/nope", expectedStatus: http.StatusNotFound, expectedBody: map[string]any{"error": "not found"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, "")
			requireStatus(t, w, tt.expectedStatus)
			var got map[string]any
			decodeBody(t, w, &got)
			if diff := cmp.Diff(tt.expectedBody, got); diff != "" {
				t.Fatalf("body (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFrameworkEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/framework", "")
	requireStatus(t, w, http.StatusOK)

	var body struct {
		Source  string       `json:"source"`
		Levels  []levelView  `json:"levels"`
		Domains []domainView `json:"domains"`
	}
	decodeBody(t, w, &body)
	if body.Source != framework.DefaultSource {
		t.Fatalf("source = %q, want %q", body.Source, framework.DefaultSource)
	}
	if len(body.Levels) != 5 {
		t.Fatalf("levels = %d, want 5", len(body.Levels))
	}
	if len(body.Domains) != 3 {
		t.Fatalf("domains = %d, want 3", len(body.Domains))
	}
	if got := body.Domains[0].ID; got != "ser" {
		t.Fatalf("first domain = %q, want ser", got)
	}
	if got := body.Domains[0].Components[0].Elements[0].ID; got != "vm" {
		t.Fatalf("first element = %q, want vm", got)
	}
}

func TestElementEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/elements/vm", "")
	requireStatus(t, w, http.StatusOK)
	var body struct {
		Element elementView `json:"element"`
		Steps   []string    `json:"steps"`
	}
	decodeBody(t, w, &body)
	if body.Element.ID != "vm" {
		t.Fatalf("element = %q, want vm", body.Element.ID)
	}
	if len(body.Element.Descriptions) != 5 {
		t.Fatalf("descriptions = %d, want 5", len(body.Element.Descriptions))
	}
	if got := body.Element.Weights["5"]; math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("weight at level 5 = %v, want 0.3", got)
	}
	if len(body.Steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(body.Steps))
	}

	w = do(t, srv, http.MethodGet, "/api/elements/trc", "")
	requireStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"steps":[]`) {
		t.Fatalf("element without steps should render an empty list: %s", w.Body.String())
	}

	requireStatus(t, do(t, srv, http.MethodGet, "/api/elements/ghost", ""), http.StatusNotFound)
}

func TestSetScoreAndReport(t *testing.T) {
	srv, _ := newTestServer(t)

	requireStatus(t, do(t, srv, http.MethodPut, "/api/scores/vm", `{"level":5}`), http.StatusOK)

	rep := decodeReport(t, do(t, srv, http.MethodGet, "/api/report?top=2", ""))
	if rep.TargetLevel != 5 || rep.TopN != 2 {
		t.Fatalf("target/top = %d/%d, want 5/2", rep.TargetLevel, rep.TopN)
	}
	if len(rep.Gaps) != 32 {
		t.Fatalf("gaps = %d, want 32", len(rep.Gaps))
	}
	if len(rep.Recommendations) != 2 {
		t.Fatalf("recommendations = %d, want 2", len(rep.Recommendations))
	}
	if got := rep.Recommendations[0].ElementID; got != "vc" {
		t.Fatalf("first recommendation = %q, want vc", got)
	}
	want := (32*0.3 + 1.5) / 49.5 * 100
	if got := rep.Overall.CompletionPercentage; math.Abs(got-want) > 1e-6 {
		t.Fatalf("completion = %v, want %v", got, want)
	}
}

func TestRejectedInputLeavesStateUnchanged(t *testing.T) {
	srv, session := newTestServer(t)
	before := decodeReport(t, do(t, srv, http.MethodGet, "/api/report", ""))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"score above range", http.MethodPut, "/api/scores/vm", `{"level":6}`, http.StatusBadRequest},
		{"score below range", http.MethodPut, "/api/scores/vm", `{"level":0}`, http.StatusBadRequest},
		{"unknown element", http.MethodPut, "/api/scores/ghost", `{"level":3}`, http.StatusBadRequest},
		{"missing level", http.MethodPut, "/api/scores/vm", `{}`, http.StatusBadRequest},
		{"malformed body", http.MethodPut, "/api/target", `{"level":`, http.StatusBadRequest},
		{"target out of range", http.MethodPut, "/api/target", `{"level":9}`, http.StatusBadRequest},
		{"negative top", http.MethodGet, "/api/report?top=-1", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, tt.body)
			requireStatus(t, w, tt.status)
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Fatalf("expected an error body, got %s", w.Body.String())
			}
		})
	}

	after := decodeReport(t, do(t, srv, http.MethodGet, "/api/report", ""))
	if diff := cmp.Diff(before.Overall, after.Overall); diff != "" {
		t.Fatalf("overall changed (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(before.Scores, after.Scores); diff != "" {
		t.Fatalf("scores changed (-before +after):\n%s", diff)
	}
	if target, _ := session.Snapshot(); target != 5 {
		t.Fatalf("target = %d, want 5", target)
	}
}

func TestTargetAndReset(t *testing.T) {
	srv, _ := newTestServer(t)

	requireStatus(t, do(t, srv, http.MethodPut, "/api/target", `{"level":1}`), http.StatusOK)
	rep := decodeReport(t, do(t, srv, http.MethodGet, "/api/report", ""))
	if got := rep.Overall.CompletionPercentage; math.Abs(got-100) > 1e-9 {
		t.Fatalf("completion at target 1 = %v, want 100", got)
	}
	if len(rep.Gaps) != 0 || len(rep.Recommendations) != 0 {
		t.Fatalf("expected no gaps or recommendations, got %d/%d", len(rep.Gaps), len(rep.Recommendations))
	}

	requireStatus(t, do(t, srv, http.MethodPut, "/api/scores/cc", `{"level":4}`), http.StatusOK)
	requireStatus(t, do(t, srv, http.MethodPost, "/api/reset", ""), http.StatusOK)

	w := do(t, srv, http.MethodGet, "/api/scores", "")
	requireStatus(t, w, http.StatusOK)
	var body struct {
		TargetLevel int `json:"target_level"`
		Scores      []struct {
			ElementID string `json:"element_id"`
			Level     int    `json:"level"`
		} `json:"scores"`
	}
	decodeBody(t, w, &body)
	if body.TargetLevel != 5 {
		t.Fatalf("target after reset = %d, want 5", body.TargetLevel)
	}
	if len(body.Scores) != 33 {
		t.Fatalf("scores = %d, want 33", len(body.Scores))
	}
	for _, s := range body.Scores {
		if s.Level != 1 {
			t.Fatalf("%s level after reset = %d, want 1", s.ElementID, s.Level)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/target", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	requireStatus(t, w, http.StatusNoContent)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	srv, _ := newTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			do(t, srv, http.MethodPut, "/api/scores/vm", `{"level":3}`)
		}()
		go func() {
			defer wg.Done()
			do(t, srv, http.MethodGet, "/api/report", "")
		}()
	}
	wg.Wait()

	rep := decodeReport(t, do(t, srv, http.MethodGet, "/api/report?top=3", ""))
	if len(rep.Gaps) != 33 {
		t.Fatalf("gaps = %d, want 33", len(rep.Gaps))
	}
	last := rep.Gaps[len(rep.Gaps)-1]
	if last.ElementID != "vm" || last.Gap != 2 {
		t.Fatalf("smallest gap = %s/%d, want vm/2", last.ElementID, last.Gap)
	}
}
