package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/swifttiger/backend/internal/opt"
)

func newRouteTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handler{Validator: validator.New(), Logger: zerolog.Nop()}

	r := gin.New()
	r.POST("/api/routes/optimize", h.RouteOptimize)
	r.POST("/api/routes/plan", h.RoutePlan)
	r.POST("/api/routes", h.RouteCreate)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouteOptimizeRejectsEmptyJobIDs(t *testing.T) {
	r := newRouteTestRouter()

	w := postJSON(t, r, "/api/routes/optimize", `{"job_ids": []}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouteOptimizeRejectsUnknownMode(t *testing.T) {
	r := newRouteTestRouter()

	w := postJSON(t, r, "/api/routes/optimize", `{"job_ids": [1, 2], "mode": "teleport"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "mode must be distance or time") {
		t.Fatalf("expected mode error, got %s", w.Body.String())
	}
}

func TestRoutePlanRejectsBadDate(t *testing.T) {
	r := newRouteTestRouter()

	w := postJSON(t, r, "/api/routes/plan", `{"date": "31-12-2025"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouteCreateRejectsDuplicateStops(t *testing.T) {
	r := newRouteTestRouter()

	body := `{
		"technician_id": 7,
		"route_date": "2025-06-02",
		"stops": [{"job_id": 3}, {"job_id": 3}]
	}`
	w := postJSON(t, r, "/api/routes", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Duplicate job") {
		t.Fatalf("expected duplicate stop error, got %s", w.Body.String())
	}
}

func TestParseModeDefaultsToDistance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	mode, ok := parseMode(c, "")
	if !ok || mode != opt.ModeDistance {
		t.Fatalf("expected default distance mode, got %q ok=%v", mode, ok)
	}
}

func TestPlanOutcomeLabels(t *testing.T) {
	if got := planOutcome(opt.Result{Fallback: true}); got != "fallback" {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := planOutcome(opt.Result{}); got != "optimized" {
		t.Fatalf("expected optimized, got %s", got)
	}
}
