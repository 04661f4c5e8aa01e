package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/auth"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/debrief"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

type stubReadiness struct {
	mission string
	active  bool
	uptime  time.Duration
	err     error
}

func (s *stubReadiness) Mission() (string, bool) { return s.mission, s.active }
func (s *stubReadiness) StartupError() error     { return s.err }
func (s *stubReadiness) Uptime() time.Duration   { return s.uptime }

type stubLimiter struct {
	remaining int
}

func (s *stubLimiter) Allow() bool {
	if s.remaining <= 0 {
		return false
	}
	s.remaining--
	return true
}

type stubLedger struct {
	limit int
	err   error
}

func (s *stubLedger) Missions(_ context.Context, limit int) ([]debrief.MissionRecord, error) {
	s.limit = limit
	return []debrief.MissionRecord{{Mission: "Picket"}}, s.err
}

func (s *stubLedger) Standings(_ context.Context, limit int) ([]debrief.Standing, error) {
	s.limit = limit
	return []debrief.Standing{{Name: "Viper 1", Points: 400}}, s.err
}

func newMux(opts Options) *http.ServeMux {
	if opts.Logger == nil {
		opts.Logger = logging.NewTestLogger()
	}
	mux := http.NewServeMux()
	NewHandlerSet(opts).Register(mux)
	return mux
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestReadinessReflectsMission(t *testing.T) {
	ready := &stubReadiness{mission: "Picket", active: true, uptime: 90 * time.Second}
	mux := newMux(Options{Readiness: ready})

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with an active mission, got %d", rec.Code)
	}
	var body struct {
		Status  string  `json:"status"`
		Mission string  `json:"mission"`
		Uptime  float64 `json:"uptime_seconds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mission != "Picket" || body.Uptime != 90 {
		t.Fatalf("unexpected readiness body %+v", body)
	}

	//1.- Between missions the host is alive but idle.
	ready.active = false
	if rec := serve(mux, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "idle") {
		t.Fatalf("expected 503 idle, got %d %s", rec.Code, rec.Body.String())
	}

	ready.active, ready.err = true, errors.New("ledger offline")
	if rec := serve(mux, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "ledger offline") {
		t.Fatalf("expected 503 with the startup error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestLivenessAlwaysAnswers(t *testing.T) {
	fixed := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	mux := newMux(Options{TimeSource: func() time.Time { return fixed }})
	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "2026-03-01T12:00:00Z") {
		t.Fatalf("unexpected liveness response %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsAndHUDMountWhenConfigured(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("sim_frames_total 3\n")) })
	hud := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	mux := newMux(Options{Metrics: metrics, HUD: hud})

	if rec := serve(mux, httptest.NewRequest(http.MethodGet, "/metrics", nil)); !strings.Contains(rec.Body.String(), "sim_frames_total") {
		t.Fatalf("expected the metrics handler, got %s", rec.Body.String())
	}
	if rec := serve(mux, httptest.NewRequest(http.MethodGet, "/hud", nil)); rec.Code != http.StatusTeapot {
		t.Fatalf("expected the hud handler, got %d", rec.Code)
	}
	if rec := serve(newMux(Options{}), httptest.NewRequest(http.MethodGet, "/metrics", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected no metrics route without a handler, got %d", rec.Code)
	}
}

func TestReplayFlushRequiresAuthorization(t *testing.T) {
	calls := 0
	flusher := ReplayFlusherFunc(func(context.Context) (string, error) {
		calls++
		return "/var/replays/picket", nil
	})
	mux := newMux(Options{Replay: flusher, AdminToken: "secret", RateLimiter: &stubLimiter{remaining: 1}})

	cases := []struct {
		name   string
		method string
		token  string
		want   int
	}{
		{name: "wrong method", method: http.MethodGet, token: "secret", want: http.StatusMethodNotAllowed},
		{name: "missing token", method: http.MethodPost, want: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodPost, token: "nope", want: http.StatusUnauthorized},
		{name: "accepted", method: http.MethodPost, token: "secret", want: http.StatusAccepted},
		{name: "rate limited", method: http.MethodPost, token: "secret", want: http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/replay/flush", nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		rec := serve(mux, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
		if tc.want == http.StatusAccepted && !strings.Contains(rec.Body.String(), "/var/replays/picket") {
			t.Fatalf("expected the bundle location, got %s", rec.Body.String())
		}
	}
	if calls != 1 {
		t.Fatalf("expected exactly one flush, got %d", calls)
	}
}

func TestReplayFlushSetsRetryAfter(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindowLimiter(time.Minute, 1, func() time.Time { return now })
	flusher := ReplayFlusherFunc(func(context.Context) (string, error) { return "", nil })
	mux := newMux(Options{Replay: flusher, AdminToken: "secret", RateLimiter: limiter})

	for i, want := range []int{http.StatusAccepted, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/replay/flush", nil)
		req.Header.Set("X-Admin-Token", "secret")
		rec := serve(mux, req)
		if rec.Code != want {
			t.Fatalf("call %d: expected %d, got %d", i, want, rec.Code)
		}
		if want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
		}
	}
}

func TestReplayFlushWithoutAdminToken(t *testing.T) {
	mux := newMux(Options{})
	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/replay/flush", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with admin auth disabled, got %d", rec.Code)
	}
}

func TestPassHandlerIssuesVerifiablePass(t *testing.T) {
	signer, err := auth.NewSigner("hud-secret", 0)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	mux := newMux(Options{Signer: signer, AdminToken: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/hud/pass?ship=Viper+1&ttl=5m", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := serve(mux, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Pass  string `json:"pass"`
		Scope string `json:"scope"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	pass, err := signer.Verify(body.Pass)
	if err != nil || pass.Ship != "Viper 1" || body.Scope != "pilot" {
		t.Fatalf("expected a pilot pass for Viper 1, got %+v (%v)", pass, err)
	}

	//1.- Unknown scopes and bad ttls are client errors.
	for _, query := range []string{"?scope=admiral", "?ship=Viper+1&ttl=-1s", "?scope=pilot"} {
		req := httptest.NewRequest(http.MethodPost, "/hud/pass"+query, nil)
		req.Header.Set("Authorization", "Bearer secret")
		if rec := serve(mux, req); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestDebriefRoutes(t *testing.T) {
	ledger := &stubLedger{}
	mux := newMux(Options{Ledger: ledger})

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/debrief/standings?limit=3", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Viper 1") || ledger.limit != 3 {
		t.Fatalf("unexpected standings response %d %s (limit %d)", rec.Code, rec.Body.String(), ledger.limit)
	}
	rec = serve(mux, httptest.NewRequest(http.MethodGet, "/debrief/missions?limit=junk", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Picket") || ledger.limit != 20 {
		t.Fatalf("unexpected missions response %d %s (limit %d)", rec.Code, rec.Body.String(), ledger.limit)
	}

	ledger.err = errors.New("disk full")
	if rec := serve(mux, httptest.NewRequest(http.MethodGet, "/debrief/missions", nil)); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on ledger failure, got %d", rec.Code)
	}
	if rec := serve(newMux(Options{}), httptest.NewRequest(http.MethodGet, "/debrief/standings", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a ledger, got %d", rec.Code)
	}
}
