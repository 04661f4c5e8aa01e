package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/auth"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/debrief"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// ReadinessProvider exposes host state required for readiness checks.
type ReadinessProvider interface {
	Mission() (name string, active bool)
	StartupError() error
	Uptime() time.Duration
}

// ReplayFlusher forces buffered replay frames to disk and returns the bundle location.
type ReplayFlusher interface {
	FlushReplay(ctx context.Context) (string, error)
}

// ReplayFlusherFunc adapts a function into a ReplayFlusher.
type ReplayFlusherFunc func(ctx context.Context) (string, error)

// FlushReplay implements ReplayFlusher.
func (f ReplayFlusherFunc) FlushReplay(ctx context.Context) (string, error) { return f(ctx) }

// Ledger serves persisted debriefs.
type Ledger interface {
	Missions(ctx context.Context, limit int) ([]debrief.MissionRecord, error)
	Standings(ctx context.Context, limit int) ([]debrief.Standing, error)
}

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Readiness   ReadinessProvider
	Metrics     http.Handler
	HUD         http.Handler
	Signer      *auth.Signer
	Replay      ReplayFlusher
	Ledger      Ledger
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the simulation host operational handlers.
type HandlerSet struct {
	logger      *logging.Logger
	readiness   ReadinessProvider
	metrics     http.Handler
	hud         http.Handler
	signer      *auth.Signer
	replay      ReplayFlusher
	ledger      Ledger
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		readiness:   opts.Readiness,
		metrics:     opts.Metrics,
		hud:         opts.HUD,
		signer:      opts.Signer,
		replay:      opts.Replay,
		ledger:      opts.Ledger,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics)
	}
	if h.hud != nil {
		mux.Handle("/hud", h.hud)
	}
	mux.HandleFunc("/hud/pass", h.PassHandler())
	mux.HandleFunc("/replay/flush", h.ReplayFlushHandler())
	mux.HandleFunc("/debrief/missions", h.MissionsHandler())
	mux.HandleFunc("/debrief/standings", h.StandingsHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports whether a mission is executing and the startup status.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		Mission       string  `json:"mission,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if h.readiness == nil {
			writeJSON(w, http.StatusOK, response{Status: "ok"})
			return
		}
		status := http.StatusOK
		name, active := h.readiness.Mission()
		resp := response{Status: "ok", Mission: name, UptimeSeconds: h.readiness.Uptime().Seconds()}
		switch err := h.readiness.StartupError(); {
		case err != nil:
			status = http.StatusServiceUnavailable
			resp.Status = "error"
			resp.Message = err.Error()
		case !active:
			//1.- A host between missions is alive but not ready for HUD traffic.
			status = http.StatusServiceUnavailable
			resp.Status = "idle"
			resp.Message = "no mission executing"
		}
		writeJSON(w, status, resp)
	}
}

// PassHandler issues a HUD pass for a ship. Observer passes omit the ship.
func (h *HandlerSet) PassHandler() http.HandlerFunc {
	type response struct {
		Pass      string `json:"pass"`
		Ship      string `json:"ship,omitempty"`
		Scope     string `json:"scope"`
		ExpiresAt string `json:"expires_at"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.requestLogger("hud_pass", r)
		if !h.admit(w, r, reqLogger, false) {
			return
		}
		if h.signer == nil {
			reqLogger.Warn("hud pass denied: no signer configured")
			http.Error(w, "hud passes are unavailable", http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		scope := auth.Scope(strings.ToLower(strings.TrimSpace(q.Get("scope"))))
		if scope == "" {
			scope = auth.ScopePilot
		}
		ttl := 10 * time.Minute
		if raw := strings.TrimSpace(q.Get("ttl")); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed <= 0 {
				http.Error(w, "ttl must be a positive duration", http.StatusBadRequest)
				return
			}
			ttl = parsed
		}
		ship := strings.TrimSpace(q.Get("ship"))
		if scope != auth.ScopePilot && scope != auth.ScopeObserver {
			http.Error(w, "scope must be pilot or observer", http.StatusBadRequest)
			return
		}
		token, err := h.signer.Issue(ship, scope, ttl)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reqLogger.Info("hud pass issued", logging.String("ship", ship), logging.String("scope", string(scope)))
		writeJSON(w, http.StatusOK, response{
			Pass:      token,
			Ship:      ship,
			Scope:     string(scope),
			ExpiresAt: h.now().Add(ttl).UTC().Format(time.RFC3339),
		})
	}
}

// ReplayFlushHandler authorises and forces a replay flush.
func (h *HandlerSet) ReplayFlushHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.requestLogger("replay_flush", r)
		if !h.admit(w, r, reqLogger, true) {
			return
		}
		if h.replay == nil {
			reqLogger.Warn("replay flush denied: no recorder configured")
			http.Error(w, "replay recording is unavailable", http.StatusServiceUnavailable)
			return
		}
		location, err := h.replay.FlushReplay(r.Context())
		if err != nil {
			reqLogger.Error("replay flush failed", logging.Error(err))
			http.Error(w, "failed to flush replay", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("replay flushed", logging.String("location", location))
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", Location: location})
	}
}

// MissionsHandler lists recent debriefs.
func (h *HandlerSet) MissionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ledgerReady(w, r) {
			return
		}
		missions, err := h.ledger.Missions(r.Context(), limitParam(r, 20))
		if err != nil {
			h.requestLogger("debrief_missions", r).Error("list missions failed", logging.Error(err))
			http.Error(w, "failed to read debriefs", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, missions)
	}
}

// StandingsHandler lists score totals per ship.
func (h *HandlerSet) StandingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ledgerReady(w, r) {
			return
		}
		standings, err := h.ledger.Standings(r.Context(), limitParam(r, 10))
		if err != nil {
			h.requestLogger("debrief_standings", r).Error("standings failed", logging.Error(err))
			http.Error(w, "failed to read standings", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, standings)
	}
}

func (h *HandlerSet) ledgerReady(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if h.ledger == nil {
		http.Error(w, "debrief ledger is unavailable", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *HandlerSet) requestLogger(handler string, r *http.Request) *logging.Logger {
	return h.logger.With(
		logging.String("handler", handler),
		logging.String("remote_addr", r.RemoteAddr),
	)
}

// admit applies the POST, admin token and optional rate limit gates shared by admin endpoints.
func (h *HandlerSet) admit(w http.ResponseWriter, r *http.Request, reqLogger *logging.Logger, limited bool) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if h.adminToken == "" {
		reqLogger.Warn("admin request denied: admin auth disabled")
		http.Error(w, "admin authentication not configured", http.StatusForbidden)
		return false
	}
	if !h.authorise(r) {
		reqLogger.Warn("admin request denied: unauthorized request")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	if limited && h.rateLimiter != nil && !h.rateLimiter.Allow() {
		if hinted, ok := h.rateLimiter.(interface{ RetryAfter() time.Duration }); ok {
			secs := int(hinted.RetryAfter().Round(time.Second) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		}
		reqLogger.Warn("admin request denied: rate limit exceeded")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return false
	}
	return true
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	token := ""
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func limitParam(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return min(n, 200)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
