// Package api exposes the honeypot entry paths (static API key) and the
// JWT-gated operator endpoints for inspecting accumulated evidence.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/scamtrap/internal/auth"
	"github.com/hazyhaar/scamtrap/internal/config"
	"github.com/hazyhaar/scamtrap/internal/engine"
	"github.com/hazyhaar/scamtrap/internal/intel"
)

// maxBodySize caps the event body; conversation histories stay small.
const maxBodySize = 200 * 1024 // 200KB

// EventRateLimiter guards the honeypot entry paths (60 req/60s per IP).
var EventRateLimiter = NewRateLimiter(60, 60*time.Second)

type API struct {
	engine  *engine.Engine
	store   intel.Store
	auth    *auth.Auth
	authCfg config.AuthConfig
	version string
	logger  *slog.Logger
}

func New(eng *engine.Engine, store intel.Store, a *auth.Auth, authCfg config.AuthConfig, version string, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{engine: eng, store: store, auth: a, authCfg: authCfg, version: version, logger: logger}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	// Honeypot entry paths. The evaluator probes several aliases; all of
	// them run the same event handler behind the same key check.
	event := RateLimitMiddleware(EventRateLimiter, a.requireAPIKey(a.handleEvent))
	mux.HandleFunc("POST /{$}", event)
	mux.HandleFunc("POST /detect", event)
	mux.HandleFunc("POST /honeypot", event)
	mux.HandleFunc("POST /honeypot/message", event)
	mux.HandleFunc("POST /hackathon/detect", event)

	// Health probes (uptime checks hit GET /).
	mux.HandleFunc("GET /{$}", a.handleRoot)
	mux.HandleFunc("GET /health", a.handleHealth)

	// Operator surface.
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("GET /api/sessions", a.handleListSessions)
	mux.HandleFunc("GET /api/session/{id}", a.handleGetSession)
}

// requireAPIKey enforces the static x-api-key header on entry paths.
func (a *API) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.authCfg.APIKey == "" {
			jsonError(w, "server API key not configured", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("x-api-key") != a.authCfg.APIKey {
			jsonError(w, "invalid or missing API key", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (a *API) handleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var ev engine.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	reqID := uuid.NewString()
	log := a.logger.With("request_id", reqID, "session", ev.SessionID)

	reply, err := a.engine.HandleEvent(r.Context(), ev)
	if err != nil {
		if errors.Is(err, engine.ErrMissingSession) || errors.Is(err, engine.ErrInvalidSender) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error("handling event", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Info("event handled", "sender", ev.Message.Sender, "history_len", len(ev.ConversationHistory))
	jsonResp(w, http.StatusOK, map[string]string{
		"status": "success",
		"reply":  reply,
	})
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "scamtrap",
		"version": a.version,
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": a.version,
	})
}

// --- Operator endpoints ---

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if a.authCfg.AdminPasswordHash == "" {
		jsonError(w, "operator login not configured", http.StatusForbidden)
		return
	}
	if req.Handle != a.authCfg.AdminHandle || !auth.CheckPassword(a.authCfg.AdminPasswordHash, req.Password) {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := a.auth.GenerateToken(req.Handle)
	if err != nil {
		a.logger.Error("generating token", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"token": token})
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if a.auth.ExtractClaims(r) == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	records, err := a.store.List()
	if err != nil {
		a.logger.Error("listing sessions", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"sessions": records,
		"count":    len(records),
	})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if a.auth.ExtractClaims(r) == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		jsonError(w, "id is required", http.StatusBadRequest)
		return
	}

	rec, ok, err := a.store.Get(id)
	if err != nil {
		a.logger.Error("loading session", "session", id, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	jsonResp(w, http.StatusOK, rec)
}

// --- Helpers ---

func jsonResp(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
