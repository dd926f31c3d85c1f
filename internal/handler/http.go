package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kokodi-server/internal/auth"
	"github.com/kokodi-server/internal/domain"
	"github.com/kokodi-server/internal/game"
	"github.com/kokodi-server/internal/websocket"
)

// WinsSource serves the wins leaderboard. Nil when Redis is not configured.
type WinsSource interface {
	TopWinners(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// Handler provides the HTTP API for the game server
type Handler struct {
	game        *game.Service
	auth        *auth.Service
	hub         *websocket.Hub
	wins        WinsSource
	winsDefault int
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	gameService *game.Service,
	authService *auth.Service,
	hub *websocket.Hub,
	wins WinsSource,
	winsDefault int,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		game:        gameService,
		auth:        authService,
		hub:         hub,
		wins:        wins,
		winsDefault: winsDefault,
		logger:      logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type contextKey string

const usernameKey contextKey = "username"

var errLeaderboardDisabled = errors.New("leaderboard is not enabled")

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		r.Get("/leaderboard", h.GetLeaderboard)

		r.Route("/games", func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/", h.CreateGame)

			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", h.GetGame)
				r.Post("/join", h.JoinGame)
				r.Post("/start", h.StartGame)
				r.Post("/turn", h.MakeTurn)
			})
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves the bearer token to a username and stores it on the
// request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken)
			return
		}

		username, err := h.auth.VerifyToken(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerUsername(r *http.Request) string {
	username, _ := r.Context().Value(usernameKey).(string)
	return username
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps a domain error kind to an HTTP status
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsInvalidState(err), domain.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsForbidden(err):
		h.writeError(w, http.StatusForbidden, err)
	case domain.IsConflict(err), domain.IsExhausted(err):
		h.writeError(w, http.StatusConflict, err)
	case domain.IsUnauthorized(err):
		h.writeError(w, http.StatusUnauthorized, err)
	default:
		h.logger.Error("internal error", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternal)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// Register handles account creation
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	token, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    token,
	})
}

// Login handles credential login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	token, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, token)
}

// CreateGame creates a new session with the caller as creator
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	session, err := h.game.CreateGame(r.Context(), callerUsername(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    toGameResponse(session),
	})
}

// JoinGame adds the caller to a waiting session
func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	session, err := h.game.JoinGame(r.Context(), chi.URLParam(r, "gameID"), callerUsername(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, toGameResponse(session))
}

// StartGame starts a waiting session
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	session, err := h.game.StartGame(r.Context(), chi.URLParam(r, "gameID"), callerUsername(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, toGameResponse(session))
}

// MakeTurn resolves one turn for the caller
func (h *Handler) MakeTurn(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	username := callerUsername(r)

	var req game.TurnRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
	}

	turn, err := h.game.MakeTurn(r.Context(), gameID, username, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Re-read the session to shape the nested player views.
	session, err := h.game.GetStatus(r.Context(), gameID, username)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, toTurnResponse(turn, session))
}

// GetGame returns the caller's view of a session
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	session, err := h.game.GetStatus(r.Context(), chi.URLParam(r, "gameID"), callerUsername(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, toGameResponse(session))
}

// GetLeaderboard returns the top winners
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if h.wins == nil {
		h.writeError(w, http.StatusServiceUnavailable, errLeaderboardDisabled)
		return
	}

	limit := h.winsDefault
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.wins.TopWinners(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternal)
		return
	}

	h.writeSuccess(w, entries)
}
