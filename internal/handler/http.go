package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leaderboard-rewards/internal/domain"
	"github.com/leaderboard-rewards/internal/service"
	"github.com/leaderboard-rewards/internal/websocket"
)

// Handler provides HTTP handlers for the leaderboard API
type Handler struct {
	service *service.LeaderboardService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.LeaderboardService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// UpdateMoneyRequest is the body of a scoring event
type UpdateMoneyRequest struct {
	Amount float64 `json:"amount"`
}

// CreatePlayerRequest is the body for creating a player
type CreatePlayerRequest struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Money   float64 `json:"money"`
}

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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", h.GetLeaderboard)
			r.Post("/distribute", h.DistributeRewards)
		})

		r.Route("/players", func(r chi.Router) {
			r.Get("/", h.ListPlayers)
			r.Post("/", h.CreatePlayer)
			r.Post("/{playerID}/money", h.UpdatePlayerMoney)
		})

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

// GetLeaderboard answers ranking queries. With playerName it returns
// name suggestions; otherwise the top of the board, optionally with the
// requested player's rank and neighborhood. A rate-limited request gets
// a successful response with no data rather than an error.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if playerName := r.URL.Query().Get("playerName"); playerName != "" {
		suggestions, err := h.service.SearchPlayers(r.Context(), playerName)
		if err != nil {
			h.logger.Error("failed to search players", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
			return
		}
		h.writeSuccess(w, suggestions)
		return
	}

	var playerID int64
	if idStr := r.URL.Query().Get("playerId"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidPlayerID)
			return
		}
		playerID = id
	}

	response, err := h.service.GetPlayerRanks(r.Context(), playerID)
	if err != nil {
		h.logger.Error("failed to get player ranks", "player_id", playerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrLeaderboardFetch)
		return
	}
	if response == nil {
		// Rate limited: a null result, no retry timing leaked
		h.writeJSON(w, http.StatusOK, APIResponse{Success: true})
		return
	}

	h.writeSuccess(w, response)
}

// ListPlayers returns all players
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.ListPlayers(r.Context())
	if err != nil {
		h.logger.Error("failed to list players", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, players)
}

// CreatePlayer registers a new player
func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req CreatePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.service.CreatePlayer(r.Context(), req.Name, req.Country, req.Money)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, err)
		default:
			h.logger.Error("failed to create player", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: player})
}

// UpdatePlayerMoney applies a scoring event to a player
func (h *Handler) UpdatePlayerMoney(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
	if err != nil || playerID <= 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidPlayerID)
		return
	}

	var req UpdateMoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.service.UpdatePlayerMoney(r.Context(), playerID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, err)
		case domain.IsNotFoundError(err):
			h.writeError(w, http.StatusNotFound, err)
		default:
			h.logger.Error("failed to update player money", "player_id", playerID, "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		}
		return
	}

	h.writeSuccess(w, player)
}

// DistributeRewards triggers a reward distribution run. It shares the
// code path with the weekly scheduler.
func (h *Handler) DistributeRewards(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DistributeWeeklyRewards(r.Context()); err != nil {
		h.logger.Error("failed to distribute rewards", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrRewardDistribution)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "distributed"})
}
