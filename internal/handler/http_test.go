package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/leaderboard-rewards/internal/config"
	"github.com/leaderboard-rewards/internal/domain"
	"github.com/leaderboard-rewards/internal/redis"
	"github.com/leaderboard-rewards/internal/service"
	"github.com/leaderboard-rewards/internal/websocket"
)

type memoryRepo struct {
	mu      sync.Mutex
	players map[int64]*domain.Player
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{players: make(map[int64]*domain.Player)}
}

func (m *memoryRepo) seed(id int64, name, country string, money float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[id] = &domain.Player{ID: id, Name: name, Country: country, Money: money}
}

func (m *memoryRepo) CreatePlayer(_ context.Context, name, country string, money float64) (*domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.players) + 1)
	for m.players[id] != nil {
		id++
	}
	m.players[id] = &domain.Player{ID: id, Name: name, Country: country, Money: money}
	copied := *m.players[id]
	return &copied, nil
}

func (m *memoryRepo) GetPlayer(_ context.Context, playerID int64) (*domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	player, ok := m.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	copied := *player
	return &copied, nil
}

func (m *memoryRepo) ListPlayers(_ context.Context) ([]domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	players := make([]domain.Player, 0, len(m.players))
	for _, player := range m.players {
		players = append(players, *player)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

func (m *memoryRepo) ListRanked(_ context.Context) ([]domain.IndexEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]domain.IndexEntry, 0, len(m.players))
	for _, player := range m.players {
		entries = append(entries, domain.IndexEntry{PlayerID: player.ID, Score: player.Money})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries, nil
}

func (m *memoryRepo) SearchByName(_ context.Context, fragment string, limit int) ([]domain.PlayerOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var options []domain.PlayerOption
	for _, player := range m.players {
		if strings.Contains(strings.ToLower(player.Name), strings.ToLower(fragment)) {
			options = append(options, domain.PlayerOption{ID: player.ID, Name: player.Name, Country: player.Country})
		}
		if len(options) == limit {
			break
		}
	}
	return options, nil
}

func (m *memoryRepo) ListByIDs(_ context.Context, playerIDs []int64) ([]domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var players []domain.Player
	for _, id := range playerIDs {
		if player, ok := m.players[id]; ok {
			players = append(players, *player)
		}
	}
	return players, nil
}

func (m *memoryRepo) IncrementMoney(_ context.Context, playerID int64, delta float64) (*domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	player, ok := m.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	player.Money += delta
	copied := *player
	return &copied, nil
}

func (m *memoryRepo) ApplyRewards(_ context.Context, payouts []domain.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	winners := make(map[int64]float64, len(payouts))
	for _, payout := range payouts {
		winners[payout.PlayerID] = payout.Amount
	}
	for id, player := range m.players {
		player.Money = winners[id]
	}
	return nil
}

type HandlerSuite struct {
	suite.Suite
	repo   *memoryRepo
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	mini := miniredis.RunT(s.T())
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	logger := slog.Default()

	cfg := &config.LeaderboardConfig{
		TopPlayersCount:   100,
		SurroundingAbove:  3,
		SurroundingBelow:  2,
		CacheTTL:          time.Hour,
		LockTTL:           30 * time.Second,
		PoolFraction:      0.02,
		SearchLimit:       20,
		RateLimitRequests: 5,
		RateLimitWindow:   10 * time.Second,
	}

	s.repo = newMemoryRepo()
	svc := service.NewLeaderboardService(
		s.repo,
		redis.NewScoreIndex(client, logger),
		redis.NewLock(client, redis.WarmupLockKey, cfg.LockTTL),
		redis.NewLock(client, redis.DistributeLockKey, cfg.LockTTL),
		redis.NewRewardPool(client),
		redis.NewRateLimiter(client, cfg.RateLimitRequests, cfg.RateLimitWindow),
		cfg,
		logger,
	)

	hub := websocket.NewHub(logger)
	s.router = NewHandler(svc, hub, logger).Router()
}

func (s *HandlerSuite) do(method, target string, body []byte) (*httptest.ResponseRecorder, APIResponse) {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)

	var response APIResponse
	s.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &response))
	return recorder, response
}

func (s *HandlerSuite) TestHealthEndpoints() {
	recorder, response := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, recorder.Code)
	s.True(response.Success)

	recorder, _ = s.do(http.MethodGet, "/ready", nil)
	s.Equal(http.StatusOK, recorder.Code)
}

func (s *HandlerSuite) TestGetLeaderboard() {
	s.repo.seed(1, "Alice", "TR", 500)
	s.repo.seed(2, "Bob", "US", 300)

	recorder, response := s.do(http.MethodGet, "/api/v1/leaderboard?playerId=1", nil)
	s.Equal(http.StatusOK, recorder.Code)
	s.True(response.Success)

	data, ok := response.Data.(map[string]interface{})
	s.Require().True(ok)
	s.Equal(float64(1), data["playerRank"])

	top, ok := data["topPlayers"].([]interface{})
	s.Require().True(ok)
	s.Len(top, 2)
}

func (s *HandlerSuite) TestGetLeaderboardRejectsBadPlayerID() {
	for _, target := range []string{
		"/api/v1/leaderboard?playerId=abc",
		"/api/v1/leaderboard?playerId=-1",
		"/api/v1/leaderboard?playerId=0",
	} {
		recorder, response := s.do(http.MethodGet, target, nil)
		s.Equal(http.StatusBadRequest, recorder.Code, target)
		s.False(response.Success)
	}
}

func (s *HandlerSuite) TestGetLeaderboardSuggestions() {
	s.repo.seed(1, "Alice", "TR", 500)
	s.repo.seed(2, "Alicia", "US", 300)

	recorder, response := s.do(http.MethodGet, "/api/v1/leaderboard?playerName=ali", nil)
	s.Equal(http.StatusOK, recorder.Code)
	s.True(response.Success)

	data, ok := response.Data.(map[string]interface{})
	s.Require().True(ok)
	suggestions, ok := data["suggestions"].([]interface{})
	s.Require().True(ok)
	s.Len(suggestions, 2)
}

func (s *HandlerSuite) TestGetLeaderboardRateLimited() {
	s.repo.seed(1, "Alice", "TR", 500)

	for i := 0; i < 5; i++ {
		recorder, _ := s.do(http.MethodGet, "/api/v1/leaderboard?playerId=1", nil)
		s.Equal(http.StatusOK, recorder.Code)
	}

	recorder, response := s.do(http.MethodGet, "/api/v1/leaderboard?playerId=1", nil)
	s.Equal(http.StatusOK, recorder.Code)
	s.True(response.Success)
	s.Nil(response.Data, "rate limited requests answer with an empty body, not an error")
}

func (s *HandlerSuite) TestListPlayers() {
	s.repo.seed(1, "Alice", "TR", 500)
	s.repo.seed(2, "Bob", "US", 300)

	recorder, response := s.do(http.MethodGet, "/api/v1/players", nil)
	s.Equal(http.StatusOK, recorder.Code)

	players, ok := response.Data.([]interface{})
	s.Require().True(ok)
	s.Len(players, 2)
}

func (s *HandlerSuite) TestCreatePlayer() {
	body, _ := json.Marshal(CreatePlayerRequest{Name: "Alice", Country: "TR", Money: 500})
	recorder, response := s.do(http.MethodPost, "/api/v1/players", body)
	s.Equal(http.StatusCreated, recorder.Code)
	s.True(response.Success)

	data, ok := response.Data.(map[string]interface{})
	s.Require().True(ok)
	s.Equal("Alice", data["name"])

	body, _ = json.Marshal(CreatePlayerRequest{Country: "TR"})
	recorder, _ = s.do(http.MethodPost, "/api/v1/players", body)
	s.Equal(http.StatusBadRequest, recorder.Code)
}

func (s *HandlerSuite) TestUpdatePlayerMoney() {
	s.repo.seed(1, "Alice", "TR", 500)

	body, _ := json.Marshal(UpdateMoneyRequest{Amount: 150})
	recorder, response := s.do(http.MethodPost, "/api/v1/players/1/money", body)
	s.Equal(http.StatusOK, recorder.Code)
	s.True(response.Success)

	data, ok := response.Data.(map[string]interface{})
	s.Require().True(ok)
	s.Equal(float64(650), data["money"])
}

func (s *HandlerSuite) TestUpdatePlayerMoneyValidation() {
	s.repo.seed(1, "Alice", "TR", 500)

	body, _ := json.Marshal(UpdateMoneyRequest{Amount: 0})
	recorder, _ := s.do(http.MethodPost, "/api/v1/players/1/money", body)
	s.Equal(http.StatusBadRequest, recorder.Code)

	body, _ = json.Marshal(UpdateMoneyRequest{Amount: 100})
	recorder, _ = s.do(http.MethodPost, "/api/v1/players/999/money", body)
	s.Equal(http.StatusNotFound, recorder.Code)

	recorder, _ = s.do(http.MethodPost, "/api/v1/players/abc/money", body)
	s.Equal(http.StatusBadRequest, recorder.Code)

	recorder, _ = s.do(http.MethodPost, "/api/v1/players/1/money", []byte("{not json"))
	s.Equal(http.StatusBadRequest, recorder.Code)
}

func (s *HandlerSuite) TestDistributeRewards() {
	s.repo.seed(1, "Alice", "TR", 500)

	recorder, response := s.do(http.MethodPost, "/api/v1/leaderboard/distribute", nil)
	s.Equal(http.StatusOK, recorder.Code)
	s.True(response.Success)
}
