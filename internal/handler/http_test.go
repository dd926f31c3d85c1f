package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kokodi-server/internal/auth"
	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/domain"
	"github.com/kokodi-server/internal/game"
	"github.com/kokodi-server/internal/memory"
	"github.com/kokodi-server/internal/websocket"
)

type testServer struct {
	*httptest.Server
	game *game.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	gameCfg := &config.GameConfig{MaxPlayers: 4, MinPlayers: 2, WinningScore: 30, AllowSelfSteal: true}
	gameService := game.NewService(store, store, game.NewMutexLocker(), gameCfg, logger)
	// Catalog-order decks keep the flow deterministic: the first draw is
	// always Small Points (2).
	gameService.SetShuffler(domain.ShuffleFunc(func(int, func(int, int)) {}))

	authCfg := &config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour, BCryptCost: bcrypt.MinCost}
	authService := auth.NewService(store, authCfg, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()

	h := NewHandler(gameService, authService, hub, nil, 10, logger)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})

	return &testServer{Server: srv, game: gameService}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var api APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		t.Fatalf("decoding %s %s response: %v", method, path, err)
	}
	return resp, api
}

func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()
	resp, api := s.do(t, http.MethodPost, "/api/auth/register", "", auth.RegisterRequest{
		Username: username,
		Password: "secret1",
		Name:     username,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d (%s)", username, resp.StatusCode, api.Error)
	}
	var token auth.TokenResponse
	decodeData(t, api, &token)
	return token.Token
}

// decodeData re-marshals the generic data field into a typed response.
func decodeData(t *testing.T, api APIResponse, out any) {
	t.Helper()
	raw, err := json.Marshal(api.Data)
	if err != nil {
		t.Fatalf("re-marshaling data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		resp, api := srv.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK || !api.Success {
			t.Errorf("GET %s: status %d success=%v", path, resp.StatusCode, api.Success)
		}
	}
}

func TestFullGameFlow(t *testing.T) {
	srv := newTestServer(t)

	alice := srv.register(t, "alice")
	bob := srv.register(t, "bob")

	// Create
	resp, api := srv.do(t, http.MethodPost, "/api/games", alice, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create game: status %d (%s)", resp.StatusCode, api.Error)
	}
	var created GameResponse
	decodeData(t, api, &created)
	if created.Status != string(domain.StatusWaitingForPlayers) || len(created.Players) != 1 {
		t.Fatalf("created game wrong: %+v", created)
	}
	gameID := created.ID

	// Join
	resp, api = srv.do(t, http.MethodPost, "/api/games/"+gameID+"/join", bob, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: status %d (%s)", resp.StatusCode, api.Error)
	}

	// Start
	resp, api = srv.do(t, http.MethodPost, "/api/games/"+gameID+"/start", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d (%s)", resp.StatusCode, api.Error)
	}
	var started GameResponse
	decodeData(t, api, &started)
	if started.Status != string(domain.StatusInProgress) {
		t.Fatalf("status after start = %s", started.Status)
	}
	if started.RemainingCards != domain.DeckSize {
		t.Errorf("remaining cards = %d, want %d", started.RemainingCards, domain.DeckSize)
	}
	if started.CurrentPlayer == nil || started.CurrentPlayer.Name != "alice" {
		t.Fatalf("current player = %+v, want alice", started.CurrentPlayer)
	}

	// Turn: catalog order means alice draws Small Points (2).
	resp, api = srv.do(t, http.MethodPost, "/api/games/"+gameID+"/turn", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("turn: status %d (%s)", resp.StatusCode, api.Error)
	}
	var turn TurnResponse
	decodeData(t, api, &turn)
	if turn.PointsChange != 2 || turn.Card == nil || turn.Card.Name != "Small Points" {
		t.Fatalf("turn response wrong: %+v", turn)
	}
	if turn.Player == nil || turn.Player.Name != "alice" || turn.Player.Score != 2 {
		t.Fatalf("turn player view wrong: %+v", turn.Player)
	}

	// State after the turn, from bob's point of view.
	resp, api = srv.do(t, http.MethodGet, "/api/games/"+gameID, bob, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get game: status %d (%s)", resp.StatusCode, api.Error)
	}
	var view GameResponse
	decodeData(t, api, &view)
	if view.RemainingCards != domain.DeckSize-1 || view.Turns != 1 {
		t.Errorf("after one turn: remaining=%d turns=%d", view.RemainingCards, view.Turns)
	}
	if view.CurrentPlayer == nil || view.CurrentPlayer.Name != "bob" {
		t.Errorf("rotation did not reach bob: %+v", view.CurrentPlayer)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)

	alice := srv.register(t, "alice")
	bob := srv.register(t, "bob")
	mallory := srv.register(t, "mallory")

	_, api := srv.do(t, http.MethodPost, "/api/games", alice, nil)
	var created GameResponse
	decodeData(t, api, &created)
	gameID := created.ID

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"no token", http.MethodPost, "/api/games", "", http.StatusUnauthorized},
		{"bad token", http.MethodPost, "/api/games", "garbage", http.StatusUnauthorized},
		{"unknown game", http.MethodGet, "/api/games/no-such-id", alice, http.StatusNotFound},
		{"duplicate join", http.MethodPost, "/api/games/" + gameID + "/join", alice, http.StatusConflict},
		{"start by non-creator", http.MethodPost, "/api/games/" + gameID + "/start", bob, http.StatusForbidden},
		{"leaderboard disabled", http.MethodGet, "/api/leaderboard", "", http.StatusServiceUnavailable},
	}

	// Non-creator start needs bob seated first.
	if resp, api := srv.do(t, http.MethodPost, "/api/games/"+gameID+"/join", bob, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("join: status %d (%s)", resp.StatusCode, api.Error)
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, api := srv.do(t, tc.method, tc.path, tc.token, nil)
			if resp.StatusCode != tc.status {
				t.Errorf("%s %s: status %d, want %d (%s)", tc.method, tc.path, resp.StatusCode, tc.status, api.Error)
			}
			if api.Success {
				t.Error("error response claims success")
			}
		})
	}

	// Turn before start is an invalid state.
	if resp, _ := srv.do(t, http.MethodPost, "/api/games/"+gameID+"/turn", alice, nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("turn before start: status %d, want 400", resp.StatusCode)
	}

	// Joining after start is an invalid state too.
	if resp, api := srv.do(t, http.MethodPost, "/api/games/"+gameID+"/start", alice, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d (%s)", resp.StatusCode, api.Error)
	}
	if resp, _ := srv.do(t, http.MethodPost, "/api/games/"+gameID+"/join", mallory, nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("join after start: status %d, want 400", resp.StatusCode)
	}

	// Outsiders cannot view the game.
	if resp, _ := srv.do(t, http.MethodGet, "/api/games/"+gameID, mallory, nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("outsider view: status %d, want 403", resp.StatusCode)
	}
}

func TestRegisterRejectsBadPayloads(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := srv.do(t, http.MethodPost, "/api/auth/register", "", auth.RegisterRequest{
		Username: "ab", Password: "secret1", Name: "Shorty",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("short username: status %d, want 400", resp.StatusCode)
	}

	srv.register(t, "alice")
	resp, _ = srv.do(t, http.MethodPost, "/api/auth/register", "", auth.RegisterRequest{
		Username: "alice", Password: "secret1", Name: "Alice",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate username: status %d, want 409", resp.StatusCode)
	}
}

func TestLoginEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice")

	resp, api := srv.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{
		Username: "alice", Password: "secret1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d (%s)", resp.StatusCode, api.Error)
	}
	var token auth.TokenResponse
	decodeData(t, api, &token)
	if token.Token == "" {
		t.Fatal("login returned empty token")
	}

	resp, _ = srv.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{
		Username: "alice", Password: "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password: status %d, want 401", resp.StatusCode)
	}
}
