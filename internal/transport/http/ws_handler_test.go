package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pathkey-service/internal/app"
	"pathkey-service/internal/domain"
	"pathkey-service/internal/infra/memory"
	"pathkey-service/internal/pathkey"
)

type testServer struct {
	server  *httptest.Server
	service *app.GameService
	awards  *pathkey.Orchestrator
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.NewStore()
	store.AddCareer(domain.Career{ID: "nurse", SectorID: "health", ClusterID: "health-science"})
	store.AddPathkey(domain.Pathkey{ID: "pk-nurse", CareerID: "nurse", Name: "Nurse key"})
	store.AddQuestionSet(sampleSet())

	rules := pathkey.DefaultRules()
	rules.MinPlayersForCareerMastery = pathkey.DemoMinPlayers
	awards := pathkey.NewOrchestrator(store, rules, logger)
	service := app.NewGameService(
		memory.NewSessionStore(),
		memory.NewQuestionSetRepository(store, time.Minute),
		store,
		awards,
		nil,
		logger,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(service, logger).ServeWS)
	NewGamesHandler(service, logger).Register(mux)
	mux.HandleFunc("GET /students/{studentId}/careers/{careerId}/pathkey", StatusHandler(awards))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return testServer{server: server, service: service, awards: awards}
}

func (s testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + s.server.URL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s testServer) startedGame(t *testing.T) domain.GameSession {
	t.Helper()
	ctx := context.Background()
	game, err := s.service.CreateGame(ctx, app.CreateGameRequest{HostID: "host-1", Mode: domain.ModeCareer, QuestionSetID: "qs-nurse"})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if err := s.service.StartGame(ctx, game.ID, "host-1"); err != nil {
		t.Fatalf("start game: %v", err)
	}
	return game
}

func TestWebSocketAnswerFlow(t *testing.T) {
	srv := newTestServer(t)
	game := srv.startedGame(t)

	conn := srv.dial(t, "gameId="+game.ID+"&playerId=p1&name=Alice&studentId=s1")

	// Expect joined event first.
	if _, payload := readNext(conn, t, "joined"); payload == nil {
		t.Fatalf("expected joined payload, got nil")
	}

	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId": "q1",
			"optionId":   "o2",
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	payload := readUntil(conn, t, "answerResult")
	if payload["correct"] != true || payload["awarded"] != float64(1) {
		t.Fatalf("unexpected answer result %+v", payload)
	}

	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write repeat answer: %v", err)
	}
	payload = readUntil(conn, t, "error")
	if payload["message"] != domain.ErrAlreadyAnswered.Error() {
		t.Fatalf("expected repeat to be rejected, got %+v", payload)
	}
}

func TestWebSocketHostEndsGame(t *testing.T) {
	srv := newTestServer(t)
	game := srv.startedGame(t)

	player := srv.dial(t, "gameId="+game.ID+"&playerId=p1&name=Alice&studentId=s1")
	readNext(player, t, "joined")
	if err := player.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": "q1", "optionId": "o2"},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	readUntil(player, t, "answerResult")

	host := srv.dial(t, "gameId="+game.ID+"&playerId=host-1&host=1")
	readNext(host, t, "leaderboard")
	if err := host.WriteJSON(map[string]any{"type": "end"}); err != nil {
		t.Fatalf("write end: %v", err)
	}

	ended := readUntil(host, t, "gameEnded")
	players, ok := ended["players"].([]any)
	if !ok || len(players) != 1 {
		t.Fatalf("expected one player result, got %+v", ended)
	}
	first := players[0].(map[string]any)
	if first["placement"] != float64(1) || first["tokens"] != float64(60) {
		t.Fatalf("unexpected winner result %+v", first)
	}

	readUntil(player, t, "gameEnded")

	st, err := srv.awards.Status(context.Background(), "s1", "nurse")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Record.CareerMasteryUnlocked {
		t.Fatalf("expected career mastery after winning")
	}
}

func TestWebSocketEndRequiresHost(t *testing.T) {
	srv := newTestServer(t)
	game := srv.startedGame(t)

	impostor := srv.dial(t, "gameId="+game.ID+"&playerId=p2&host=1")
	readNext(impostor, t, "leaderboard")
	if err := impostor.WriteJSON(map[string]any{"type": "end"}); err != nil {
		t.Fatalf("write end: %v", err)
	}
	payload := readUntil(impostor, t, "error")
	if !strings.Contains(payload["message"].(string), "host") {
		t.Fatalf("expected host error, got %+v", payload)
	}
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.server.URL + "/ws?gameId=g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGamesHandlerLifecycle(t *testing.T) {
	srv := newTestServer(t)

	post := func(path string, body any) *http.Response {
		t.Helper()
		raw, _ := json.Marshal(body)
		resp, err := http.Post(srv.server.URL+path, "application/json", bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		return resp
	}

	resp := post("/games", map[string]string{"hostId": "host-1", "mode": "career", "questionSetId": "qs-nurse"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var game domain.GameSession
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		t.Fatalf("decode game: %v", err)
	}
	resp.Body.Close()

	resp = post("/games/"+game.ID+"/start", map[string]string{"hostId": "someone"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-host, got %d", resp.StatusCode)
	}

	resp = post("/games/"+game.ID+"/end", map[string]string{"hostId": "host-1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 ending a waiting game, got %d", resp.StatusCode)
	}

	resp = post("/games/"+game.ID+"/start", map[string]string{"hostId": "host-1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = post("/games/"+game.ID+"/end", map[string]string{"hostId": "host-1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = post("/games/missing/start", map[string]string{"hostId": "host-1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStatusHandler(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.server.URL + "/students/s9/careers/nurse/pathkey")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var view statusView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.StudentID != "s9" || view.CareerMastery || len(view.Drivers) != 0 {
		t.Fatalf("unexpected status %+v", view)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// readUntil skips leaderboard noise until a message of the wanted type arrives.
func readUntil(conn *websocket.Conn, t *testing.T, want string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == want {
			return payload
		}
	}
	t.Fatalf("no %s message within 10 reads", want)
	return nil
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:       "qs-nurse",
		CareerID: "nurse",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "Who leads a ward shift?",
				Options: []domain.Option{
					{ID: "o1", Text: "Porter", Correct: false},
					{ID: "o2", Text: "Charge nurse", Correct: true},
					{ID: "o3", Text: "Visitor", Correct: false},
				},
				Points: 1,
				Driver: domain.DriverPeople,
			},
		},
	}
}
