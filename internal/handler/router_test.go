package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/user"
	"chatrelay/internal/configs"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/metrics"
	"chatrelay/internal/pkg/pow"
)

type testEnv struct {
	server *httptest.Server
	deps   *AppDeps
}

func newTestEnv(t *testing.T, cfg *configs.AppConfig, difficulty int) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := user.NewRegistry()
	m := metrics.New()
	deps := &AppDeps{
		Manager:  chat.NewManager(chat.NewRouter(reg), m),
		Registry: reg,
		Config:   cfg,
		PoW:      pow.NewManager(ctx, difficulty),
		Metrics:  m,
	}

	srv := httptest.NewServer(Router(ctx, deps))
	t.Cleanup(func() {
		deps.Manager.Shutdown()
		srv.Close()
	})

	return &testEnv{server: srv, deps: deps}
}

func devConfig() *configs.AppConfig {
	return &configs.AppConfig{Environment: "development"}
}

func (e *testEnv) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if res != nil {
			status = res.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", url, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ chat.MessageType, payload any, tempID string) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(chat.Envelope{Type: typ, Payload: raw, TempID: tempID}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) chat.Envelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var env chat.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func expect(t *testing.T, conn *websocket.Conn, want chat.MessageType) chat.Envelope {
	t.Helper()
	env := recv(t, conn)
	if env.Type != want {
		t.Fatalf("got %s frame %s, want %s", env.Type, env.Payload, want)
	}
	return env
}

func payload[T any](t *testing.T, env chat.Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Type, err)
	}
	return v
}

func getJSON(t *testing.T, url string) (int, jsonResponse) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var body jsonResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return res.StatusCode, body
}

type jsonResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestChatFlow(t *testing.T) {
	env := newTestEnv(t, devConfig(), 0)

	alice := dial(t, env.wsURL(""))
	send(t, alice, chat.TypeJoin, chat.JoinPayload{Username: "alice", Room: "Lobby"}, "j1")

	welcome := payload[chat.Message](t, expect(t, alice, chat.TypeServerMessage))
	if welcome.Text != "welcome to the chat app alice!" || welcome.Username != chat.SystemUsername {
		t.Errorf("welcome = %+v", welcome)
	}
	expect(t, alice, chat.TypeRoomData)
	if ack := expect(t, alice, chat.TypeAck); ack.TempID != "j1" {
		t.Errorf("ack tempId = %q", ack.TempID)
	}

	bob := dial(t, env.wsURL(""))
	send(t, bob, chat.TypeJoin, chat.JoinPayload{Username: "bob", Room: " lobby "}, "j2")

	expect(t, bob, chat.TypeServerMessage)
	roster := payload[chat.RoomData](t, expect(t, bob, chat.TypeRoomData))
	if len(roster.Users) != 2 || roster.Users[0].Username != "alice" || roster.Users[1].Username != "bob" {
		t.Errorf("roster = %+v", roster)
	}
	expect(t, bob, chat.TypeAck)

	if notice := payload[chat.Message](t, expect(t, alice, chat.TypeServerMessage)); notice.Text != "bob has joined chat" {
		t.Errorf("join notice = %q", notice.Text)
	}
	expect(t, alice, chat.TypeRoomData)

	send(t, alice, chat.TypeClientMessage, "hi bob", "m1")

	if msg := payload[chat.Message](t, expect(t, alice, chat.TypeServerMessage)); msg.Text != "hi bob" {
		t.Errorf("echo = %+v", msg)
	}
	if ack := payload[chat.AckPayload](t, expect(t, alice, chat.TypeAck)); ack.Status != chat.StatusMessageReceived {
		t.Errorf("ack = %+v", ack)
	}
	if msg := payload[chat.Message](t, expect(t, bob, chat.TypeServerMessage)); msg.Username != "alice" || msg.Text != "hi bob" {
		t.Errorf("bob got %+v", msg)
	}

	send(t, bob, chat.TypeLocationData, map[string]float64{"latitude": 51.5, "longitude": -0.12}, "")
	loc := payload[chat.LocationMessage](t, expect(t, alice, chat.TypeLocationMessage))
	if loc.MapURL != "https://google.com/maps?q=51.5,-0.12" || loc.Username != "bob" {
		t.Errorf("location = %+v", loc)
	}
	expect(t, bob, chat.TypeLocationMessage)

	bob.Close()

	if left := payload[chat.Message](t, expect(t, alice, chat.TypeServerMessage)); left.Text != "bob has left chat" {
		t.Errorf("left notice = %q", left.Text)
	}
	roster = payload[chat.RoomData](t, expect(t, alice, chat.TypeRoomData))
	if len(roster.Users) != 1 || roster.Users[0].Username != "alice" {
		t.Errorf("roster after leave = %+v", roster)
	}

	status, body := getJSON(t, env.server.URL+"/api/rooms")
	if status != http.StatusOK || body.Code != 0 {
		t.Fatalf("rooms status %d body %+v", status, body)
	}
	var rooms struct {
		Rooms []user.RoomSummary `json:"rooms"`
		Total int                `json:"total"`
	}
	if err := json.Unmarshal(body.Data, &rooms); err != nil {
		t.Fatal(err)
	}
	if rooms.Total != 1 || rooms.Rooms[0].Name != "Lobby" || rooms.Rooms[0].Users != 1 {
		t.Errorf("rooms = %+v", rooms)
	}
}

func TestDuplicateUsernameOverWebSocket(t *testing.T) {
	env := newTestEnv(t, devConfig(), 0)

	first := dial(t, env.wsURL(""))
	send(t, first, chat.TypeJoin, chat.JoinPayload{Username: "sam", Room: "r"}, "a")
	expect(t, first, chat.TypeServerMessage)
	expect(t, first, chat.TypeRoomData)
	expect(t, first, chat.TypeAck)

	second := dial(t, env.wsURL(""))
	send(t, second, chat.TypeJoin, chat.JoinPayload{Username: "SAM", Room: "r"}, "b")

	ack := payload[chat.AckPayload](t, expect(t, second, chat.TypeAck))
	if ack.Code != errs.ErrUsernameInUse || ack.Error != "Username is in use!" {
		t.Errorf("ack = %+v", ack)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, devConfig(), 0)

	status, body := getJSON(t, env.server.URL+"/health")
	if status != http.StatusOK || body.Code != 0 || !strings.Contains(string(body.Data), `"status":"ok"`) {
		t.Errorf("health = %d %+v", status, body)
	}

	res, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", res.StatusCode)
	}
}

func TestPowDisabled(t *testing.T) {
	env := newTestEnv(t, devConfig(), 0)

	status, body := getJSON(t, env.server.URL+"/api/pow/challenge")
	if status != http.StatusNotFound || body.Code != errs.ErrPowDisabled {
		t.Errorf("challenge = %d %+v", status, body)
	}
}

func TestPowGate(t *testing.T) {
	env := newTestEnv(t, devConfig(), 1)

	_, res, err := websocket.DefaultDialer.Dial(env.wsURL(""), nil)
	if err == nil {
		t.Fatal("upgrade without a proof token succeeded")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %v, want 403", res)
	}

	status, body := getJSON(t, env.server.URL+"/api/pow/challenge")
	if status != http.StatusOK {
		t.Fatalf("challenge status = %d", status)
	}
	var challenge struct {
		Nonce      string `json:"nonce"`
		Difficulty int    `json:"difficulty"`
	}
	if err := json.Unmarshal(body.Data, &challenge); err != nil {
		t.Fatal(err)
	}

	counter := 0
	for !pow.Satisfies(challenge.Nonce, strconv.Itoa(counter), challenge.Difficulty) {
		counter++
	}

	reqBody, _ := json.Marshal(PowVerifyInput{Nonce: challenge.Nonce, Counter: strconv.Itoa(counter)})
	verifyRes, err := http.Post(env.server.URL+"/api/pow/verify", "application/json", strings.NewReader(string(reqBody)))
	if err != nil {
		t.Fatal(err)
	}
	defer verifyRes.Body.Close()

	var verified jsonResponse
	if err := json.NewDecoder(verifyRes.Body).Decode(&verified); err != nil {
		t.Fatal(err)
	}
	var token struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(verified.Data, &token); err != nil || token.Token == "" {
		t.Fatalf("verify response = %+v", verified)
	}

	conn := dial(t, env.wsURL(pow.TokenQueryKey+"="+token.Token))
	send(t, conn, chat.TypeJoin, chat.JoinPayload{Username: "solver", Room: "r"}, "")
	expect(t, conn, chat.TypeServerMessage)

	if _, _, err := websocket.DefaultDialer.Dial(env.wsURL(pow.TokenQueryKey+"="+token.Token), nil); err == nil {
		t.Error("proof token was accepted twice")
	}
}

func TestOriginCheck(t *testing.T) {
	env := newTestEnv(t, &configs.AppConfig{
		Environment:    "production",
		AllowedOrigins: []string{"https://chat.example.com"},
	}, 0)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	if _, res, err := websocket.DefaultDialer.Dial(env.wsURL(""), header); err == nil {
		t.Error("foreign origin was upgraded")
	} else if res == nil || res.StatusCode != http.StatusForbidden {
		t.Errorf("foreign origin response = %v", res)
	}

	header.Set("Origin", "https://chat.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL(""), header)
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	conn.Close()
}

func TestJoinRateLimit(t *testing.T) {
	env := newTestEnv(t, devConfig(), 0)

	for i := 0; i < JoinBurst; i++ {
		dial(t, env.wsURL(""))
	}

	_, res, err := websocket.DefaultDialer.Dial(env.wsURL(""), nil)
	if err == nil {
		t.Fatal("upgrade over the join burst succeeded")
	}
	if res == nil || res.StatusCode != http.StatusTooManyRequests {
		t.Errorf("response = %v, want 429", res)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>chat</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	env := newTestEnv(t, &configs.AppConfig{Environment: "development", PublicDir: dir}, 0)

	res, err := http.Get(env.server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
}
