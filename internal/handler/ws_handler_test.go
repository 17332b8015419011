package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voicerelay/internal/app/chat"
	"voicerelay/internal/configs"
	"voicerelay/internal/pkg/auth/jwt"
	"voicerelay/internal/pkg/errs"
)

const testSecret = "handler-test-secret"

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fakeActivity struct {
	activities []chat.Activity
	err        error

	gotCode  string
	gotLimit int
}

func (f *fakeActivity) RecentActivity(_ context.Context, roomCode string, limit int) ([]chat.Activity, error) {
	f.gotCode = roomCode
	f.gotLimit = limit
	return f.activities, f.err
}

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:     "development",
		Port:            3000,
		StaticDir:       "./does-not-exist",
		MaxRoomSize:     2,
		MaxMessageBytes: 64 * 1024,
		SendQueueSize:   32,
		JWTSecret:       testSecret,
		JoinRate:        100,
		JoinBurst:       100,
	}
}

func startTestServer(t *testing.T, cfg *configs.AppConfig, activity ActivityReader) (*httptest.Server, *AppDeps) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	deps := &AppDeps{
		Coordinator: chat.NewCoordinator(chat.NewRegistry(cfg.MaxRoomSize)),
		Config:      cfg,
		Activity:    activity,
	}

	ts := httptest.NewServer(Router(ctx, deps))
	t.Cleanup(ts.Close)

	return ts, deps
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// mustEvent reads until an event of the given type arrives.
func mustEvent(t *testing.T, conn *websocket.Conn, msgType string, dst any) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}

	for {
		var ev envelope
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("expected event %q not received: %v", msgType, err)
		}
		if ev.Type != msgType {
			continue
		}
		if dst != nil {
			if err := json.Unmarshal(ev.Payload, dst); err != nil {
				t.Fatalf("decode %q payload: %v", msgType, err)
			}
		}
		return
	}
}

func adminToken(t *testing.T, role string) string {
	t.Helper()

	token, err := jwt.GenerateToken(&jwt.Payload{Operator: "tester", Role: role}, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func getJSON(t *testing.T, ts *httptest.Server, path, token string) (int, apiResponse) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer res.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return res.StatusCode, body
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t, testConfig(), nil)

	status, body := getJSON(t, ts, "/health", "")
	if status != http.StatusOK || body.Code != 0 {
		t.Fatalf("unexpected health response: %d %+v", status, body)
	}

	var data map[string]any
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["status"] != "ok" {
		t.Fatalf("status = %v, want ok", data["status"])
	}
}

func TestWebSocketRelay(t *testing.T) {
	ts, deps := startTestServer(t, testConfig(), nil)

	alice := dial(t, ts)
	bob := dial(t, ts)

	var aliceID, bobID chat.ConnectedPayload
	mustEvent(t, alice, "connected", &aliceID)
	mustEvent(t, bob, "connected", &bobID)
	if aliceID.ID == "" || aliceID.ID == bobID.ID {
		t.Fatalf("unexpected identities: %q %q", aliceID.ID, bobID.ID)
	}

	writeEvent(t, alice, "join-room", chat.JoinRoomPayload{Name: "Alice", RoomCode: "abc"})
	mustEvent(t, alice, "room-joined", nil)

	writeEvent(t, bob, "join-room", chat.JoinRoomPayload{Name: "Bob", RoomCode: "abc"})

	var joined chat.RoomJoinedPayload
	mustEvent(t, bob, "room-joined", &joined)
	if len(joined.Users) != 2 || joined.Users[0].ID != aliceID.ID {
		t.Fatalf("unexpected room-joined: %+v", joined)
	}

	var userJoined chat.UserJoinedPayload
	mustEvent(t, alice, "user-joined", &userJoined)
	if userJoined.ID != bobID.ID || userJoined.Name != "Bob" {
		t.Fatalf("unexpected user-joined: %+v", userJoined)
	}

	writeEvent(t, alice, "audio-stream", map[string]any{"roomCode": "abc", "audioData": []float64{0.5, -0.5}})

	var audio chat.RelayedAudioPayload
	mustEvent(t, bob, "audio-stream", &audio)
	if audio.ID != aliceID.ID || string(audio.AudioData) != "[0.5,-0.5]" {
		t.Fatalf("unexpected audio: %+v %s", audio, audio.AudioData)
	}

	// the room is now full
	carol := dial(t, ts)
	mustEvent(t, carol, "connected", nil)
	writeEvent(t, carol, "join-room", chat.JoinRoomPayload{Name: "Carol", RoomCode: "abc"})
	mustEvent(t, carol, "room-full", nil)

	alice.Close()

	var left chat.UserLeftPayload
	mustEvent(t, bob, "user-left", &left)
	if left.ID != aliceID.ID {
		t.Fatalf("user-left id = %q, want %q", left.ID, aliceID.ID)
	}

	if size := deps.Coordinator.Registry().Get("abc").Size(); size != 1 {
		t.Fatalf("room size = %d, want 1", size)
	}
}

func TestWebSocketRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.JoinRate = 0.001
	cfg.JoinBurst = 1
	ts, _ := startTestServer(t, cfg, nil)

	dial(t, ts)

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected bad handshake, got %v", err)
	}
	if res == nil || res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %+v", res)
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	cfg.AllowedOrigins = []string{"https://voice.example.com"}
	ts, _ := startTestServer(t, cfg, nil)

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatal("dial from a foreign origin succeeded")
	}

	header = http.Header{"Origin": []string{"https://voice.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial from allowed origin: %v", err)
	}
	conn.Close()
}

func TestAdminRoomsRequiresToken(t *testing.T) {
	ts, _ := startTestServer(t, testConfig(), nil)

	status, body := getJSON(t, ts, "/api/rooms/", "")
	if status != http.StatusUnauthorized || body.Code != errs.ErrUnauthorized {
		t.Fatalf("unexpected response without token: %d %+v", status, body)
	}

	status, body = getJSON(t, ts, "/api/rooms/", adminToken(t, "viewer"))
	if status != http.StatusUnauthorized {
		t.Fatalf("unexpected response for wrong role: %d %+v", status, body)
	}
}

func TestAdminRoomsList(t *testing.T) {
	ts, deps := startTestServer(t, testConfig(), nil)

	s := deps.Coordinator.Connect(&nopConn{id: "a"})
	if err := s.Join("Alice", "abc"); err != nil {
		t.Fatalf("join: %v", err)
	}

	status, body := getJSON(t, ts, "/api/rooms/", adminToken(t, jwt.RoleAdmin))
	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d %+v", status, body)
	}

	var data struct {
		Rooms []chat.RoomInfo `json:"rooms"`
		Count int             `json:"count"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Count != 1 || data.Rooms[0].Code != "abc" || data.Rooms[0].Members != 1 {
		t.Fatalf("unexpected rooms: %+v", data)
	}

	status, _ = getJSON(t, ts, "/api/rooms/abc", adminToken(t, jwt.RoleAdmin))
	if status != http.StatusOK {
		t.Fatalf("get room status = %d", status)
	}

	status, body = getJSON(t, ts, "/api/rooms/nope", adminToken(t, jwt.RoleAdmin))
	if status != http.StatusNotFound || body.Code != errs.ErrRoomNotFound {
		t.Fatalf("unexpected response for unknown room: %d %+v", status, body)
	}
}

func TestAdminActivity(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts, _ := startTestServer(t, testConfig(), nil)

		status, body := getJSON(t, ts, "/api/rooms/abc/activity", adminToken(t, jwt.RoleAdmin))
		if status != http.StatusServiceUnavailable || body.Code != errs.ErrActivityLogDisabled {
			t.Fatalf("unexpected response: %d %+v", status, body)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		store := &fakeActivity{activities: []chat.Activity{
			{Kind: chat.ActivityLeave, RoomCode: "abc", ConnID: "a", Name: "Alice"},
			{Kind: chat.ActivityJoin, RoomCode: "abc", ConnID: "a", Name: "Alice"},
		}}
		ts, _ := startTestServer(t, testConfig(), store)

		status, body := getJSON(t, ts, "/api/rooms/abc/activity?limit=10", adminToken(t, jwt.RoleAdmin))
		if status != http.StatusOK {
			t.Fatalf("unexpected response: %d %+v", status, body)
		}
		if store.gotCode != "abc" || store.gotLimit != 10 {
			t.Fatalf("store called with %q/%d", store.gotCode, store.gotLimit)
		}

		var data struct {
			Activity []chat.Activity `json:"activity"`
		}
		if err := json.Unmarshal(body.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if len(data.Activity) != 2 || data.Activity[0].Kind != chat.ActivityLeave {
			t.Fatalf("unexpected activity: %+v", data.Activity)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		ts, _ := startTestServer(t, testConfig(), &fakeActivity{})

		status, body := getJSON(t, ts, "/api/rooms/abc/activity?limit=0", adminToken(t, jwt.RoleAdmin))
		if status != http.StatusBadRequest || body.Code != errs.ErrInvalidParams {
			t.Fatalf("unexpected response: %d %+v", status, body)
		}
	})
}

func TestNewRoomCode(t *testing.T) {
	ts, _ := startTestServer(t, testConfig(), nil)

	res, err := ts.Client().Post(ts.URL+"/api/rooms/code", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer res.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var data struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.RoomCode) != 6 {
		t.Fatalf("room code = %q, want 6 characters", data.RoomCode)
	}
}

type nopConn struct{ id string }

func (c *nopConn) ID() string         { return c.id }
func (c *nopConn) Send([]byte) error { return nil }
func (c *nopConn) Close()             {}
