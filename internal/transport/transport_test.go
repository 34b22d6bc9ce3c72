package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recorder collects payloads delivered to a listener.
type recorder struct {
	mu       sync.Mutex
	payloads []string
}

func (r *recorder) listen(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, string(payload))
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func newTestServer(t *testing.T, cfg Config) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, nil)
	srv := NewServer("127.0.0.1:0", hub, func() any { return map[string]int{"sent": 3} }, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return hub, ts
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, channel, payload string) {
	t.Helper()
	data, err := json.Marshal(Frame{Channel: channel, Payload: json.RawMessage(payload)})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHub_ListenExclusive(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)

	require.NoError(t, hub.Listen("message", func([]byte) {}))
	err := hub.Listen("message", func([]byte) {})
	assert.ErrorIs(t, err, ErrChannelTaken)

	hub.Unlisten("message")
	assert.NoError(t, hub.Listen("message", func([]byte) {}))
}

func TestHub_EmitWithoutWindow(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	assert.ErrorIs(t, hub.Emit("message", map[string]string{"command": "paths"}), ErrNoWindow)
	assert.Nil(t, hub.Active())
}

func TestHub_RoundTrip(t *testing.T) {
	hub, ts := newTestServer(t, DefaultConfig())
	rec := &recorder{}
	require.NoError(t, hub.Listen("message", rec.listen))

	conn := dial(t, ts, nil)
	require.Eventually(t, func() bool { return hub.Windows() == 1 }, time.Second, 10*time.Millisecond)

	sendFrame(t, conn, "message", `{"command":"get-paths"}`)
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `{"command":"get-paths"}`, rec.all()[0])

	require.NoError(t, hub.Emit("message", map[string]any{"command": "paths", "content": []int{}}))
	f := readFrame(t, conn)
	assert.Equal(t, "message", f.Channel)
	assert.JSONEq(t, `{"command":"paths","content":[]}`, string(f.Payload))
}

func TestHub_ActiveFollowsSender(t *testing.T) {
	hub, ts := newTestServer(t, DefaultConfig())
	rec := &recorder{}
	require.NoError(t, hub.Listen("message", rec.listen))

	first := dial(t, ts, nil)
	require.Eventually(t, func() bool { return hub.Windows() == 1 }, time.Second, 10*time.Millisecond)
	firstWindow := hub.Active()

	dial(t, ts, nil)
	require.Eventually(t, func() bool { return hub.Windows() == 2 }, time.Second, 10*time.Millisecond)
	assert.NotEqual(t, firstWindow.ID(), hub.Active().ID(), "newest window should be active")

	sendFrame(t, first, "message", `{"command":"get-paths"}`)
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, firstWindow.ID(), hub.Active().ID(), "sender should become active")

	require.NoError(t, hub.Emit("message", "hello"))
	f := readFrame(t, first)
	assert.JSONEq(t, `"hello"`, string(f.Payload))
}

func TestHub_UnknownChannelIgnored(t *testing.T) {
	hub, ts := newTestServer(t, DefaultConfig())
	rec := &recorder{}
	require.NoError(t, hub.Listen("message", rec.listen))

	conn := dial(t, ts, nil)
	sendFrame(t, conn, "other", `{}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendFrame(t, conn, "message", `{"command":"x"}`)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `{"command":"x"}`, rec.all()[0])
}

func TestHub_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	hub, ts := newTestServer(t, cfg)
	rec := &recorder{}
	require.NoError(t, hub.Listen("message", rec.listen))

	conn := dial(t, ts, nil)
	for i := 0; i < 3; i++ {
		sendFrame(t, conn, "message", `{"command":"get-paths"}`)
	}
	require.Eventually(t, func() bool { return len(rec.all()) >= 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	assert.Len(t, rec.all(), 1)
}

func TestHub_DetachOnDisconnect(t *testing.T) {
	hub, ts := newTestServer(t, DefaultConfig())

	conn := dial(t, ts, nil)
	require.Eventually(t, func() bool { return hub.Windows() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Windows() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, hub.Active())
	assert.ErrorIs(t, hub.Emit("message", "x"), ErrNoWindow)
}

func TestServer_Token(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token = "secret"
	hub, ts := newTestServer(t, cfg)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set(TokenHeader, "secret")
	dial(t, ts, header)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=secret", nil)
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool { return hub.Windows() >= 1 }, time.Second, 10*time.Millisecond)
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t, DefaultConfig())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status  string         `json:"status"`
		Windows int            `json:"windows"`
		Router  map[string]int `json:"components"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 0, body.Windows)
	assert.Equal(t, 3, body.Router["sent"])
}
