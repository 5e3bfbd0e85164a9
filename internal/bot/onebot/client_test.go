package onebot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-guard/internal/bot"
	"chat-guard/internal/config"
)

type request struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
	Echo   string                 `json:"echo"`
}

// fakeServer is a minimal OneBot implementation answering API calls with
// canned data
type fakeServer struct {
	t        *testing.T
	srv      *httptest.Server
	mu       sync.Mutex
	requests []request
	conn     *websocket.Conn
	ready    chan struct{}
	auth     string
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{t: t, ready: make(chan struct{})}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.auth = r.Header.Get("Authorization")
		f.mu.Unlock()
		close(f.ready)
		f.serve(conn)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeServer) serve(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req request
		if json.Unmarshal(payload, &req) != nil {
			continue
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		resp := map[string]interface{}{"status": "ok", "retcode": 0, "echo": req.Echo}
		switch req.Action {
		case "get_login_info":
			resp["data"] = map[string]interface{}{"user_id": 10000, "nickname": "guard"}
		case "get_group_member_info":
			resp["data"] = map[string]interface{}{"role": "admin", "nickname": "bot", "card": ""}
		case "delete_msg":
			resp["status"] = "failed"
			resp["retcode"] = 1200
			resp["wording"] = "message not found"
		default:
			resp["data"] = nil
		}
		f.write(resp)
	}
}

func (f *fakeServer) write(v interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.conn.WriteJSON(v); err != nil {
		f.t.Errorf("write: %v", err)
	}
}

func (f *fakeServer) find(action string) (request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.Action == action {
			return r, true
		}
	}
	return request{}, false
}

func newTestClient(f *fakeServer) *Client {
	return New(config.OneBotConfig{
		WSURL:             f.url(),
		AccessToken:       "secret",
		ReconnectInterval: time.Hour,
		APITimeout:        2 * time.Second,
	})
}

func TestClientAPICalls(t *testing.T) {
	assert := assert.New(t)
	f := newFakeServer(t)
	c := newTestClient(f)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	<-f.ready

	ctx := context.Background()

	info, err := c.GetMemberInfo(ctx, "100001", "10000")
	require.NoError(t, err)
	assert.Equal(bot.RoleAdmin, info.Role)
	assert.True(info.IsElevated())

	err = c.DeleteMessage(ctx, "99")
	require.Error(t, err)
	assert.Contains(err.Error(), "message not found")

	require.NoError(t, c.SetTimedMute(ctx, "100001", "42", 10*time.Minute))
	req, ok := f.find("set_group_ban")
	require.True(t, ok)
	assert.Equal(float64(600), req.Params["duration"])
	assert.Equal(float64(100001), req.Params["group_id"])

	require.NoError(t, c.SendGroupMessage(ctx, "100001", "[TYPE:at,qq=42]hi"))
	req, ok = f.find("send_group_msg")
	require.True(t, ok)
	segments, ok := req.Params["message"].([]interface{})
	require.True(t, ok)
	assert.Len(segments, 2)

	assert.Equal("Bearer secret", f.auth)
	assert.Eventually(func() bool { return c.SelfID() == 10000 }, 2*time.Second, 10*time.Millisecond)
}

func TestClientDispatchesGroupMessages(t *testing.T) {
	assert := assert.New(t)
	f := newFakeServer(t)
	c := newTestClient(f)

	got := make(chan *bot.Message, 4)
	c.OnGroupMessage(func(ctx context.Context, msg *bot.Message) { got <- msg })
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	<-f.ready

	f.write(map[string]interface{}{"post_type": "meta_event", "meta_event_type": "heartbeat"})
	f.write(map[string]interface{}{
		"post_type": "message", "message_type": "private", "user_id": 42, "self_id": 10000,
		"message": "hi",
	})
	f.write(map[string]interface{}{
		"post_type": "message", "message_type": "group", "group_id": 100001, "user_id": 10000, "self_id": 10000,
		"message_id": 1, "message": "own message",
	})
	f.write(map[string]interface{}{
		"post_type": "message", "message_type": "group", "group_id": 100001, "user_id": 42, "self_id": 10000,
		"message_id": 2,
		"message": []map[string]interface{}{
			{"type": "reply", "data": map[string]interface{}{"id": "1"}},
			{"type": "text", "data": map[string]interface{}{"text": "spam"}},
		},
	})

	select {
	case msg := <-got:
		assert.Equal(Name, msg.Adapter)
		assert.Equal("100001", msg.GroupID)
		assert.Equal("42", msg.UserID)
		assert.Equal("10000", msg.SelfID)
		assert.Equal("2", msg.MessageID)
		assert.Equal("1", msg.QuoteID)
		require.Len(t, msg.Elements, 1)
		assert.Equal("spam", msg.Elements[0].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("group message not dispatched")
	}

	select {
	case msg := <-got:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientNotConnected(t *testing.T) {
	c := New(config.OneBotConfig{WSURL: "ws://127.0.0.1:1"})
	err := c.SendGroupMessage(context.Background(), "100001", "hi")
	assert.ErrorIs(t, err, ErrNotConnected)
}
