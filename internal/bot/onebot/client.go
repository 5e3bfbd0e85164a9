// Package onebot implements the bot.Client contract on a OneBot v11
// implementation reached through a forward websocket.
package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chat-guard/internal/bot"
	"chat-guard/internal/config"
	"chat-guard/internal/crash"
	"chat-guard/internal/logger"
)

// Name is the adapter name used in configuration and audit records.
const Name = config.AdapterOneBot

const (
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	minReconnect = time.Second
)

// ErrNotConnected is returned by API calls while the websocket is down.
var ErrNotConnected = errors.New("onebot websocket not connected")

type rawEvent struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	MessageID   json.RawMessage `json:"message_id"`
	UserID      json.RawMessage `json:"user_id"`
	GroupID     json.RawMessage `json:"group_id"`
	SelfID      json.RawMessage `json:"self_id"`
	Message     json.RawMessage `json:"message"`
	Echo        json.RawMessage `json:"echo"`
}

type apiRequest struct {
	Action string      `json:"action"`
	Params interface{} `json:"params"`
	Echo   string      `json:"echo"`
}

type apiResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
	Data    json.RawMessage `json:"data"`
}

// Client is the OneBot adapter
type Client struct {
	cfg     config.OneBotConfig
	handler bot.MessageHandler

	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	writeMu sync.Mutex

	echoCounter int64
	selfID      int64
	pending     map[string]chan apiResponse
	pendingMu   sync.Mutex
}

// New creates a client. Call OnGroupMessage and then Start.
func New(cfg config.OneBotConfig) *Client {
	return &Client{
		cfg:     cfg,
		pending: make(map[string]chan apiResponse),
	}
}

// Name implements bot.Client
func (c *Client) Name() string {
	return Name
}

// OnGroupMessage sets the receiver of decoded group messages
func (c *Client) OnGroupMessage(h bot.MessageHandler) {
	c.handler = h
}

// Start connects and keeps reconnecting in the background until Stop.
func (c *Client) Start(ctx context.Context) error {
	if c.cfg.WSURL == "" {
		return fmt.Errorf("onebot ws_url not configured")
	}
	logger.Infof("Starting OneBot client for %s", c.cfg.WSURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		logger.Warningf("Initial OneBot connection failed, will retry in background: %v", err)
	} else {
		c.afterConnect()
	}

	crash.SafeGoroutine("onebot-reconnect", c.reconnectLoop)
	return nil
}

// Stop closes the connection and fails every pending API call.
func (c *Client) Stop() {
	logger.Infof("Stopping OneBot client")
	if c.cancel != nil {
		c.cancel()
	}

	c.pendingMu.Lock()
	for echo, ch := range c.pending {
		close(ch)
		delete(c.pending, echo)
	}
	c.pendingMu.Unlock()

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

// SelfID returns the bot account id, 0 until get_login_info succeeded
func (c *Client) SelfID() int64 {
	return atomic.LoadInt64(&c.selfID)
}

func (c *Client) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	header := make(map[string][]string)
	if c.cfg.AccessToken != "" {
		header["Authorization"] = []string{"Bearer " + c.cfg.AccessToken}
	}

	conn, _, err := dialer.DialContext(c.ctx, c.cfg.WSURL, header)
	if err != nil {
		return err
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	logger.Infof("OneBot websocket connected")
	return nil
}

func (c *Client) afterConnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	crash.SafeGoroutine("onebot-listen", func() { c.listen(conn) })
	crash.SafeGoroutine("onebot-ping", func() { c.pinger(conn) })
	crash.SafeGoroutine("onebot-login-info", c.fetchSelfID)
}

func (c *Client) pinger(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				logger.Debugf("OneBot ping failed, stopping pinger: %v", err)
				return
			}
		}
	}
}

func (c *Client) reconnectLoop() {
	interval := c.cfg.ReconnectInterval
	if interval < minReconnect {
		interval = minReconnect
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn != nil {
				continue
			}

			logger.Infof("Attempting to reconnect to OneBot...")
			if err := c.connect(); err != nil {
				logger.Errorf("OneBot reconnect failed: %v", err)
				continue
			}
			c.afterConnect()
		}
	}
}

func (c *Client) fetchSelfID() {
	ctx, cancel := context.WithTimeout(c.ctx, c.apiTimeout())
	defer cancel()

	data, err := c.call(ctx, "get_login_info", struct{}{})
	if err != nil {
		logger.Warningf("Failed to get_login_info: %v", err)
		return
	}

	var info struct {
		UserID   json.RawMessage `json:"user_id"`
		Nickname string          `json:"nickname"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		logger.Warningf("Could not parse get_login_info response: %v", err)
		return
	}
	if uid, err := parseJSONInt64(info.UserID); err == nil && uid > 0 {
		atomic.StoreInt64(&c.selfID, uid)
		logger.Infof("OneBot logged in as %s (%d)", info.Nickname, uid)
	}
}

func (c *Client) listen(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				logger.Errorf("OneBot websocket read error: %v", err)
			}
			c.mu.Lock()
			if c.conn == conn {
				c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var raw rawEvent
		if err := json.Unmarshal(payload, &raw); err != nil {
			logger.Warningf("Failed to unmarshal OneBot event: %v", err)
			continue
		}

		if echo := parseJSONString(raw.Echo); echo != "" {
			c.deliver(echo, payload)
			continue
		}

		msg, ok := c.decodeGroupMessage(&raw)
		if !ok || c.handler == nil {
			continue
		}
		crash.SafeGoroutine("onebot-event", func() { c.handler(c.ctx, msg) })
	}
}

func (c *Client) deliver(echo string, payload []byte) {
	var resp apiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		logger.Warningf("Failed to unmarshal OneBot API response %s: %v", echo, err)
		return
	}

	// Stop closes pending channels under the same lock
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ch, ok := c.pending[echo]
	if !ok {
		logger.Debugf("OneBot API response %s has no waiter", echo)
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

// decodeGroupMessage turns a group message event into a bot.Message. The
// bot's own messages are skipped.
func (c *Client) decodeGroupMessage(raw *rawEvent) (*bot.Message, bool) {
	if raw.PostType != "message" || raw.MessageType != "group" {
		return nil, false
	}

	groupID, err := parseJSONInt64(raw.GroupID)
	if err != nil || groupID == 0 {
		return nil, false
	}
	userID, err := parseJSONInt64(raw.UserID)
	if err != nil || userID == 0 {
		return nil, false
	}
	selfID, _ := parseJSONInt64(raw.SelfID)
	if selfID == 0 {
		selfID = c.SelfID()
	}
	if userID == selfID {
		return nil, false
	}

	elements, quote := parseMessage(raw.Message)
	return &bot.Message{
		Adapter:   Name,
		GroupID:   strconv.FormatInt(groupID, 10),
		UserID:    strconv.FormatInt(userID, 10),
		SelfID:    strconv.FormatInt(selfID, 10),
		MessageID: parseJSONString(raw.MessageID),
		QuoteID:   quote,
		Elements:  elements,
	}, true
}

func (c *Client) apiTimeout() time.Duration {
	if c.cfg.APITimeout > 0 {
		return c.cfg.APITimeout
	}
	return 10 * time.Second
}

// call sends an API request and waits for the response with the same echo.
// A failed status or non-zero retcode is returned as an error.
func (c *Client) call(ctx context.Context, action string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	echo := fmt.Sprintf("api_%d_%d", time.Now().UnixNano(), atomic.AddInt64(&c.echoCounter, 1))
	ch := make(chan apiResponse, 1)
	c.pendingMu.Lock()
	c.pending[echo] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, echo)
		c.pendingMu.Unlock()
	}()

	data, err := json.Marshal(apiRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to write %s request: %w", action, err)
	}

	timer := time.NewTimer(c.apiTimeout())
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%s: client stopped", action)
		}
		if resp.Status == "failed" || resp.RetCode != 0 {
			msg := resp.Wording
			if msg == "" {
				msg = resp.Message
			}
			return nil, fmt.Errorf("%s failed: retcode=%d %s", action, resp.RetCode, msg)
		}
		return resp.Data, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s timed out after %v", action, c.apiTimeout())
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", action, ctx.Err())
	}
}

func parseIDs(groupID, userID string) (int64, int64, error) {
	gid, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return gid, uid, nil
}

// GetMemberInfo implements bot.Client
func (c *Client) GetMemberInfo(ctx context.Context, groupID, userID string) (*bot.MemberInfo, error) {
	gid, uid, err := parseIDs(groupID, userID)
	if err != nil {
		return nil, err
	}

	data, err := c.call(ctx, "get_group_member_info", map[string]interface{}{
		"group_id": gid,
		"user_id":  uid,
		"no_cache": true,
	})
	if err != nil {
		return nil, err
	}

	var member struct {
		Role     string `json:"role"`
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
	}
	if err := json.Unmarshal(data, &member); err != nil {
		return nil, fmt.Errorf("invalid get_group_member_info response: %w", err)
	}

	info := &bot.MemberInfo{UserID: userID, Role: bot.RoleMember, Nickname: member.Nickname}
	if member.Card != "" {
		info.Nickname = member.Card
	}
	switch member.Role {
	case "owner":
		info.Role = bot.RoleOwner
	case "admin":
		info.Role = bot.RoleAdmin
	}
	return info, nil
}

// DeleteMessage implements bot.Client
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", messageID, err)
	}
	_, err = c.call(ctx, "delete_msg", map[string]interface{}{"message_id": id})
	return err
}

// SetTimedMute implements bot.Client
func (c *Client) SetTimedMute(ctx context.Context, groupID, userID string, duration time.Duration) error {
	gid, uid, err := parseIDs(groupID, userID)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "set_group_ban", map[string]interface{}{
		"group_id": gid,
		"user_id":  uid,
		"duration": int64(duration / time.Second),
	})
	return err
}

// SendGroupMessage implements bot.Client
func (c *Client) SendGroupMessage(ctx context.Context, groupID, text string) error {
	gid, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	_, err = c.call(ctx, "send_group_msg", map[string]interface{}{
		"group_id": gid,
		"message":  buildSegments(text),
	})
	return err
}
