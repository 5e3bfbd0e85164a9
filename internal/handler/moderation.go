package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-guard/internal/bot"
	"chat-guard/internal/crash"
	"chat-guard/internal/logger"
	"chat-guard/internal/markup"
	"chat-guard/internal/models"
	"chat-guard/internal/service"
	"chat-guard/internal/violation"
)

const (
	// DefaultMaxConcurrent bounds the messages moderated at the same time
	DefaultMaxConcurrent = 100
	handlerTimeout       = 30 * time.Second
)

// Moderator applies group policies to incoming messages and carries out
// the resulting actions through the adapter that received the message.
type Moderator struct {
	policies *service.PolicyRegistry
	tracker  *violation.Tracker

	clients   map[string]bot.Client
	clientsMu sync.RWMutex

	semaphore chan struct{}
	wg        sync.WaitGroup
}

// NewModerator creates a moderator. maxConcurrent <= 0 selects
// DefaultMaxConcurrent.
func NewModerator(policies *service.PolicyRegistry, tracker *violation.Tracker, maxConcurrent int) *Moderator {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Moderator{
		policies:  policies,
		tracker:   tracker,
		clients:   make(map[string]bot.Client),
		semaphore: make(chan struct{}, maxConcurrent),
	}
}

// RegisterClient makes an adapter available to messages it received
func (m *Moderator) RegisterClient(c bot.Client) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	m.clients[c.Name()] = c
	logger.Infof("Registered %s adapter", c.Name())
}

func (m *Moderator) client(name string) (bot.Client, bool) {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	c, ok := m.clients[name]
	return c, ok
}

// Dispatch moderates msg with bounded concurrency. It has the signature of
// bot.MessageHandler so adapters can call it directly.
func (m *Moderator) Dispatch(ctx context.Context, msg *bot.Message) {
	m.wg.Add(1)
	defer m.wg.Done()

	select {
	case m.semaphore <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-m.semaphore }()

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	start := time.Now()
	err := crash.Guard("moderation", func() error {
		return m.HandleMessage(ctx, msg)
	})
	messageProcessDuration.WithLabelValues(msg.Adapter).Observe(time.Since(start).Seconds())
	activeViolationRecords.Set(float64(m.tracker.Len()))

	if err != nil {
		incrementCounter(&totalErrors)
		if errors.Is(err, context.DeadlineExceeded) {
			incrementCounter(&totalTimeouts)
		}
		logger.Warningf("Moderation of message %s in group %s aborted: %v", msg.MessageID, msg.GroupID, err)
	}
}

// WaitForHandlers blocks until every dispatched message has been handled
func (m *Moderator) WaitForHandlers() {
	m.wg.Wait()
}

// ActiveHandlers returns the number of messages being moderated
func (m *Moderator) ActiveHandlers() int {
	return len(m.semaphore)
}

// HandleMessage moderates one group message. Messages from unknown
// adapters or groups without an enabled policy pass through untouched, as
// do all messages of groups where the bot is not an admin.
//
// A returned error means moderation stopped early: a role lookup or the
// mute failed. Failures to delete the original or to send the notice are
// logged and do not stop the remaining actions.
func (m *Moderator) HandleMessage(ctx context.Context, msg *bot.Message) error {
	incrementCounter(&totalMessagesProcessed)
	messageProcessCount.WithLabelValues(msg.Adapter).Inc()

	client, ok := m.client(msg.Adapter)
	if !ok {
		logger.Debugf("No client registered for adapter %s", msg.Adapter)
		return nil
	}
	policy, ok := m.policies.Get(msg.GroupID)
	if !ok || !policy.Enabled {
		return nil
	}

	original := markup.Normalize(msg.Elements)
	res := policy.Engine.Apply(original)
	if !res.Hit() {
		return nil
	}
	ruleMatchCount.WithLabelValues(msg.Adapter, msg.GroupID).Inc()

	self, err := client.GetMemberInfo(ctx, msg.GroupID, msg.SelfID)
	if err != nil {
		actionErrorCount.WithLabelValues(msg.Adapter, "member_info").Inc()
		return fmt.Errorf("failed to get bot role: %w", err)
	}
	if !self.IsElevated() {
		logger.Debugf("Bot is not an admin in group %s, skipping moderation", msg.GroupID)
		return nil
	}

	if policy.ExemptAdmins {
		sender, err := client.GetMemberInfo(ctx, msg.GroupID, msg.UserID)
		if err != nil {
			actionErrorCount.WithLabelValues(msg.Adapter, "member_info").Inc()
			return fmt.Errorf("failed to get sender role: %w", err)
		}
		if sender.IsElevated() {
			logger.Debugf("Sender %s is %s of group %s, exempt", msg.UserID, sender.Role, msg.GroupID)
			return nil
		}
	}

	counted := res.Mute && policy.Mute.Enabled
	count, reached := m.tracker.Register(msg.GroupID, msg.UserID, counted, policy.Mute.Threshold)

	decision, ok := service.Compose(service.ComposeInput{
		Policy:        policy.GroupPolicy,
		Result:        res,
		Original:      original,
		UserID:        msg.UserID,
		QuoteID:       msg.QuoteID,
		Violations:    count,
		MuteTriggered: counted && reached,
	})
	if !ok {
		return nil
	}
	incrementCounter(&totalViolations)
	logger.Infof("User %s in group %s matched %v (violations %d/%d)",
		msg.UserID, msg.GroupID, res.Matched, count, policy.Mute.Threshold)

	deleted := false
	if decision.DeleteOriginal {
		if err := client.DeleteMessage(ctx, msg.MessageID); err != nil {
			actionErrorCount.WithLabelValues(msg.Adapter, models.ActionRecall).Inc()
			logger.Warningf("Failed to delete message %s in group %s: %v", msg.MessageID, msg.GroupID, err)
		} else {
			deleted = true
			actionCount.WithLabelValues(msg.Adapter, models.ActionRecall).Inc()
		}
	}

	if decision.Mute > 0 {
		if err := client.SetTimedMute(ctx, msg.GroupID, msg.UserID, decision.Mute); err != nil {
			actionErrorCount.WithLabelValues(msg.Adapter, models.ActionMute).Inc()
			return fmt.Errorf("failed to mute user %s: %w", msg.UserID, err)
		}
		m.tracker.Clear(msg.GroupID, msg.UserID)
		incrementCounter(&totalMutes)
		actionCount.WithLabelValues(msg.Adapter, models.ActionMute).Inc()
		logger.Infof("Muted user %s in group %s for %v", msg.UserID, msg.GroupID, decision.Mute)
	}

	if decision.Text != "" {
		if err := client.SendGroupMessage(ctx, msg.GroupID, decision.Text); err != nil {
			actionErrorCount.WithLabelValues(msg.Adapter, models.ActionWarn).Inc()
			logger.Warningf("Failed to send notice to group %s: %v", msg.GroupID, err)
		} else {
			actionCount.WithLabelValues(msg.Adapter, models.ActionWarn).Inc()
		}
	}

	service.RecordModeration(msg.Adapter, msg.GroupID, msg.UserID, msg.MessageID, res.Matched, count, decision, deleted)
	return nil
}
