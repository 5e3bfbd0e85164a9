// Package telegram implements the bot.Client contract on the Telegram Bot
// API, receiving updates through a webhook.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"chat-guard/internal/bot"
	"chat-guard/internal/config"
	"chat-guard/internal/logger"
)

// Name is the adapter name used in configuration and audit records.
const Name = config.AdapterTelegram

// Service is the Telegram adapter
type Service struct {
	Bot     *telego.Bot
	Handler *th.BotHandler
	self    *telego.User

	chats sync.Map // group id -> chat id
	names sync.Map // user id -> display name
}

// Initialize creates the bot, registers the webhook and returns the adapter
// together with the HTTP server receiving the updates. statusFn, if not nil,
// adds moderation status to the debug page.
func Initialize(ctx context.Context, cfg *config.Config, statusFn func() string) (*Service, *WebhookServer, error) {
	tgCfg := cfg.Bot.Telegram
	if tgCfg.Token == "" {
		return nil, nil, fmt.Errorf("telegram bot token is required")
	}

	tgBot, err := telego.NewBot(tgCfg.Token, telego.WithLogger(logger.Sugar()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := tgBot.GetMe(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s", botUser.Username)

	if err := tgBot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
		return nil, nil, fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	secretToken := "secure_webhook_token_" + tgCfg.Token[len(tgCfg.Token)-6:]

	bh, server, err := SetupWebhook(ctx, tgBot, tgCfg.Webhook, secretToken, statusFn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup webhook: %w", err)
	}

	return &Service{
		Bot:     tgBot,
		Handler: bh,
		self:    botUser,
	}, server, nil
}

// Start blocks handling updates until Stop is called
func (s *Service) Start() {
	s.Handler.Start()
}

// Stop stops the update handler
func (s *Service) Stop() {
	s.Handler.Stop()
}

// Name implements bot.Client
func (s *Service) Name() string {
	return Name
}

// OnGroupMessage routes group messages to h. Private chats, channels and
// messages from bots are ignored.
func (s *Service) OnGroupMessage(h bot.MessageHandler) {
	s.Handler.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		msg, ok := s.decode(&message)
		if !ok {
			return nil
		}
		h(ctx.Context(), msg)
		return nil
	})
}

func (s *Service) decode(message *telego.Message) (*bot.Message, bool) {
	if message.From == nil || message.From.IsBot {
		return nil, false
	}
	if message.Chat.Type != telego.ChatTypeGroup && message.Chat.Type != telego.ChatTypeSupergroup {
		return nil, false
	}

	groupID := GroupIDFromChat(message.Chat.ID)
	userID := strconv.FormatInt(message.From.ID, 10)
	s.chats.Store(groupID, message.Chat.ID)
	s.names.Store(userID, displayName(message.From))

	msg := &bot.Message{
		Adapter:   Name,
		GroupID:   groupID,
		UserID:    userID,
		SelfID:    strconv.FormatInt(s.self.ID, 10),
		MessageID: messageKey(message.Chat.ID, message.MessageID),
		Elements:  elementsFromMessage(message),
	}
	if message.ReplyToMessage != nil {
		msg.QuoteID = messageKey(message.Chat.ID, message.ReplyToMessage.MessageID)
	}
	return msg, true
}

func (s *Service) chatID(groupID string) (int64, error) {
	if v, ok := s.chats.Load(groupID); ok {
		return v.(int64), nil
	}
	id, err := chatIDFromGroup(groupID)
	if err != nil {
		return 0, fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	return id, nil
}

func (s *Service) nameOf(userID string) string {
	if v, ok := s.names.Load(userID); ok {
		return v.(string)
	}
	return ""
}

// GetMemberInfo implements bot.Client
func (s *Service) GetMemberInfo(ctx context.Context, groupID, userID string) (*bot.MemberInfo, error) {
	chatID, err := s.chatID(groupID)
	if err != nil {
		return nil, err
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	member, err := s.Bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: uid,
	})
	if err != nil {
		return nil, fmt.Errorf("error getting chat member: %w", err)
	}

	info := &bot.MemberInfo{UserID: userID, Role: bot.RoleMember}
	switch member.MemberStatus() {
	case telego.MemberStatusCreator:
		info.Role = bot.RoleOwner
	case telego.MemberStatusAdministrator:
		info.Role = bot.RoleAdmin
	}
	user := member.MemberUser()
	info.Nickname = displayName(&user)
	return info, nil
}

// DeleteMessage implements bot.Client
func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	chatID, msgID, err := parseMessageKey(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", messageID, err)
	}
	return s.Bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		MessageID: msgID,
	})
}

// SetTimedMute implements bot.Client by revoking every send permission until
// the duration has passed. Mutes shorter than 30s last 30s.
func (s *Service) SetTimedMute(ctx context.Context, groupID, userID string, duration time.Duration) error {
	chatID, err := s.chatID(groupID)
	if err != nil {
		return err
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	falseValue := false
	return s.Bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: uid,
		Permissions: telego.ChatPermissions{
			CanSendMessages:       &falseValue,
			CanSendAudios:         &falseValue,
			CanSendDocuments:      &falseValue,
			CanSendPhotos:         &falseValue,
			CanSendVideos:         &falseValue,
			CanSendVideoNotes:     &falseValue,
			CanSendVoiceNotes:     &falseValue,
			CanSendPolls:          &falseValue,
			CanSendOtherMessages:  &falseValue,
			CanAddWebPagePreviews: &falseValue,
		},
		UntilDate: muteUntil(time.Now(), duration),
	})
}

// SendGroupMessage implements bot.Client
func (s *Service) SendGroupMessage(ctx context.Context, groupID, text string) error {
	chatID, err := s.chatID(groupID)
	if err != nil {
		return err
	}

	body, replyTo := render(text, s.nameOf)
	params := &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      body,
		ParseMode: telego.ModeHTML,
	}
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{
			MessageID:                replyTo,
			AllowSendingWithoutReply: true,
		}
	}

	_, err = s.Bot.SendMessage(ctx, params)
	return err
}
