// Package bot defines the contract between the moderation core and the chat
// platform adapters.
package bot

import (
	"context"
	"time"

	"chat-guard/internal/markup"
)

// Member roles as reported by the adapters
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// MemberInfo describes a group member.
type MemberInfo struct {
	UserID   string
	Role     string
	Nickname string
}

// IsElevated reports whether the member is the group owner or an admin.
func (m *MemberInfo) IsElevated() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

// Message is an incoming group message.
type Message struct {
	// Adapter is the Name of the client that received the message.
	Adapter string
	GroupID string
	UserID  string
	// SelfID is the bot's own user id.
	SelfID    string
	MessageID string
	// QuoteID is the id of the message being replied to, if any.
	QuoteID  string
	Elements []markup.Element
}

// Client performs the actions moderation needs on a chat platform. Texts
// sent through SendGroupMessage use markup tokens, which the client renders
// in the platform's native form.
type Client interface {
	Name() string
	GetMemberInfo(ctx context.Context, groupID, userID string) (*MemberInfo, error)
	DeleteMessage(ctx context.Context, messageID string) error
	SetTimedMute(ctx context.Context, groupID, userID string, duration time.Duration) error
	SendGroupMessage(ctx context.Context, groupID, text string) error
}

// MessageHandler receives the group messages an adapter decoded.
type MessageHandler func(ctx context.Context, msg *Message)
