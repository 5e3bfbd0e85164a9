package service

import (
	"strings"
	"time"

	"chat-guard/internal/logger"
	"chat-guard/internal/models"
)

// RecordModeration stores an audit record of the actions taken for a message.
// deleted tells whether the original message was actually removed.
func RecordModeration(adapter, groupID, userID, messageID string, matched []string, violations int, decision *Decision, deleted bool) {
	if moderationRepository == nil || decision == nil {
		return
	}

	action := models.ActionWarn
	switch {
	case decision.Mute > 0:
		action = models.ActionMute
	case decision.DeleteOriginal:
		action = models.ActionRecall
	}

	record := &models.ModerationRecord{
		Adapter:     adapter,
		GroupID:     groupID,
		UserID:      userID,
		MessageID:   messageID,
		Action:      action,
		Patterns:    strings.Join(matched, "\n"),
		Violations:  violations,
		MuteSeconds: int(decision.Mute / time.Second),
		Deleted:     deleted,
	}
	if err := moderationRepository.Create(record); err != nil {
		logger.Warningf("Error creating moderation record: %v", err)
	}
}

// GetRecentModeration returns the latest audit records of a user in a group
func GetRecentModeration(groupID, userID string, limit int) ([]*models.ModerationRecord, error) {
	if moderationRepository == nil {
		return []*models.ModerationRecord{}, nil
	}
	return moderationRepository.ListByUser(groupID, userID, limit)
}

// PurgeModerationBefore deletes audit records older than before
func PurgeModerationBefore(before time.Time) (int64, error) {
	if moderationRepository == nil {
		return 0, nil
	}
	return moderationRepository.DeleteBefore(before)
}

// CountRecentModeration counts each action taken in a group since the given
// time. It returns nil when auditing is disabled.
func CountRecentModeration(groupID string, since time.Time) (map[string]int64, error) {
	if moderationRepository == nil {
		return nil, nil
	}

	counts := make(map[string]int64, 3)
	for _, action := range []string{models.ActionWarn, models.ActionRecall, models.ActionMute} {
		n, err := moderationRepository.CountSince(groupID, action, since)
		if err != nil {
			return nil, err
		}
		counts[action] = n
	}
	return counts, nil
}
