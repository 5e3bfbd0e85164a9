package service

import (
	"fmt"
	"strings"
	"time"

	"chat-guard/internal/filter"
	"chat-guard/internal/markup"
	"chat-guard/internal/models"
)

// Limits on the outgoing text, in characters
const (
	MaxCorrectionLength = 2000
	MaxMessageLength    = 4500
)

// ComposeInput carries everything the composer needs about one filtered
// message.
type ComposeInput struct {
	Policy *models.GroupPolicy
	Result filter.Result
	// Original is the normalized text before filtering.
	Original string
	UserID   string
	// QuoteID is the id of the message the offender replied to, if any.
	QuoteID string
	// Violations is the offender's count after this message.
	Violations int
	// MuteTriggered is set when Violations crossed the mute threshold.
	MuteTriggered bool
}

// Decision is the set of actions to carry out for a message.
type Decision struct {
	DeleteOriginal bool
	// Mute is zero when the offender is not to be muted.
	Mute time.Duration
	// Text is the group message to send, in markup form. Empty means send
	// nothing.
	Text string
}

// Compose decides how to answer a filtered message. It returns false when
// no action is needed. Configured texts are escaped like the corrected text
// so adapters can unescape every literal span.
func Compose(in ComposeInput) (*Decision, bool) {
	p := in.Policy
	res := in.Result
	lang := p.Language
	muteCounted := res.Mute && p.Mute.Enabled

	if in.MuteTriggered {
		var b strings.Builder
		b.WriteString(markup.Mention(in.UserID))
		b.WriteString(markup.Escape(p.AlertText))
		appendCorrection(&b, in)
		appendLine(&b, fmt.Sprintf(models.GetTranslation(lang, "violation_muted"),
			in.Violations, p.Mute.Threshold, FormatDuration(p.Mute.Duration, lang)))

		return &Decision{
			DeleteOriginal: res.Recall,
			Mute:           p.Mute.Duration,
			Text:           Truncate(b.String(), MaxMessageLength),
		}, true
	}

	if !res.Replaced && !res.Recall && !muteCounted {
		return nil, false
	}

	var b strings.Builder
	if in.QuoteID != "" {
		b.WriteString(markup.Reply(in.QuoteID))
	}
	b.WriteString(markup.Mention(in.UserID))
	b.WriteString(markup.Escape(p.AlertText))
	appendCorrection(&b, in)
	if muteCounted {
		appendLine(&b, fmt.Sprintf(models.GetTranslation(lang, "violation_progress"), in.Violations, p.Mute.Threshold))
	} else if p.CustomMessage != "" {
		appendLine(&b, markup.Escape(p.CustomMessage))
	}

	return &Decision{
		DeleteOriginal: res.Recall,
		Text:           Truncate(b.String(), MaxMessageLength),
	}, true
}

// appendCorrection adds the corrected text when a replacement changed it.
func appendCorrection(b *strings.Builder, in ComposeInput) {
	if !in.Result.Replaced || in.Result.Text == in.Original {
		return
	}
	block := markup.Escape(in.Policy.CorrectionPrefix + in.Result.Text)
	appendLine(b, Truncate(block, MaxCorrectionLength))
}

func appendLine(b *strings.Builder, line string) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(line)
}

// FormatDuration renders d as hours and minutes in the given language. Zero
// units are omitted. A leftover of less than a minute counts as one minute
// unless whole minutes are already shown.
func FormatDuration(d time.Duration, lang string) string {
	secs := int(d / time.Second)
	hours := secs / 3600
	rem := secs % 3600
	minutes := rem / 60
	if minutes == 0 && rem > 0 {
		minutes = 1
	}

	var b strings.Builder
	if hours > 0 {
		b.WriteString(fmt.Sprintf(models.GetTranslation(lang, "duration_hours"), hours))
	}
	if minutes > 0 {
		b.WriteString(fmt.Sprintf(models.GetTranslation(lang, "duration_minutes"), minutes))
	}
	return b.String()
}

// Truncate cuts s to at most max characters.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
