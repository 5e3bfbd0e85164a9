package telegram

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/mymmrac/telego"

	"chat-guard/internal/markup"
)

// GroupIDFromChat maps a Telegram group chat id onto the numeric group id
// used in policies: supergroups drop their -100 prefix (the same id t.me/c
// links use) and basic groups drop the sign.
func GroupIDFromChat(chatID int64) string {
	s := strconv.FormatInt(chatID, 10)
	if strings.HasPrefix(s, "-100") {
		return s[len("-100"):]
	}
	return strings.TrimPrefix(s, "-")
}

// chatIDFromGroup is the inverse of GroupIDFromChat for supergroups, the
// only kind of group that supports restricting members.
func chatIDFromGroup(groupID string) (int64, error) {
	return strconv.ParseInt("-100"+groupID, 10, 64)
}

// minRestriction is the shortest restriction Telegram honours. Shorter
// ones are applied forever.
const minRestriction = 30 * time.Second

// muteUntil returns the unix time at which a mute of d starting at now ends.
func muteUntil(now time.Time, d time.Duration) int64 {
	if d < minRestriction {
		d = minRestriction
	}
	return now.Add(d).Unix()
}

// messageKey identifies a message across chats.
func messageKey(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

func parseMessageKey(key string) (int64, int, error) {
	chat, msg, ok := strings.Cut(key, ":")
	if !ok {
		return 0, 0, strconv.ErrSyntax
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	messageID, err := strconv.Atoi(msg)
	if err != nil {
		return 0, 0, err
	}
	return chatID, messageID, nil
}

// displayName is the name shown when the bot mentions a user
func displayName(user *telego.User) string {
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	if name == "" && user.Username != "" {
		name = user.Username
	}
	return name
}

// elementsFromMessage decodes a Telegram message into markup elements.
// Text mentions of users without a username become mention elements, photos
// become the largest size's file id and stickers become faces.
func elementsFromMessage(message *telego.Message) []markup.Element {
	var elements []markup.Element

	if message.Sticker != nil {
		if message.Sticker.IsAnimated || message.Sticker.IsVideo {
			elements = append(elements, markup.MarketFace(message.Sticker.FileID))
		} else {
			elements = append(elements, markup.Face(message.Sticker.FileID))
		}
	}

	if n := len(message.Photo); n > 0 {
		elements = append(elements, markup.Image(message.Photo[n-1].FileID))
	}

	text, entities := message.Text, message.Entities
	if text == "" {
		text, entities = message.Caption, message.CaptionEntities
	}
	return append(elements, splitMentions(text, entities)...)
}

// splitMentions cuts text at text_mention entities. Entity offsets count
// UTF-16 code units.
func splitMentions(text string, entities []telego.MessageEntity) []markup.Element {
	if text == "" {
		return nil
	}

	units := utf16.Encode([]rune(text))
	var elements []markup.Element
	last := 0
	for _, e := range entities {
		if e.Type != telego.EntityTypeTextMention || e.User == nil {
			continue
		}
		start, end := e.Offset, e.Offset+e.Length
		if start < last || end > len(units) {
			continue
		}
		if start > last {
			elements = append(elements, markup.Text(string(utf16.Decode(units[last:start]))))
		}
		elements = append(elements, markup.At(strconv.FormatInt(e.User.ID, 10)))
		last = end
	}
	if last < len(units) {
		elements = append(elements, markup.Text(string(utf16.Decode(units[last:]))))
	}
	return elements
}
