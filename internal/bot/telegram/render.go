package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"chat-guard/internal/markup"
)

// render turns markup text into Telegram HTML. A reply token becomes the
// returned reply-to message id instead of text. Images and stickers cannot
// be inlined in a text message and are dropped.
func render(text string, nameOf func(userID string) string) (string, int) {
	var b strings.Builder
	replyTo := 0

	for _, el := range markup.Parse(text) {
		switch el.Type {
		case markup.KindText:
			b.WriteString(html.EscapeString(markup.Unescape(el.Text)))
		case markup.KindAt:
			name := nameOf(el.ID)
			if name == "" {
				name = el.ID
			}
			fmt.Fprintf(&b, `<a href="tg://user?id=%s">%s</a>`, html.EscapeString(el.ID), html.EscapeString(name))
		case markup.KindReply:
			if _, msgID, err := parseMessageKey(el.ID); err == nil {
				replyTo = msgID
			} else if n, err := strconv.Atoi(el.ID); err == nil {
				replyTo = n
			}
		}
	}
	return b.String(), replyTo
}
