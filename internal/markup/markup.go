// Package markup converts structured chat messages to and from a flat text
// form in which inline elements are written as [TYPE:kind,attr=value] tokens.
//
// Pattern matching and rewriting operate on that text. Split separates the
// tokens from the literal text around them so callers can match and escape
// literal text without touching token attributes.
package markup

import (
	"regexp"
	"strings"
)

// Element kinds understood by Normalize and Parse.
const (
	KindText       = "text"
	KindAt         = "at"
	KindImage      = "image"
	KindFace       = "face"
	KindMarketFace = "mface"
	KindReply      = "reply"
)

// attribute carrying the element id for each token kind
var idAttr = map[string]string{
	KindAt:         "qq",
	KindImage:      "file",
	KindFace:       "id",
	KindMarketFace: "id",
	KindReply:      "id",
}

// tokenRegex matches one markup token. Attribute values cannot contain
// brackets, so a token never spans another token.
var tokenRegex = regexp.MustCompile(`\[TYPE:[A-Za-z0-9_]+(?:,[^\[\]]*)?\]`)

// Element is one structural piece of an incoming message.
type Element struct {
	Type string
	// ID identifies the mentioned user, image file or sticker.
	ID string
	// Text holds the content of text elements and the fallback rendering of
	// element kinds the normalizer does not know.
	Text string
}

// Text returns a plain text element.
func Text(s string) Element {
	return Element{Type: KindText, Text: s}
}

// At returns a mention of userID.
func At(userID string) Element {
	return Element{Type: KindAt, ID: userID}
}

// Image returns an inline image element.
func Image(fileID string) Element {
	return Element{Type: KindImage, ID: fileID}
}

// Face returns a static sticker element.
func Face(id string) Element {
	return Element{Type: KindFace, ID: id}
}

// MarketFace returns an animated sticker element.
func MarketFace(id string) Element {
	return Element{Type: KindMarketFace, ID: id}
}

// ReplyTo returns a quoted-reply element. Normalize drops it.
func ReplyTo(messageID string) Element {
	return Element{Type: KindReply, ID: messageID}
}

// Normalize flattens elements into a single string, encoding inline elements
// as tokens. Unknown kinds degrade to their text, or nothing.
func Normalize(elements []Element) string {
	var b strings.Builder
	for _, el := range elements {
		switch el.Type {
		case KindText:
			b.WriteString(el.Text)
		case KindAt, KindImage, KindFace, KindMarketFace:
			b.WriteString(token(el.Type, idAttr[el.Type], el.ID))
		default:
			b.WriteString(el.Text)
		}
	}
	return b.String()
}

// Mention renders a mention token for userID.
func Mention(userID string) string {
	return token(KindAt, "qq", userID)
}

// Reply renders a quoted-reply token for messageID.
func Reply(messageID string) string {
	return token(KindReply, "id", messageID)
}

func token(kind, attr, value string) string {
	return "[TYPE:" + kind + "," + attr + "=" + value + "]"
}

// Span is a run of text that is either a whole markup token or literal text.
type Span struct {
	Text  string
	Token bool
}

// Split cuts text into alternating literal and token spans. Concatenating
// the span texts yields the input.
func Split(text string) []Span {
	locs := tokenRegex.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if text == "" {
			return nil
		}
		return []Span{{Text: text}}
	}

	spans := make([]Span, 0, 2*len(locs)+1)
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			spans = append(spans, Span{Text: text[last:loc[0]]})
		}
		spans = append(spans, Span{Text: text[loc[0]:loc[1]], Token: true})
		last = loc[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}
	return spans
}

// Join concatenates spans back into text.
func Join(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Escape replaces & with &amp; in literal spans and leaves tokens intact.
func Escape(text string) string {
	spans := Split(text)
	for i := range spans {
		if !spans[i].Token {
			spans[i].Text = strings.ReplaceAll(spans[i].Text, "&", "&amp;")
		}
	}
	return Join(spans)
}

// Unescape reverses Escape on a literal span.
func Unescape(s string) string {
	return strings.ReplaceAll(s, "&amp;", "&")
}
