package markup

import "strings"

// Token is a decoded markup token.
type Token struct {
	Kind  string
	Attrs map[string]string
}

// ParseToken decodes a single [TYPE:kind,k=v,...] token.
func ParseToken(s string) (Token, bool) {
	if !strings.HasPrefix(s, "[TYPE:") || !strings.HasSuffix(s, "]") {
		return Token{}, false
	}
	body := s[len("[TYPE:") : len(s)-1]
	parts := strings.Split(body, ",")
	if parts[0] == "" {
		return Token{}, false
	}

	tok := Token{Kind: parts[0], Attrs: make(map[string]string, len(parts)-1)}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		tok.Attrs[k] = v
	}
	return tok, true
}

// ID returns the identifying attribute of the token. Market faces accept
// either id or emojiId.
func (t Token) ID() string {
	if attr, ok := idAttr[t.Kind]; ok {
		if v := t.Attrs[attr]; v != "" {
			return v
		}
	}
	if t.Kind == KindMarketFace {
		return t.Attrs["emojiId"]
	}
	return ""
}

// Parse is the inverse of Normalize: literal spans become text elements and
// tokens become their elements. Tokens of unknown kind stay as text.
func Parse(text string) []Element {
	spans := Split(text)
	elements := make([]Element, 0, len(spans))
	for _, s := range spans {
		if !s.Token {
			elements = append(elements, Text(s.Text))
			continue
		}
		tok, ok := ParseToken(s.Text)
		if !ok {
			elements = append(elements, Text(s.Text))
			continue
		}
		switch tok.Kind {
		case KindReply:
			elements = append(elements, ReplyTo(tok.ID()))
		case KindAt, KindImage, KindFace, KindMarketFace:
			elements = append(elements, Element{Type: tok.Kind, ID: tok.ID()})
		default:
			elements = append(elements, Text(s.Text))
		}
	}
	return elements
}
