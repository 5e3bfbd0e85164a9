package onebot

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"chat-guard/internal/markup"
)

// segment is one element of a OneBot v11 message array
type segment struct {
	Type string                     `json:"type"`
	Data map[string]json.RawMessage `json:"data"`
}

// outSegment is a segment built for sending
type outSegment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

var cqCodeRegex = regexp.MustCompile(`\[CQ:([A-Za-z0-9_.-]+)((?:,[^\[\]]*)?)\]`)

var cqUnescaper = strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&")

func parseJSONInt64(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	return 0, fmt.Errorf("cannot parse as int64: %s", string(raw))
}

// parseJSONString returns string values unquoted and any other value
// (numbers mostly) as its JSON text
func parseJSONString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// parseMessage decodes the message field of an event, which is either a
// segment array or a CQ-code string. The id of a reply segment is returned
// separately.
func parseMessage(raw json.RawMessage) ([]markup.Element, string) {
	if len(raw) == 0 {
		return nil, ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseCQString(s)
	}

	var segments []segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return nil, ""
	}

	var elements []markup.Element
	replyTo := ""
	for _, seg := range segments {
		data := make(map[string]string, len(seg.Data))
		for k, v := range seg.Data {
			data[k] = parseJSONString(v)
		}
		if seg.Type == markup.KindReply {
			replyTo = data["id"]
			continue
		}
		elements = append(elements, elementFromSegment(seg.Type, data))
	}
	return elements, replyTo
}

func elementFromSegment(kind string, data map[string]string) markup.Element {
	switch kind {
	case markup.KindText:
		return markup.Text(data["text"])
	case markup.KindAt:
		return markup.At(data["qq"])
	case markup.KindImage:
		return markup.Image(data["file"])
	case markup.KindFace:
		return markup.Face(data["id"])
	case markup.KindMarketFace:
		return markup.MarketFace(data["emoji_id"])
	default:
		return markup.Element{Type: kind, Text: data["text"]}
	}
}

// parseCQString decodes a message in CQ-code string form
func parseCQString(s string) ([]markup.Element, string) {
	var elements []markup.Element
	replyTo := ""
	last := 0
	for _, loc := range cqCodeRegex.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] > last {
			elements = append(elements, markup.Text(cqUnescaper.Replace(s[last:loc[0]])))
		}
		last = loc[1]

		kind := s[loc[2]:loc[3]]
		data := make(map[string]string)
		for _, kv := range strings.Split(strings.TrimPrefix(s[loc[4]:loc[5]], ","), ",") {
			if k, v, ok := strings.Cut(kv, "="); ok {
				data[k] = cqUnescaper.Replace(v)
			}
		}
		if kind == markup.KindReply {
			replyTo = data["id"]
			continue
		}
		elements = append(elements, elementFromSegment(kind, data))
	}
	if last < len(s) {
		elements = append(elements, markup.Text(cqUnescaper.Replace(s[last:])))
	}
	return elements, replyTo
}

// buildSegments converts markup text into a segment array. Escaped & in
// literal text is sent as a plain &.
func buildSegments(text string) []outSegment {
	var segments []outSegment
	for _, el := range markup.Parse(text) {
		switch el.Type {
		case markup.KindAt:
			segments = append(segments, outSegment{Type: el.Type, Data: map[string]string{"qq": el.ID}})
		case markup.KindReply, markup.KindFace:
			segments = append(segments, outSegment{Type: el.Type, Data: map[string]string{"id": el.ID}})
		case markup.KindImage:
			segments = append(segments, outSegment{Type: el.Type, Data: map[string]string{"file": el.ID}})
		case markup.KindMarketFace:
			segments = append(segments, outSegment{Type: el.Type, Data: map[string]string{"emoji_id": el.ID}})
		default:
			segments = append(segments, outSegment{Type: markup.KindText, Data: map[string]string{"text": markup.Unescape(el.Text)}})
		}
	}
	return segments
}
