package onebot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"chat-guard/internal/markup"
)

func TestParseMessageSegments(t *testing.T) {
	assert := assert.New(t)

	raw := json.RawMessage(`[
		{"type":"reply","data":{"id":"-2147483000"}},
		{"type":"at","data":{"qq":123456}},
		{"type":"text","data":{"text":" buy now "}},
		{"type":"image","data":{"file":"abc.jpg","url":"http://x"}},
		{"type":"face","data":{"id":"14"}},
		{"type":"mface","data":{"emoji_id":"e1","summary":"[hi]"}},
		{"type":"record","data":{"file":"v.amr"}}
	]`)
	elements, quote := parseMessage(raw)
	assert.Equal("-2147483000", quote)
	assert.Equal("[TYPE:at,qq=123456] buy now [TYPE:image,file=abc.jpg][TYPE:face,id=14][TYPE:mface,id=e1]",
		markup.Normalize(elements))
}

func TestParseMessageCQString(t *testing.T) {
	assert := assert.New(t)

	raw := json.RawMessage(`"[CQ:reply,id=55][CQ:at,qq=42] a&#91;b&#93; &amp; c[CQ:image,file=x&#44;y.png,url=u]"`)
	elements, quote := parseMessage(raw)
	assert.Equal("55", quote)
	assert.Equal("[TYPE:at,qq=42] a[b] & c[TYPE:image,file=x,y.png]", markup.Normalize(elements))
}

func TestParseMessageInvalid(t *testing.T) {
	elements, quote := parseMessage(json.RawMessage(`{"type":"text"}`))
	assert.Nil(t, elements)
	assert.Empty(t, quote)

	elements, _ = parseMessage(nil)
	assert.Nil(t, elements)
}

func TestBuildSegments(t *testing.T) {
	segments := buildSegments("[TYPE:reply,id=7][TYPE:at,qq=42]Warning!\nFixed: x &amp; y[TYPE:mface,emojiId=e2]")
	assert.Equal(t, []outSegment{
		{Type: "reply", Data: map[string]string{"id": "7"}},
		{Type: "at", Data: map[string]string{"qq": "42"}},
		{Type: "text", Data: map[string]string{"text": "Warning!\nFixed: x & y"}},
		{Type: "mface", Data: map[string]string{"emoji_id": "e2"}},
	}, segments)

	segments = buildSegments("R&amp;amp;D[TYPE:image,file=a.png][TYPE:poke,x=1]")
	assert.Equal(t, []outSegment{
		{Type: "text", Data: map[string]string{"text": "R&amp;D"}},
		{Type: "image", Data: map[string]string{"file": "a.png"}},
		{Type: "text", Data: map[string]string{"text": "[TYPE:poke,x=1]"}},
	}, segments)
}

func TestParseJSONInt64(t *testing.T) {
	n, err := parseJSONInt64(json.RawMessage(`123`))
	assert.NoError(t, err)
	assert.Equal(t, int64(123), n)

	n, err = parseJSONInt64(json.RawMessage(`"456"`))
	assert.NoError(t, err)
	assert.Equal(t, int64(456), n)

	_, err = parseJSONInt64(json.RawMessage(`{}`))
	assert.Error(t, err)
}
