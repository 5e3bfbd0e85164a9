package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		elements []Element
		expected string
	}{
		{"empty", nil, ""},
		{"text only", []Element{Text("hello "), Text("world")}, "hello world"},
		{"mention", []Element{At("12345"), Text(" hi")}, "[TYPE:at,qq=12345] hi"},
		{"image and face", []Element{Image("a.jpg"), Face("14")}, "[TYPE:image,file=a.jpg][TYPE:face,id=14]"},
		{"market face", []Element{MarketFace("abc")}, "[TYPE:mface,id=abc]"},
		{"unknown kind keeps text", []Element{{Type: "poke", Text: "(poke)"}}, "(poke)"},
		{"unknown kind without text", []Element{{Type: "poke"}}, ""},
		{"reply is not inlined", []Element{ReplyTo("9"), Text("x")}, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.elements))
		})
	}
}

func TestMentionAndReply(t *testing.T) {
	assert.Equal(t, "[TYPE:at,qq=42]", Mention("42"))
	assert.Equal(t, "[TYPE:reply,id=7]", Reply("7"))
}

func TestSplit(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(Split(""))
	assert.Equal([]Span{{Text: "plain"}}, Split("plain"))

	text := "a[TYPE:at,qq=1]b[TYPE:face,id=2][TYPE:image,file=x]"
	spans := Split(text)
	assert.Equal([]Span{
		{Text: "a"},
		{Text: "[TYPE:at,qq=1]", Token: true},
		{Text: "b"},
		{Text: "[TYPE:face,id=2]", Token: true},
		{Text: "[TYPE:image,file=x]", Token: true},
	}, spans)
	assert.Equal(text, Join(spans))
}

func TestSplitIgnoresMalformedTokens(t *testing.T) {
	spans := Split("[TYPE:] [not a token] [TYPE:at,qq=[1]]")
	for _, s := range spans {
		assert.False(t, s.Token, s.Text)
	}
}

func TestEscape(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("a &amp; b", Escape("a & b"))
	assert.Equal("[TYPE:image,file=a&b.jpg] &amp;", Escape("[TYPE:image,file=a&b.jpg] &"))
	assert.Equal("a & b", Unescape(Escape("a & b")))
}

func TestParseToken(t *testing.T) {
	assert := assert.New(t)

	tok, ok := ParseToken("[TYPE:at,qq=12345]")
	require.True(t, ok)
	assert.Equal(KindAt, tok.Kind)
	assert.Equal("12345", tok.ID())

	tok, ok = ParseToken("[TYPE:mface,emojiId=e1,name=cat]")
	require.True(t, ok)
	assert.Equal("e1", tok.ID())
	assert.Equal("cat", tok.Attrs["name"])

	tok, ok = ParseToken("[TYPE:mface,id=m1,emojiId=e1]")
	require.True(t, ok)
	assert.Equal("m1", tok.ID())

	tok, ok = ParseToken("[TYPE:poke,flag]")
	require.True(t, ok)
	assert.Empty(tok.Attrs)
	assert.Empty(tok.ID())

	_, ok = ParseToken("[TYPE:]")
	assert.False(ok)
	_, ok = ParseToken("hello")
	assert.False(ok)
}

func TestParse(t *testing.T) {
	elements := Parse("hi [TYPE:at,qq=1][TYPE:reply,id=5][TYPE:poke,x=1] bye")
	assert.Equal(t, []Element{
		Text("hi "),
		At("1"),
		ReplyTo("5"),
		Text("[TYPE:poke,x=1]"),
		Text(" bye"),
	}, elements)
}

func TestParseRoundTrip(t *testing.T) {
	elements := []Element{Text("look "), At("7"), Image("p.png"), Text(" & more")}
	assert.Equal(t, elements, Parse(Normalize(elements)))
}
