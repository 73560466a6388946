package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("notes.md"))
	assert.True(t, Supported("NOTES.TXT"))
	assert.False(t, Supported("deck.pptx"))
	assert.False(t, Supported("noext"))
}

func TestTextPlain(t *testing.T) {
	out, err := Text("a.txt", []byte("hello\nworld"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", out)
}

func TestTextMarkdown(t *testing.T) {
	src := "# Title\n\nSome *emphasis* and `code`.\n\n- one\n- two\n\n```go\nfmt.Println(1)\n```\n\n<div>skip</div>\n"
	out, err := Text("doc.md", []byte(src))
	require.NoError(t, err)
	assert.Contains(t, out, "Title\n")
	assert.Contains(t, out, "Some emphasis and code.")
	assert.Contains(t, out, "one\n")
	assert.Contains(t, out, "two")
	assert.Contains(t, out, "fmt.Println(1)")
	assert.NotContains(t, out, "#")
	assert.NotContains(t, out, "*")
	assert.NotContains(t, out, "<div>")
}

func TestTextRejects(t *testing.T) {
	_, err := Text("a.pdf", []byte("x"))
	assert.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = Text("a.txt", []byte{0xff, 0xfe})
	assert.ErrorIs(t, err, appErr.ErrInvalid)
}
