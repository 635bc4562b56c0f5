package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_SingleBlock(t *testing.T) {
	got := Code("Here:\n```python\nprint(1+1)\n```\n")
	assert.Equal(t, "print(1+1)", got)
}

func TestCode_MultiLineVerbatim(t *testing.T) {
	body := "import pandas as pd\ndf = pd.read_csv('./data.csv')\n\n  df.plot()"
	text := "Analysis follows.\n```python\n" + body + "\n```\nDone."
	assert.Equal(t, body, Code(text))
}

func TestCode_NoBlock(t *testing.T) {
	cases := []string{
		"",
		"just prose, nothing to run",
		"```\nprint('untagged')\n```",
		"```go\nfmt.Println(1)\n```",
		"```python print(1) ```",
		"```python\nprint('never closed')",
	}
	for _, in := range cases {
		assert.NotPanics(t, func() { Code(in) })
		assert.Empty(t, Code(in), "input %q", in)
	}
}

func TestCode_FirstBlockWins(t *testing.T) {
	text := "```python\nfirst()\n```\nthen\n```python\nsecond()\n```"
	assert.Equal(t, "first()", Code(text))
}

func TestBlocks_ListsAllInOrder(t *testing.T) {
	text := "a\n```python\none\n```\nb\n```python\ntwo\n```"
	blocks := Blocks(text)
	require.Len(t, blocks, 2)
	assert.Equal(t, "one", blocks[0].Code)
	assert.Equal(t, "two", blocks[1].Code)
	assert.Equal(t, Language, blocks[1].Language)
	assert.Equal(t, "```python\none\n```", text[blocks[0].Start:blocks[0].End])
	assert.Nil(t, Blocks("no fences"))
}
