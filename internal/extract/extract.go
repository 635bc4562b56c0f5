// Package extract pulls runnable source out of free-form model output.
package extract

import "regexp"

// Language is the fence tag a block must carry to be considered executable.
const Language = "python"

var pythonBlock = regexp.MustCompile("(?s)```python\n(.*?)\n```")

// Block is one fenced code snippet found in a model response.
type Block struct {
	Language string
	Code     string
	// Start and End are byte offsets of the whole fence in the source text.
	Start, End int
}

// Code returns the contents of the first ```python fenced block in text,
// or "" when there is none. Later blocks are ignored.
func Code(text string) string {
	m := pythonBlock.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Blocks lists every ```python fenced block in order of appearance.
func Blocks(text string) []Block {
	idx := pythonBlock.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}
	out := make([]Block, 0, len(idx))
	for _, loc := range idx {
		out = append(out, Block{
			Language: Language,
			Code:     text[loc[2]:loc[3]],
			Start:    loc[0],
			End:      loc[1],
		})
	}
	return out
}
