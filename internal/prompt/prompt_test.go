package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_ReferencesDatasetAndRules(t *testing.T) {
	out := Build("Which city is cheapest?", "./zomato.csv", nil)

	assert.Contains(t, out, "'./zomato.csv'")
	assert.GreaterOrEqual(t, strings.Count(out, "./zomato.csv"), 2)
	assert.Contains(t, out, "ALWAYS create visualizations")
	assert.Contains(t, out, "```python")
	assert.True(t, strings.HasSuffix(out, "User query: Which city is cheapest?"))
	assert.NotContains(t, out, "The dataset has these columns")
}

func TestBuild_ListsColumns(t *testing.T) {
	out := Build("q", "./d.csv", []string{"name", " ", "cost_for_two"})
	assert.Contains(t, out, "The dataset has these columns: name, cost_for_two.")
}

func TestBuild_Pure(t *testing.T) {
	a := Build("q", "./d.csv", []string{"x"})
	b := Build("q", "./d.csv", []string{"x"})
	assert.Equal(t, a, b)
}
