package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/dataviz-agent/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		min  int
	}{
		{"empty", "", 0},
		{"simple", "hello world", 2},
		{"short", "hi", 1},
		{"long", strings.Repeat("a", 4000), 900},
	}
	for _, c := range cases {
		assert.GreaterOrEqual(t, utils.CountTokens(c.in), c.min, c.name)
	}
}

func TestSafeWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, utils.EnsureDir(dir))
	path := filepath.Join(dir, "chart-1.json")
	require.NoError(t, utils.SafeWriteFile(path, []byte(`{"a":1}`)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(b))
}
