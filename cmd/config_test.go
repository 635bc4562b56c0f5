package cmd

import (
	"bytes"
	"testing"

	"github.com/KaramelBytes/dataviz-agent/internal/ai"
	cfgpkg "github.com/KaramelBytes/dataviz-agent/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetConfigValue(t *testing.T) {
	c := &cfgpkg.Global{}

	require.NoError(t, setConfigValue(c, "max_upload_mb", "50"))
	assert.Equal(t, 50, c.MaxUploadMB)
	require.NoError(t, setConfigValue(c, "temperature", "0.3"))
	assert.InDelta(t, 0.3, c.Temperature, 1e-9)
	require.NoError(t, setConfigValue(c, "default_model", "gemini-2.5-pro"))
	assert.Equal(t, "gemini-2.5-pro", configValue(c, "default_model"))

	assert.Error(t, setConfigValue(c, "max_upload_mb", "-1"))
	assert.Error(t, setConfigValue(c, "temperature", "hot"))
	assert.Error(t, setConfigValue(c, "provider_key", "x"))
	require.NoError(t, setConfigValue(c, "cookie_secure", "true"))
	assert.True(t, c.CookieSecure)
	assert.Error(t, setConfigValue(c, "cookie_secure", "maybe"))

	var um *ai.UnsupportedModelError
	assert.ErrorAs(t, setConfigValue(c, "default_model", "gpt-9"), &um)
}

func TestConfigValueCoversEveryKey(t *testing.T) {
	c := &cfgpkg.Global{ListenAddr: "a", OpenRouterBaseURL: "b", SandboxAPIURL: "c", SandboxDomain: "d", SandboxTemplate: "e", DefaultModel: "f", SessionSecret: "g", GeminiBaseURL: "h"}
	for _, k := range cfgpkg.Keys {
		assert.NotEmpty(t, configValue(c, k), k)
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "******", mask("abc"))
	assert.Equal(t, "abc****xyz", mask("abcdefxyz"))
}

func TestWriteModelsTable(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, writeModels(cmd, ai.Models(), false))
	out := buf.String()
	assert.Contains(t, out, ai.DefaultModel)
	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, "Gemini 2.5 Flash")

	buf.Reset()
	require.NoError(t, writeModels(cmd, ai.Models(), true))
	assert.Contains(t, buf.String(), `"Name": "`+ai.DefaultModel+`"`)
}
