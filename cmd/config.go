package cmd

import (
	"fmt"
	"strconv"

	"github.com/KaramelBytes/dataviz-agent/internal/ai"
	cfgpkg "github.com/KaramelBytes/dataviz-agent/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, key := range cfgpkg.Keys {
			val := configValue(c, key)
			if key == "session_secret" {
				val = mask(val)
			}
			fmt.Fprintf(w, "%s: %s\n", key, val)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		if err := setConfigValue(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func configValue(c *cfgpkg.Global, key string) string {
	switch key {
	case "default_model":
		return c.DefaultModel
	case "max_tokens":
		return strconv.Itoa(c.MaxTokens)
	case "temperature":
		return strconv.FormatFloat(c.Temperature, 'f', 3, 64)
	case "listen_addr":
		return c.ListenAddr
	case "session_secret":
		return c.SessionSecret
	case "session_idle_min":
		return strconv.Itoa(c.SessionIdleMin)
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB)
	case "preview_rows":
		return strconv.Itoa(c.PreviewRows)
	case "cookie_secure":
		return strconv.FormatBool(c.CookieSecure)
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec)
	case "openrouter_base_url":
		return c.OpenRouterBaseURL
	case "gemini_base_url":
		return c.GeminiBaseURL
	case "sandbox_api_url":
		return c.SandboxAPIURL
	case "sandbox_domain":
		return c.SandboxDomain
	case "sandbox_template":
		return c.SandboxTemplate
	case "sandbox_timeout_sec":
		return strconv.Itoa(c.SandboxTimeoutSec)
	}
	return ""
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "default_model":
		if _, ok := ai.LookupModel(val); !ok {
			return &ai.UnsupportedModelError{Model: val}
		}
		c.DefaultModel = val
	case "max_tokens":
		c.MaxTokens, err = atoi()
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 {
			return fmt.Errorf("invalid float for temperature: %v", val)
		}
		c.Temperature = f
	case "listen_addr":
		c.ListenAddr = val
	case "session_secret":
		c.SessionSecret = val
	case "session_idle_min":
		c.SessionIdleMin, err = atoi()
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "preview_rows":
		c.PreviewRows, err = atoi()
	case "cookie_secure":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for cookie_secure: %v", val)
		}
		c.CookieSecure = b
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "openrouter_base_url":
		c.OpenRouterBaseURL = val
	case "gemini_base_url":
		c.GeminiBaseURL = val
	case "sandbox_api_url":
		c.SandboxAPIURL = val
	case "sandbox_domain":
		c.SandboxDomain = val
	case "sandbox_template":
		c.SandboxTemplate = val
	case "sandbox_timeout_sec":
		c.SandboxTimeoutSec, err = atoi()
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
