package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)
	path := writeConfig(t, `
bot:
  adapter: onebot
  onebot:
    ws_url: ws://127.0.0.1:3001
moderation:
  decay_window: 12h
  groups:
    - group_id: "100001"
      enabled: true
      language: en
      alert_text: "Warning!"
      mute:
        enabled: true
        threshold: 5
        duration: 1h
      rules:
        - pattern: "spam"
          replace: true
          replace_word: "***"
        - pattern: "scam"
          enabled: false
          mute: true
    - group_id: "100002"
      enabled: true
      rules:
        - pattern: "x"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(AdapterOneBot, cfg.Bot.Adapter)
	assert.Equal("ws://127.0.0.1:3001", cfg.Bot.OneBot.WSURL)
	assert.Equal(10*time.Second, cfg.Bot.OneBot.ReconnectInterval)
	assert.Equal(12*time.Hour, cfg.Moderation.DecayWindow)
	assert.Equal("logs", cfg.Logger.Directory)
	assert.Equal(":9090", cfg.Metrics.Listen)

	require.Len(t, cfg.Moderation.Groups, 2)
	g := cfg.Moderation.Groups[0]
	assert.Equal("100001", g.GroupID)
	assert.Equal("en", g.Language)
	assert.Equal(5, g.Mute.ViolationThreshold())
	assert.Equal(time.Hour, g.Mute.Duration)
	require.Len(t, g.Rules, 2)
	assert.True(g.Rules[0].IsEnabled())
	assert.True(g.Rules[0].Replace)
	assert.Equal("***", g.Rules[0].ReplaceWord)
	assert.False(g.Rules[1].IsEnabled())
	assert.True(g.Rules[1].Mute)

	defaults := cfg.Moderation.Groups[1]
	assert.Equal("zh_CN", defaults.Language)
	assert.Nil(defaults.Mute.Threshold)
	assert.Equal(DefaultMuteThreshold, defaults.Mute.ViolationThreshold())
	assert.Equal(DefaultMuteDuration, defaults.Mute.Duration)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bot:\n  adapter: irc\n"))
	assert.ErrorContains(t, err, "unknown bot adapter")
}

func TestLoadRejectsExplicitZeroThreshold(t *testing.T) {
	_, err := Load(writeConfig(t, `
moderation:
  groups:
    - group_id: "100001"
      enabled: true
      mute:
        enabled: true
        threshold: 0
      rules:
        - pattern: "x"
`))
	assert.ErrorContains(t, err, "mute.threshold must be at least 1, got 0")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Bot:        BotConfig{Adapter: AdapterTelegram},
			Moderation: ModerationConfig{DecayWindow: time.Hour},
		}
	}
	group := func(id string) GroupConfig {
		threshold := 3
		return GroupConfig{
			GroupID: id,
			Mute:    MuteConfig{Threshold: &threshold, Duration: time.Minute},
			Rules:   []RuleConfig{{Pattern: "a"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) { c.Moderation.Groups = []GroupConfig{group("100001")} }, ""},
		{"no decay window", func(c *Config) { c.Moderation.DecayWindow = 0 }, "decay_window"},
		{"bad group id", func(c *Config) { c.Moderation.Groups = []GroupConfig{group("12ab")} }, "group_id"},
		{"duplicate group", func(c *Config) {
			c.Moderation.Groups = []GroupConfig{group("100001"), group("100001")}
		}, "duplicate group_id"},
		{"zero threshold", func(c *Config) {
			g := group("100001")
			zero := 0
			g.Mute.Threshold = &zero
			c.Moderation.Groups = []GroupConfig{g}
		}, "threshold"},
		{"short mute", func(c *Config) {
			g := group("100001")
			g.Mute.Duration = time.Millisecond
			c.Moderation.Groups = []GroupConfig{g}
		}, "duration"},
		{"empty pattern", func(c *Config) {
			g := group("100001")
			g.Rules = append(g.Rules, RuleConfig{})
			c.Moderation.Groups = []GroupConfig{g}
		}, "rules[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
