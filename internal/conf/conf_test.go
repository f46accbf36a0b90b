package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("PROMPTS_CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	for _, key := range []string{"OPENAI_MODEL", "SCRAPE_CRON", "SUMMARY_CRON", "MIN_MESSAGE_LENGTH",
		"PUBLISH_INTERVAL_MS", "CLASSIFY_INTERVAL_MS", "OPENAI_TIMEOUT_SECONDS", "ENABLE_AI_CHAT",
		"DB_PATH", "SPAM_KEYWORDS_PATH", "TG_SESSION_PATH", "MEDIA_DIR", "API_PORT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := LoadFromEnv()

	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, DefaultScrapeCron, cfg.Schedule.ScrapeCron)
	assert.Equal(t, DefaultSummaryCron, cfg.Schedule.SummaryCron)
	assert.Equal(t, 3*time.Second, cfg.Schedule.PublishInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Schedule.ClassifyInterval)
	assert.Equal(t, usecase.DefaultMinMessageLength, cfg.Filter.MinLength)
	assert.True(t, cfg.Bot.EnableChat)
	assert.Equal(t, filepath.Join(dir, "curator.db"), cfg.Storage.DBPath)
	assert.Equal(t, filepath.Join(dir, "learned-spam-keywords.json"), cfg.Storage.SpamKeywordsPath)
	assert.Equal(t, filepath.Join(dir, "session.json"), cfg.Telegram.SessionPath)
	assert.Zero(t, cfg.APIPort)
	assert.Equal(t, "info", cfg.LogLevel)
	require.NotNil(t, cfg.Prompts)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("SOURCE_CHANNELS", " alpha, ,beta ")
	t.Setenv("EXCLUDE_KEYWORDS", "casino,airdrop")
	t.Setenv("MIN_MESSAGE_LENGTH", "5")
	t.Setenv("ENABLE_AI_CHAT", "false")
	t.Setenv("TG_API_ID", "12345")
	t.Setenv("CLASSIFY_INTERVAL_MS", "not-a-number")

	cfg := LoadFromEnv()

	assert.Equal(t, []string{"alpha", "beta"}, cfg.Telegram.SourceChannels)
	assert.Equal(t, []string{"casino", "airdrop"}, cfg.Filter.ExcludeKeywords)
	assert.Equal(t, 5, cfg.Filter.MinLength)
	assert.False(t, cfg.Bot.EnableChat)
	assert.Equal(t, 12345, cfg.Telegram.APIID)
	assert.Equal(t, 500*time.Millisecond, cfg.Schedule.ClassifyInterval)
	assert.Equal(t, 5, cfg.ToRuleFilterConfig().MinLength)
	assert.Equal(t, 500*time.Millisecond, cfg.ToClassifierConfig().Interval)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Bot: BotConfig{Token: "token"},
			LLM: LLMConfig{APIKey: "key", Timeout: time.Minute},
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Bot.Token = ""
	var cfgErr *ConfigError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "BOT_TOKEN", cfgErr.Field)

	cfg = valid()
	cfg.LLM.APIKey = ""
	assert.EqualError(t, cfg.Validate(), "OPENAI_API_KEY: required")

	cfg = valid()
	cfg.Schedule.Timezone = "Mars/Olympus"
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "TIMEZONE", cfgErr.Field)
}

func TestValidateFetch(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{APIKey: "key", Timeout: time.Minute}}
	assert.EqualError(t, cfg.ValidateFetch(), "TG_API_ID/TG_API_HASH: required")

	cfg.Telegram = TelegramConfig{APIID: 1, APIHash: "hash"}
	assert.EqualError(t, cfg.ValidateFetch(), "SOURCE_CHANNELS: at least one channel required")

	cfg.Telegram.SourceChannels = []string{"alpha"}
	assert.NoError(t, cfg.ValidateFetch())
}

func TestValidateSummary(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{DBPath: "/tmp/curator.db"}}
	err := cfg.ValidateSummary()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Field)

	cfg.Storage.DBPath = ""
	cfg.LLM = LLMConfig{APIKey: "key", Timeout: time.Minute}
	assert.EqualError(t, cfg.ValidateSummary(), "DB_PATH: required")

	cfg.Storage.DBPath = "/tmp/curator.db"
	assert.NoError(t, cfg.ValidateSummary())
}

func TestLoadPromptsConfig_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  persona_template: \"I am {{bot_name}}.\"\n"), 0o644))

	cfg, err := LoadPromptsConfig(path)
	require.NoError(t, err)

	prompts := cfg.ToPrompts("Ada")
	assert.Equal(t, "I am Ada.", prompts.ChatPersona)
	assert.Equal(t, usecase.DefaultPrompts.Classify, prompts.Classify)
	assert.Equal(t, usecase.DefaultPrompts.EventDedup, prompts.EventDedup)
	assert.Equal(t, usecase.DefaultPrompts.Confirm, prompts.Confirm)
}

func TestLoadPromptsConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat: [unclosed"), 0o644))

	_, err := LoadPromptsConfig(path)
	assert.Error(t, err)
}

func TestDefaultPromptsConfig_RoundTripsPersona(t *testing.T) {
	prompts := DefaultPromptsConfig().ToPrompts(DefaultBotName)
	assert.Equal(t, usecase.DefaultPrompts.ChatPersona, prompts.ChatPersona)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))

	_, err = NewLogger(&Config{LogLevel: "verbose"})
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
