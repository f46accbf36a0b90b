package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Telegram bot (commands and publishing)
	Bot BotConfig

	// Telegram user client (channel source)
	Telegram TelegramConfig

	// OpenAI-compatible model
	LLM LLMConfig

	// Filter configuration
	Filter FilterConfig

	// Schedule configuration
	Schedule ScheduleConfig

	// Storage configuration
	Storage StorageConfig

	// Feishu mirror (optional)
	Feishu FeishuConfig

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	// Admin API port, 0 disables it
	APIPort int

	LogLevel string
	Debug    bool
}

// BotConfig contains Telegram bot configuration
type BotConfig struct {
	Token         string
	TargetChannel string
	EnableChat    bool
	Name          string // Persona name used in chat prompts
}

// TelegramConfig contains MTProto user client configuration
type TelegramConfig struct {
	APIID          int
	APIHash        string
	Phone          string
	Password       string
	SessionPath    string
	SourceChannels []string
}

// LLMConfig contains model configuration
type LLMConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// FilterConfig contains rule filter configuration
type FilterConfig struct {
	IncludeKeywords []string
	ExcludeKeywords []string
	MinLength       int
}

// ScheduleConfig contains scheduler and pacing configuration
type ScheduleConfig struct {
	ScrapeCron       string
	SummaryCron      string
	Timezone         string
	PublishInterval  time.Duration
	ClassifyInterval time.Duration
}

// StorageConfig contains local storage paths
type StorageConfig struct {
	DataDir          string
	DBPath           string
	SpamKeywordsPath string
	MediaDir         string
}

// FeishuConfig contains Feishu mirror configuration
type FeishuConfig struct {
	AppID        string
	AppSecret    string
	MirrorChatID string
}

// Enabled checks if the Feishu mirror is configured
func (c *FeishuConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.MirrorChatID != ""
}

// Defaults
const (
	DefaultModel           = "gpt-4o-mini"
	DefaultScrapeCron      = "*/10 * * * *"
	DefaultSummaryCron     = "0 22 * * *"
	DefaultBotName         = "小盼"
	defaultLLMTimeoutSec   = 60
	defaultPublishMillis   = 3000
	defaultClassifyMillis  = 500
	defaultDataDirName     = ".channel-curator"
	defaultDBFileName      = "curator.db"
	defaultKeywordFileName = "learned-spam-keywords.json"
)

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Data directory
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		homeDir, _ := os.UserHomeDir()
		dataDir = filepath.Join(homeDir, defaultDataDirName)
	}

	// Load prompts from YAML
	promptsConfig, err := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))
	if err != nil {
		promptsConfig = DefaultPromptsConfig()
	}

	botName := os.Getenv("BOT_NAME")
	if botName == "" {
		botName = DefaultBotName
	}

	return &Config{
		Bot: BotConfig{
			Token:         os.Getenv("BOT_TOKEN"),
			TargetChannel: os.Getenv("TARGET_CHANNEL"),
			EnableChat:    os.Getenv("ENABLE_AI_CHAT") != "false",
			Name:          botName,
		},
		Telegram: TelegramConfig{
			APIID:          envInt("TG_API_ID", 0),
			APIHash:        os.Getenv("TG_API_HASH"),
			Phone:          os.Getenv("TG_PHONE"),
			Password:       os.Getenv("TG_PASSWORD"),
			SessionPath:    envString("TG_SESSION_PATH", filepath.Join(dataDir, "session.json")),
			SourceChannels: splitList(os.Getenv("SOURCE_CHANNELS")),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envString("OPENAI_MODEL", DefaultModel),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Timeout: time.Duration(envInt("OPENAI_TIMEOUT_SECONDS", defaultLLMTimeoutSec)) * time.Second,
		},
		Filter: FilterConfig{
			IncludeKeywords: splitList(os.Getenv("FILTER_KEYWORDS")),
			ExcludeKeywords: splitList(os.Getenv("EXCLUDE_KEYWORDS")),
			MinLength:       envInt("MIN_MESSAGE_LENGTH", usecase.DefaultMinMessageLength),
		},
		Schedule: ScheduleConfig{
			ScrapeCron:       envString("SCRAPE_CRON", DefaultScrapeCron),
			SummaryCron:      envString("SUMMARY_CRON", DefaultSummaryCron),
			Timezone:         os.Getenv("TIMEZONE"),
			PublishInterval:  time.Duration(envInt("PUBLISH_INTERVAL_MS", defaultPublishMillis)) * time.Millisecond,
			ClassifyInterval: time.Duration(envInt("CLASSIFY_INTERVAL_MS", defaultClassifyMillis)) * time.Millisecond,
		},
		Storage: StorageConfig{
			DataDir:          dataDir,
			DBPath:           envString("DB_PATH", filepath.Join(dataDir, defaultDBFileName)),
			SpamKeywordsPath: envString("SPAM_KEYWORDS_PATH", filepath.Join(dataDir, defaultKeywordFileName)),
			MediaDir:         envString("MEDIA_DIR", filepath.Join(dataDir, "media")),
		},
		Feishu: FeishuConfig{
			AppID:        os.Getenv("FEISHU_APP_ID"),
			AppSecret:    os.Getenv("FEISHU_APP_SECRET"),
			MirrorChatID: os.Getenv("FEISHU_MIRROR_CHAT_ID"),
		},
		Prompts:  promptsConfig,
		APIPort:  envInt("API_PORT", 0),
		LogLevel: envString("LOG_LEVEL", "info"),
		Debug:    os.Getenv("DEBUG") == "true",
	}
}

// ToRuleFilterConfig converts to rule filter configuration
func (c *Config) ToRuleFilterConfig() usecase.RuleFilterConfig {
	return usecase.RuleFilterConfig{
		IncludeKeywords: c.Filter.IncludeKeywords,
		ExcludeKeywords: c.Filter.ExcludeKeywords,
		MinLength:       c.Filter.MinLength,
	}
}

// ToClassifierConfig converts to classifier configuration
func (c *Config) ToClassifierConfig() usecase.ClassifierConfig {
	cfg := usecase.DefaultClassifierConfig()
	cfg.Interval = c.Schedule.ClassifyInterval
	return cfg
}

// ToCollectConfig converts to collect configuration
func (c *Config) ToCollectConfig() usecase.CollectConfig {
	return usecase.CollectConfig{PublishInterval: c.Schedule.PublishInterval}
}

// ToPrompts converts the YAML prompt set to usecase prompts
func (c *Config) ToPrompts() usecase.Prompts {
	if c.Prompts == nil {
		return usecase.DefaultPrompts
	}
	return c.Prompts.ToPrompts(c.Bot.Name)
}

// Location returns the configured timezone, local time when unset or invalid
func (c *Config) Location() *time.Location {
	if c.Schedule.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate validates the configuration needed by the long-running bot
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return &ConfigError{Field: "BOT_TOKEN", Message: "required"}
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return c.validateSchedule()
}

// ValidateFetch validates the configuration needed by a one-shot collection
func (c *Config) ValidateFetch() error {
	if c.Telegram.APIID == 0 || c.Telegram.APIHash == "" {
		return &ConfigError{Field: "TG_API_ID/TG_API_HASH", Message: "required"}
	}
	if len(c.Telegram.SourceChannels) == 0 {
		return &ConfigError{Field: "SOURCE_CHANNELS", Message: "at least one channel required"}
	}
	return c.validateLLM()
}

// ValidateSummary validates the configuration needed by a one-shot daily summary
func (c *Config) ValidateSummary() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	return c.validateLLM()
}

// ValidateStore validates the configuration needed to open the store
func (c *Config) ValidateStore() error {
	if c.Storage.DBPath == "" {
		return &ConfigError{Field: "DB_PATH", Message: "required"}
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.LLM.Timeout <= 0 {
		return &ConfigError{Field: "OPENAI_TIMEOUT_SECONDS", Message: "must be positive"}
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return &ConfigError{Field: "TIMEZONE", Message: err.Error()}
		}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

// splitList splits a comma separated value, dropping blanks
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
