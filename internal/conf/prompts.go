package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

// PromptsConfig contains all prompt configurations loaded from YAML
type PromptsConfig struct {
	Classifier ClassifierPrompts `yaml:"classifier"`
	Dedup      DedupPrompts      `yaml:"dedup"`
	Summary    SummaryPrompts    `yaml:"summary"`
	Chat       ChatPrompts       `yaml:"chat"`
}

// ClassifierPrompts contains classification prompts
type ClassifierPrompts struct {
	SystemPrompt string `yaml:"system_prompt"`
}

// DedupPrompts contains event deduplication prompts
type DedupPrompts struct {
	SystemPrompt string `yaml:"system_prompt"`
}

// SummaryPrompts contains summary and spam learning prompts
type SummaryPrompts struct {
	CategoryPrompt     string `yaml:"category_prompt"`
	DigestPrompt       string `yaml:"digest_prompt"`
	SpamKeywordsPrompt string `yaml:"spam_keywords_prompt"`
}

// ChatPrompts contains chat and confirmation prompts
type ChatPrompts struct {
	PersonaTemplate string `yaml:"persona_template"`
	ConfirmPrompt   string `yaml:"confirm_prompt"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"./configs/prompts.yaml",
			"/etc/channel-curator/prompts.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	var err error

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	// Stdout is reserved for the MCP transport, so config notes go to stderr
	if data == nil {
		fmt.Fprintln(os.Stderr, "[Config] No prompts.yaml found, using defaults")
		return DefaultPromptsConfig(), nil
	}

	fmt.Fprintf(os.Stderr, "[Config] Loading prompts from: %s\n", loadedPath)

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse prompts.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.Classifier.SystemPrompt == "" {
		c.Classifier.SystemPrompt = defaults.Classifier.SystemPrompt
	}
	if c.Dedup.SystemPrompt == "" {
		c.Dedup.SystemPrompt = defaults.Dedup.SystemPrompt
	}
	if c.Summary.CategoryPrompt == "" {
		c.Summary.CategoryPrompt = defaults.Summary.CategoryPrompt
	}
	if c.Summary.DigestPrompt == "" {
		c.Summary.DigestPrompt = defaults.Summary.DigestPrompt
	}
	if c.Summary.SpamKeywordsPrompt == "" {
		c.Summary.SpamKeywordsPrompt = defaults.Summary.SpamKeywordsPrompt
	}
	if c.Chat.PersonaTemplate == "" {
		c.Chat.PersonaTemplate = defaults.Chat.PersonaTemplate
	}
	if c.Chat.ConfirmPrompt == "" {
		c.Chat.ConfirmPrompt = defaults.Chat.ConfirmPrompt
	}
}

// FormatPersona returns the chat persona with the bot name filled in
func (c *PromptsConfig) FormatPersona(botName string) string {
	if botName == "" {
		botName = DefaultBotName
	}
	return strings.TrimSpace(strings.ReplaceAll(c.Chat.PersonaTemplate, "{{bot_name}}", botName))
}

// ToPrompts converts to the usecase prompt set
func (c *PromptsConfig) ToPrompts(botName string) usecase.Prompts {
	return usecase.Prompts{
		Classify:        c.Classifier.SystemPrompt,
		EventDedup:      c.Dedup.SystemPrompt,
		SpamKeywords:    c.Summary.SpamKeywordsPrompt,
		CategorySummary: c.Summary.CategoryPrompt,
		DailyDigest:     c.Summary.DigestPrompt,
		Confirm:         c.Chat.ConfirmPrompt,
		ChatPersona:     c.FormatPersona(botName),
	}
}

// DefaultPromptsConfig returns the default prompts configuration
func DefaultPromptsConfig() *PromptsConfig {
	d := usecase.DefaultPrompts
	return &PromptsConfig{
		Classifier: ClassifierPrompts{SystemPrompt: d.Classify},
		Dedup:      DedupPrompts{SystemPrompt: d.EventDedup},
		Summary: SummaryPrompts{
			CategoryPrompt:     d.CategorySummary,
			DigestPrompt:       d.DailyDigest,
			SpamKeywordsPrompt: d.SpamKeywords,
		},
		Chat: ChatPrompts{
			PersonaTemplate: strings.Replace(d.ChatPersona, `"`+DefaultBotName+`"`, `"{{bot_name}}"`, 1),
			ConfirmPrompt:   d.Confirm,
		},
	}
}
