package domain

import "time"

// Message represents a channel message flowing through the pipeline
type Message struct {
	ID        int64 // Store row id, zero until persisted
	Source    string
	MessageID int64
	Content   string
	URL       string
	Date      time.Time
	MediaPath string // Local path of a downloaded photo, if any

	// Populated by the classifier
	Category      Category
	CategoryLabel string
	AIScore       float64

	CreatedAt time.Time
}

// IsClassified checks if the classifier has run on the message
func (m *Message) IsClassified() bool {
	return m.Category != ""
}

// IsSpam checks if the message was classified as spam
func (m *Message) IsSpam() bool {
	return m.Category == CategorySpam
}

// HasMedia checks if the message carries a downloaded photo
func (m *Message) HasMedia() bool {
	return m.MediaPath != ""
}

// SourceOrUnknown returns the source name, or "未知" when it is missing
func (m *Message) SourceOrUnknown() string {
	if m.Source == "" {
		return UnknownSource
	}
	return m.Source
}

// WithClassification returns a copy of the message carrying the classification
func (m Message) WithClassification(c Classification) Message {
	m.Category = c.Category
	m.CategoryLabel = c.Label
	m.AIScore = c.Confidence
	return m
}

// UnknownSource is the placeholder used for messages without a source
const UnknownSource = "未知"

// ChatMessage is one prompt turn sent to the language model
type ChatMessage struct {
	Role    string
	Content string
}

// Prompt roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
