package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MessageType identifies the author of a chat message
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeBot    MessageType = "bot"
	MessageTypeSystem MessageType = "system"
)

// Conversation is a chat session between a user and the subject agents
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Subject   Subject
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is one message within a conversation
type ChatMessage struct {
	ID             string
	ConversationID string
	Type           MessageType
	Content        string
	Metadata       map[string]any
	CreatedAt      time.Time
}

const conversationTitleWords = 5

// ConversationTitle builds a title from the first words of the opening message.
func ConversationTitle(message string) string {
	words := strings.Fields(message)
	if len(words) > conversationTitleWords {
		words = words[:conversationTitleWords]
	}
	return capitalize(strings.Join(words, " ")) + "..."
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
