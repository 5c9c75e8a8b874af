package inference

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Image holds PNG bytes attached to the message. It is not serialized.
	Image []byte `json:"-"`
}

// Conversation is one line of an input or output JSONL file.
type Conversation struct {
	ConversationID string         `json:"conversation_id,omitempty"`
	Messages       []Message      `json:"messages"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// WithReply returns a copy of c with an assistant message appended.
func (c Conversation) WithReply(text string) Conversation {
	msgs := make([]Message, len(c.Messages), len(c.Messages)+1)
	copy(msgs, c.Messages)
	c.Messages = append(msgs, Message{Role: RoleAssistant, Content: text})
	return c
}

// LastReply returns the content of the final assistant message, if any.
func (c Conversation) LastReply() (string, bool) {
	if n := len(c.Messages); n > 0 && c.Messages[n-1].Role == RoleAssistant {
		return c.Messages[n-1].Content, true
	}
	return "", false
}

func (c Conversation) String() string {
	var b strings.Builder
	if c.ConversationID != "" {
		fmt.Fprintf(&b, "conversation_id: %s\n", c.ConversationID)
	}
	for i, m := range c.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", strings.ToUpper(string(m.Role)), m.Content)
		if len(m.Image) > 0 {
			fmt.Fprintf(&b, " [image %d bytes]", len(m.Image))
		}
	}
	return b.String()
}

type Engine interface {
	Generate(ctx context.Context, req *Request) (*Result, error)
	Close() error
}

type Request struct {
	Model    string
	Messages []Message

	MaxTokens   int
	Temperature float64
	TopP        float64
	Seed        *int64
	Stop        []string
}

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

type Result struct {
	Text  string
	Stats Stats
}
