package llmrouter

import (
	"fmt"
	"strings"
)

// Capability identifies a class of provider operation.
type Capability string

const (
	CapabilityChat   Capability = "chat"
	CapabilityEmbed  Capability = "embed"
	CapabilityVision Capability = "vision"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the fundamental unit of conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ChatRequest is the canonical completion request consumed by the
// orchestration pipeline. Callers own it; the pipeline never mutates it.
type ChatRequest struct {
	Messages       []Message `json:"messages"`
	Temperature    *float64  `json:"temperature,omitempty"`
	MaxTokens      *int      `json:"max_tokens,omitempty"`
	Model          string    `json:"model,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	TutorMode      bool      `json:"tutor_mode,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// Validate checks the request against the ingress contract: at least one
// message, every role one of the three known values, every content non-empty
// after trimming. Violations are reported as *ProviderValidationError.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return validationError("", "request must contain at least one message")
	}
	for i, msg := range r.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return validationError("", fmt.Sprintf("message %d has unknown role %q", i, msg.Role))
		}
		if strings.TrimSpace(msg.Content) == "" {
			return validationError("", fmt.Sprintf("message %d has empty content", i))
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return validationError("", fmt.Sprintf("temperature %v out of range [0, 2]", *r.Temperature))
	}
	if r.MaxTokens != nil && *r.MaxTokens < 0 {
		return validationError("", fmt.Sprintf("max_tokens %d must not be negative", *r.MaxTokens))
	}
	return nil
}

// LastUserContent returns the content of the most recent user message, or ""
// if the request has none.
func (r ChatRequest) LastUserContent() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Usage tracks token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Cost is the dollar cost of one call, split by direction.
type Cost struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
	Total      float64 `json:"total"`
}

// IsZero reports whether no cost component is set.
func (c Cost) IsZero() bool {
	return c.Prompt == 0 && c.Completion == 0 && c.Total == 0
}

// Default values applied by the normalizer for absent fields.
const (
	DefaultFinishReason = "stop"
	UnknownModel        = "unknown"
)

// NormalizedResponse is the canonical result of one successful orchestration
// call. Every field is always populated: absent values are replaced by the
// documented defaults, never left empty. The struct is comparable with ==,
// which the normalizer's idempotence guarantee relies on.
type NormalizedResponse struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	Usage        Usage  `json:"usage"`
	Cost         Cost   `json:"cost"`
	FinishReason string `json:"finish_reason"`
}

// ChatResponse is the external contract handed to callers. In tutor mode the
// coaching loop fills exactly one of the two optional fields per turn.
type ChatResponse struct {
	NormalizedResponse
	TutorQuestion *string `json:"tutor_question,omitempty"`
	TutorFeedback *string `json:"tutor_feedback,omitempty"`
}

// EmbedRequest asks for an embedding vector for one text.
type EmbedRequest struct {
	Text     string `json:"text"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Validate checks the embedding request at ingress.
func (r EmbedRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return validationError("", "embedding text must not be empty")
	}
	return nil
}

// EmbedResponse carries an embedding vector plus the same accounting fields
// the chat contract has.
type EmbedResponse struct {
	Vector   []float32 `json:"vector"`
	Model    string    `json:"model"`
	Provider string    `json:"provider"`
	Usage    Usage     `json:"usage"`
	Cost     Cost      `json:"cost"`
}

// BatchResult pairs one batch entry's outcome with its request index. Exactly
// one of Response and Err is set.
type BatchResult struct {
	Index    int                 `json:"index"`
	Response *NormalizedResponse `json:"response,omitempty"`
	Err      error               `json:"-"`
}
