package llmrouter

// RawKind is the discriminator tag for RawResponse.
type RawKind string

const (
	// RawKindText is a bare string: the vendor returned nothing but text.
	RawKindText RawKind = "text"
	// RawKindPartial is a structured object already carrying some of the
	// canonical fields.
	RawKindPartial RawKind = "partial"
	// RawKindEnvelope is a vendor-native choices-list envelope that still
	// needs field extraction.
	RawKindEnvelope RawKind = "envelope"
)

// RawResponse is the tagged variant an adapter hands back from Complete.
// Adapters perform no normalization: whatever shape the vendor produced is
// wrapped as-is, and the normalizer is the single point that collapses the
// variant into a NormalizedResponse. The heterogeneous shape must never leak
// past that boundary.
type RawResponse struct {
	Kind     RawKind
	Text     string
	Partial  *PartialFields
	Envelope *ChoiceEnvelope
}

// PartialFields carries whichever canonical fields the vendor populated.
// Nil pointers and the empty string mean "absent" and trigger default fill.
type PartialFields struct {
	Text         string
	Model        string
	Provider     string
	Usage        *Usage
	Cost         *Cost
	FinishReason string
}

// ChoiceEnvelope is the neutral representation of a choices-list vendor body
// (the OpenAI-style {choices: [{message: {content}}], usage: {...}} shape).
type ChoiceEnvelope struct {
	ID      string           `json:"id,omitempty"`
	Model   string           `json:"model,omitempty"`
	Choices []EnvelopeChoice `json:"choices"`
	Usage   *EnvelopeUsage   `json:"usage,omitempty"`
}

// EnvelopeChoice is one entry of a choices list. Chat-style vendors populate
// Message; legacy completion-style vendors populate Text.
type EnvelopeChoice struct {
	Index        int             `json:"index"`
	Message      EnvelopeMessage `json:"message"`
	Text         string          `json:"text,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// EnvelopeMessage mirrors the {role, content} member of a choices entry.
type EnvelopeMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// EnvelopeUsage mirrors the usage member of a choices envelope.
type EnvelopeUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RawText wraps a bare string response.
func RawText(text string) RawResponse {
	return RawResponse{Kind: RawKindText, Text: text}
}

// RawPartial wraps a partially-populated structured response.
func RawPartial(fields PartialFields) RawResponse {
	return RawResponse{Kind: RawKindPartial, Partial: &fields}
}

// RawEnvelope wraps a vendor choices envelope.
func RawEnvelope(env ChoiceEnvelope) RawResponse {
	return RawResponse{Kind: RawKindEnvelope, Envelope: &env}
}

// RawFromNormalized embeds an already-canonical response back into the
// variant. The coaching loop re-normalizes intermediate results through this
// path, and the normalizer guarantees the round trip is the identity.
func RawFromNormalized(n NormalizedResponse) RawResponse {
	usage := n.Usage
	cost := n.Cost
	return RawResponse{
		Kind: RawKindPartial,
		Partial: &PartialFields{
			Text:         n.Text,
			Model:        n.Model,
			Provider:     n.Provider,
			Usage:        &usage,
			Cost:         &cost,
			FinishReason: n.FinishReason,
		},
	}
}
