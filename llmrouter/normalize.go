package llmrouter

import "fmt"

// Normalize collapses a heterogeneous raw provider response into the
// canonical NormalizedResponse. It is a pure function: no I/O, no clock, no
// catalog lookups. Absent fields get the documented defaults: usage zeros,
// cost zeros, finish_reason "stop", provider = providerName, model =
// requestedModel or "unknown".
//
// Normalize is idempotent: re-normalizing its own output (via
// RawFromNormalized) returns a byte-identical result. The coaching loop
// relies on this when it re-normalizes intermediate results.
//
// A syntactically valid but semantically malformed envelope (no choices, or
// no extractable text in any choice) is a *ProviderValidationError: the
// response shape is broken in a way no other candidate would fix, so the
// orchestration aborts rather than falls back.
func Normalize(raw RawResponse, requestedModel, providerName string) (NormalizedResponse, error) {
	resp, _, err := normalizeFill(raw, requestedModel, providerName)
	return resp, err
}

// normalizeFill is Normalize plus the list of fields that were filled with
// defaults, so callers can log each fill as a NormalizationDefaultApplied
// event. The list never affects the result.
func normalizeFill(raw RawResponse, requestedModel, providerName string) (NormalizedResponse, []string, error) {
	switch raw.Kind {
	case RawKindText:
		return normalizeText(raw.Text, requestedModel, providerName)
	case RawKindPartial:
		if raw.Partial == nil {
			return NormalizedResponse{}, nil, malformedError(providerName, "partial response carries no fields")
		}
		return normalizePartial(*raw.Partial, requestedModel, providerName)
	case RawKindEnvelope:
		if raw.Envelope == nil {
			return NormalizedResponse{}, nil, malformedError(providerName, "envelope response carries no body")
		}
		return normalizeEnvelope(*raw.Envelope, requestedModel, providerName)
	default:
		return NormalizedResponse{}, nil, malformedError(providerName, fmt.Sprintf("unrecognized raw response shape %q", raw.Kind))
	}
}

func normalizeText(text, requestedModel, providerName string) (NormalizedResponse, []string, error) {
	resp := NormalizedResponse{
		Text:         text,
		Provider:     providerName,
		FinishReason: DefaultFinishReason,
	}
	applied := []string{"usage", "cost", "finish_reason"}
	resp.Model, applied = fillModel("", requestedModel, applied)
	return resp, applied, nil
}

func normalizePartial(p PartialFields, requestedModel, providerName string) (NormalizedResponse, []string, error) {
	resp := NormalizedResponse{Text: p.Text}
	var applied []string

	resp.Model, applied = fillModel(p.Model, requestedModel, applied)

	if p.Provider != "" {
		resp.Provider = p.Provider
	} else {
		resp.Provider = providerName
	}

	if p.Usage != nil {
		resp.Usage = *p.Usage
	} else {
		applied = append(applied, "usage")
	}

	if p.Cost != nil {
		resp.Cost = *p.Cost
	} else {
		applied = append(applied, "cost")
	}

	if p.FinishReason != "" {
		resp.FinishReason = p.FinishReason
	} else {
		resp.FinishReason = DefaultFinishReason
		applied = append(applied, "finish_reason")
	}

	return resp, applied, nil
}

func normalizeEnvelope(env ChoiceEnvelope, requestedModel, providerName string) (NormalizedResponse, []string, error) {
	if len(env.Choices) == 0 {
		return NormalizedResponse{}, nil, malformedError(providerName, "envelope has no choices")
	}

	// Take the first choice that carries text. Chat-style bodies put it in
	// message.content, legacy completion bodies in the text member.
	var text, finishReason string
	found := false
	for _, choice := range env.Choices {
		if choice.Message.Content != "" {
			text = choice.Message.Content
			finishReason = choice.FinishReason
			found = true
			break
		}
		if choice.Text != "" {
			text = choice.Text
			finishReason = choice.FinishReason
			found = true
			break
		}
	}
	if !found {
		return NormalizedResponse{}, nil, malformedError(providerName, "envelope has no extractable text in any choice")
	}

	resp := NormalizedResponse{
		Text:     text,
		Provider: providerName,
	}
	var applied []string

	resp.Model, applied = fillModel(env.Model, requestedModel, applied)

	if env.Usage != nil {
		resp.Usage = Usage{
			PromptTokens:     env.Usage.PromptTokens,
			CompletionTokens: env.Usage.CompletionTokens,
			TotalTokens:      env.Usage.TotalTokens,
		}
		if resp.Usage.TotalTokens == 0 && resp.Usage.PromptTokens+resp.Usage.CompletionTokens > 0 {
			resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
			applied = append(applied, "total_tokens")
		}
	} else {
		applied = append(applied, "usage")
	}

	applied = append(applied, "cost")

	if finishReason != "" {
		resp.FinishReason = finishReason
	} else {
		resp.FinishReason = DefaultFinishReason
		applied = append(applied, "finish_reason")
	}

	return resp, applied, nil
}

func fillModel(rawModel, requestedModel string, applied []string) (string, []string) {
	if rawModel != "" {
		return rawModel, applied
	}
	if requestedModel != "" {
		return requestedModel, applied
	}
	return UnknownModel, append(applied, "model")
}

func malformedError(provider, message string) *ProviderValidationError {
	e := validationError(provider, message)
	e.Code = CodeMalformed
	return e
}
