package tutor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Element is one of the six building blocks a complete prompt carries.
type Element string

const (
	ElementInstruction   Element = "instruction"
	ElementContext       Element = "context"
	ElementConstraints   Element = "constraints"
	ElementOutputFormat  Element = "output_format"
	ElementExamples      Element = "examples"
	ElementSystemPersona Element = "system_persona"
)

// elementOrder fixes the clarification priority. When several elements are
// missing, the machine asks about the earliest entry here and nothing else.
var elementOrder = [...]Element{
	ElementInstruction,
	ElementContext,
	ElementConstraints,
	ElementOutputFormat,
	ElementExamples,
	ElementSystemPersona,
}

// Elements returns the six elements in clarification priority order.
func Elements() []Element {
	out := make([]Element, len(elementOrder))
	copy(out, elementOrder[:])
	return out
}

var elementQuestions = map[Element]string{
	ElementInstruction:   "What exactly should the model do? State the task as a direct instruction.",
	ElementContext:       "What background does the model need? Describe the situation, domain, or audience.",
	ElementConstraints:   "What limits should the answer respect, such as length, tone, scope, or things to avoid?",
	ElementOutputFormat:  "What shape should the answer take, such as a list, a table, JSON, or running prose?",
	ElementExamples:      "Can you give one example input together with the output you would want for it?",
	ElementSystemPersona: "What role or persona should the model adopt while answering?",
}

// QuestionFor returns the fixed clarifying question for one element.
func QuestionFor(e Element) string {
	return elementQuestions[e]
}

// firstMissing returns the highest-priority element absent from the set, or
// "" when all six are present.
func firstMissing(present map[Element]bool) Element {
	for _, e := range elementOrder {
		if !present[e] {
			return e
		}
	}
	return ""
}

// parseClassification extracts the element booleans from a classification
// reply. The reply may wrap the object in prose or code fences, so the
// parser scans for the outermost braces instead of decoding the whole text.
// Unknown keys are ignored; key spelling is normalized so "Output Format"
// and "output-format" both land on output_format.
func parseClassification(text string) (map[Element]bool, error) {
	obj, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}
	var fields map[string]bool
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, fmt.Errorf("classification reply is not an object of booleans: %w", err)
	}
	present := make(map[Element]bool, len(elementOrder))
	for key, val := range fields {
		if !val {
			continue
		}
		e := Element(normalizeKey(key))
		if _, known := elementQuestions[e]; known {
			present[e] = true
		}
	}
	return present, nil
}

// suggestion is the wire shape of the coaching reply.
type suggestion struct {
	Assessment     string `json:"assessment"`
	ImprovedPrompt string `json:"improved_prompt"`
}

// parseSuggestion extracts the assessment and rewritten prompt from a
// suggestion reply. ok is false when the reply carries no usable rewrite, in
// which case the caller falls back to the raw text.
func parseSuggestion(text string) (suggestion, bool) {
	obj, err := extractJSONObject(text)
	if err != nil {
		return suggestion{}, false
	}
	var s suggestion
	if err := json.Unmarshal([]byte(obj), &s); err != nil {
		return suggestion{}, false
	}
	if strings.TrimSpace(s.ImprovedPrompt) == "" {
		return suggestion{}, false
	}
	return s, true
}

func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in reply")
	}
	return text[start : end+1], nil
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}
