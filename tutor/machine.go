package tutor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/codemarcinu/ageny/llmrouter"
)

// State is the lifecycle state of one coaching conversation.
type State string

const (
	StateCollecting State = "collecting"
	StateSuggesting State = "suggesting"
)

// Orchestrator is the slice of the router client the machine consumes.
// *llmrouter.Client satisfies it.
type Orchestrator interface {
	Complete(ctx context.Context, req llmrouter.ChatRequest) (*llmrouter.NormalizedResponse, error)
}

// TurnResult is the outcome of one coaching turn. Exactly one of Question
// and Feedback is set. State is the conversation state after the turn.
// Response is the normalized result of the orchestration call that produced
// the turn's output, with Text replaced by that output.
type TurnResult struct {
	ConversationID string
	State          State
	Question       string
	Feedback       string
	Response       llmrouter.NormalizedResponse
}

// ChatResponse converts the result into the external chat contract.
func (r *TurnResult) ChatResponse() llmrouter.ChatResponse {
	out := llmrouter.ChatResponse{NormalizedResponse: r.Response}
	if r.Question != "" {
		q := r.Question
		out.TutorQuestion = &q
	}
	if r.Feedback != "" {
		f := r.Feedback
		out.TutorFeedback = &f
	}
	return out
}

// session holds the per-conversation state. Its mutex is held for a whole
// turn so two turns on one conversation never interleave.
type session struct {
	mu       sync.Mutex
	state    State
	elements map[Element]bool
	drafts   []string
}

func newSession() *session {
	return &session{state: StateCollecting, elements: make(map[Element]bool)}
}

// Machine drives the clarify-then-suggest coaching loop over the
// orchestration pipeline. One machine serves any number of conversations;
// distinct conversation ids proceed in parallel.
type Machine struct {
	orch   Orchestrator
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLogger routes the machine's diagnostics to the given logger.
func WithLogger(logger *log.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMachine builds a coaching machine on top of an orchestrator.
func NewMachine(orch Orchestrator, opts ...MachineOption) *Machine {
	m := &Machine{
		orch:     orch,
		logger:   log.New(io.Discard),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Turn runs one coaching turn. The draft under coaching is the request's
// latest user message; model and provider overrides pass through to the
// orchestration calls. When the request carries no conversation id a fresh
// one is generated and returned in the result.
func (m *Machine) Turn(ctx context.Context, req llmrouter.ChatRequest) (*TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	draft := strings.TrimSpace(req.LastUserContent())
	if draft == "" {
		return nil, llmrouter.NewValidationError("tutor turn requires a user message")
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	s := m.session(conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	logger := m.logger.With("conversation_id", conversationID)

	// The combined draft is assembled before the session is touched: a
	// failed turn leaves no trace and the caller can simply resend.
	drafts := make([]string, len(s.drafts), len(s.drafts)+1)
	copy(drafts, s.drafts)
	drafts = append(drafts, draft)
	combined := strings.Join(drafts, "\n\n")

	detected, resp, err := m.classify(ctx, req, combined, logger)
	if err != nil {
		return nil, err
	}
	s.drafts = drafts
	for e := range detected {
		s.elements[e] = true
	}

	if missing := firstMissing(s.elements); missing != "" {
		question := QuestionFor(missing)
		logger.Info("asking clarification", "element", missing, "elements_present", len(s.elements))
		result := &TurnResult{
			ConversationID: conversationID,
			State:          StateCollecting,
			Question:       question,
			Response:       *resp,
		}
		result.Response.Text = question
		return result, nil
	}

	// All six elements present: move to suggesting and draft the rewrite.
	s.state = StateSuggesting
	feedback, resp2, err := m.suggest(ctx, req, combined, logger)
	if err != nil {
		s.state = StateCollecting // elements are kept, the next turn retries
		return nil, err
	}

	// The cycle restarts without waiting for an acknowledgment.
	s.state = StateCollecting
	s.elements = make(map[Element]bool)
	s.drafts = nil
	logger.Info("suggestion delivered")

	result := &TurnResult{
		ConversationID: conversationID,
		State:          StateCollecting,
		Feedback:       feedback,
		Response:       *resp2,
	}
	result.Response.Text = feedback
	return result, nil
}

// Reset clears a conversation's collected elements and drafts and returns it
// to collecting. It reports whether the conversation existed.
func (m *Machine) Reset(conversationID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[conversationID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	s.state = StateCollecting
	s.elements = make(map[Element]bool)
	s.drafts = nil
	s.mu.Unlock()
	return true
}

// State returns the current state of a conversation. Unknown conversations
// report collecting, the state they would start in.
func (m *Machine) State(conversationID string) State {
	m.mu.Lock()
	s, ok := m.sessions[conversationID]
	m.mu.Unlock()
	if !ok {
		return StateCollecting
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (m *Machine) session(conversationID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[conversationID]
	if !ok {
		s = newSession()
		m.sessions[conversationID] = s
	}
	return s
}

func (m *Machine) classify(ctx context.Context, req llmrouter.ChatRequest, draft string, logger *log.Logger) (map[Element]bool, *llmrouter.NormalizedResponse, error) {
	temp := classifyTemperature
	call := llmrouter.ChatRequest{
		Messages: []llmrouter.Message{
			llmrouter.SystemMessage(classifyInstruction),
			llmrouter.UserMessage(draft),
		},
		Temperature: &temp,
		Model:       req.Model,
		Provider:    req.Provider,
	}
	resp, err := m.orch.Complete(ctx, call)
	if err != nil {
		return nil, nil, fmt.Errorf("classification call: %w", err)
	}
	detected, perr := parseClassification(resp.Text)
	if perr != nil {
		// An unreadable reply contributes no elements; the turn proceeds
		// with what is already known.
		logger.Warn("classification reply not parseable", "error", perr)
		return map[Element]bool{}, resp, nil
	}
	return detected, resp, nil
}

func (m *Machine) suggest(ctx context.Context, req llmrouter.ChatRequest, draft string, logger *log.Logger) (string, *llmrouter.NormalizedResponse, error) {
	temp := suggestTemperature
	call := llmrouter.ChatRequest{
		Messages: []llmrouter.Message{
			llmrouter.SystemMessage(suggestInstruction),
			llmrouter.UserMessage(draft),
		},
		Temperature: &temp,
		Model:       req.Model,
		Provider:    req.Provider,
	}
	resp, err := m.orch.Complete(ctx, call)
	if err != nil {
		return "", nil, fmt.Errorf("suggestion call: %w", err)
	}
	s, ok := parseSuggestion(resp.Text)
	if !ok {
		logger.Warn("suggestion reply not parseable, returning raw text")
		return strings.TrimSpace(resp.Text), resp, nil
	}
	feedback := s.ImprovedPrompt
	if strings.TrimSpace(s.Assessment) != "" {
		feedback = s.Assessment + "\n\nImproved prompt:\n\n" + s.ImprovedPrompt
	}
	return feedback, resp, nil
}
