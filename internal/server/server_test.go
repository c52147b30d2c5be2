package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codemarcinu/ageny/internal/config"
	"github.com/codemarcinu/ageny/llmrouter"
	"github.com/codemarcinu/ageny/tutor"
)

// stubAdapter is a test double for ProviderAdapter. With failOn set it fails
// only requests whose latest user message matches, so batch tests can mix
// outcomes.
type stubAdapter struct {
	name     string
	text     string
	err      error
	failOn   string
	vector   []float32
	embedErr error
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Complete(ctx context.Context, req llmrouter.ChatRequest) (llmrouter.RawResponse, error) {
	if a.err != nil && (a.failOn == "" || req.LastUserContent() == a.failOn) {
		return llmrouter.RawResponse{}, a.err
	}
	return llmrouter.RawText(a.text), nil
}

func (a *stubAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	if a.embedErr != nil {
		return nil, a.embedErr
	}
	return a.vector, nil
}

// pingAdapter adds a scripted reachability check.
type pingAdapter struct {
	stubAdapter
	pingErr error
}

func (a *pingAdapter) Ping(ctx context.Context) error { return a.pingErr }

func testRegistry(t *testing.T, adapters ...llmrouter.ProviderAdapter) *llmrouter.Registry {
	t.Helper()
	reg := llmrouter.NewRegistry()
	for i, adapter := range adapters {
		desc := llmrouter.ProviderDescriptor{
			Name:         adapter.Name(),
			Capabilities: []llmrouter.Capability{llmrouter.CapabilityChat, llmrouter.CapabilityEmbed},
			Priority:     i + 1,
			Configured:   true,
		}
		if err := reg.Register(desc, adapter); err != nil {
			t.Fatalf("register %s: %v", adapter.Name(), err)
		}
	}
	return reg
}

func newTestServer(t *testing.T, reg *llmrouter.Registry, opts ...Option) *Server {
	t.Helper()
	client := llmrouter.NewClient(reg, llmrouter.WithCostTracker(llmrouter.NewCostTracker()))
	srv, err := New(config.Config{}, client, tutor.NewMachine(client), opts...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.app.ServeHTTP(w, req)
	return w
}

func doRaw(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.app.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return out
}

func errorField(t *testing.T, w *httptest.ResponseRecorder, key string) any {
	t.Helper()
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object in %q", w.Body.String())
	}
	return errObj[key]
}

func chatBody(text string) map[string]any {
	return map[string]any{
		"messages": []map[string]string{{"role": "user", "content": text}},
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hello!"}))

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("expected status %q, got %v", "ok", body["status"])
	}
	providers, ok := body["providers"].([]any)
	if !ok || len(providers) != 1 || providers[0] != "alpha" {
		t.Errorf("expected configured providers [alpha], got %v", body["providers"])
	}
}

func TestHealthDeep(t *testing.T) {
	healthy := &pingAdapter{stubAdapter: stubAdapter{name: "alpha", text: "Hi"}}
	plain := &stubAdapter{name: "beta", text: "Hi"}
	srv := newTestServer(t, testRegistry(t, healthy, plain))

	w := doJSON(t, srv, http.MethodGet, "/health?deep=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	probes, ok := body["providers"].(map[string]any)
	if !ok {
		t.Fatalf("expected providers map, got %v", body["providers"])
	}
	if probes["alpha"] != "ok" {
		t.Errorf("expected alpha probe %q, got %v", "ok", probes["alpha"])
	}
	if probes["beta"] != "skipped" {
		t.Errorf("expected beta probe %q, got %v", "skipped", probes["beta"])
	}
}

func TestHealthDeepDegraded(t *testing.T) {
	down := &pingAdapter{
		stubAdapter: stubAdapter{name: "alpha", text: "Hi"},
		pingErr:     errors.New("connection refused"),
	}
	srv := newTestServer(t, testRegistry(t, down))

	w := doJSON(t, srv, http.MethodGet, "/health?deep=true", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "degraded" {
		t.Errorf("expected status %q, got %v", "degraded", body["status"])
	}
}

func TestChat(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hello!"}))

	w := doJSON(t, srv, http.MethodPost, "/v1/chat", chatBody("Hi"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["text"] != "Hello!" {
		t.Errorf("expected text %q, got %v", "Hello!", body["text"])
	}
	if body["provider"] != "alpha" {
		t.Errorf("expected provider %q, got %v", "alpha", body["provider"])
	}
	if body["finish_reason"] != llmrouter.DefaultFinishReason {
		t.Errorf("expected finish reason %q, got %v", llmrouter.DefaultFinishReason, body["finish_reason"])
	}
	if _, ok := body["tutor_question"]; ok {
		t.Error("expected no tutor_question outside tutor mode")
	}
}

func TestChatFallsBackToNextProvider(t *testing.T) {
	first := &stubAdapter{name: "alpha", err: errors.New("rate limit exceeded")}
	second := &stubAdapter{name: "beta", text: "From beta"}
	srv := newTestServer(t, testRegistry(t, first, second))

	w := doJSON(t, srv, http.MethodPost, "/v1/chat", chatBody("Hi"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["provider"]; got != "beta" {
		t.Errorf("expected provider %q, got %v", "beta", got)
	}
}

func TestChatValidationError(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"}))

	w := doJSON(t, srv, http.MethodPost, "/v1/chat", map[string]any{"messages": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if got := errorField(t, w, "type"); got != "invalid_request_error" {
		t.Errorf("expected error type %q, got %v", "invalid_request_error", got)
	}
}

func TestChatAllProvidersFailed(t *testing.T) {
	srv := newTestServer(t, testRegistry(t,
		&stubAdapter{name: "alpha", err: errors.New("server error")},
		&stubAdapter{name: "beta", err: errors.New("connection refused")},
	))

	w := doJSON(t, srv, http.MethodPost, "/v1/chat", chatBody("Hi"))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d: %s", w.Code, w.Body.String())
	}
	if got := errorField(t, w, "type"); got != "all_providers_failed" {
		t.Errorf("expected error type %q, got %v", "all_providers_failed", got)
	}
	attempts, ok := errorField(t, w, "attempts").([]any)
	if !ok || len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %v", errorField(t, w, "attempts"))
	}
	first, ok := attempts[0].(map[string]any)
	if !ok || first["provider"] != "alpha" {
		t.Errorf("expected first attempt from alpha, got %v", attempts[0])
	}
}

func TestChatNoConfiguredProvider(t *testing.T) {
	reg := llmrouter.NewRegistry()
	desc := llmrouter.ProviderDescriptor{
		Name:         "dormant",
		Capabilities: []llmrouter.Capability{llmrouter.CapabilityChat},
		Priority:     1,
		Configured:   false,
	}
	if err := reg.Register(desc, &stubAdapter{name: "dormant"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	srv := newTestServer(t, reg)

	w := doJSON(t, srv, http.MethodPost, "/v1/chat", chatBody("Hi"))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", w.Code, w.Body.String())
	}
	if got := errorField(t, w, "type"); got != "configuration_error" {
		t.Errorf("expected error type %q, got %v", "configuration_error", got)
	}
}

func TestChatBudgetExhausted(t *testing.T) {
	month := time.Now().Format("2006-01")
	tracker := llmrouter.NewCostTracker(llmrouter.WithMonthlyBudget(1.0))
	tracker.SeedMonth(month, 2.0)

	client := llmrouter.NewClient(testRegistry(t, &stubAdapter{name: "alpha", text: "hi"}),
		llmrouter.WithCostTracker(tracker), llmrouter.WithHardStop(true))
	srv, err := New(config.Config{}, client, tutor.NewMachine(client))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	w := doJSON(t, srv, http.MethodPost, "/v1/chat", chatBody("Hi"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d: %s", w.Code, w.Body.String())
	}
	if got := errorField(t, w, "type"); got != "budget_exceeded" {
		t.Errorf("expected error type %q, got %v", "budget_exceeded", got)
	}
}

func TestChatTutorMode(t *testing.T) {
	// The adapter answers every call with a classification naming only the
	// instruction, so the machine must ask about context next.
	srv := newTestServer(t, testRegistry(t, &stubAdapter{
		name: "alpha",
		text: `{"instruction": true}`,
	}))

	body := chatBody("Write a summary")
	body["tutor_mode"] = true
	body["conversation_id"] = "conv-1"

	w := doJSON(t, srv, http.MethodPost, "/v1/chat", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	want := tutor.QuestionFor(tutor.ElementContext)
	if resp["tutor_question"] != want {
		t.Errorf("expected tutor question %q, got %v", want, resp["tutor_question"])
	}
	if resp["text"] != want {
		t.Errorf("expected text to mirror the question, got %v", resp["text"])
	}
	if _, ok := resp["tutor_feedback"]; ok {
		t.Error("expected no tutor_feedback on a question turn")
	}
}

func TestTutorReset(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{
		name: "alpha",
		text: `{"instruction": true}`,
	}))

	body := chatBody("Write a summary")
	body["tutor_mode"] = true
	body["conversation_id"] = "conv-9"
	if w := doJSON(t, srv, http.MethodPost, "/v1/chat", body); w.Code != http.StatusOK {
		t.Fatalf("tutor turn failed: %d %s", w.Code, w.Body.String())
	}

	w := doJSON(t, srv, http.MethodPost, "/v1/tutor/reset", map[string]string{"conversation_id": "conv-9"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := decodeBody(t, w)["reset"]; got != true {
		t.Errorf("expected reset true, got %v", got)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/tutor/reset", map[string]string{"conversation_id": "never-seen"})
	if got := decodeBody(t, w)["reset"]; got != false {
		t.Errorf("expected reset false for unknown conversation, got %v", got)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/tutor/reset", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 without conversation_id, got %d", w.Code)
	}
}

func TestChatBatch(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{
		name:   "alpha",
		text:   "Answer",
		err:    errors.New("server error"),
		failOn: "bad",
	}))

	w := doJSON(t, srv, http.MethodPost, "/v1/chat/batch", map[string]any{
		"requests": []map[string]any{chatBody("first"), chatBody("bad"), chatBody("third")},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	results, ok := decodeBody(t, w)["results"].([]any)
	if !ok || len(results) != 3 {
		t.Fatalf("expected 3 results, got %v", results)
	}

	first := results[0].(map[string]any)
	if first["index"] != float64(0) {
		t.Errorf("expected index 0, got %v", first["index"])
	}
	if first["error"] != nil {
		t.Errorf("expected no error on first entry, got %v", first["error"])
	}
	resp, ok := first["response"].(map[string]any)
	if !ok || resp["text"] != "Answer" {
		t.Errorf("expected first response text %q, got %v", "Answer", first["response"])
	}

	second := results[1].(map[string]any)
	if second["response"] != nil {
		t.Errorf("expected no response on failed entry, got %v", second["response"])
	}
	entryErr, ok := second["error"].(map[string]any)
	if !ok || entryErr["type"] != "all_providers_failed" {
		t.Errorf("expected all_providers_failed on second entry, got %v", second["error"])
	}

	third := results[2].(map[string]any)
	if third["error"] != nil {
		t.Errorf("expected third entry unaffected by its neighbor, got %v", third["error"])
	}
}

func TestChatBatchRejectsEmptyAndOversized(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"}))

	w := doJSON(t, srv, http.MethodPost, "/v1/chat/batch", map[string]any{"requests": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty batch, got %d", w.Code)
	}

	oversized := make([]map[string]any, maxBatchSize+1)
	for i := range oversized {
		oversized[i] = chatBody("Hi")
	}
	w = doJSON(t, srv, http.MethodPost, "/v1/chat/batch", map[string]any{"requests": oversized})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for oversized batch, got %d", w.Code)
	}
}

func TestEmbeddings(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{
		name:   "alpha",
		vector: []float32{0.5, 0.25},
	}))

	w := doJSON(t, srv, http.MethodPost, "/v1/embeddings", map[string]any{"text": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	vector, ok := body["vector"].([]any)
	if !ok || len(vector) != 2 {
		t.Fatalf("expected 2-dimensional vector, got %v", body["vector"])
	}
	if body["provider"] != "alpha" {
		t.Errorf("expected provider %q, got %v", "alpha", body["provider"])
	}
}

func TestEmbeddingsBatch(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{
		name:   "alpha",
		vector: []float32{0.5, 0.25},
	}))

	w := doJSON(t, srv, http.MethodPost, "/v1/embeddings", map[string]any{"texts": []string{"a", "b"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	results, ok := decodeBody(t, w)["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("expected 2 results, got %v", results)
	}
	entry := results[1].(map[string]any)
	if entry["index"] != float64(1) {
		t.Errorf("expected index 1, got %v", entry["index"])
	}
	if entry["response"] == nil {
		t.Error("expected response on batch entry")
	}
}

func TestEmbeddingsInputValidation(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", vector: []float32{1}}))

	tests := []struct {
		name string
		body map[string]any
	}{
		{"neither", map[string]any{}},
		{"both", map[string]any{"text": "a", "texts": []string{"b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, srv, http.MethodPost, "/v1/embeddings", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestProviders(t *testing.T) {
	srv := newTestServer(t, testRegistry(t,
		&stubAdapter{name: "alpha", text: "Hi"},
		&stubAdapter{name: "beta", text: "Hi"},
	))

	w := doJSON(t, srv, http.MethodGet, "/v1/providers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	providers, ok := decodeBody(t, w)["providers"].([]any)
	if !ok || len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %v", providers)
	}
	first := providers[0].(map[string]any)
	if first["name"] != "alpha" {
		t.Errorf("expected first provider %q, got %v", "alpha", first["name"])
	}
	if first["configured"] != true {
		t.Errorf("expected configured true, got %v", first["configured"])
	}
}

func TestCosts(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"}))
	srv.client.Tracker().Record("alpha", llmrouter.ServiceChat, 100, 0.25)

	w := doJSON(t, srv, http.MethodGet, "/v1/costs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["total_cost"] != 0.25 {
		t.Errorf("expected total cost 0.25, got %v", body["total_cost"])
	}
	byProvider, ok := body["by_provider"].(map[string]any)
	if !ok {
		t.Fatalf("expected by_provider map, got %v", body["by_provider"])
	}
	if _, ok := byProvider["alpha"]; !ok {
		t.Error("expected alpha in by_provider")
	}
}

func TestCostRecordsFromTracker(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"}))
	tracker := srv.client.Tracker()
	tracker.Record("alpha", llmrouter.ServiceChat, 10, 0.01)
	tracker.Record("alpha", llmrouter.ServiceChat, 20, 0.02)
	tracker.Record("beta", llmrouter.ServiceEmbed, 30, 0.03)

	w := doJSON(t, srv, http.MethodGet, "/v1/costs/records?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", body["count"])
	}
	records, ok := body["records"].([]any)
	if !ok || len(records) != 2 {
		t.Fatalf("expected 2 records, got %v", body["records"])
	}
	newest := records[0].(map[string]any)
	if newest["provider"] != "beta" {
		t.Errorf("expected newest record first, got %v", newest["provider"])
	}
}

func TestCostRecordsRejectsBadLimit(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"}))

	for _, limit := range []string{"abc", "0", "-3"} {
		w := doJSON(t, srv, http.MethodGet, "/v1/costs/records?limit="+limit, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit %q: expected status 400, got %d", limit, w.Code)
		}
	}
}

// stubRecordStore is a canned RecordStore.
type stubRecordStore struct {
	recs []llmrouter.CostRecord
	err  error
}

func (s *stubRecordStore) Recent(ctx context.Context, limit int) ([]llmrouter.CostRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.recs) {
		return s.recs[:limit], nil
	}
	return s.recs, nil
}

func TestCostRecordsFromStore(t *testing.T) {
	store := &stubRecordStore{recs: []llmrouter.CostRecord{
		{ID: "r2", Provider: "alpha", Service: llmrouter.ServiceChat, TokensUsed: 20, Cost: 0.02, RecordedAt: time.Now()},
		{ID: "r1", Provider: "alpha", Service: llmrouter.ServiceChat, TokensUsed: 10, Cost: 0.01, RecordedAt: time.Now().Add(-time.Hour)},
	}}
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"}), WithRecordStore(store))

	w := doJSON(t, srv, http.MethodGet, "/v1/costs/records", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	records, ok := decodeBody(t, w)["records"].([]any)
	if !ok || len(records) != 2 {
		t.Fatalf("expected 2 records, got %v", records)
	}
	if first := records[0].(map[string]any); first["id"] != "r2" {
		t.Errorf("expected store order preserved, got %v", first["id"])
	}
}

func TestCostRecordsStoreFailure(t *testing.T) {
	store := &stubRecordStore{err: errors.New("disk gone")}
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"}), WithRecordStore(store))

	w := doJSON(t, srv, http.MethodGet, "/v1/costs/records", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	if got := errorField(t, w, "type"); got != "server_error" {
		t.Errorf("expected error type %q, got %v", "server_error", got)
	}
}

func TestUnknownRouteReturnsJSONError(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"}))

	w := doJSON(t, srv, http.MethodGet, "/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	if got := errorField(t, w, "message"); got == nil {
		t.Error("expected a JSON error body on unknown routes")
	}
}

func TestDecodeRequestBody(t *testing.T) {
	srv := newTestServer(t, testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"}))

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty", "", "request body is required"},
		{"malformed", `{"messages":`, "invalid JSON payload"},
		{"trailing", `{} {}`, "single JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRaw(t, srv, http.MethodPost, "/v1/chat", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}
			got, _ := errorField(t, w, "message").(string)
			if !strings.Contains(got, tt.message) {
				t.Errorf("expected message containing %q, got %q", tt.message, got)
			}
		})
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	reg := testRegistry(t, &stubAdapter{name: "alpha", text: "Hi"})
	client := llmrouter.NewClient(reg, llmrouter.WithCostTracker(llmrouter.NewCostTracker()))

	if _, err := New(config.Config{}, nil, tutor.NewMachine(client)); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := New(config.Config{}, client, nil); err == nil {
		t.Error("expected error for nil machine")
	}

	bare := llmrouter.NewClient(reg)
	if _, err := New(config.Config{}, bare, tutor.NewMachine(bare)); err == nil {
		t.Error("expected error for client without tracker")
	}
}
