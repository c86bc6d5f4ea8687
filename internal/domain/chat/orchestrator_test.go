package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"openchat/server/internal/domain/chat"
	"openchat/server/internal/domain/llm"
	"openchat/server/internal/domain/memory"
	"openchat/server/internal/domain/thread"
	"openchat/server/internal/domain/tool"
	"openchat/server/internal/utils/platformerrors"
)

const titleModelID = "title-model"

// scriptedStream replays a fixed delta sequence, then EOF or a scripted error.
type scriptedStream struct {
	deltas []llm.ChatCompletionDelta
	err    error
	pos    int
}

func (s *scriptedStream) Recv() (*llm.ChatCompletionDelta, error) {
	if s.pos >= len(s.deltas) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return &d, nil
}

func (s *scriptedStream) Close() error { return nil }

type mockProvider struct {
	CreateChatCompletionFunc       func(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
	CreateChatCompletionStreamFunc func(ctx context.Context, req llm.ChatCompletionRequest) (llm.Stream, error)
}

func (m *mockProvider) CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	if m.CreateChatCompletionFunc != nil {
		return m.CreateChatCompletionFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProvider) CreateChatCompletionStream(ctx context.Context, req llm.ChatCompletionRequest) (llm.Stream, error) {
	if m.CreateChatCompletionStreamFunc != nil {
		return m.CreateChatCompletionStreamFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func textDelta(text string) llm.ChatCompletionDelta {
	return llm.ChatCompletionDelta{
		Choices: []llm.ChatCompletionDeltaChoice{
			{Delta: llm.ChatMessage{Content: text}},
		},
	}
}

func toolCallDelta(index int, id, name, argFragment string) llm.ChatCompletionDelta {
	return llm.ChatCompletionDelta{
		Choices: []llm.ChatCompletionDeltaChoice{
			{Delta: llm.ChatMessage{ToolCalls: []llm.ToolCall{{
				Index:    &index,
				ID:       id,
				Function: llm.ToolFunction{Name: name, Arguments: argFragment},
			}}}},
		},
	}
}

// memThreadRepo is an in-memory thread.Repository.
type memThreadRepo struct {
	mu      sync.Mutex
	threads map[string]*thread.Thread
}

func newMemThreadRepo() *memThreadRepo {
	return &memThreadRepo{threads: make(map[string]*thread.Thread)}
}

func (r *memThreadRepo) GetByID(ctx context.Context, id string) (*thread.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound, "thread not found", nil)
	}
	cp := *t
	return &cp, nil
}

func (r *memThreadRepo) CreateIfAbsent(_ context.Context, t *thread.Thread) (*thread.Thread, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.threads[t.ID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *t
	r.threads[t.ID] = &cp
	out := cp
	return &out, true, nil
}

func (r *memThreadRepo) UpdateTitle(_ context.Context, id string, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return errors.New("thread not found")
	}
	t.Title = &title
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memThreadRepo) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.threads[id]; ok {
		t.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *memThreadRepo) ListByOwner(_ context.Context, resourceOwner string) ([]*thread.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*thread.Thread
	for _, t := range r.threads {
		if t.ResourceOwner == resourceOwner {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memThreadRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.threads, id)
	return nil
}

func (r *memThreadRepo) title(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok || t.Title == nil {
		return ""
	}
	return *t.Title
}

// memMessageRepo is an in-memory thread.MessageRepository.
type memMessageRepo struct {
	mu   sync.Mutex
	logs map[string][]thread.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{logs: make(map[string][]thread.Message)}
}

func (r *memMessageRepo) ListByThread(_ context.Context, threadID string) ([]thread.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]thread.Message, len(r.logs[threadID]))
	copy(out, r.logs[threadID])
	return out, nil
}

func (r *memMessageRepo) Append(_ context.Context, messages []thread.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range messages {
		exists := false
		for _, stored := range r.logs[m.ThreadID] {
			if stored.ID == m.ID {
				exists = true
				break
			}
		}
		if !exists {
			r.logs[m.ThreadID] = append(r.logs[m.ThreadID], m)
		}
	}
	return nil
}

func (r *memMessageRepo) DeleteByIDs(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	for threadID, msgs := range r.logs {
		kept := msgs[:0]
		for _, m := range msgs {
			if _, ok := drop[m.ID]; !ok {
				kept = append(kept, m)
			}
		}
		r.logs[threadID] = kept
	}
	return nil
}

type memMemoryRepo struct {
	stored memory.WorkingMemory
}

func (r *memMemoryRepo) Get(context.Context, string) (memory.WorkingMemory, error) {
	return r.stored, nil
}

func (r *memMemoryRepo) Upsert(_ context.Context, _ string, m memory.WorkingMemory) error {
	r.stored = m
	return nil
}

type mockBackfill struct {
	mu       sync.Mutex
	enqueued []string
}

func (q *mockBackfill) Enqueue(_ context.Context, threadID, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, threadID)
	return nil
}

type testHarness struct {
	orchestrator *chat.Orchestrator
	threads      *memThreadRepo
	messages     *memMessageRepo
	backfill     *mockBackfill
	catalog      *llm.Catalog
}

func newTestHarness(provider llm.Provider, tools *tool.Registry) *testHarness {
	log := zerolog.Nop()
	threadRepo := newMemThreadRepo()
	messageRepo := newMemMessageRepo()
	backfill := &mockBackfill{}

	catalog := llm.NewCatalog(nil, "")
	threads := thread.NewService(threadRepo, messageRepo, log)
	memories := memory.NewService(&memMemoryRepo{}, log)
	titler := chat.NewTitler(provider, titleModelID, log)
	if tools == nil {
		tools = tool.NewRegistry(log)
	}

	orchestrator := chat.NewOrchestrator(
		threads, memories, provider, catalog, tools, titler, backfill, nil,
		chat.Config{IdleTimeout: 2 * time.Second, TitleGrace: time.Second},
		log,
	)
	return &testHarness{
		orchestrator: orchestrator,
		threads:      threadRepo,
		messages:     messageRepo,
		backfill:     backfill,
		catalog:      catalog,
	}
}

func userMessage(id, text string) thread.Message {
	return thread.Message{
		ID:    id,
		Role:  thread.RoleUser,
		Parts: []thread.Part{thread.TextPart(text)},
	}
}

func eventTypes(events []chat.StreamEvent) []chat.EventType {
	out := make([]chat.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestStreamTurnNewThreadEmitsThreadCreatedFirst(t *testing.T) {
	provider := &mockProvider{
		CreateChatCompletionStreamFunc: func(_ context.Context, req llm.ChatCompletionRequest) (llm.Stream, error) {
			if req.Model == titleModelID {
				return &scriptedStream{deltas: []llm.ChatCompletionDelta{textDelta("Greetings")}}, nil
			}
			return &scriptedStream{deltas: []llm.ChatCompletionDelta{textDelta("Hel"), textDelta("lo")}}, nil
		},
	}
	h := newTestHarness(provider, nil)
	ctx := context.Background()

	turn, err := h.orchestrator.PrepareTurn(ctx, chat.TurnRequest{
		ThreadID:      "thr_new",
		ResourceOwner: "owner-1",
		Messages:      []thread.Message{userMessage("msg_u1", "hello there")},
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !turn.Created {
		t.Fatal("expected thread to be created")
	}

	sink := &collectSink{}
	if err := h.orchestrator.StreamTurn(ctx, turn, sink); err != nil {
		t.Fatalf("stream: %v", err)
	}

	events := sink.snapshot()
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	if events[0].Type != chat.EventThreadCreated {
		t.Fatalf("first event should be thread-created, got %v", eventTypes(events))
	}
	if events[0].Thread == nil || events[0].Thread.ThreadID != "thr_new" {
		t.Error("thread-created event missing thread info")
	}
	if events[len(events)-1].Type != chat.EventDone {
		t.Fatalf("last event should be done, got %v", eventTypes(events))
	}

	var text string
	sawTitle := false
	for _, ev := range events {
		switch ev.Type {
		case chat.EventTextDelta:
			text += ev.Delta
		case chat.EventTitleUpdated:
			sawTitle = true
		}
	}
	if text != "Hello" {
		t.Errorf("expected assembled text %q, got %q", "Hello", text)
	}
	if !sawTitle {
		t.Error("expected a title-updated event for the new thread")
	}

	stored, _ := h.messages.ListByThread(ctx, "thr_new")
	if len(stored) != 2 {
		t.Fatalf("expected user + assistant persisted, got %d messages", len(stored))
	}
	if stored[0].Role != thread.RoleUser || stored[1].Role != thread.RoleAssistant {
		t.Errorf("unexpected persisted roles: %s, %s", stored[0].Role, stored[1].Role)
	}
	if stored[1].PlainText() != "Hello" {
		t.Errorf("persisted assistant text: %q", stored[1].PlainText())
	}
	if got := h.threads.title("thr_new"); got != "Greetings" {
		t.Errorf("expected persisted title %q, got %q", "Greetings", got)
	}
}

func TestStreamTurnExistingThreadOmitsThreadCreated(t *testing.T) {
	provider := &mockProvider{
		CreateChatCompletionStreamFunc: func(context.Context, llm.ChatCompletionRequest) (llm.Stream, error) {
			return &scriptedStream{deltas: []llm.ChatCompletionDelta{textDelta("again")}}, nil
		},
	}
	h := newTestHarness(provider, nil)
	ctx := context.Background()

	first, err := h.orchestrator.PrepareTurn(ctx, chat.TurnRequest{
		ThreadID:      "thr_1",
		ResourceOwner: "owner-1",
		Messages:      []thread.Message{userMessage("msg_u1", "hi")},
	})
	if err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	if !first.Created {
		t.Fatal("first submission should create the thread")
	}

	second, err := h.orchestrator.PrepareTurn(ctx, chat.TurnRequest{
		ThreadID:      "thr_1",
		ResourceOwner: "owner-1",
		Messages:      []thread.Message{userMessage("msg_u2", "hi again")},
	})
	if err != nil {
		t.Fatalf("second prepare: %v", err)
	}
	if second.Created {
		t.Fatal("second submission must not report creation")
	}

	sink := &collectSink{}
	if err := h.orchestrator.StreamTurn(ctx, second, sink); err != nil {
		t.Fatalf("stream: %v", err)
	}
	for _, ev := range sink.snapshot() {
		if ev.Type == chat.EventThreadCreated {
			t.Error("existing thread must not emit thread-created")
		}
		if ev.Type == chat.EventTitleUpdated {
			t.Error("existing thread must not start title generation")
		}
	}
}

func TestPrepareTurnValidation(t *testing.T) {
	h := newTestHarness(&mockProvider{}, nil)

	tests := []struct {
		name string
		req  chat.TurnRequest
	}{
		{
			name: "missing thread id",
			req:  chat.TurnRequest{Messages: []thread.Message{userMessage("m1", "hi")}},
		},
		{
			name: "no messages",
			req:  chat.TurnRequest{ThreadID: "thr_1"},
		},
		{
			name: "empty parts",
			req: chat.TurnRequest{
				ThreadID: "thr_1",
				Messages: []thread.Message{{ID: "m1", Role: thread.RoleUser}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.orchestrator.PrepareTurn(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
				t.Errorf("expected VALIDATION error, got %v", err)
			}
		})
	}
}

func TestPrepareTurnUnknownModelFallsBack(t *testing.T) {
	h := newTestHarness(&mockProvider{}, nil)

	turn, err := h.orchestrator.PrepareTurn(context.Background(), chat.TurnRequest{
		ThreadID:      "thr_1",
		ResourceOwner: "owner-1",
		Messages:      []thread.Message{userMessage("m1", "hi")},
		ModelID:       "no-such-model",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if turn.ModelID != h.catalog.DefaultID() {
		t.Errorf("expected default model %q, got %q", h.catalog.DefaultID(), turn.ModelID)
	}
}

func TestPrepareTurnRegenerateTruncates(t *testing.T) {
	h := newTestHarness(&mockProvider{}, nil)
	ctx := context.Background()

	h.threads.CreateIfAbsent(ctx, &thread.Thread{ID: "thr_1", ResourceOwner: "owner-1"})
	seed := make([]thread.Message, 0, 5)
	for i := 0; i < 5; i++ {
		m := userMessage(fmt.Sprintf("msg_%d", i), fmt.Sprintf("message %d", i))
		m.ThreadID = "thr_1"
		m.Sequence = i
		seed = append(seed, m)
	}
	h.messages.Append(ctx, seed)

	_, err := h.orchestrator.PrepareTurn(ctx, chat.TurnRequest{
		ThreadID:            "thr_1",
		ResourceOwner:       "owner-1",
		Messages:            []thread.Message{userMessage("msg_retry", "try again")},
		Trigger:             chat.TriggerRegenerate,
		RegenerateMessageID: "msg_2",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	stored, _ := h.messages.ListByThread(ctx, "thr_1")
	if len(stored) != 2 {
		t.Fatalf("expected 2 messages after truncation, got %d", len(stored))
	}
	for _, m := range stored {
		if m.ID == "msg_2" || m.ID == "msg_3" || m.ID == "msg_4" {
			t.Errorf("message %s should have been deleted", m.ID)
		}
	}
}

func TestPrepareTurnRegenerateUnknownTargetIsNoOp(t *testing.T) {
	h := newTestHarness(&mockProvider{}, nil)
	ctx := context.Background()

	h.threads.CreateIfAbsent(ctx, &thread.Thread{ID: "thr_1", ResourceOwner: "owner-1"})
	m := userMessage("msg_0", "kept")
	m.ThreadID = "thr_1"
	h.messages.Append(ctx, []thread.Message{m})

	_, err := h.orchestrator.PrepareTurn(ctx, chat.TurnRequest{
		ThreadID:            "thr_1",
		ResourceOwner:       "owner-1",
		Messages:            []thread.Message{userMessage("msg_retry", "try again")},
		Trigger:             chat.TriggerRegenerate,
		RegenerateMessageID: "msg_gone",
	})
	if err != nil {
		t.Fatalf("unknown regeneration target must not fail: %v", err)
	}

	stored, _ := h.messages.ListByThread(ctx, "thr_1")
	if len(stored) != 1 {
		t.Fatalf("expected stored log untouched, got %d messages", len(stored))
	}
}

func TestStreamTurnMidStreamFailureSkipsPersistence(t *testing.T) {
	provider := &mockProvider{
		CreateChatCompletionStreamFunc: func(context.Context, llm.ChatCompletionRequest) (llm.Stream, error) {
			return &scriptedStream{
				deltas: []llm.ChatCompletionDelta{textDelta("partial")},
				err:    errors.New("upstream reset"),
			}, nil
		},
	}
	h := newTestHarness(provider, nil)
	ctx := context.Background()

	h.threads.CreateIfAbsent(ctx, &thread.Thread{ID: "thr_1", ResourceOwner: "owner-1"})
	turn, err := h.orchestrator.PrepareTurn(ctx, chat.TurnRequest{
		ThreadID:      "thr_1",
		ResourceOwner: "owner-1",
		Messages:      []thread.Message{userMessage("msg_u1", "hi")},
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	sink := &collectSink{}
	if err := h.orchestrator.StreamTurn(ctx, turn, sink); err == nil {
		t.Fatal("expected stream failure")
	}

	events := sink.snapshot()
	last := events[len(events)-1]
	if last.Type != chat.EventError {
		t.Fatalf("expected terminal error event, got %v", eventTypes(events))
	}

	stored, _ := h.messages.ListByThread(ctx, "thr_1")
	if len(stored) != 0 {
		t.Errorf("partial turn must not be persisted, found %d messages", len(stored))
	}
}

func TestStreamTurnExecutesToolCalls(t *testing.T) {
	log := zerolog.Nop()
	tools := tool.NewRegistry(log)
	var gotQuery string
	tools.Register(llm.ToolDefinition{
		Type:     "function",
		Function: llm.ToolFunctionSchema{Name: "web_search"},
	}, func(_ context.Context, input json.RawMessage) (interface{}, error) {
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return nil, err
		}
		gotQuery = args.Query
		return []map[string]string{{"title": "Go", "url": "https://go.dev"}}, nil
	})

	calls := 0
	provider := &mockProvider{
		CreateChatCompletionStreamFunc: func(_ context.Context, req llm.ChatCompletionRequest) (llm.Stream, error) {
			calls++
			if calls == 1 {
				if len(req.Tools) == 0 {
					return nil, errors.New("expected tools to be advertised")
				}
				return &scriptedStream{deltas: []llm.ChatCompletionDelta{
					toolCallDelta(0, "call_1", "web_search", `{"query":`),
					toolCallDelta(0, "", "", `"golang"}`),
				}}, nil
			}
			return &scriptedStream{deltas: []llm.ChatCompletionDelta{textDelta("Go is a language.")}}, nil
		},
	}
	h := newTestHarness(provider, tools)
	ctx := context.Background()

	h.threads.CreateIfAbsent(ctx, &thread.Thread{ID: "thr_1", ResourceOwner: "owner-1"})
	turn, err := h.orchestrator.PrepareTurn(ctx, chat.TurnRequest{
		ThreadID:         "thr_1",
		ResourceOwner:    "owner-1",
		Messages:         []thread.Message{userMessage("msg_u1", "what is golang")},
		WebSearchEnabled: true,
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	sink := &collectSink{}
	if err := h.orchestrator.StreamTurn(ctx, turn, sink); err != nil {
		t.Fatalf("stream: %v", err)
	}

	if gotQuery != "golang" {
		t.Errorf("tool received query %q, want %q", gotQuery, "golang")
	}

	var inputFragments string
	sawOutput := false
	for _, ev := range sink.snapshot() {
		switch ev.Type {
		case chat.EventToolInputDelta:
			inputFragments += ev.Delta
		case chat.EventToolOutput:
			sawOutput = true
			if ev.ToolCallID != "call_1" {
				t.Errorf("tool-output call id: %q", ev.ToolCallID)
			}
			if ev.ErrorText != "" {
				t.Errorf("unexpected tool error: %s", ev.ErrorText)
			}
		}
	}
	if inputFragments != `{"query":"golang"}` {
		t.Errorf("accumulated tool input: %s", inputFragments)
	}
	if !sawOutput {
		t.Error("expected a tool-output event")
	}

	stored, _ := h.messages.ListByThread(ctx, "thr_1")
	if len(stored) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(stored))
	}
	assistant := stored[1]
	var toolPart *thread.Part
	for i := range assistant.Parts {
		if assistant.Parts[i].Type == thread.PartTypeToolCall {
			toolPart = &assistant.Parts[i]
		}
	}
	if toolPart == nil {
		t.Fatal("persisted assistant message missing the tool-call part")
	}
	if toolPart.State != thread.ToolStateOutputAvailable {
		t.Errorf("tool part state: %s", toolPart.State)
	}
	if assistant.PlainText() != "Go is a language." {
		t.Errorf("persisted answer: %q", assistant.PlainText())
	}
}

func TestStreamTurnFailingToolYieldsErrorPartNotFailedTurn(t *testing.T) {
	log := zerolog.Nop()
	tools := tool.NewRegistry(log)
	tools.Register(llm.ToolDefinition{
		Type:     "function",
		Function: llm.ToolFunctionSchema{Name: "web_search"},
	}, func(context.Context, json.RawMessage) (interface{}, error) {
		return nil, errors.New("search backend down")
	})

	calls := 0
	provider := &mockProvider{
		CreateChatCompletionStreamFunc: func(context.Context, llm.ChatCompletionRequest) (llm.Stream, error) {
			calls++
			if calls == 1 {
				return &scriptedStream{deltas: []llm.ChatCompletionDelta{
					toolCallDelta(0, "call_1", "web_search", `{"query":"x"}`),
				}}, nil
			}
			return &scriptedStream{deltas: []llm.ChatCompletionDelta{textDelta("Could not search.")}}, nil
		},
	}
	h := newTestHarness(provider, tools)
	ctx := context.Background()

	h.threads.CreateIfAbsent(ctx, &thread.Thread{ID: "thr_1", ResourceOwner: "owner-1"})
	turn, err := h.orchestrator.PrepareTurn(ctx, chat.TurnRequest{
		ThreadID:         "thr_1",
		ResourceOwner:    "owner-1",
		Messages:         []thread.Message{userMessage("msg_u1", "search something")},
		WebSearchEnabled: true,
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	sink := &collectSink{}
	if err := h.orchestrator.StreamTurn(ctx, turn, sink); err != nil {
		t.Fatalf("a failing tool must not fail the turn: %v", err)
	}

	sawToolError := false
	for _, ev := range sink.snapshot() {
		if ev.Type == chat.EventToolOutput && ev.ErrorText != "" {
			sawToolError = true
		}
		if ev.Type == chat.EventError {
			t.Error("tool failure must not surface as a stream error event")
		}
	}
	if !sawToolError {
		t.Error("expected a tool-output event carrying the error text")
	}

	stored, _ := h.messages.ListByThread(ctx, "thr_1")
	assistant := stored[len(stored)-1]
	found := false
	for _, p := range assistant.Parts {
		if p.Type == thread.PartTypeToolCall && p.State == thread.ToolStateOutputError {
			found = true
		}
	}
	if !found {
		t.Error("expected an output-error tool part on the persisted message")
	}
}

func TestPrepareTurnDropsAlreadyStoredIncomingMessages(t *testing.T) {
	h := newTestHarness(&mockProvider{}, nil)
	ctx := context.Background()

	h.threads.CreateIfAbsent(ctx, &thread.Thread{ID: "thr_1", ResourceOwner: "owner-1"})
	m := userMessage("msg_u1", "hi")
	m.ThreadID = "thr_1"
	h.messages.Append(ctx, []thread.Message{m})

	turn, err := h.orchestrator.PrepareTurn(ctx, chat.TurnRequest{
		ThreadID:      "thr_1",
		ResourceOwner: "owner-1",
		Messages: []thread.Message{
			userMessage("msg_u1", "hi"),
			userMessage("msg_u2", "and also"),
		},
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if len(turn.Incoming) != 1 || turn.Incoming[0].ID != "msg_u2" {
		t.Errorf("expected only the unseen message in Incoming, got %d", len(turn.Incoming))
	}
	if len(turn.History) != 2 {
		t.Errorf("expected full history of 2, got %d", len(turn.History))
	}
}
