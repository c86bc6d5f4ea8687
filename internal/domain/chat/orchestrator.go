package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"openchat/server/internal/domain/llm"
	"openchat/server/internal/domain/memory"
	"openchat/server/internal/domain/thread"
	"openchat/server/internal/domain/tool"
	"openchat/server/internal/utils/platformerrors"
)

// Trigger identifies what kind of submission a turn is.
type Trigger string

const (
	TriggerSubmit     Trigger = "submit"
	TriggerRegenerate Trigger = "regenerate-message"
)

// TurnRequest is one validated-at-the-edge chat submission.
type TurnRequest struct {
	ThreadID            string
	ResourceOwner       string
	Messages            []thread.Message
	Trigger             Trigger
	RegenerateMessageID string
	ModelID             string
	WebSearchEnabled    bool
}

// Turn is a prepared exchange: thread resolved, regeneration truncation
// applied, model selected. Produced by PrepareTurn before the response stream
// is committed, so preparation failures can still surface as HTTP errors.
type Turn struct {
	Thread           *thread.Thread
	Created          bool
	ModelID          string
	History          []thread.Message
	Incoming         []thread.Message
	WebSearchEnabled bool
}

// TitleBackfillQueue receives threads whose title generation did not finish
// within the turn, so a background worker can retry it.
type TitleBackfillQueue interface {
	Enqueue(ctx context.Context, threadID, turnText string) error
}

// Notifier is told about completed turns. Implementations must not block the
// caller for long; failures are their own problem.
type Notifier interface {
	TurnCompleted(threadID string, messageCount int)
}

// Config carries the orchestrator's tunables.
type Config struct {
	// IdleTimeout bounds the gap between consecutive generation deltas.
	IdleTimeout time.Duration

	// TitleGrace bounds how long a finished turn waits for in-flight title
	// generation before handing it to the backfill queue.
	TitleGrace time.Duration

	// MaxToolDepth bounds how many tool round-trips one turn may take.
	MaxToolDepth int

	// ContextLength is the token budget used for history trimming.
	ContextLength int
}

func (c *Config) applyDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.TitleGrace <= 0 {
		c.TitleGrace = 3 * time.Second
	}
	if c.MaxToolDepth <= 0 {
		c.MaxToolDepth = 5
	}
	if c.ContextLength <= 0 {
		c.ContextLength = llm.DefaultContextLength
	}
}

const systemInstructions = `You are a helpful assistant. Answer directly and concisely. Use the available tools when the user's question needs information you do not have.`

// Orchestrator drives one chat turn end to end: thread resolution,
// regeneration truncation, model invocation, tool execution, persistence and
// asynchronous title generation.
type Orchestrator struct {
	threads  *thread.Service
	memories *memory.Service
	provider llm.Provider
	catalog  *llm.Catalog
	tools    *tool.Registry
	titler   *Titler
	backfill TitleBackfillQueue
	notifier Notifier
	cfg      Config
	log      zerolog.Logger
}

func NewOrchestrator(
	threads *thread.Service,
	memories *memory.Service,
	provider llm.Provider,
	catalog *llm.Catalog,
	tools *tool.Registry,
	titler *Titler,
	backfill TitleBackfillQueue,
	notifier Notifier,
	cfg Config,
	log zerolog.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		threads:  threads,
		memories: memories,
		provider: provider,
		catalog:  catalog,
		tools:    tools,
		titler:   titler,
		backfill: backfill,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With().Str("component", "chat-orchestrator").Logger(),
	}
}

// PrepareTurn validates the request, resolves or creates the thread, applies
// regeneration truncation and assembles the model-facing history. It runs
// before the response stream is committed: any error here surfaces as a
// non-2xx response with no stream body.
func (o *Orchestrator) PrepareTurn(ctx context.Context, req TurnRequest) (*Turn, error) {
	if strings.TrimSpace(req.ThreadID) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "threadId is required", nil)
	}
	if len(req.Messages) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "messages must not be empty", nil)
	}
	for _, m := range req.Messages {
		if len(m.Parts) == 0 {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
				platformerrors.ErrorTypeValidation, "message parts must not be empty", nil)
		}
	}

	modelID := o.catalog.Resolve(req.ModelID)
	if req.ModelID != "" && modelID != req.ModelID {
		o.log.Warn().
			Str("requested", req.ModelID).
			Str("fallback", modelID).
			Msg("unknown model id, using default")
	}

	t, created, err := o.threads.Resolve(ctx, req.ThreadID, req.ResourceOwner)
	if err != nil {
		return nil, err
	}

	if req.Trigger == TriggerRegenerate && req.RegenerateMessageID != "" {
		if err := o.threads.Truncate(ctx, t.ID, req.RegenerateMessageID); err != nil {
			return nil, err
		}
	}

	stored, err := o.threads.Recall(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(stored))
	for _, m := range stored {
		known[m.ID] = struct{}{}
	}
	incoming := make([]thread.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if _, ok := known[m.ID]; !ok {
			incoming = append(incoming, m)
		}
	}

	return &Turn{
		Thread:           t,
		Created:          created,
		ModelID:          modelID,
		History:          append(stored, incoming...),
		Incoming:         incoming,
		WebSearchEnabled: req.WebSearchEnabled,
	}, nil
}

// StreamTurn runs the prepared turn against the model and writes the
// multiplexed event stream to the sink. Mid-stream failures surface as a
// terminal error event; the partial assistant message is not persisted.
func (o *Orchestrator) StreamTurn(ctx context.Context, turn *Turn, sink Sink) error {
	mux := NewMultiplexer(sink, o.log)
	defer mux.Close()

	if turn.Created {
		title := thread.PlaceholderTitle
		if turn.Thread.Title != nil {
			title = *turn.Thread.Title
		}
		mux.Send(ThreadCreatedEvent(ThreadInfo{
			ThreadID:      turn.Thread.ID,
			Title:         title,
			ResourceOwner: turn.Thread.ResourceOwner,
			CreatedAt:     turn.Thread.CreatedAt,
			UpdatedAt:     turn.Thread.UpdatedAt,
		}))
	}

	var titleDone <-chan struct{}
	if turn.Created {
		titleDone = o.startTitling(turn, mux)
	}

	assistant, err := o.generate(ctx, turn, mux)
	if err != nil {
		o.log.Error().Err(err).Str("thread_id", turn.Thread.ID).Msg("generation failed")
		mux.Send(ErrorEvent("generation failed"))
		return err
	}

	persisted := make([]thread.Message, 0, len(turn.Incoming)+1)
	persisted = append(persisted, turn.Incoming...)
	persisted = append(persisted, *assistant)
	if err := o.threads.AppendTurn(ctx, turn.Thread.ID, persisted); err != nil {
		o.log.Error().Err(err).Str("thread_id", turn.Thread.ID).Msg("failed to persist turn")
		mux.Send(ErrorEvent("failed to persist the exchange"))
		return err
	}

	if o.notifier != nil {
		o.notifier.TurnCompleted(turn.Thread.ID, len(persisted))
	}

	if titleDone != nil {
		select {
		case <-titleDone:
		case <-time.After(o.cfg.TitleGrace):
			o.handOffTitle(turn)
		}
	}

	mux.Send(DoneEvent())
	return nil
}

// startTitling launches title generation concurrently with the primary
// stream. Its events interleave through the multiplexer; its failure is
// logged and never reaches the client.
func (o *Orchestrator) startTitling(turn *Turn, mux *Multiplexer) <-chan struct{} {
	done := make(chan struct{})
	turnText := thread.LastUserText(turn.History)

	go func() {
		defer close(done)

		// Independent of the request context: a client disconnect must not
		// abort titling, only the grace/backfill handoff.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		title, err := o.titler.Summarize(ctx, turnText, func(snapshot string) {
			mux.Send(TitleUpdatedEvent(snapshot))
		})
		if err != nil {
			o.log.Warn().Err(err).Str("thread_id", turn.Thread.ID).Msg("title generation failed")
			return
		}
		if err := o.threads.SetTitle(ctx, turn.Thread.ID, title); err != nil {
			o.log.Warn().Err(err).Str("thread_id", turn.Thread.ID).Msg("failed to persist title")
		}
	}()
	return done
}

func (o *Orchestrator) handOffTitle(turn *Turn) {
	if o.backfill == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.backfill.Enqueue(ctx, turn.Thread.ID, thread.LastUserText(turn.History)); err != nil {
		o.log.Warn().Err(err).Str("thread_id", turn.Thread.ID).Msg("failed to enqueue title backfill")
	}
}

// generate drives the model, executing tool calls until the model answers
// without requesting any, bounded by MaxToolDepth. It returns the completed
// assistant message.
func (o *Orchestrator) generate(ctx context.Context, turn *Turn, mux *Multiplexer) (*thread.Message, error) {
	assistantID := thread.NewMessageID()

	msgs, err := o.buildModelHistory(ctx, turn)
	if err != nil {
		return nil, err
	}
	trimmed := llm.TrimToFitContext(msgs, o.cfg.ContextLength)
	if trimmed.TrimmedCount > 0 {
		o.log.Debug().
			Int("trimmed", trimmed.TrimmedCount).
			Int("estimated_tokens", trimmed.EstimatedTokens).
			Msg("history trimmed to fit context")
	}
	msgs = trimmed.Messages

	var parts []thread.Part

	for depth := 0; depth < o.cfg.MaxToolDepth; depth++ {
		req := llm.ChatCompletionRequest{
			Model:    turn.ModelID,
			Messages: msgs,
			Stream:   true,
		}
		if turn.WebSearchEnabled && depth < o.cfg.MaxToolDepth-1 {
			req.Tools = o.tools.Definitions()
		}

		stream, err := o.provider.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("open generation stream: %w", err)
		}
		acc, err := o.consumeStream(ctx, stream, assistantID, mux)
		stream.Close()
		if err != nil {
			return nil, err
		}

		if acc.reasoning.Len() > 0 {
			parts = append(parts, thread.ReasoningPart(acc.reasoning.String(), false))
		}
		if acc.text.Len() > 0 {
			parts = append(parts, thread.TextPart(acc.text.String()))
		}

		calls := acc.orderedCalls()
		if len(calls) == 0 {
			break
		}

		msgs = append(msgs, llm.ChatMessage{
			Role:      "assistant",
			Content:   acc.text.String(),
			ToolCalls: callsToLLM(calls),
		})
		for _, tc := range calls {
			part, resultMsg := o.executeToolCall(ctx, assistantID, tc, mux)
			parts = append(parts, part)
			msgs = append(msgs, resultMsg)
		}
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("model produced no output")
	}
	return &thread.Message{
		ID:    assistantID,
		Role:  thread.RoleAssistant,
		Parts: parts,
	}, nil
}

// executeToolCall runs one tool invocation, emits its lifecycle events and
// returns both the persisted part and the role:"tool" message fed back to the
// model. A failing tool yields an output-error part, not a failed turn.
func (o *Orchestrator) executeToolCall(ctx context.Context, assistantID string, tc *toolCallAccumulator, mux *Multiplexer) (thread.Part, llm.ChatMessage) {
	part := thread.ToolCallPart(tc.id, tc.name)
	part.State = thread.ToolStateInputAvailable
	part.Input = json.RawMessage(tc.args.String())

	callID := tc.id
	output, err := o.tools.Call(ctx, tc.name, json.RawMessage(tc.args.String()))
	if err != nil {
		o.log.Warn().Err(err).Str("tool", tc.name).Msg("tool call failed")
		part.State = thread.ToolStateOutputError
		part.ErrorText = err.Error()
		mux.Send(ToolOutputEvent(assistantID, tc.id, nil, err.Error()))

		errPayload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return part, llm.ChatMessage{Role: "tool", Content: string(errPayload), ToolCallID: &callID}
	}

	part.State = thread.ToolStateOutputAvailable
	part.Output = output
	mux.Send(ToolOutputEvent(assistantID, tc.id, output, ""))
	return part, llm.ChatMessage{Role: "tool", Content: string(output), ToolCallID: &callID}
}

// buildModelHistory converts the thread history into the model-facing shape,
// prefixed with the system prompt and the owner's working memory.
func (o *Orchestrator) buildModelHistory(ctx context.Context, turn *Turn) ([]llm.ChatMessage, error) {
	system := systemInstructions
	memoryContext, err := o.memories.PromptContext(ctx, turn.Thread.ResourceOwner)
	if err != nil {
		// Missing memory must not block the turn.
		o.log.Warn().Err(err).Msg("failed to load working memory")
	} else if memoryContext != "" {
		system += "\n\n" + memoryContext
	}

	msgs := make([]llm.ChatMessage, 0, len(turn.History)+1)
	msgs = append(msgs, llm.ChatMessage{Role: "system", Content: system})
	for _, m := range turn.History {
		text := m.PlainText()
		if text == "" {
			continue
		}
		msgs = append(msgs, llm.ChatMessage{Role: string(m.Role), Content: text})
	}
	return msgs, nil
}

// streamAccumulator assembles one streamed completion: text, reasoning and
// tool-call argument fragments keyed by the delta's tool call index.
type streamAccumulator struct {
	text      strings.Builder
	reasoning strings.Builder
	calls     map[int]*toolCallAccumulator
}

type toolCallAccumulator struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

func newStreamAccumulator() *streamAccumulator {
	return &streamAccumulator{calls: make(map[int]*toolCallAccumulator)}
}

func (a *streamAccumulator) orderedCalls() []*toolCallAccumulator {
	out := make([]*toolCallAccumulator, 0, len(a.calls))
	for _, c := range a.calls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func callsToLLM(calls []*toolCallAccumulator) []llm.ToolCall {
	out := make([]llm.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, llm.ToolCall{
			ID:   c.id,
			Type: "function",
			Function: llm.ToolFunction{
				Name:      c.name,
				Arguments: c.args.String(),
			},
		})
	}
	return out
}

type recvResult struct {
	delta *llm.ChatCompletionDelta
	err   error
}

// consumeStream pumps one completion stream into the multiplexer, enforcing
// the idle timeout between deltas.
func (o *Orchestrator) consumeStream(ctx context.Context, stream llm.Stream, assistantID string, mux *Multiplexer) (*streamAccumulator, error) {
	acc := newStreamAccumulator()

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan recvResult)
	go func() {
		defer close(ch)
		for {
			delta, err := stream.Recv()
			select {
			case ch <- recvResult{delta, err}:
			case <-pumpCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(o.cfg.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("generation stream idle for %s", o.cfg.IdleTimeout)
		case r, ok := <-ch:
			if !ok {
				return acc, nil
			}
			if r.err == io.EOF {
				return acc, nil
			}
			if r.err != nil {
				return nil, fmt.Errorf("generation stream: %w", r.err)
			}
			if err := o.applyDelta(acc, r.delta, assistantID, mux); err != nil {
				return nil, err
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(o.cfg.IdleTimeout)
		}
	}
}

// applyDelta folds one streamed chunk into the accumulator and forwards the
// matching wire events. A rejected send means the downstream is gone.
func (o *Orchestrator) applyDelta(acc *streamAccumulator, delta *llm.ChatCompletionDelta, assistantID string, mux *Multiplexer) error {
	for _, choice := range delta.Choices {
		if text, ok := choice.Delta.Content.(string); ok && text != "" {
			acc.text.WriteString(text)
			if !mux.Send(TextDeltaEvent(assistantID, text)) {
				return fmt.Errorf("client stream closed")
			}
		}
		if choice.Delta.Reasoning != "" {
			acc.reasoning.WriteString(choice.Delta.Reasoning)
			if !mux.Send(ReasoningDeltaEvent(assistantID, choice.Delta.Reasoning)) {
				return fmt.Errorf("client stream closed")
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := acc.calls[idx]
			if !ok {
				call = &toolCallAccumulator{index: idx}
				acc.calls[idx] = call
			}
			if tc.ID != "" {
				call.id = tc.ID
			}
			if tc.Function.Name != "" {
				call.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				call.args.WriteString(tc.Function.Arguments)
				if !mux.Send(ToolInputDeltaEvent(assistantID, call.id, call.name, tc.Function.Arguments)) {
					return fmt.Errorf("client stream closed")
				}
			}
		}
	}
	return nil
}
