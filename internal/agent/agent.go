// Package agent drives the tool-calling assistant.
//
// One turn follows a two-step protocol: ground the model in a snapshot of
// the user's data, let it answer or pick at most one domain tool, execute
// that tool, then ask for the final answer with tools disabled. The same
// core serves the single-shot and streaming entry points through an
// emission sink; tool dispatch and prompt assembly exist in exactly one
// place.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/findez/inventory/internal/log"
)

const systemPreamble = `You are a helpful inventory assistant. The user's full
inventory, their uploaded documents, and their recent activity are provided
as JSON grounding context.

Rules:
- Answer questions about the inventory directly from the grounding context.
- When the user asks to add, change, delete or look up items, call the
  matching tool. Call at most one tool per message.
- Never invent items, documents or quantities that are not in the context
  or in a tool result.
- Only read a document after the user has granted access to it. If access
  is missing, ask the user to grant it instead of guessing at the contents.
- Keep answers short and concrete. Mention counts and item names the user
  cares about.`

// EventType tags streamed events.
type EventType string

const (
	EventStatus EventType = "status"
	EventDelta  EventType = "delta"
	EventDone   EventType = "done"
)

// Event is one streamed increment of a turn. Exactly one done event is
// emitted per turn, carrying the same Result the single-shot path returns.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Delta   string    `json:"delta,omitempty"`
	Result  *Result   `json:"result,omitempty"`
}

// Result is the outcome of one turn. Tool is empty when the model answered
// without calling one.
type Result struct {
	Tool             string         `json:"tool,omitempty"`
	ToolResult       map[string]any `json:"result,omitempty"`
	AssistantMessage string         `json:"assistant_message"`
}

// Agent orchestrates conversation turns. It holds no per-turn state and is
// safe for concurrent use; every dependency is injected at construction.
type Agent struct {
	provider CompletionProvider
	items    ItemStore
	docs     DocumentStore
	activity ActivityStore
	blobs    BlobGetter
	tools    []Tool
	logger   log.Logger
}

// New creates an Agent.
func New(provider CompletionProvider, items ItemStore, docs DocumentStore,
	acts ActivityStore, blobs BlobGetter, logger log.Logger) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if items == nil || docs == nil || acts == nil || blobs == nil {
		return nil, fmt.Errorf("all stores are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Agent{
		provider: provider,
		items:    items,
		docs:     docs,
		activity: acts,
		blobs:    blobs,
		tools:    toolCatalog(),
		logger:   logger,
	}, nil
}

// Run executes one turn and returns the result when it completes.
func (a *Agent) Run(ctx context.Context, userID, message, displayName string) (*Result, error) {
	return a.run(ctx, userID, message, displayName, nil)
}

// StreamRun executes one turn, forwarding events through emit as they
// happen. If emit fails (client gone), remaining emission becomes a no-op
// but the turn still runs to completion: a dispatched tool call always
// persists even if nobody sees the final text.
func (a *Agent) StreamRun(ctx context.Context, userID, message, displayName string, emit func(Event) error) error {
	_, err := a.run(ctx, userID, message, displayName, emit)
	return err
}

// sink wraps the optional emit callback. After the first emit failure it
// swallows everything.
type sink struct {
	emit func(Event) error
	dead bool
}

func (s *sink) send(ev Event) {
	if s.emit == nil || s.dead {
		return
	}
	if err := s.emit(ev); err != nil {
		s.dead = true
	}
}

// run is the shared turn state machine.
func (a *Agent) run(ctx context.Context, userID, message, displayName string, emit func(Event) error) (*Result, error) {
	out := &sink{emit: emit}
	out.send(Event{Type: EventStatus, Message: "Looking at your inventory"})

	grounding, greet, err := a.assembleContext(ctx, userID, displayName)
	if err != nil {
		return nil, err
	}

	greeting := ""
	if greet {
		greeting = "Hi " + displayName + " — "
	}

	msgs := []Message{
		{Role: RoleSystem, Content: systemPreamble},
		{Role: RoleSystem, Content: "Current user data:\n" + grounding},
		{Role: RoleUser, Content: message},
	}

	out.send(Event{Type: EventStatus, Message: "Thinking"})

	// The greeting precedes the very first content delta, whichever pass
	// produces it, and is prefixed exactly once to the final message.
	greeted := false
	forward := func(text string) {
		if !greeted {
			greeted = true
			if greeting != "" {
				out.send(Event{Type: EventDelta, Delta: greeting})
			}
		}
		out.send(Event{Type: EventDelta, Delta: text})
	}

	firstText, calls, err := a.consume(ctx, Request{
		Messages:   msgs,
		Tools:      a.tools,
		ToolChoice: ToolsAuto,
	}, forward)
	if err != nil {
		return nil, fmt.Errorf("first completion: %w", err)
	}

	if len(calls) == 0 {
		res := &Result{AssistantMessage: greeting + firstText}
		a.recordChat(ctx, userID, displayName, message, "")
		out.send(Event{Type: EventDone, Result: res})
		return res, nil
	}

	// Exactly one tool call is honored per turn; extra calls are dropped.
	call := calls[0]
	if len(calls) > 1 {
		a.logger.Debug("model requested multiple tools, honoring first",
			"honored", call.Name, "dropped", len(calls)-1)
	}

	out.send(Event{Type: EventStatus, Message: "Running " + call.Name})

	// A disconnecting client cancels the request context. Once the model
	// has committed to a tool, the mutation, the follow-up completion and
	// the audit entry run on a detached context so the turn finishes even
	// when nobody is listening anymore.
	ctx = context.WithoutCancel(ctx)

	toolResult, err := a.dispatch(ctx, userID, call)
	if err != nil {
		return nil, err
	}

	resultJSON, err := json.Marshal(toolResult)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}

	msgs = append(msgs,
		Message{Role: RoleAssistant, Content: firstText, ToolCalls: []ToolCall{call}},
		Message{Role: RoleTool, ToolName: call.Name, Content: string(resultJSON)},
	)

	secondText, _, err := a.consume(ctx, Request{
		Messages:   msgs,
		ToolChoice: ToolsNone,
	}, forward)
	if err != nil {
		return nil, fmt.Errorf("second completion: %w", err)
	}

	res := &Result{
		Tool:             call.Name,
		ToolResult:       toolResult,
		AssistantMessage: greeting + secondText,
	}
	a.recordChat(ctx, userID, displayName, message, call.Name)
	out.send(Event{Type: EventDone, Result: res})
	return res, nil
}

// consume drains one streaming completion. Tool-call fragments are merged
// by index into whole calls. Text deltas are forwarded only until the
// first tool-call fragment arrives; text after that point still
// accumulates for the transcript but is not final-answer content.
func (a *Agent) consume(ctx context.Context, req Request, forward func(string)) (string, []ToolCall, error) {
	var text strings.Builder
	acc := make(map[int]*ToolCall)
	toolStarted := false

	for delta, err := range a.provider.Stream(ctx, req) {
		if err != nil {
			return "", nil, err
		}
		for _, c := range delta.Calls {
			toolStarted = true
			existing, ok := acc[c.Index]
			if !ok {
				merged := c
				acc[c.Index] = &merged
				continue
			}
			if existing.Name == "" {
				existing.Name = c.Name
			}
			existing.Arguments = append(existing.Arguments, c.Arguments...)
		}
		if delta.Text != "" {
			text.WriteString(delta.Text)
			if !toolStarted && forward != nil {
				forward(delta.Text)
			}
		}
	}

	indexes := make([]int, 0, len(acc))
	for i := range acc {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(acc))
	for _, i := range indexes {
		calls = append(calls, *acc[i])
	}
	return text.String(), calls, nil
}

// recordChat writes the ai_chat audit entry. Best-effort by contract.
func (a *Agent) recordChat(ctx context.Context, userID, displayName, message, tool string) {
	summary := "AI assistant answered a question"
	metadata := map[string]any{
		"type":    "ai_chat",
		"message": truncateRunes(message, 200),
	}
	if tool != "" {
		summary = "AI assistant used " + tool
		metadata["tool"] = tool
	}

	var actor *string
	if displayName != "" {
		actor = &displayName
	}
	a.activity.RecordBestEffort(ctx, userID, summary, metadata, actor)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
