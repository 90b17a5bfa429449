package agent

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/google/jsonschema-go/jsonschema"
)

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the per-turn conversation sequence.
// Tool-result messages carry the serialized result in Content and the
// originating tool in ToolName.
type Message struct {
	Role      Role
	Content   string
	ToolCalls []ToolCall
	ToolName  string
}

// ToolCall is a model-issued request to invoke one named operation.
// Arguments is raw JSON; decoding is the dispatcher's job.
type ToolCall struct {
	Index     int
	Name      string
	Arguments json.RawMessage
}

// Tool describes one callable operation offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// ToolChoice controls whether and which tools the model may call.
type ToolChoice struct {
	Mode ChoiceMode
	Tool string // forced tool name, only for ChoiceForced
}

// ChoiceMode enumerates tool-choice policies.
type ChoiceMode int

const (
	ChoiceAuto ChoiceMode = iota
	ChoiceNone
	ChoiceForced
)

var (
	// ToolsAuto lets the model decide whether to call a tool.
	ToolsAuto = ToolChoice{Mode: ChoiceAuto}

	// ToolsNone forbids tool calls (plain text only).
	ToolsNone = ToolChoice{Mode: ChoiceNone}
)

// ForceTool requires the model to call the named tool.
func ForceTool(name string) ToolChoice {
	return ToolChoice{Mode: ChoiceForced, Tool: name}
}

// Request is one completion call.
type Request struct {
	Messages   []Message
	Tools      []Tool
	ToolChoice ToolChoice
}

// Completion is the model's single-shot answer: text, tool calls, or both.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Delta is one streaming increment. Either or both fields may be set.
type Delta struct {
	Text  string
	Calls []ToolCall
}

// CompletionProvider wraps a chat-completion API with function calling.
//
// Provider failures are fatal for the turn: no retry happens at this layer
// because a failed generation has no safe partial-result interpretation.
type CompletionProvider interface {
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Stream yields deltas lazily. The sequence is consumed once and is
	// not restartable.
	Stream(ctx context.Context, req Request) iter.Seq2[Delta, error]
}
