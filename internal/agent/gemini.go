package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/findez/inventory/internal/log"
)

// GeminiProvider implements CompletionProvider over the Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      log.Logger
}

// NewGeminiProvider creates a Gemini-backed completion provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, temperature float32, logger log.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Complete implements CompletionProvider.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	contents, cfg, err := p.convert(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	completion := &Completion{}
	idx := 0
	text, calls := partsFromResponse(resp, &idx)
	completion.Content = text
	completion.ToolCalls = calls
	return completion, nil
}

// Stream implements CompletionProvider.
func (p *GeminiProvider) Stream(ctx context.Context, req Request) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		contents, cfg, err := p.convert(req)
		if err != nil {
			yield(Delta{}, err)
			return
		}

		idx := 0
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, cfg) {
			if err != nil {
				yield(Delta{}, fmt.Errorf("streaming content: %w", err))
				return
			}
			text, calls := partsFromResponse(resp, &idx)
			if text == "" && len(calls) == 0 {
				continue
			}
			if !yield(Delta{Text: text, Calls: calls}, nil) {
				return
			}
		}
	}
}

// convert maps a Request onto genai contents and generation config.
// System messages become the system instruction; everything else maps to
// user/model contents in order.
func (p *GeminiProvider) convert(req Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	var systemParts []string
	var contents []*genai.Content

	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			systemParts = append(systemParts, m.Content)

		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))

		case RoleAssistant:
			parts := []*genai.Part{}
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args, err := argsToMap(tc.Arguments)
				if err != nil {
					return nil, nil, fmt.Errorf("encoding tool call %q: %w", tc.Name, err)
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args},
				})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})

		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.ToolName,
						Response: resultToMap(m.Content),
					},
				}},
			})

		default:
			return nil, nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	}
	if len(systemParts) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}

	if len(req.Tools) > 0 && req.ToolChoice.Mode != ChoiceNone {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	cfg.ToolConfig = toolConfig(req.ToolChoice)

	return contents, cfg, nil
}

// toolConfig maps ToolChoice onto the Gemini function-calling config.
func toolConfig(choice ToolChoice) *genai.ToolConfig {
	fc := &genai.FunctionCallingConfig{}
	switch choice.Mode {
	case ChoiceNone:
		fc.Mode = genai.FunctionCallingConfigModeNone
	case ChoiceForced:
		fc.Mode = genai.FunctionCallingConfigModeAny
		if choice.Tool != "" {
			fc.AllowedFunctionNames = []string{choice.Tool}
		}
	default:
		fc.Mode = genai.FunctionCallingConfigModeAuto
	}
	return &genai.ToolConfig{FunctionCallingConfig: fc}
}

// partsFromResponse collects text and tool calls from one response chunk.
// idx numbers tool calls across the whole stream so fragments merge stably.
func partsFromResponse(resp *genai.GenerateContentResponse, idx *int) (string, []ToolCall) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var text strings.Builder
	var calls []ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			raw, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				raw = nil // dispatcher degrades to empty args
			}
			calls = append(calls, ToolCall{
				Index:     *idx,
				Name:      part.FunctionCall.Name,
				Arguments: raw,
			})
			*idx++
		}
	}
	return text.String(), calls
}

// argsToMap decodes raw tool-call arguments for the wire format.
func argsToMap(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// resultToMap decodes a serialized tool result; non-object results are
// wrapped so the wire format stays a JSON object.
func resultToMap(content string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(content), &m); err == nil {
		return m
	}
	return map[string]any{"output": content}
}

// toGenaiSchema converts a JSON schema to the Gemini schema subset:
// type, description, enum, properties/required, items.
func toGenaiSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{Description: s.Description}

	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
		if len(s.Properties) > 0 {
			out.Properties = make(map[string]*genai.Schema, len(s.Properties))
			for name, prop := range s.Properties {
				out.Properties[name] = toGenaiSchema(prop)
			}
		}
		out.Required = s.Required
	case "array":
		out.Type = genai.TypeArray
		out.Items = toGenaiSchema(s.Items)
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}

	for _, e := range s.Enum {
		if str, ok := e.(string); ok {
			out.Enum = append(out.Enum, str)
		}
	}

	return out
}
