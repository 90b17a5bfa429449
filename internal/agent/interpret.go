package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/findez/inventory/internal/log"
)

// Single-purpose model calls used by the HTTP layer. Each forces exactly
// one function call so the answer comes back as structured JSON instead of
// prose, and each degrades gracefully when the model misbehaves.

// SearchIntent is the structured reading of a free-text search query.
type SearchIntent struct {
	Keywords []string `json:"keywords"`
	Category string   `json:"category,omitempty"`
	Location string   `json:"location,omitempty"`
}

// ParseSearchQuery asks the model to split a natural-language search query
// into keywords plus optional category and location filters. Any failure
// falls back to treating the raw query as a single keyword.
func ParseSearchQuery(ctx context.Context, provider CompletionProvider, logger log.Logger, query string) SearchIntent {
	fallback := SearchIntent{Keywords: []string{query}}
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchIntent{}
	}

	tool := Tool{
		Name:        "report_search_intent",
		Description: "Report the parsed search intent.",
		Parameters: obj("", []string{"keywords"}, map[string]*jsonschema.Schema{
			"keywords": strArray("Search keywords extracted from the query"),
			"category": str("Category filter, if the query implies one"),
			"location": str("Location filter, if the query implies one"),
		}),
	}

	completion, err := provider.Complete(ctx, Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "Parse the user's inventory search query into keywords and optional category/location filters. Report via the function call."},
			{Role: RoleUser, Content: query},
		},
		Tools:      []Tool{tool},
		ToolChoice: ForceTool(tool.Name),
	})
	if err != nil {
		logger.Warn("search query parse failed, using raw query", "error", err)
		return fallback
	}

	var intent SearchIntent
	if !decodeForcedCall(completion, tool.Name, &intent) || len(intent.Keywords) == 0 {
		return fallback
	}
	return intent
}

// BarcodeGuess is the model's best reading of a scanned barcode.
type BarcodeGuess struct {
	Known      bool    `json:"known"`
	Name       string  `json:"name,omitempty"`
	Brand      string  `json:"brand,omitempty"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// InterpretBarcode asks the model to identify a product from its barcode.
// An unidentifiable code yields Known=false rather than an error.
func InterpretBarcode(ctx context.Context, provider CompletionProvider, logger log.Logger, barcode string) BarcodeGuess {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return BarcodeGuess{}
	}

	tool := Tool{
		Name:        "report_barcode_product",
		Description: "Report the product identified from the barcode.",
		Parameters: obj("", []string{"known"}, map[string]*jsonschema.Schema{
			"known":      boolean("Whether the product could be identified"),
			"name":       str("Product name"),
			"brand":      str("Brand or manufacturer"),
			"category":   str("Product category"),
			"confidence": number("Identification confidence between 0 and 1"),
		}),
	}

	completion, err := provider.Complete(ctx, Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "Identify the product behind this barcode if you recognize the numbering scheme and product. If you cannot, report known=false. Never guess wildly."},
			{Role: RoleUser, Content: "Barcode: " + barcode},
		},
		Tools:      []Tool{tool},
		ToolChoice: ForceTool(tool.Name),
	})
	if err != nil {
		logger.Warn("barcode interpretation failed", "error", err)
		return BarcodeGuess{}
	}

	var guess BarcodeGuess
	if !decodeForcedCall(completion, tool.Name, &guess) {
		return BarcodeGuess{}
	}
	return guess
}

// SummarizeActivity asks for a one-line human summary of an action, used
// in activity feed entries. Falls back to the plain action string.
func SummarizeActivity(ctx context.Context, provider CompletionProvider, logger log.Logger, action string) string {
	completion, err := provider.Complete(ctx, Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "Rewrite the described action as one short, friendly activity-feed sentence. Respond with the sentence only."},
			{Role: RoleUser, Content: action},
		},
		ToolChoice: ToolsNone,
	})
	if err != nil || strings.TrimSpace(completion.Content) == "" {
		if err != nil {
			logger.Warn("activity summarization failed", "error", err)
		}
		return action
	}
	return strings.TrimSpace(completion.Content)
}

// decodeForcedCall extracts the arguments of the expected forced call.
func decodeForcedCall(c *Completion, name string, dst any) bool {
	for _, call := range c.ToolCalls {
		if call.Name != name {
			continue
		}
		return json.Unmarshal(call.Arguments, dst) == nil
	}
	return false
}
