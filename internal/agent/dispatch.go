package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/findez/inventory/internal/document"
	"github.com/findez/inventory/internal/extract"
	"github.com/findez/inventory/internal/inventory"
)

// readDocumentCap bounds how much document text is handed back to the
// model, keeping prompt growth in check.
const readDocumentCap = 12_000

// dispatch executes the selected tool against the stores. The returned map
// is serialized verbatim as the tool result, including structured partial
// failures, so the model can describe exactly what happened. Only a store
// failure on the user's directly requested operation returns an error and
// ends the turn.
func (a *Agent) dispatch(ctx context.Context, userID string, call ToolCall) (map[string]any, error) {
	switch call.Name {
	case toolAddItem:
		return a.dispatchAddItem(ctx, userID, call)
	case toolAddItems:
		return a.dispatchAddItems(ctx, userID, call)
	case toolSearch:
		return a.dispatchSearch(ctx, userID, call)
	case toolUpdateItems:
		return a.dispatchUpdateItems(ctx, userID, call)
	case toolDeleteItems:
		return a.dispatchDeleteItems(ctx, userID, call)
	case toolDeleteItem:
		return a.dispatchDeleteItem(ctx, userID, call)
	case toolGrantAccess:
		return a.dispatchGrantAccess(ctx, userID, call)
	case toolReadDoc:
		return a.dispatchReadDocument(ctx, userID, call)
	default:
		a.logger.Warn("model requested unknown tool", "tool", call.Name)
		return map[string]any{"error": "Unknown tool"}, nil
	}
}

func (a *Agent) dispatchAddItem(ctx context.Context, userID string, call ToolCall) (map[string]any, error) {
	item, err := a.items.CreateOne(ctx, userID, decodeFields(call.Arguments))
	if errors.Is(err, inventory.ErrValidation) {
		return map[string]any{"error": err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"created": item}, nil
}

func (a *Agent) dispatchAddItems(ctx context.Context, userID string, call ToolCall) (map[string]any, error) {
	var args addItemsArgs
	decode(call.Arguments, &args)

	created, failures, err := a.items.CreateBulk(ctx, userID, args.Items)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"created":  created,
		"failures": rowFailures(failures),
	}, nil
}

func (a *Agent) dispatchSearch(ctx context.Context, userID string, call ToolCall) (map[string]any, error) {
	var args searchArgs
	decode(call.Arguments, &args)

	items, err := a.items.Search(ctx, userID, args.Query)
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": items, "count": len(items)}, nil
}

// resolveCandidates shares the bulk-mutation safety rails: an empty query
// resolves to an empty candidate set (never "all items"), and a positive
// limit caps the set.
func (a *Agent) resolveCandidates(ctx context.Context, userID, query string, limit int) ([]*inventory.Item, error) {
	if strings.TrimSpace(query) == "" {
		return []*inventory.Item{}, nil
	}
	candidates, err := a.items.Search(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (a *Agent) dispatchUpdateItems(ctx context.Context, userID string, call ToolCall) (map[string]any, error) {
	var args updateItemsArgs
	decode(call.Arguments, &args)

	candidates, err := a.resolveCandidates(ctx, userID, args.Query, args.Limit)
	if err != nil {
		return nil, err
	}

	updated := []*inventory.Item{}
	failures := []map[string]any{}
	for _, item := range candidates {
		if item.ID == uuid.Nil {
			failures = append(failures, map[string]any{"name": item.Name, "reason": "missing id"})
			continue
		}
		u, err := a.items.Update(ctx, userID, item.ID, args.Updates)
		switch {
		case errors.Is(err, inventory.ErrNoFields):
			failures = append(failures, map[string]any{"id": item.ID.String(), "reason": "no updatable fields"})
		case errors.Is(err, inventory.ErrNotFound):
			failures = append(failures, map[string]any{"id": item.ID.String(), "reason": "not found"})
		case errors.Is(err, inventory.ErrValidation):
			failures = append(failures, map[string]any{"id": item.ID.String(), "reason": err.Error()})
		case err != nil:
			return nil, err
		default:
			updated = append(updated, u)
		}
	}
	return map[string]any{"updated": updated, "failures": failures}, nil
}

func (a *Agent) dispatchDeleteItems(ctx context.Context, userID string, call ToolCall) (map[string]any, error) {
	var args deleteItemsArgs
	decode(call.Arguments, &args)

	candidates, err := a.resolveCandidates(ctx, userID, args.Query, args.Limit)
	if err != nil {
		return nil, err
	}

	deleted := []string{}
	failures := []map[string]any{}
	for _, item := range candidates {
		if item.ID == uuid.Nil {
			failures = append(failures, map[string]any{"name": item.Name, "reason": "missing id"})
			continue
		}
		err := a.items.Delete(ctx, userID, item.ID)
		switch {
		case errors.Is(err, inventory.ErrNotFound):
			failures = append(failures, map[string]any{"id": item.ID.String(), "reason": "not found"})
		case err != nil:
			return nil, err
		default:
			deleted = append(deleted, item.ID.String())
		}
	}
	return map[string]any{"deleted": deleted, "failures": failures}, nil
}

func (a *Agent) dispatchDeleteItem(ctx context.Context, userID string, call ToolCall) (map[string]any, error) {
	var args deleteItemArgs
	decode(call.Arguments, &args)

	id, err := uuid.Parse(args.ItemID)
	if err != nil {
		return map[string]any{"deleted": false, "error": "invalid item_id"}, nil
	}

	err = a.items.Delete(ctx, userID, id)
	if errors.Is(err, inventory.ErrNotFound) {
		return map[string]any{"deleted": false}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": true, "item_id": id.String()}, nil
}

func (a *Agent) dispatchGrantAccess(ctx context.Context, userID string, call ToolCall) (map[string]any, error) {
	var args documentArgs
	decode(call.Arguments, &args)

	if args.StoragePath == "" {
		return map[string]any{"granted": false, "error": "storage_path is required"}, nil
	}

	granted, err := a.docs.GrantAIAccess(ctx, userID, args.StoragePath)
	if err != nil {
		return nil, err
	}
	return map[string]any{"granted": granted}, nil
}

// dispatchReadDocument enforces the consent gate: without a granted flag it
// returns permission_required and never touches blob storage, no matter
// what the model asked for.
func (a *Agent) dispatchReadDocument(ctx context.Context, userID string, call ToolCall) (map[string]any, error) {
	var args documentArgs
	decode(call.Arguments, &args)

	if args.StoragePath == "" {
		return map[string]any{"ok": false, "error": "storage_path is required"}, nil
	}

	granted, err := a.docs.AIAccessGranted(ctx, userID, args.StoragePath)
	if err != nil {
		return nil, err
	}
	if !granted {
		return map[string]any{"ok": false, "error": "permission_required"}, nil
	}

	doc, err := a.docs.ByPath(ctx, userID, args.StoragePath)
	if errors.Is(err, document.ErrNotFound) {
		return map[string]any{"ok": false, "error": "document not found"}, nil
	}
	if err != nil {
		return nil, err
	}

	text, err := a.documentText(ctx, doc)
	if err != nil {
		a.logger.Warn("document text unavailable", "storage_path", doc.StoragePath, "error", err)
		return map[string]any{"ok": false, "error": "no text available"}, nil
	}

	truncated := len(text) > readDocumentCap
	return map[string]any{
		"ok":        true,
		"file_name": doc.FileName,
		"text":      extract.Truncate(text, readDocumentCap),
		"truncated": truncated,
	}, nil
}

// documentText returns cached extracted text, falling back to a fresh
// fetch-and-extract when no cache entry exists yet. The fresh extraction
// is cached best-effort for the next read.
func (a *Agent) documentText(ctx context.Context, doc *document.Document) (string, error) {
	cached, err := a.docs.TextByID(ctx, doc.ID)
	if err == nil {
		return cached.Content, nil
	}
	if !errors.Is(err, document.ErrNoText) {
		return "", err
	}

	body, err := a.blobs.Get(doc.StoragePath)
	if err != nil {
		return "", err
	}
	defer body.Close()

	text, err := extract.FromUpload(doc.FileName, body)
	if err != nil {
		return "", err
	}

	if cacheErr := a.docs.UpsertText(ctx, doc.ID, text, len(text) >= extract.MaxTextChars); cacheErr != nil {
		a.logger.Warn("caching document text failed", "document_id", doc.ID, "error", cacheErr)
	}
	return text, nil
}

func rowFailures(failures []inventory.RowError) []map[string]any {
	out := make([]map[string]any, 0, len(failures))
	for _, f := range failures {
		out = append(out, map[string]any{"index": f.Index, "reason": f.Reason})
	}
	return out
}
