// Package inventory provides the item catalog backed by PostgreSQL.
//
// All operations are owner-scoped: an owner never sees or mutates another
// owner's rows. Write paths validate and normalize input before touching
// the database.
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the item does not exist for this owner.
	ErrNotFound = errors.New("item not found")

	// ErrNoFields indicates an update carried no updatable fields.
	ErrNoFields = errors.New("no updatable fields")

	// ErrValidation tags per-row input failures so callers can separate
	// them from store failures.
	ErrValidation = errors.New("validation failed")
)

// Item is a single inventory entry.
type Item struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	Subcategory    *string    `json:"subcategory,omitempty"`
	Brand          *string    `json:"brand,omitempty"`
	PartNumber     *string    `json:"part_number,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Confidence     *float64   `json:"confidence,omitempty"`
	Quantity       int        `json:"quantity"`
	Location       string     `json:"location"`
	ImageURL       *string    `json:"image_url,omitempty"`
	Barcode        *string    `json:"barcode,omitempty"`
	PurchaseSource *string    `json:"purchase_source,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// updatableFields is the allow-list for partial updates. Anything outside
// this set is silently dropped so callers (and the model) cannot touch
// ownership or timestamps.
var updatableFields = map[string]bool{
	"name":            true,
	"category":        true,
	"subcategory":     true,
	"brand":           true,
	"part_number":     true,
	"tags":            true,
	"confidence":      true,
	"quantity":        true,
	"location":        true,
	"image_url":       true,
	"barcode":         true,
	"purchase_source": true,
	"notes":           true,
}

// filterUpdates drops keys outside the allow-list and returns the surviving
// fields in deterministic key order (stable SQL generation, stable tests).
func filterUpdates(fields map[string]any) ([]string, map[string]any) {
	filtered := make(map[string]any, len(fields))
	for k, v := range fields {
		if updatableFields[k] {
			filtered[k] = v
		}
	}
	keys := make([]string, 0, len(filtered))
	for k := range filtered {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, filtered
}

// RowError describes why a single bulk-create row was rejected.
type RowError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// normalizeRow validates one bulk-create row and produces an Item ready for
// insertion. Required fields are name, category and location (whitespace
// trimmed). Quantity defaults to 1, coerces from numbers and numeric
// strings, and is clamped to zero when negative.
func normalizeRow(ownerID string, row map[string]any) (*Item, error) {
	name := strings.TrimSpace(stringField(row, "name"))
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	category := strings.TrimSpace(stringField(row, "category"))
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrValidation)
	}
	location := strings.TrimSpace(stringField(row, "location"))
	if location == "" {
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}

	quantity, err := coerceQuantity(row["quantity"])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if quantity < 0 {
		quantity = 0
	}

	item := &Item{
		OwnerID:        ownerID,
		Name:           name,
		Category:       category,
		Location:       location,
		Quantity:       quantity,
		Subcategory:    optionalString(row, "subcategory"),
		Brand:          optionalString(row, "brand"),
		PartNumber:     optionalString(row, "part_number"),
		ImageURL:       optionalString(row, "image_url"),
		Barcode:        optionalString(row, "barcode"),
		PurchaseSource: optionalString(row, "purchase_source"),
		Notes:          optionalString(row, "notes"),
		Tags:           stringSlice(row["tags"]),
	}

	if c, ok := row["confidence"]; ok {
		if f, ok := c.(float64); ok {
			item.Confidence = &f
		}
	}

	return item, nil
}

// coerceQuantity converts a loosely-typed quantity to an int.
// Missing or nil means the default of 1. Fractional floats truncate.
func coerceQuantity(v any) (int, error) {
	switch q := v.(type) {
	case nil:
		return 1, nil
	case int:
		return q, nil
	case int64:
		return int(q), nil
	case float64:
		return int(q), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(q))
		if err != nil {
			return 0, fmt.Errorf("invalid quantity %q", q)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("invalid quantity type %T", v)
	}
}

func stringField(row map[string]any, key string) string {
	if s, ok := row[key].(string); ok {
		return s
	}
	return ""
}

func optionalString(row map[string]any, key string) *string {
	s, ok := row[key].(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
