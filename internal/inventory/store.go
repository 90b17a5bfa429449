package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findez/inventory/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// itemCols is the standard SELECT column list for scanItems.
const itemCols = `id, owner_id, name, category, subcategory, brand, part_number,
	tags, confidence, quantity, location, image_url, barcode,
	purchase_source, notes, created_at, updated_at`

// searchColumns are the text columns matched by substring search.
var searchColumns = []string{"name", "category", "location", "notes", "purchase_source", "barcode"}

// Store manages inventory items backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates an inventory Store.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Get returns a single item. Returns ErrNotFound when no row matches the
// owner and id.
func (s *Store) Get(ctx context.Context, ownerID string, id uuid.UUID) (*Item, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemCols+` FROM items WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}
	return item, nil
}

// List returns all items for an owner, newest first.
func (s *Store) List(ctx context.Context, ownerID string) ([]*Item, error) {
	var items []*Item
	err := withRetry(ctx, s.logger, "list items", func() error {
		rows, err := s.pool.Query(ctx,
			`SELECT `+itemCols+` FROM items WHERE owner_id = $1 ORDER BY created_at DESC`,
			ownerID,
		)
		if err != nil {
			return fmt.Errorf("listing items: %w", err)
		}
		defer rows.Close()
		items, err = scanItems(rows)
		return err
	})
	return items, err
}

// Search returns items whose text columns contain the query, case-insensitive.
// An empty or whitespace-only query returns the full list, same ordering.
func (s *Store) Search(ctx context.Context, ownerID, query string) ([]*Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, ownerID)
	}

	pattern := "%" + escapeLike(query) + "%"
	conds := make([]string, len(searchColumns))
	for i, col := range searchColumns {
		conds[i] = col + ` ILIKE $2`
	}

	var items []*Item
	err := withRetry(ctx, s.logger, "search items", func() error {
		rows, err := s.pool.Query(ctx,
			`SELECT `+itemCols+` FROM items
			 WHERE owner_id = $1 AND (`+strings.Join(conds, " OR ")+`)
			 ORDER BY created_at DESC`,
			ownerID, pattern,
		)
		if err != nil {
			return fmt.Errorf("searching items: %w", err)
		}
		defer rows.Close()
		items, err = scanItems(rows)
		return err
	})
	return items, err
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Create inserts a single item. The item must already be normalized
// (see normalizeRow); Create assigns ID and timestamps from the database.
func (s *Store) Create(ctx context.Context, item *Item) (*Item, error) {
	var created *Item
	err := withRetry(ctx, s.logger, "create item", func() error {
		row := s.pool.QueryRow(ctx,
			`INSERT INTO items (owner_id, name, category, subcategory, brand, part_number,
			    tags, confidence, quantity, location, image_url, barcode, purchase_source, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 RETURNING `+itemCols,
			item.OwnerID, item.Name, item.Category, item.Subcategory, item.Brand,
			item.PartNumber, item.Tags, item.Confidence, item.Quantity, item.Location,
			item.ImageURL, item.Barcode, item.PurchaseSource, item.Notes,
		)
		var err error
		created, err = scanItem(row)
		if err != nil {
			return fmt.Errorf("inserting item: %w", err)
		}
		return nil
	})
	return created, err
}

// CreateOne validates a loosely-typed row and inserts it.
func (s *Store) CreateOne(ctx context.Context, ownerID string, row map[string]any) (*Item, error) {
	item, err := normalizeRow(ownerID, row)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, item)
}

// createValuesWidth is the number of bind parameters per inserted row.
const createValuesWidth = 14

// CreateBulk validates every row, then inserts the valid ones in a single
// multi-row INSERT. Invalid rows are reported in the returned RowError
// slice and do not block the rest; a database failure fails the whole
// batch, reported per valid row.
func (s *Store) CreateBulk(ctx context.Context, ownerID string, rows []map[string]any) ([]*Item, []RowError, error) {
	valid := make([]*Item, 0, len(rows))
	indexes := make([]int, 0, len(rows))
	var failures []RowError

	for i, row := range rows {
		item, err := normalizeRow(ownerID, row)
		if err != nil {
			failures = append(failures, RowError{Index: i, Reason: err.Error()})
			continue
		}
		valid = append(valid, item)
		indexes = append(indexes, i)
	}
	if len(valid) == 0 {
		return []*Item{}, failures, nil
	}

	placeholders := make([]string, len(valid))
	args := make([]any, 0, len(valid)*createValuesWidth)
	for i, item := range valid {
		marks := make([]string, createValuesWidth)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", i*createValuesWidth+j+1)
		}
		placeholders[i] = "(" + strings.Join(marks, ", ") + ")"
		args = append(args,
			item.OwnerID, item.Name, item.Category, item.Subcategory, item.Brand,
			item.PartNumber, item.Tags, item.Confidence, item.Quantity, item.Location,
			item.ImageURL, item.Barcode, item.PurchaseSource, item.Notes,
		)
	}

	var created []*Item
	err := withRetry(ctx, s.logger, "bulk create items", func() error {
		rows, err := s.pool.Query(ctx,
			`INSERT INTO items (owner_id, name, category, subcategory, brand, part_number,
			    tags, confidence, quantity, location, image_url, barcode, purchase_source, notes)
			 VALUES `+strings.Join(placeholders, ", ")+`
			 RETURNING `+itemCols,
			args...,
		)
		if err != nil {
			return fmt.Errorf("bulk inserting items: %w", err)
		}
		defer rows.Close()
		created, err = scanItems(rows)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return []*Item{}, failures, ctx.Err()
		}
		s.logger.Warn("bulk create batch failed", "rows", len(valid), "error", err)
		for _, i := range indexes {
			failures = append(failures, RowError{Index: i, Reason: "database error"})
		}
		return []*Item{}, failures, nil
	}

	return created, failures, nil
}

// Update applies a partial update. Fields outside the allow-list are
// dropped; if nothing survives the filter, Update returns ErrNoFields
// without touching storage. Returns ErrNotFound when the item does not
// exist for this owner.
func (s *Store) Update(ctx context.Context, ownerID string, id uuid.UUID, fields map[string]any) (*Item, error) {
	keys, filtered := filterUpdates(fields)
	if len(keys) == 0 {
		return nil, ErrNoFields
	}

	set := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+2)
	args = append(args, ownerID, id)
	for _, k := range keys {
		v, err := coerceUpdateValue(k, filtered[k])
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", k, len(args)))
	}
	set = append(set, "updated_at = now()")

	var updated *Item
	err := withRetry(ctx, s.logger, "update item", func() error {
		row := s.pool.QueryRow(ctx,
			`UPDATE items SET `+strings.Join(set, ", ")+`
			 WHERE owner_id = $1 AND id = $2
			 RETURNING `+itemCols,
			args...,
		)
		var err error
		updated, err = scanItem(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("updating item %s: %w", id, err)
		}
		return nil
	})
	return updated, err
}

// coerceUpdateValue converts loosely-typed update values to their column types.
func coerceUpdateValue(key string, v any) (any, error) {
	switch key {
	case "quantity":
		q, err := coerceQuantity(v)
		if err != nil {
			return nil, err
		}
		if q < 0 {
			q = 0
		}
		return q, nil
	case "tags":
		return stringSlice(v), nil
	default:
		return v, nil
	}
}

// Delete removes a single item. Returns ErrNotFound when no row matches.
func (s *Store) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	return withRetry(ctx, s.logger, "delete item", func() error {
		tag, err := s.pool.Exec(ctx,
			`DELETE FROM items WHERE owner_id = $1 AND id = $2`,
			ownerID, id,
		)
		if err != nil {
			return fmt.Errorf("deleting item %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// scanItem reads one Item from a pgx.Row.
func scanItem(row pgx.Row) (*Item, error) {
	item := &Item{}
	err := row.Scan(
		&item.ID, &item.OwnerID, &item.Name, &item.Category,
		&item.Subcategory, &item.Brand, &item.PartNumber,
		&item.Tags, &item.Confidence, &item.Quantity, &item.Location,
		&item.ImageURL, &item.Barcode, &item.PurchaseSource, &item.Notes,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// scanItems reads Item structs from pgx.Rows (standard column set).
func scanItems(rows pgx.Rows) ([]*Item, error) {
	items := []*Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}
