package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRow(t *testing.T) {
	t.Run("minimal valid row", func(t *testing.T) {
		item, err := normalizeRow("user-1", map[string]any{
			"name":     "  M3 screws  ",
			"category": "hardware",
			"location": "drawer 2",
		})
		require.NoError(t, err)

		assert.Equal(t, "user-1", item.OwnerID)
		assert.Equal(t, "M3 screws", item.Name)
		assert.Equal(t, "hardware", item.Category)
		assert.Equal(t, "drawer 2", item.Location)
		assert.Equal(t, 1, item.Quantity, "quantity defaults to 1")
		assert.Nil(t, item.Brand)
	})

	t.Run("full row", func(t *testing.T) {
		item, err := normalizeRow("user-1", map[string]any{
			"name":            "Soldering iron",
			"category":        "tools",
			"subcategory":     "electronics",
			"brand":           "Hakko",
			"part_number":     "FX-888D",
			"tags":            []any{"bench", "soldering"},
			"confidence":      0.92,
			"quantity":        float64(2),
			"location":        "bench shelf",
			"barcode":         "4962615037351",
			"purchase_source": "hardware store",
			"notes":           "tip needs replacing",
		})
		require.NoError(t, err)

		assert.Equal(t, "Hakko", *item.Brand)
		assert.Equal(t, []string{"bench", "soldering"}, item.Tags)
		assert.Equal(t, 0.92, *item.Confidence)
		assert.Equal(t, 2, item.Quantity)
	})

	tests := []struct {
		name string
		row  map[string]any
	}{
		{"missing name", map[string]any{"category": "c", "location": "l"}},
		{"whitespace name", map[string]any{"name": "   ", "category": "c", "location": "l"}},
		{"missing category", map[string]any{"name": "n", "location": "l"}},
		{"missing location", map[string]any{"name": "n", "category": "c"}},
		{"bad quantity string", map[string]any{"name": "n", "category": "c", "location": "l", "quantity": "many"}},
		{"bad quantity type", map[string]any{"name": "n", "category": "c", "location": "l", "quantity": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeRow("user-1", tt.row)
			assert.Error(t, err)
		})
	}

	t.Run("negative quantity clamps to zero", func(t *testing.T) {
		item, err := normalizeRow("user-1", map[string]any{
			"name": "n", "category": "c", "location": "l", "quantity": float64(-3),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, item.Quantity)
	})
}

func TestCoerceQuantity(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    int
		wantErr bool
	}{
		{"nil defaults to 1", nil, 1, false},
		{"int", 5, 5, false},
		{"float truncates", 2.7, 2, false},
		{"numeric string", " 7 ", 7, false},
		{"garbage string", "lots", 0, true},
		{"bool", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceQuantity(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterUpdates(t *testing.T) {
	keys, filtered := filterUpdates(map[string]any{
		"name":       "new name",
		"quantity":   3,
		"owner_id":   "attacker", // not updatable
		"id":         "fake",     // not updatable
		"created_at": "now",      // not updatable
	})

	assert.Equal(t, []string{"name", "quantity"}, keys)
	assert.Len(t, filtered, 2)
	assert.NotContains(t, filtered, "owner_id")
}

func TestFilterUpdates_Empty(t *testing.T) {
	keys, _ := filterUpdates(map[string]any{"owner_id": "x", "bogus": 1})
	assert.Empty(t, keys)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% cotton`, escapeLike("100% cotton"))
	assert.Equal(t, `part\_no`, escapeLike("part_no"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}
