package agent

import "github.com/google/jsonschema-go/jsonschema"

// Canonical tool names. The registry must stay structurally in sync with
// the dispatcher: every name listed here has a dispatch arm, and vice versa.
const (
	toolAddItem     = "add_inventory_item"
	toolAddItems    = "add_inventory_items"
	toolSearch      = "search_inventory"
	toolUpdateItems = "update_inventory_items"
	toolDeleteItems = "delete_inventory_items"
	toolDeleteItem  = "delete_inventory_item"
	toolGrantAccess = "grant_document_ai_access"
	toolReadDoc     = "read_document_text"
)

func str(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func integer(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

func number(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: desc}
}

func boolean(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func strArray(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Description: desc, Items: str("")}
}

func obj(desc string, required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "object",
		Description: desc,
		Properties:  props,
		Required:    required,
	}
}

// itemFields is the parameter contract shared by the single and batch add
// tools. Matches the updatable column set plus the required triple.
func itemFields() map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"name":            str("Item name"),
		"category":        str("Item category, e.g. tools, electronics, hardware"),
		"subcategory":     str("Finer-grained category"),
		"brand":           str("Manufacturer or brand"),
		"part_number":     str("Manufacturer part number"),
		"tags":            {Type: "array", Description: "Free-form tags", Items: str("")},
		"confidence":      number("Recognition confidence between 0 and 1"),
		"quantity":        integer("How many, defaults to 1"),
		"location":        str("Where the item is stored"),
		"image_url":       str("Image URL if available"),
		"barcode":         str("Barcode value if known"),
		"purchase_source": str("Where the item was bought"),
		"notes":           str("Free-form notes"),
	}
}

// toolCatalog returns the static tool set offered to the model each turn.
func toolCatalog() []Tool {
	required := []string{"name", "category", "location"}

	return []Tool{
		{
			Name:        toolAddItem,
			Description: "Add a single item to the user's inventory.",
			Parameters:  obj("", required, itemFields()),
		},
		{
			Name:        toolAddItems,
			Description: "Add multiple items to the user's inventory in one batch.",
			Parameters: obj("", []string{"items"}, map[string]*jsonschema.Schema{
				"items": {
					Type:        "array",
					Description: "Items to add",
					Items:       obj("", required, itemFields()),
				},
			}),
		},
		{
			Name:        toolSearch,
			Description: "Search the user's inventory by keyword across name, category, location, notes, purchase source and barcode.",
			Parameters: obj("", []string{"query"}, map[string]*jsonschema.Schema{
				"query": str("Search keywords"),
			}),
		},
		{
			Name:        toolUpdateItems,
			Description: "Update every inventory item matching a search query. An empty query matches nothing.",
			Parameters: obj("", []string{"query", "updates"}, map[string]*jsonschema.Schema{
				"query":   str("Search query selecting the items to update"),
				"updates": obj("Fields to change on each matched item", nil, itemFields()),
				"limit":   integer("Cap on how many matched items to update"),
			}),
		},
		{
			Name:        toolDeleteItems,
			Description: "Delete every inventory item matching a search query. An empty query matches nothing.",
			Parameters: obj("", []string{"query"}, map[string]*jsonschema.Schema{
				"query": str("Search query selecting the items to delete"),
				"limit": integer("Cap on how many matched items to delete"),
			}),
		},
		{
			Name:        toolDeleteItem,
			Description: "Delete one inventory item by its id.",
			Parameters: obj("", []string{"item_id"}, map[string]*jsonschema.Schema{
				"item_id": str("Id of the item to delete"),
			}),
		},
		{
			Name:        toolGrantAccess,
			Description: "Grant the assistant permission to read a document's contents. Only call this when the user explicitly agrees.",
			Parameters: obj("", []string{"storage_path"}, map[string]*jsonschema.Schema{
				"storage_path": str("Storage path of the document, as listed in the grounding context"),
			}),
		},
		{
			Name:        toolReadDoc,
			Description: "Read the extracted text of a document the user has granted access to.",
			Parameters: obj("", []string{"storage_path"}, map[string]*jsonschema.Schema{
				"storage_path": str("Storage path of the document, as listed in the grounding context"),
			}),
		},
	}
}
