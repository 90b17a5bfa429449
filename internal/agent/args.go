package agent

import "encoding/json"

// Typed argument structs, one per tool. Raw JSON from the model is decoded
// into these at the dispatch boundary; a parse failure degrades to the
// zero value and the dispatcher applies its own required-field checks.

type addItemsArgs struct {
	Items []map[string]any `json:"items"`
}

type searchArgs struct {
	Query string `json:"query"`
}

type updateItemsArgs struct {
	Query   string         `json:"query"`
	Updates map[string]any `json:"updates"`
	Limit   int            `json:"limit"`
}

type deleteItemsArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type deleteItemArgs struct {
	ItemID string `json:"item_id"`
}

type documentArgs struct {
	StoragePath string `json:"storage_path"`
}

// decode unmarshals raw arguments into dst, tolerating empty or malformed
// JSON. Returns false when the payload could not be parsed; dst is left at
// its zero value in that case.
func decode(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// decodeFields unmarshals raw arguments into a loose field map (the single
// add tool takes the item's fields at the top level).
func decodeFields(raw json.RawMessage) map[string]any {
	var m map[string]any
	if !decode(raw, &m) {
		return map[string]any{}
	}
	return m
}
