package utils

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is an open key-value bag stored as a JSONB column.
// Used for call metadata and voice preferences, where the shape is
// provider- or user-defined and not worth modeling as columns.
type JSONMap map[string]any

// Value marshals the map for storage. A nil map stores as an empty object
// so downstream readers never see SQL NULL for metadata columns.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan accepts []byte or string from the driver; NULL scans as an empty map.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jsonmap: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*m = JSONMap{}
		return nil
	}
	out := JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("jsonmap: %w", err)
	}
	*m = out
	return nil
}

// Clone returns a shallow copy. Repositories hand out clones so callers
// cannot mutate stored state through a shared map.
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
