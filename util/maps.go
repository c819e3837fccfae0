package util

import "encoding/json"

// ToMap converts a typed value to its JSON map form so dotted-path
// lookups can run over it.
func ToMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
