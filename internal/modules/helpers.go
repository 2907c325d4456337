package modules

import (
	"encoding/json"
	"fmt"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// asMap asserts a module sub-state or payload into its map form.
func asMap(v state.Value) (map[string]state.Value, error) {
	m, ok := v.(map[string]state.Value)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	return m, nil
}

// asList asserts a slice-of-items value.
func asList(v state.Value) ([]state.Value, error) {
	if v == nil {
		return nil, nil
	}
	l, ok := v.([]state.Value)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	return l, nil
}

// itemID extracts the "id" field of a list item.
func itemID(v state.Value) (string, bool) {
	m, ok := v.(map[string]state.Value)
	if !ok {
		return "", false
	}
	id, ok := m["id"].(string)
	return id, ok && id != ""
}

// decodeValue unmarshals an API response into plain tree data.
func decodeValue(raw json.RawMessage) (state.Value, error) {
	var v state.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding server response: %w", err)
	}
	return v, nil
}

func unknownAction(module, action string) error {
	return fmt.Errorf("module %s has no mutation %q", module, action)
}
