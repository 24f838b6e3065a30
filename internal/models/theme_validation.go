package models

import (
	"encoding/json"
	"strconv"
)

// ValidateTheme checks that input has the minimal theme document shape and returns it as a Theme.
// Strings and byte slices are parsed as JSON first. The only field ever defaulted is tags, which
// becomes an empty list when absent. The input map itself is not modified.
func ValidateTheme(input any) (Theme, error) {
	value, err := decodeThemeInput(input)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	switch v := value.(type) {
	case map[string]any:
		doc = v
	case Theme:
		doc = v
	case []any:
		// arrays count as objects here but can never carry a name
		return nil, &ValidationError{Reason: "name is required"}
	default:
		return nil, &ValidationError{Reason: "The theme must be a valid JSON object"}
	}
	if doc == nil {
		return nil, &ValidationError{Reason: "The theme must be a valid JSON object"}
	}

	if _, ok := doc[FieldName].(string); !ok {
		return nil, &ValidationError{Reason: "name is required"}
	}
	if _, ok := doc[FieldDisplayName].(string); !ok {
		return nil, &ValidationError{Reason: "displayName is required"}
	}
	version, ok := toNumber(doc[FieldSchemaVersion])
	if !ok {
		return nil, &ValidationError{Reason: "schemaVersion is required"}
	}
	if version != SupportedSchemaVersion {
		return nil, &ValidationError{
			Reason: "Unrecognized schemaVersion: " + strconv.FormatFloat(version, 'f', -1, 64),
		}
	}

	theme := make(Theme, len(doc)+1)
	for k, v := range doc {
		theme[k] = v
	}
	if theme[FieldTags] == nil {
		theme[FieldTags] = []any{}
	}
	return theme, nil
}

func decodeThemeInput(input any) (any, error) {
	var raw []byte
	switch v := input.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		return input, nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, &ValidationError{Reason: "The theme string must be valid JSON", Err: err}
	}
	return value, nil
}
