package mcpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"tablestore/internal/domain"
)

// parseJSON decodes a JSON-valued tool argument into target. Clients send
// these either as a JSON string or as an already decoded value; both are
// accepted.
func parseJSON(args map[string]any, key string, target any) (bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return false, nil
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return false, nil
		}
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return false, domain.Validation("%s: %v", key, err)
		}
		data = b
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, domain.Validation("%s must be valid JSON: %v", key, err)
	}
	return true, nil
}

func getString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func requireString(args map[string]any, key string) (string, error) {
	if s := getString(args, key); s != "" {
		return s, nil
	}
	return "", domain.Validation("%s is required", key)
}

func getBool(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// optBool reports the value of key and whether it was supplied.
func optBool(args map[string]any, key string) (*bool, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case bool:
		return &v, nil
	case string:
		b := strings.EqualFold(v, "true")
		if !b && !strings.EqualFold(v, "false") {
			return nil, domain.Validation("%s must be a boolean", key)
		}
		return &b, nil
	}
	return nil, domain.Validation("%s must be a boolean", key)
}

func getInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscan(v, &n); err == nil {
			return n
		}
	}
	return fallback
}

func strPtr(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func boolPtr(v bool) *bool { return &v }
