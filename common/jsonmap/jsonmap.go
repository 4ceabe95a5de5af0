package jsonmap

import (
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap represents a JSON object as a map.
type JSONMap map[string]interface{}

// Parse unmarshals raw JSON into a JSONMap.
func Parse(raw []byte) (JSONMap, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("JSON string is empty")
	}

	var m JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON object: %w", err)
	}

	return m, nil
}

// ToJSON serializes the JSONMap to JSON.
func (m *JSONMap) ToJSON() ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("JSONMap is nil")
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSONMap: %w", err)
	}

	return data, nil
}

// String returns the string value stored under key, or "" when the key is
// absent or not a string.
func (m JSONMap) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Map returns the nested object stored under key, or nil.
func (m JSONMap) Map(key string) JSONMap {
	inner, ok := m[key].(map[string]interface{})
	if !ok {
		return nil
	}
	return JSONMap(inner)
}

// Slice returns the array stored under key, or nil.
func (m JSONMap) Slice(key string) []interface{} {
	arr, _ := m[key].([]interface{})
	return arr
}

// Strings returns the value under key coerced to a string slice. A single
// string value becomes a one-element slice.
func (m JSONMap) Strings(key string) []string {
	switch v := m[key].(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Time parses the RFC 3339 timestamp stored under key. The zero time is
// returned when the key is absent or unparsable.
func (m JSONMap) Time(key string) time.Time {
	s, ok := m[key].(string)
	if !ok {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Copy returns a shallow copy of the JSONMap.
func (m JSONMap) Copy() JSONMap {
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
