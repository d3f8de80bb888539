// Package session provides the session value mapping and the flash queue
// kept inside it. Both are plain data; persistence to the signed cookie lives
// in the web package.
package session

import (
	"encoding/json"
	"maps"
	"slices"
)

// CookieName is the name of the cookie that carries the whole session.
const CookieName = "__waterspout_sessions__"

// Values is the session mapping. Values must be JSON-serializable.
// Numbers read back from a cookie decode as float64; use the typed
// accessors to avoid caring.
type Values map[string]any

// New returns an empty mapping.
func New() Values {
	return make(Values)
}

// Get returns the value for key, or nil when absent.
func (v Values) Get(key string) any {
	return v[key]
}

// Lookup returns the value for key and whether it was present.
func (v Values) Lookup(key string) (any, bool) {
	val, ok := v[key]
	return val, ok
}

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// Set stores value under key.
func (v Values) Set(key string, value any) {
	v[key] = value
}

// Delete removes key. Deleting an absent key is a no-op.
func (v Values) Delete(key string) {
	delete(v, key)
}

// Len returns the number of keys.
func (v Values) Len() int {
	return len(v)
}

// Keys returns the keys in sorted order.
func (v Values) Keys() []string {
	return slices.Sorted(maps.Keys(v))
}

// Clear removes every key.
func (v Values) Clear() {
	clear(v)
}

// GetString returns the value for key if it is a string.
func (v Values) GetString(key string) string {
	s, _ := v[key].(string)
	return s
}

// GetInt returns the value for key as an int. JSON numbers decoded as
// float64 are converted when integral.
func (v Values) GetInt(key string) (int, bool) {
	switch n := v[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// GetBool returns the value for key if it is a bool.
func (v Values) GetBool(key string) bool {
	b, _ := v[key].(bool)
	return b
}

// Encode serializes the mapping to JSON.
func (v Values) Encode() ([]byte, error) {
	return json.Marshal(map[string]any(v))
}

// Decode parses a JSON object into a mapping. A JSON null decodes to an
// empty mapping.
func Decode(data []byte) (Values, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return New(), nil
	}
	return Values(m), nil
}
