// Package attrs resolves per-vassal attributes by key.
//
// Single-valued keys are read with Get, repeatable keys with GetMulti. A key
// declared several times keeps its declaration order; Get returns the first
// value.
package attrs

// Store is the attribute lookup handed to descriptor resolution.
type Store interface {
	// Get returns the first value declared for key.
	Get(key string) (string, bool)

	// GetMulti returns every value declared for key, in declaration order.
	GetMulti(key string) []string
}

// Map is an in-memory Store.
type Map map[string][]string

// Set appends values to key.
func (m Map) Set(key string, values ...string) Map {
	m[key] = append(m[key], values...)
	return m
}

// Get implements Store
func (m Map) Get(key string) (string, bool) {
	values := m[key]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// GetMulti implements Store
func (m Map) GetMulti(key string) []string {
	values := m[key]
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
