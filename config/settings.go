package config

import (
	"strconv"
	"sync"
	"time"
)

// Settings is a key/value store that delegates lookups of absent keys
// to its parent, forming a chain from a sub-router up to the application.
type Settings struct {
	mu     sync.RWMutex
	values map[string]any
	parent *Settings
}

// NewSettings creates settings seeded with defaults.
func NewSettings(defaults map[string]any) *Settings {
	s := &Settings{values: make(map[string]any, len(defaults))}
	for k, v := range defaults {
		s.values[k] = v
	}
	return s
}

// SetParent links s under parent. Passing nil detaches it.
func (s *Settings) SetParent(parent *Settings) {
	s.mu.Lock()
	s.parent = parent
	s.mu.Unlock()
}

// Parent returns the settings s delegates to.
func (s *Settings) Parent() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parent
}

// Set stores a value on s itself.
func (s *Settings) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// Unset removes the local value so lookups fall through to the parent again.
func (s *Settings) Unset(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// Local returns the value stored on s without consulting the parent.
func (s *Settings) Local(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Get looks key up on s, then on each ancestor in turn.
func (s *Settings) Get(key string) (any, bool) {
	for cur := s; cur != nil; cur = cur.Parent() {
		if v, ok := cur.Local(key); ok {
			return v, true
		}
	}
	return nil, false
}

// GetString gets a string value
func (s *Settings) GetString(key string, defaultValue ...string) string {
	if value, ok := s.Get(key); ok {
		if str, ok := value.(string); ok {
			return str
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// GetInt gets an integer value
func (s *Settings) GetInt(key string, defaultValue ...int) int {
	if value, ok := s.Get(key); ok {
		switch v := value.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

// GetBool gets a boolean value
func (s *Settings) GetBool(key string, defaultValue ...bool) bool {
	if value, ok := s.Get(key); ok {
		switch v := value.(type) {
		case bool:
			return v
		case string:
			return v == "true" || v == "yes" || v == "1"
		case int:
			return v != 0
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return false
}

// GetDuration gets a duration value
func (s *Settings) GetDuration(key string, defaultValue ...time.Duration) time.Duration {
	if value, ok := s.Get(key); ok {
		switch v := value.(type) {
		case time.Duration:
			return v
		case string:
			if d, err := time.ParseDuration(v); err == nil {
				return d
			}
		case int64:
			return time.Duration(v)
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

// Enable sets key to true.
func (s *Settings) Enable(key string) { s.Set(key, true) }

// Disable sets key to false.
func (s *Settings) Disable(key string) { s.Set(key, false) }

// Enabled reports whether key resolves to true.
func (s *Settings) Enabled(key string) bool { return s.GetBool(key) }

// Disabled reports whether key resolves to false or is absent.
func (s *Settings) Disabled(key string) bool { return !s.GetBool(key) }

// All returns the effective settings, with local values shadowing inherited ones.
func (s *Settings) All() map[string]any {
	var chain []*Settings
	for cur := s; cur != nil; cur = cur.Parent() {
		chain = append(chain, cur)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		chain[i].mu.RLock()
		for k, v := range chain[i].values {
			out[k] = v
		}
		chain[i].mu.RUnlock()
	}
	return out
}
