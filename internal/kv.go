package internal

import (
	"sort"
	"strings"
	"sync"
)

// KV is the durable key-value port the session store persists into
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// KeyValuePair represents a stored key and its raw value
type KeyValuePair struct {
	Key   string
	Value []byte
}

// PairLister is implemented by stores that can enumerate their content
type PairLister interface {
	Pairs(pattern string) ([]KeyValuePair, error)
}

// MemoryKV is an in-memory KV used for ephemeral runs and tests
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty MemoryKV
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key
func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value under key
func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key
func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Pairs returns entries whose key matches a SQL LIKE style prefix pattern
// ("prefix%"), or every entry for "" and "%".
func (m *MemoryKV) Pairs(pattern string) ([]KeyValuePair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := strings.TrimSuffix(pattern, "%")
	exact := !strings.HasSuffix(pattern, "%") && pattern != ""

	var pairs []KeyValuePair
	for k, v := range m.data {
		if exact && k != pattern {
			continue
		}
		if !exact && !strings.HasPrefix(k, prefix) {
			continue
		}
		pairs = append(pairs, KeyValuePair{Key: k, Value: append([]byte(nil), v...)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs, nil
}
