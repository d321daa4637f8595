// Package fallback is the synchronous crash-safety tier. Unlock and claim
// operations land here before the durable write is attempted, so a reload
// mid-write never loses the state change.
package fallback

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// KV is the localStorage-shaped surface the ledger sits on. Any call may
// fail (quota, permissions); callers have to tolerate that.
type KV interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string)
	Keys() []string
}

// MemoryKV is the in-process implementation, also used as the test fake.
type MemoryKV struct {
	mu    sync.Mutex
	items map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]string)}
}

func (m *MemoryKV) GetItem(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *MemoryKV) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryKV) RemoveItem(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

func (m *MemoryKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FileKV persists the whole map to a JSON file on every write. The data
// set is a handful of small records, so rewriting the file is cheaper than
// being clever.
type FileKV struct {
	mu    sync.Mutex
	path  string
	items map[string]string
}

func NewFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path, items: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kv, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read fallback store: %w", err)
	}
	if err := json.Unmarshal(data, &kv.items); err != nil {
		// A corrupt fallback file must not block startup; start empty.
		kv.items = make(map[string]string)
	}
	return kv, nil
}

func (f *FileKV) GetItem(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	return v, ok
}

func (f *FileKV) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
	return f.flushLocked()
}

func (f *FileKV) RemoveItem(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
	_ = f.flushLocked()
}

func (f *FileKV) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *FileKV) flushLocked() error {
	data, err := json.Marshal(f.items)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}
