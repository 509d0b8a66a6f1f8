package kv

import "sync"

// Memory is the in-process Store used by tests and by the server when no
// data file is configured. Update closures stage writes in an overlay that
// is applied only when the closure succeeds.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

type memoryTx struct {
	store    *Memory
	staged   map[string][]byte
	writable bool
}

func (t *memoryTx) Get(collection string) ([]byte, error) {
	if staged, ok := t.staged[collection]; ok {
		return staged, nil
	}
	blob, ok := t.store.data[collection]
	if !ok {
		return nil, nil
	}
	dup := make([]byte, len(blob))
	copy(dup, blob)
	return dup, nil
}

func (t *memoryTx) Put(collection string, data []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	dup := make([]byte, len(data))
	copy(dup, data)
	t.staged[collection] = dup
	return nil
}

func (m *Memory) View(fn func(Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fn(&memoryTx{store: m, staged: map[string][]byte{}})
}

func (m *Memory) Update(fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{store: m, staged: map[string][]byte{}, writable: true}
	if err := fn(tx); err != nil {
		return err
	}
	for collection, blob := range tx.staged {
		m.data[collection] = blob
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
