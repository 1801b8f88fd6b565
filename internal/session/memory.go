package session

// MemoryStore keeps the session in process memory. It does not survive a
// restart and is meant for tests.
type MemoryStore struct {
	*docStore
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docStore: newDocStore(nil)}
}

var _ Store = (*MemoryStore)(nil)
