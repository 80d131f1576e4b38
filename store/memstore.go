package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory BlobStore used by tests. Listing order is
// insertion order, which stands in for the real store's native order.
type MemStore struct {
	mu    sync.Mutex
	files map[string]*memFile
	order []string

	CreateCalls int
	UpdateCalls int
	DeleteCalls int
}

type memFile struct {
	meta    FileMetadata
	content []byte
}

func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string]*memFile)}
}

func (m *MemStore) EnsureFolder(ctx context.Context, name string) (string, error) {
	return "folder-" + name, nil
}

func (m *MemStore) List(ctx context.Context, q ListQuery) ([]FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FileMetadata
	for _, id := range m.order {
		f, ok := m.files[id]
		if !ok {
			continue
		}
		if q.Parent != "" && f.meta.Parent != q.Parent {
			continue
		}
		if q.Name != "" && f.meta.Name != q.Name {
			continue
		}
		if q.NamePrefix != "" && !strings.HasPrefix(f.meta.Name, q.NamePrefix) {
			continue
		}
		if q.MimeType != "" && f.meta.MimeType != q.MimeType {
			continue
		}
		out = append(out, f.meta)
	}
	return out, nil
}

func (m *MemStore) Create(ctx context.Context, meta FileMetadata, content []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	meta.ID = uuid.NewString()
	m.files[meta.ID] = &memFile{meta: meta, content: append([]byte(nil), content...)}
	m.order = append(m.order, meta.ID)
	return meta.ID, nil
}

func (m *MemStore) UpdateContent(ctx context.Context, id string, content []byte, mimeType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return ErrNotFound
	}
	m.UpdateCalls++
	f.content = append([]byte(nil), content...)
	f.meta.MimeType = mimeType
	return nil
}

func (m *MemStore) Metadata(ctx context.Context, id string) (FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return FileMetadata{}, ErrNotFound
	}
	return f.meta, nil
}

func (m *MemStore) Content(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), f.content...), nil
}

func (m *MemStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return ErrNotFound
	}
	m.DeleteCalls++
	delete(m.files, id)
	return nil
}

// FileCount reports how many files currently exist, for test assertions.
func (m *MemStore) FileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}
