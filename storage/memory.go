package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"kinship/models"
)

const memoryPrefix = "memory://media/"

// Memory keeps media in a map. It is used when no Cloudinary account is
// configured and in tests, where FailUpload and FailDelete simulate an
// unavailable store.
type Memory struct {
	mu         sync.Mutex
	objects    map[string]models.Upload
	FailUpload error
	FailDelete error
}

func NewMemory() *Memory {
	return &Memory{objects: map[string]models.Upload{}}
}

func (m *Memory) Upload(_ context.Context, u models.Upload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpload != nil {
		return "", m.FailUpload
	}
	url := memoryPrefix + uuid.NewString()
	m.objects[url] = u
	return url, nil
}

func (m *Memory) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	delete(m.objects, url)
	return nil
}

func (m *Memory) Owns(url string) bool {
	return strings.HasPrefix(url, memoryPrefix)
}

// Has reports whether url is still stored.
func (m *Memory) Has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[url]
	return ok
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
