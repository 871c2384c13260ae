package waitlist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps signups in process. Used when DATABASE_URL is unset.
type MemoryRepo struct {
	mu      sync.Mutex
	byEmail map[string]Signup
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byEmail: make(map[string]Signup)}
}

func (m *MemoryRepo) Create(_ context.Context, s *Signup) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byEmail[s.Email]; ok {
		s.ID = existing.ID
		s.Source = existing.Source
		s.CreatedAt = existing.CreatedAt
		return false, nil
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	m.byEmail[s.Email] = *s
	return true, nil
}

func (m *MemoryRepo) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byEmail), nil
}
