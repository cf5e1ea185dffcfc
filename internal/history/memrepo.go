package history

import (
	"context"
	"sort"
	"sync"
)

// memrepo is a development-only in-memory repository used when no DB
// is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID  int64
	records []*Record
	byMatch map[string]*Record
}

func NewMemoryRepository() Repository {
	return &memrepo{byMatch: make(map[string]*Record)}
}

func (m *memrepo) InsertMatch(ctx context.Context, rec *Record) (int64, error) {
	if rec == nil {
		return 0, ErrDuplicateMatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byMatch[rec.MatchID]; exists {
		return 0, ErrDuplicateMatch
	}
	m.nextID++
	cp := *rec
	cp.ID = m.nextID
	m.records = append(m.records, &cp)
	m.byMatch[cp.MatchID] = &cp
	return cp.ID, nil
}

func (m *memrepo) RecentMatches(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := append([]*Record(nil), m.records...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]*Record, 0, len(items))
	for _, r := range items {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memrepo) Close() error { return nil }
