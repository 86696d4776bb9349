package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/park285/cheese-arena/internal/session"
)

// Memory is the in-process repository used when no database is configured.
// Contents are lost on restart.
type Memory struct {
	mu     sync.RWMutex
	byGame map[string]*session.Summary
}

func NewMemory() *Memory {
	return &Memory{byGame: make(map[string]*session.Summary)}
}

func (m *Memory) SaveResult(_ context.Context, sum *session.Summary) error {
	if sum == nil {
		return nil
	}
	cp := cloneSummary(sum)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byGame[sum.GameID] = cp
	return nil
}

func (m *Memory) Get(_ context.Context, gameID string) (*session.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum, ok := m.byGame[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSummary(sum), nil
}

// Recent sorts by EndedAt desc, falling back to game id for equal timestamps.
func (m *Memory) Recent(_ context.Context, limit int) ([]*session.Summary, error) {
	m.mu.RLock()
	items := make([]*session.Summary, 0, len(m.byGame))
	for _, sum := range m.byGame {
		items = append(items, cloneSummary(sum))
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].GameID > items[j].GameID
	})
	if limit = clampLimit(limit); len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *Memory) Close() error { return nil }

func cloneSummary(s *session.Summary) *session.Summary {
	cp := *s
	cp.Moves = append([]string(nil), s.Moves...)
	return &cp
}
