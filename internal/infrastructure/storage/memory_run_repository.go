package storage

import (
	"context"
	"sort"
	"sync"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// MemoryRunRepository in-memory хранилище истории обработки
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]*entity.Run
}

// NewMemoryRunRepository создаёт новое in-memory хранилище
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{
		runs: make(map[string]*entity.Run),
	}
}

// Save сохраняет копию записи
func (r *MemoryRunRepository) Save(ctx context.Context, run *entity.Run) error {
	cp := *run

	r.mu.Lock()
	r.runs[run.ID] = &cp
	r.mu.Unlock()

	return nil
}

// Get возвращает запись по ID
func (r *MemoryRunRepository) Get(ctx context.Context, id string) (*entity.Run, error) {
	r.mu.RLock()
	run, exists := r.runs[id]
	r.mu.RUnlock()

	if !exists {
		return nil, port.ErrRunNotFound
	}

	cp := *run
	return &cp, nil
}

// Recent возвращает последние записи по времени старта
func (r *MemoryRunRepository) Recent(ctx context.Context, limit int) ([]*entity.Run, error) {
	r.mu.RLock()
	runs := make([]*entity.Run, 0, len(r.runs))
	for _, run := range r.runs {
		cp := *run
		runs = append(runs, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

// Проверка реализации интерфейса
var _ port.RunRepository = (*MemoryRunRepository)(nil)
