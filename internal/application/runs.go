package app

import (
	"context"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// DefaultHistoryLimit сколько записей отдавать по умолчанию
const DefaultHistoryLimit = 20

type RunService struct {
	repo port.RunRepository
}

func NewRunService(repo port.RunRepository) *RunService {
	return &RunService{repo: repo}
}

func (s *RunService) Get(ctx context.Context, id string) (*entity.Run, error) {
	return s.repo.Get(ctx, id)
}

// Recent возвращает последние записи; limit <= 0 означает DefaultHistoryLimit.
func (s *RunService) Recent(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.repo.Recent(ctx, limit)
}
