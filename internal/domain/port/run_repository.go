package port

import (
	"context"
	"errors"

	"scan-segmenter/internal/domain/entity"
)

// ErrRunNotFound запись истории не найдена
var ErrRunNotFound = errors.New("run not found")

// RunRepository интерфейс хранилища истории обработки
type RunRepository interface {
	// Save создаёт или обновляет запись
	Save(ctx context.Context, run *entity.Run) error

	// Get возвращает запись по ID или ErrRunNotFound
	Get(ctx context.Context, id string) (*entity.Run, error)

	// Recent возвращает последние записи, новые первыми
	Recent(ctx context.Context, limit int) ([]*entity.Run, error)
}
