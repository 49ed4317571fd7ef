package port

import (
	"context"

	"scan-segmenter/internal/domain/entity"
)

// Publisher интерфейс публикации результатов в общий каталог.
// Имена файлов фиксированы: последняя запись побеждает.
type Publisher interface {
	Publish(ctx context.Context, artifacts []entity.Artifact) error
}
