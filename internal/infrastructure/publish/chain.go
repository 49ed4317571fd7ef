package publish

import (
	"context"

	"go.uber.org/zap"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// Chain публикует последовательно во все публикаторы; первая ошибка прерывает цепочку.
type Chain []port.Publisher

// Publish реализует port.Publisher
func (c Chain) Publish(ctx context.Context, artifacts []entity.Artifact) error {
	for _, p := range c {
		if err := p.Publish(ctx, artifacts); err != nil {
			return err
		}
	}
	return nil
}

// Mirror необязательная копия результатов: ошибки только логируются.
type Mirror struct {
	publisher port.Publisher
	log       *zap.Logger
}

// NewMirror оборачивает publisher
func NewMirror(publisher port.Publisher, log *zap.Logger) *Mirror {
	return &Mirror{publisher: publisher, log: log}
}

// Publish реализует port.Publisher и никогда не возвращает ошибку
func (m *Mirror) Publish(ctx context.Context, artifacts []entity.Artifact) error {
	if err := m.publisher.Publish(ctx, artifacts); err != nil {
		m.log.Warn("Failed to mirror artifacts", zap.Error(err))
	}
	return nil
}

var (
	_ port.Publisher = Chain(nil)
	_ port.Publisher = (*Mirror)(nil)
)
