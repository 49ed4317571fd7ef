package port

import (
	"context"

	"scan-segmenter/internal/domain/entity"
)

// Segmenter модель сегментации: тензор 1x1x256x256 -> карта уверенности той же формы.
// Реализация загружается один раз при старте и не меняет состояние между вызовами.
type Segmenter interface {
	Segment(ctx context.Context, input *entity.InferenceTensor) (*entity.ConfidenceMap, error)
}

// SegmenterFunc позволяет использовать функцию как Segmenter
type SegmenterFunc func(ctx context.Context, input *entity.InferenceTensor) (*entity.ConfidenceMap, error)

// Segment вызывает f(ctx, input)
func (f SegmenterFunc) Segment(ctx context.Context, input *entity.InferenceTensor) (*entity.ConfidenceMap, error) {
	return f(ctx, input)
}
