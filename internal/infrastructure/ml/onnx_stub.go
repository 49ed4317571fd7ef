//go:build !gocv
// +build !gocv

package ml

import (
	"context"
	"errors"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

// ONNXSegmenter заглушка локальной модели (без OpenCV).
type ONNXSegmenter struct{}

// NewONNXSegmenter возвращает ошибку, если сборка без тега gocv.
func NewONNXSegmenter(modelPath string) (*ONNXSegmenter, error) {
	_ = modelPath
	return nil, errNoGoCV
}

// Segment возвращает ошибку, если сборка без тега gocv.
func (s *ONNXSegmenter) Segment(ctx context.Context, input *entity.InferenceTensor) (*entity.ConfidenceMap, error) {
	_ = ctx
	_ = input
	return nil, errNoGoCV
}

// Close ничего не делает
func (s *ONNXSegmenter) Close() error { return nil }

var _ port.Segmenter = (*ONNXSegmenter)(nil)
