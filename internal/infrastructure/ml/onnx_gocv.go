//go:build gocv
// +build gocv

package ml

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// ONNXSegmenter локальная модель, загруженная через cv::dnn.
// Net не потокобезопасен, поэтому вызовы сериализуются.
type ONNXSegmenter struct {
	mu  sync.Mutex
	net gocv.Net
}

// NewONNXSegmenter загружает модель один раз при старте.
func NewONNXSegmenter(modelPath string) (*ONNXSegmenter, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load onnx model %q", modelPath)
	}
	return &ONNXSegmenter{net: net}, nil
}

// Segment прогоняет тензор 1x1x256x256 через сеть.
func (s *ONNXSegmenter) Segment(ctx context.Context, input *entity.InferenceTensor) (*entity.ConfidenceMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, w := input.Height(), input.Width()
	img := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	defer img.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetFloatAt(y, x, input.At(y, x))
		}
	}

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(w, h), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	out := s.net.Forward("")
	s.mu.Unlock()
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	result := &entity.ConfidenceMap{Tensor: entity.Tensor{
		Shape: entity.ModelShape,
		Data:  append([]float32(nil), data...),
	}}
	if err := result.CheckShape(entity.ModelShape); err != nil {
		return nil, err
	}
	return result, nil
}

// Close освобождает сеть
func (s *ONNXSegmenter) Close() error {
	return s.net.Close()
}

var _ port.Segmenter = (*ONNXSegmenter)(nil)
