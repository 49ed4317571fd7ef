//go:build !gocv
// +build !gocv

package vision

import "scan-segmenter/internal/domain/port"

// NewResampler возвращает реализацию на чистом Go (сборка без тега gocv).
func NewResampler() port.Resampler {
	return AreaResampler{}
}

// NewTracer возвращает реализацию на чистом Go (сборка без тега gocv).
func NewTracer() port.ContourTracer {
	return BorderTracer{}
}
