package port

import (
	"gonum.org/v1/gonum/mat"

	"scan-segmenter/internal/domain/entity"
)

// ScanDecoder интерфейс декодера DICOM
type ScanDecoder interface {
	// DecodeFile читает файл и возвращает сетку пикселей с калибровкой
	DecodeFile(path string) (*entity.RawScan, error)
}

// Resampler интерфейс изменения размера сетки
type Resampler interface {
	// Resample возвращает новую матрицу height x width, исходная не меняется
	Resample(src mat.Matrix, width, height int) *mat.Dense
}

// ContourTracer интерфейс поиска внешних контуров
type ContourTracer interface {
	// Trace возвращает внешние контуры связных областей маски
	Trace(mask *entity.BinaryMask) []entity.Contour
}

// ResultRenderer интерфейс записи превью и SVG-контура
type ResultRenderer interface {
	// Render пишет оба файла в dir
	Render(dir string, img *entity.NormalizedImage, mask *entity.BinaryMask, contours []entity.Contour) (*entity.ResultBundle, error)
}
