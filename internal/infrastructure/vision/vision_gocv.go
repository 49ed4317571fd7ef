//go:build gocv
// +build gocv

package vision

import (
	"image"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// NewResampler возвращает реализацию на OpenCV.
func NewResampler() port.Resampler {
	return GoCVResampler{}
}

// NewTracer возвращает реализацию на OpenCV.
func NewTracer() port.ContourTracer {
	return GoCVTracer{}
}

// GoCVResampler меняет размер через cv::resize с INTER_AREA.
type GoCVResampler struct{}

// Resample возвращает новую матрицу height x width.
func (GoCVResampler) Resample(src mat.Matrix, width, height int) *mat.Dense {
	rows, cols := src.Dims()
	in := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)
	defer in.Close()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			in.SetFloatAt(y, x, float32(src.At(y, x)))
		}
	}

	out := gocv.NewMat()
	defer out.Close()
	gocv.Resize(in, &out, image.Pt(width, height), 0, 0, gocv.InterpolationArea)

	dst := mat.NewDense(height, width, nil)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dst.Set(y, x, float64(out.GetFloatAt(y, x)))
		}
	}
	return dst
}

// GoCVTracer ищет контуры через cv::findContours(RETR_EXTERNAL, CHAIN_APPROX_SIMPLE).
type GoCVTracer struct{}

// Trace возвращает контуры из трёх и более точек.
func (GoCVTracer) Trace(mask *entity.BinaryMask) []entity.Contour {
	m := gocv.NewMatWithSize(mask.Height, mask.Width, gocv.MatTypeCV8U)
	defer m.Close()
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) {
				m.SetUCharAt(y, x, 255)
			} else {
				m.SetUCharAt(y, x, 0)
			}
		}
	}

	found := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]entity.Contour, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		pts := found.At(i).ToPoints()
		c := entity.Contour{Points: make([]entity.Point, len(pts))}
		for k, p := range pts {
			c.Points[k] = entity.Point{X: p.X, Y: p.Y}
		}
		contours = append(contours, c)
	}
	return entity.DropDegenerate(contours)
}
