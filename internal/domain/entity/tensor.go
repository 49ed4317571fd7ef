package entity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Фиксированное пространственное разрешение входа модели
const (
	TensorHeight = 256
	TensorWidth  = 256
)

// ForegroundThreshold порог sigmoid для пикселя переднего плана.
// Константа не настраивается: смещение в сторону точности.
const ForegroundThreshold = 0.7

// Tensor тензор в раскладке NCHW
type Tensor struct {
	Shape [4]int // batch, channel, height, width
	Data  []float32
}

// Height высота тензора
func (t *Tensor) Height() int { return t.Shape[2] }

// Width ширина тензора
func (t *Tensor) Width() int { return t.Shape[3] }

// At значение пикселя первого канала первого элемента батча
func (t *Tensor) At(y, x int) float32 {
	return t.Data[y*t.Shape[3]+x]
}

// CheckShape проверяет форму и длину данных.
func (t *Tensor) CheckShape(want [4]int) error {
	if t.Shape != want {
		return fmt.Errorf("tensor shape %v, want %v", t.Shape, want)
	}
	n := want[0] * want[1] * want[2] * want[3]
	if len(t.Data) != n {
		return fmt.Errorf("tensor has %d values, want %d", len(t.Data), n)
	}
	return nil
}

// ModelShape форма входа и выхода модели
var ModelShape = [4]int{1, 1, TensorHeight, TensorWidth}

// InferenceTensor вход модели: 1x1x256x256, значения в [0, 1]
type InferenceTensor struct {
	Tensor
}

// NewInferenceTensor упаковывает уже пересэмплированную сетку 256x256,
// добавляя измерения батча и канала. Значения приводятся к [0, 1].
func NewInferenceTensor(grid mat.Matrix) (*InferenceTensor, error) {
	r, c := grid.Dims()
	if r != TensorHeight || c != TensorWidth {
		return nil, fmt.Errorf("inference grid is %dx%d, want %dx%d", c, r, TensorWidth, TensorHeight)
	}
	data := make([]float32, r*c)
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			// Пересэмплирование может дать погрешность округления за пределами [0, 1].
			data[y*c+x] = float32(math.Max(0, math.Min(1, grid.At(y, x))))
		}
	}
	return &InferenceTensor{Tensor{Shape: ModelShape, Data: data}}, nil
}

// ConfidenceMap сырые оценки модели до активации
type ConfidenceMap struct {
	Tensor
}

// Binarize применяет sigmoid(x) > ForegroundThreshold поэлементно.
func (c *ConfidenceMap) Binarize() *BinaryMask {
	mask := NewBinaryMask(c.Width(), c.Height())
	for i := range mask.Pix {
		mask.Pix[i] = Sigmoid(float64(c.Data[i])) > ForegroundThreshold
	}
	return mask
}

// Sigmoid логистическая функция
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// BinaryMask бинарная маска сегментации
type BinaryMask struct {
	Width  int
	Height int
	Pix    []bool // построчно
}

// NewBinaryMask создаёт пустую маску
func NewBinaryMask(width, height int) *BinaryMask {
	return &BinaryMask{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// At возвращает false за пределами маски
func (m *BinaryMask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set выставляет пиксель
func (m *BinaryMask) Set(x, y int, v bool) {
	m.Pix[y*m.Width+x] = v
}

// Count количество пикселей переднего плана
func (m *BinaryMask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}
