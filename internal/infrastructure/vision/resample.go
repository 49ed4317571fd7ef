package vision

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"scan-segmenter/internal/domain/port"
)

// AreaResampler меняет размер усреднением по площади (аналог INTER_AREA).
// При уменьшении каждый выходной пиксель равен среднему покрытых входных с весами
// по доле покрытия; при увеличении значения переносятся без выхода за исходный диапазон.
type AreaResampler struct{}

// Resample возвращает новую матрицу height x width.
func (AreaResampler) Resample(src mat.Matrix, width, height int) *mat.Dense {
	srcH, srcW := src.Dims()
	dst := mat.NewDense(height, width, nil)
	if srcH == height && srcW == width {
		dst.Copy(src)
		return dst
	}

	wx := areaWeights(srcW, width)
	wy := areaWeights(srcH, height)

	// Сначала по строкам, затем по столбцам.
	tmp := mat.NewDense(srcH, width, nil)
	for y := 0; y < srcH; y++ {
		for ox, taps := range wx {
			var sum float64
			for _, tp := range taps {
				sum += src.At(y, tp.index) * tp.weight
			}
			tmp.Set(y, ox, sum)
		}
	}
	for oy, taps := range wy {
		for x := 0; x < width; x++ {
			var sum float64
			for _, tp := range taps {
				sum += tmp.At(tp.index, x) * tp.weight
			}
			dst.Set(oy, x, sum)
		}
	}
	return dst
}

type tap struct {
	index  int
	weight float64
}

// areaWeights для каждого выходного индекса возвращает покрываемые входные
// индексы с нормированными весами (сумма весов равна 1).
func areaWeights(in, out int) [][]tap {
	scale := float64(in) / float64(out)
	weights := make([][]tap, out)
	for o := 0; o < out; o++ {
		start := float64(o) * scale
		end := start + scale
		first := int(math.Floor(start))
		last := int(math.Ceil(end)) - 1
		if last >= in {
			last = in - 1
		}
		var taps []tap
		for i := first; i <= last; i++ {
			w := math.Min(end, float64(i+1)) - math.Max(start, float64(i))
			if w <= 0 {
				continue
			}
			taps = append(taps, tap{index: i, weight: w / scale})
		}
		weights[o] = taps
	}
	return weights
}

var _ port.Resampler = AreaResampler{}
