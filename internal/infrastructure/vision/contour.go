package vision

import (
	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// Соседи по кругу против часовой стрелки (строка, столбец), начиная с востока.
var ring = [8][2]int{
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
}

// BorderTracer ищет внешние контуры обходом границ Suzuki–Abe.
// Возвращаются только самые внешние границы (как RETR_EXTERNAL),
// вершины сжимаются до точек смены направления (как CHAIN_APPROX_SIMPLE).
type BorderTracer struct{}

type border struct {
	hole   bool
	parent int
}

// Trace возвращает контуры из трёх и более точек.
func (BorderTracer) Trace(mask *entity.BinaryMask) []entity.Contour {
	h, w := mask.Height, mask.Width
	// Рамка из нулей вокруг маски упрощает проверки соседей.
	f := make([][]int, h+2)
	for i := range f {
		f[i] = make([]int, w+2)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.At(x, y) {
				f[y+1][x+1] = 1
			}
		}
	}

	// Метка 1 обозначает рамку изображения и считается границей дыры.
	borders := map[int]border{1: {hole: true}}
	nbd := 1
	var contours []entity.Contour

	for i := 1; i <= h; i++ {
		lnbd := 1
		for j := 1; j <= w; j++ {
			v := f[i][j]
			var from [2]int
			var hole bool
			switch {
			case v == 1 && f[i][j-1] == 0:
				from = [2]int{i, j - 1}
			case v >= 1 && f[i][j+1] == 0:
				from = [2]int{i, j + 1}
				hole = true
				if v > 1 {
					lnbd = v
				}
			default:
				if v != 1 && v != 0 {
					lnbd = abs(v)
				}
				continue
			}

			nbd++
			prev := borders[lnbd]
			parent := lnbd
			if prev.hole == hole {
				parent = prev.parent
			}
			borders[nbd] = border{hole: hole, parent: parent}

			points := follow(f, i, j, from, nbd)
			if !hole && parent == 1 {
				contours = append(contours, entity.Contour{Points: compress(points)})
			}

			if f[i][j] != 1 {
				lnbd = abs(f[i][j])
			}
		}
	}

	return entity.DropDegenerate(contours)
}

// follow обходит границу, начинающуюся в (i, j), и размечает её меткой nbd.
// Возвращает пиксели границы в порядке обхода в координатах маски.
func follow(f [][]int, i, j int, from [2]int, nbd int) []entity.Point {
	start := direction(i, j, from)

	// Поиск первого ненулевого соседа по часовой стрелке.
	first := -1
	for k := 0; k < 8; k++ {
		d := (start - k + 8) % 8
		if f[i+ring[d][0]][j+ring[d][1]] != 0 {
			first = d
			break
		}
	}
	if first < 0 {
		f[i][j] = -nbd
		return []entity.Point{{X: j - 1, Y: i - 1}}
	}

	i1, j1 := i+ring[first][0], j+ring[first][1]
	i2, j2 := i1, j1
	i3, j3 := i, j
	var points []entity.Point

	for {
		// Поиск против часовой стрелки, начиная со следующего за (i2, j2).
		d := direction(i3, j3, [2]int{i2, j2})
		eastZero := false
		var i4, j4 int
		for k := 1; k <= 8; k++ {
			n := (d + k) % 8
			ni, nj := i3+ring[n][0], j3+ring[n][1]
			if f[ni][nj] != 0 {
				i4, j4 = ni, nj
				break
			}
			if n == 0 {
				eastZero = true
			}
		}

		if eastZero {
			f[i3][j3] = -nbd
		} else if f[i3][j3] == 1 {
			f[i3][j3] = nbd
		}
		points = append(points, entity.Point{X: j3 - 1, Y: i3 - 1})

		if i4 == i && j4 == j && i3 == i1 && j3 == j1 {
			return points
		}
		i2, j2 = i3, j3
		i3, j3 = i4, j4
	}
}

// direction индекс в ring для соседа n относительно (i, j).
func direction(i, j int, n [2]int) int {
	di, dj := n[0]-i, n[1]-j
	for k, r := range ring {
		if r[0] == di && r[1] == dj {
			return k
		}
	}
	return 0
}

// compress оставляет только вершины, где меняется направление обхода.
func compress(points []entity.Point) []entity.Point {
	n := len(points)
	if n < 3 {
		return points
	}
	out := make([]entity.Point, 0, n)
	for k := 0; k < n; k++ {
		prev := points[(k-1+n)%n]
		cur := points[k]
		next := points[(k+1)%n]
		if cur.X-prev.X != next.X-cur.X || cur.Y-prev.Y != next.Y-cur.Y {
			out = append(out, cur)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

var _ port.ContourTracer = BorderTracer{}
