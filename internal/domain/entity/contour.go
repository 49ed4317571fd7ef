package entity

// MinContourPoints минимальное число вершин сохраняемого контура
const MinContourPoints = 3

// Point вершина контура в пикселях маски
type Point struct {
	X int
	Y int
}

// Contour замкнутая ломаная внешней границы связной области.
// Порядок точек совпадает с порядком обхода границы.
type Contour struct {
	Points []Point
}

// Len количество вершин
func (c Contour) Len() int { return len(c.Points) }

// DropDegenerate отбрасывает контуры из двух и менее точек.
func DropDegenerate(contours []Contour) []Contour {
	kept := make([]Contour, 0, len(contours))
	for _, c := range contours {
		if c.Len() >= MinContourPoints {
			kept = append(kept, c)
		}
	}
	return kept
}
