package entity

import (
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Клинически значимое окно для КТ в единицах Хаунсфилда
const (
	HUMin = -1000.0
	HUMax = 2000.0
)

// DICOMExtension единственное принимаемое расширение загрузки
const DICOMExtension = ".dcm"

// Upload загруженный пользователем файл
type Upload struct {
	Filename string
	Data     []byte
}

// Validate проверяет расширение до любой работы с диском и моделью.
func (u Upload) Validate() error {
	if !strings.HasSuffix(strings.ToLower(u.Filename), DICOMExtension) {
		return NewError(KindInputValidation, ErrNotDICOM)
	}
	return nil
}

// BaseName возвращает имя файла без пути, пригодное для записи в рабочую директорию.
func (u Upload) BaseName() string {
	return filepath.Base(filepath.Clean("/" + u.Filename))
}

// Rescale коэффициенты калибровки RescaleSlope/RescaleIntercept
type Rescale struct {
	Slope     float64
	Intercept float64
}

// RawScan декодированная сетка пикселей до нормализации
type RawScan struct {
	Rows    int
	Cols    int
	Pixels  []float64 // построчно, len == Rows*Cols
	Rescale *Rescale  // nil, если тегов нет
}

// NormalizedImage изображение со значениями в [0, 1]
type NormalizedImage struct {
	Data *mat.Dense
}

// Width ширина в пикселях
func (n *NormalizedImage) Width() int {
	_, c := n.Data.Dims()
	return c
}

// Height высота в пикселях
func (n *NormalizedImage) Height() int {
	r, _ := n.Data.Dims()
	return r
}

// Normalize применяет калибровку, обрезает значения по окну [HUMin, HUMax]
// и линейно переводит их в [0, 1].
func Normalize(raw *RawScan) (*NormalizedImage, error) {
	if raw == nil || raw.Rows <= 0 || raw.Cols <= 0 {
		return nil, Errorf(KindCalibration, "pixel grid has no rows or columns")
	}
	if len(raw.Pixels) != raw.Rows*raw.Cols {
		return nil, Errorf(KindCalibration, "pixel grid size %d does not match %dx%d", len(raw.Pixels), raw.Cols, raw.Rows)
	}

	slope, intercept := 1.0, 0.0
	if raw.Rescale != nil {
		slope, intercept = raw.Rescale.Slope, raw.Rescale.Intercept
		if !isFinite(slope) || !isFinite(intercept) {
			return nil, Errorf(KindCalibration, "rescale coefficients are not finite (slope=%v, intercept=%v)", slope, intercept)
		}
	}

	data := make([]float64, len(raw.Pixels))
	for i, v := range raw.Pixels {
		data[i] = NormalizeHU(v*slope + intercept)
	}

	return &NormalizedImage{Data: mat.NewDense(raw.Rows, raw.Cols, data)}, nil
}

// NormalizeHU обрезает одно значение по окну и переводит в [0, 1].
func NormalizeHU(hu float64) float64 {
	if math.IsNaN(hu) {
		return 0
	}
	hu = math.Max(HUMin, math.Min(HUMax, hu))
	return (hu - HUMin) / (HUMax - HUMin)
}

// DenormalizeHU обратное преобразование из [0, 1] в единицы Хаунсфилда.
func DenormalizeHU(v float64) float64 {
	return v*(HUMax-HUMin) + HUMin
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
