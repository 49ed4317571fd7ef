package dcm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// Decoder читает DICOM и извлекает первую (единственную) плоскость пикселей.
type Decoder struct{}

// NewDecoder создаёт декодер
func NewDecoder() *Decoder {
	return &Decoder{}
}

// DecodeFile читает DICOM-файл с диска.
func (d *Decoder) DecodeFile(path string) (*entity.RawScan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, entity.NewError(entity.KindDecode, fmt.Errorf("read file: %w", err))
	}
	return d.Decode(bytes.NewReader(data), int64(len(data)))
}

// Decode разбирает поток DICOM размером size байт.
func (d *Decoder) Decode(r io.Reader, size int64) (scan *entity.RawScan, err error) {
	// Библиотека паникует на некоторых повреждённых файлах.
	defer func() {
		if p := recover(); p != nil {
			scan = nil
			err = entity.Errorf(entity.KindDecode, "parse dicom: %v", p)
		}
	}()

	ds, err := dicom.Parse(r, size, nil)
	if err != nil {
		return nil, entity.NewError(entity.KindDecode, fmt.Errorf("parse dicom: %w", err))
	}

	pixelElem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, entity.NewError(entity.KindDecode, errors.New("pixel data is missing"))
	}

	var info dicom.PixelDataInfo
	switch v := pixelElem.Value.GetValue().(type) {
	case dicom.PixelDataInfo:
		info = v
	case *dicom.PixelDataInfo:
		info = *v
	default:
		return nil, entity.Errorf(entity.KindDecode, "pixel data has unexpected type %T", v)
	}

	if len(info.Frames) == 0 {
		return nil, entity.Errorf(entity.KindDecode, "pixel data has no frames")
	}
	if len(info.Frames) > 1 {
		return nil, entity.Errorf(entity.KindCalibration, "expected a single 2D frame, got %d frames", len(info.Frames))
	}
	if info.IsEncapsulated || info.Frames[0].Encapsulated {
		return nil, entity.Errorf(entity.KindCalibration, "encapsulated pixel data is not supported")
	}

	native := info.Frames[0].NativeData
	rows, cols := native.Rows, native.Cols
	if rows <= 0 || cols <= 0 {
		return nil, entity.Errorf(entity.KindCalibration, "pixel grid is %dx%d", cols, rows)
	}
	if len(native.Data) != rows*cols {
		return nil, entity.Errorf(entity.KindCalibration, "pixel data has %d samples for %dx%d grid", len(native.Data), cols, rows)
	}

	signed := firstInt(ds, tag.PixelRepresentation, 0) == 1
	bitsStored := firstInt(ds, tag.BitsStored, native.BitsPerSample)

	pixels := make([]float64, len(native.Data))
	for i, sample := range native.Data {
		if len(sample) != 1 {
			return nil, entity.Errorf(entity.KindCalibration, "expected 1 sample per pixel, got %d", len(sample))
		}
		v := sample[0]
		if signed {
			v = signExtend(v, bitsStored)
		}
		pixels[i] = float64(v)
	}

	rescale, err := readRescale(ds)
	if err != nil {
		return nil, err
	}

	return &entity.RawScan{
		Rows:    rows,
		Cols:    cols,
		Pixels:  pixels,
		Rescale: rescale,
	}, nil
}

// readRescale возвращает калибровку только если есть оба тега.
func readRescale(ds dicom.Dataset) (*entity.Rescale, error) {
	slope, okSlope, err := firstFloat(ds, tag.RescaleSlope)
	if err != nil {
		return nil, err
	}
	intercept, okIntercept, err := firstFloat(ds, tag.RescaleIntercept)
	if err != nil {
		return nil, err
	}
	if !okSlope || !okIntercept {
		return nil, nil
	}
	return &entity.Rescale{Slope: slope, Intercept: intercept}, nil
}

func firstFloat(ds dicom.Dataset, t tag.Tag) (float64, bool, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false, nil
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) == 0 {
			return 0, false, nil
		}
		s := strings.Trim(v[0], " \x00")
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, entity.Errorf(entity.KindCalibration, "tag %s: %v", t, err)
		}
		return f, true, nil
	case []float64:
		if len(v) == 0 {
			return 0, false, nil
		}
		return v[0], true, nil
	case []int:
		if len(v) == 0 {
			return 0, false, nil
		}
		return float64(v[0]), true, nil
	default:
		return 0, false, entity.Errorf(entity.KindCalibration, "tag %s has unexpected type %T", t, v)
	}
}

func firstInt(ds dicom.Dataset, t tag.Tag, fallback int) int {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return fallback
	}
	if v, ok := elem.Value.GetValue().([]int); ok && len(v) > 0 {
		return v[0]
	}
	return fallback
}

// signExtend переводит беззнаковое хранимое значение в знаковое по BitsStored.
func signExtend(v, bits int) int {
	if bits == 32 {
		return int(int32(uint32(v)))
	}
	if bits <= 0 || bits > 32 {
		return v
	}
	if v >= 1<<(bits-1) && v < 1<<bits {
		return v - 1<<bits
	}
	return v
}

// Проверка реализации интерфейса
var _ port.ScanDecoder = (*Decoder)(nil)
