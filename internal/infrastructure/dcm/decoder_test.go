package dcm

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/infrastructure/dcm/dcmtest"
)

func TestDecoder_DecodeSignedPixelsWithRescale(t *testing.T) {
	scan := dcmtest.Scan{
		Rows:        2,
		Cols:        3,
		Pixels:      []int16{-1000, -1, 0, 1, 1200, 3000},
		WithRescale: true,
		Slope:       2,
		Intercept:   -1024,
	}
	path := dcmtest.WriteFile(t, "scan.dcm", scan)

	raw, err := NewDecoder().DecodeFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, raw.Rows)
	require.Equal(t, 3, raw.Cols)
	require.Equal(t, []float64{-1000, -1, 0, 1, 1200, 3000}, raw.Pixels)
	require.NotNil(t, raw.Rescale)
	require.Equal(t, 2.0, raw.Rescale.Slope)
	require.Equal(t, -1024.0, raw.Rescale.Intercept)
}

func TestDecoder_WithoutRescale(t *testing.T) {
	scan := dcmtest.Scan{Rows: 1, Cols: 2, Pixels: []int16{5, 6}}
	data := dcmtest.Build(scan)

	raw, err := NewDecoder().Decode(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Nil(t, raw.Rescale)
	require.Equal(t, []float64{5, 6}, raw.Pixels)
}

func TestDecoder_MissingPixelData(t *testing.T) {
	scan := dcmtest.Scan{Rows: 2, Cols: 2, NoPixelData: true}
	data := dcmtest.Build(scan)

	_, err := NewDecoder().Decode(bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
	require.Equal(t, entity.KindDecode, entity.KindOf(err))
}

func TestDecoder_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.dcm")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a dicom file"), 0o644))

	_, err := NewDecoder().DecodeFile(path)
	require.Error(t, err)
	require.Equal(t, entity.KindDecode, entity.KindOf(err))
}

func TestDecoder_MissingFile(t *testing.T) {
	_, err := NewDecoder().DecodeFile(filepath.Join(t.TempDir(), "absent.dcm"))
	require.Error(t, err)
	require.Equal(t, entity.KindDecode, entity.KindOf(err))
}

func TestSignExtend(t *testing.T) {
	require.Equal(t, -1000, signExtend(64536, 16))
	require.Equal(t, 1000, signExtend(1000, 16))
	require.Equal(t, -1, signExtend(4095, 12))
	require.Equal(t, -1000, signExtend(-1000, 16))

	// 32-битные хранимые значения
	require.Equal(t, -1, signExtend(0xFFFFFFFF, 32))
	require.Equal(t, -1000, signExtend(0xFFFFFC18, 32))
	require.Equal(t, 1000, signExtend(1000, 32))
	require.Equal(t, -1000, signExtend(-1000, 32))
}
