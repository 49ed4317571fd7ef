package vision

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"os"

	svg "github.com/ajstarks/svgo"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// Стиль линии контура в SVG
const OutlineStyle = "fill:none;stroke:green;stroke-width:2;stroke-linejoin:round"

// JPEGQuality качество превью
const JPEGQuality = 90

// Renderer пишет превью (JPEG) и контуры (SVG) размером с маску.
type Renderer struct {
	resampler port.Resampler
}

// NewRenderer создаёт рендерер; resampler приводит превью к размеру маски.
func NewRenderer(resampler port.Resampler) *Renderer {
	return &Renderer{resampler: resampler}
}

// Render записывает image.jpg и contour.svg в dir.
func (r *Renderer) Render(dir string, img *entity.NormalizedImage, mask *entity.BinaryMask, contours []entity.Contour) (*entity.ResultBundle, error) {
	bundle := entity.NewResultBundle(dir)
	bundle.Width, bundle.Height, bundle.Contours = mask.Width, mask.Height, len(contours)

	if err := writeFile(bundle.PreviewPath, func(w io.Writer) error {
		return r.EncodePreview(w, img, mask.Width, mask.Height)
	}); err != nil {
		return nil, entity.NewError(entity.KindSerialization, fmt.Errorf("write preview: %w", err))
	}

	if err := writeFile(bundle.OutlinePath, func(w io.Writer) error {
		return EncodeOutline(w, mask.Width, mask.Height, contours)
	}); err != nil {
		return nil, entity.NewError(entity.KindSerialization, fmt.Errorf("write outline: %w", err))
	}

	return bundle, nil
}

// EncodePreview переводит [0, 1] в 0..255 и пишет трёхканальный JPEG.
// Серое изображение дублируется в R, G и B.
func (r *Renderer) EncodePreview(w io.Writer, img *entity.NormalizedImage, width, height int) error {
	grid := img.Data
	if img.Width() != width || img.Height() != height {
		grid = r.resampler.Resample(img.Data, width, height)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := toByte(grid.At(y, x))
			rgba.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	return jpeg.Encode(w, rgba, &jpeg.Options{Quality: JPEGQuality})
}

// EncodeOutline пишет SVG с холстом width x height и одной ломаной на контур.
func EncodeOutline(w io.Writer, width, height int, contours []entity.Contour) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(width, height)
	for _, c := range contours {
		xs := make([]int, len(c.Points))
		ys := make([]int, len(c.Points))
		for i, p := range c.Points {
			xs[i], ys[i] = p.X, p.Y
		}
		canvas.Polyline(xs, ys, OutlineStyle)
	}
	canvas.End()
	return ew.err
}

// errWriter запоминает первую ошибку записи: svgo их не возвращает.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

// toByte переводит [0, 1] в 0..255 с отбрасыванием дробной части.
func toByte(v float64) uint8 {
	v = math.Max(0, math.Min(1, v))
	return uint8(v * 255)
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var _ port.ResultRenderer = (*Renderer)(nil)
