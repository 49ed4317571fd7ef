package entity

import "path/filepath"

// Фиксированные имена публикуемых файлов
const (
	PreviewFilename = "image.jpg"
	OutlineFilename = "contour.svg"
)

// Artifact файл, подготовленный к публикации
type Artifact struct {
	Name        string // имя в общем каталоге
	Path        string // путь внутри рабочей директории
	ContentType string
}

// ResultBundle пара результатов запроса и директория, где они лежат
type ResultBundle struct {
	Dir         string
	PreviewPath string
	OutlinePath string
	Width       int
	Height      int
	Contours    int
}

// NewResultBundle раскладывает имена файлов внутри dir.
func NewResultBundle(dir string) *ResultBundle {
	return &ResultBundle{
		Dir:         dir,
		PreviewPath: filepath.Join(dir, PreviewFilename),
		OutlinePath: filepath.Join(dir, OutlineFilename),
	}
}

// Artifacts возвращает оба файла в порядке публикации.
func (b *ResultBundle) Artifacts() []Artifact {
	return []Artifact{
		{Name: PreviewFilename, Path: b.PreviewPath, ContentType: "image/jpeg"},
		{Name: OutlineFilename, Path: b.OutlinePath, ContentType: "image/svg+xml"},
	}
}

// Rendered содержимое результатов одного запуска, прочитанное до удаления рабочей директории.
type Rendered struct {
	Preview []byte
	Outline []byte
}
