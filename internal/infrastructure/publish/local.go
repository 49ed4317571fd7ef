package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// LocalPublisher копирует артефакты в общий каталог просмотрщика.
// Все файлы сначала копируются во временные, и только затем переименовываются
// на место; при ошибке переименования уже заменённые файлы откатываются.
// Между параллельными запросами побеждает последний.
type LocalPublisher struct {
	dir    string
	log    *zap.Logger
	rename func(oldpath, newpath string) error
}

// NewLocalPublisher создаёт публикатор в dir
func NewLocalPublisher(dir string, log *zap.Logger) *LocalPublisher {
	return &LocalPublisher{dir: dir, log: log, rename: os.Rename}
}

// Path путь опубликованного файла с именем name
func (p *LocalPublisher) Path(name string) string {
	return filepath.Join(p.dir, name)
}

// staged артефакт, скопированный во временный файл рядом с местом назначения
type staged struct {
	name   string
	tmp    string
	dst    string
	backup string // жёсткая ссылка на прежний файл, если он был
}

// Publish публикует все артефакты или ни одного.
func (p *LocalPublisher) Publish(ctx context.Context, artifacts []entity.Artifact) (err error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := make([]*staged, 0, len(artifacts))
	defer func() {
		for _, f := range files {
			removeIfSet(f.tmp)
			removeIfSet(f.backup)
		}
	}()

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := &staged{name: a.Name, dst: p.Path(a.Name)}
		files = append(files, f)
		if f.tmp, err = stageFile(a.Path, f.dst); err != nil {
			return fmt.Errorf("copy %s: %w", a.Name, err)
		}
	}

	for _, f := range files {
		if f.backup, err = backupFile(f.dst); err != nil {
			return fmt.Errorf("prepare %s: %w", f.name, err)
		}
	}

	for i, f := range files {
		if err := p.rename(f.tmp, f.dst); err != nil {
			p.rollback(files[:i])
			return fmt.Errorf("replace %s: %w", f.name, err)
		}
		f.tmp = ""
	}

	for _, f := range files {
		p.log.Info("Published artifact", zap.String("dst", f.dst))
	}
	return nil
}

// rollback возвращает прежние версии уже заменённых файлов.
func (p *LocalPublisher) rollback(done []*staged) {
	for _, f := range done {
		var err error
		if f.backup != "" {
			err = p.rename(f.backup, f.dst)
			f.backup = ""
		} else {
			err = os.Remove(f.dst)
		}
		if err != nil {
			p.log.Error("Failed to roll back artifact", zap.String("dst", f.dst), zap.Error(err))
		}
	}
}

// stageFile копирует src во временный файл в каталоге dst и возвращает его имя.
func stageFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	return tmpName, nil
}

// backupFile проверяет, что dst можно заменить, и сохраняет жёсткую ссылку на прежний файл.
// Возвращает пустое имя, если файла не было.
func backupFile(dst string) (string, error) {
	info, err := os.Lstat(dst)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", dst)
	}

	backup := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".bak-"+uuid.NewString()[:8])
	if err := os.Link(dst, backup); err != nil {
		return "", err
	}
	return backup, nil
}

func removeIfSet(path string) {
	if path != "" {
		os.Remove(path)
	}
}

var _ port.Publisher = (*LocalPublisher)(nil)
