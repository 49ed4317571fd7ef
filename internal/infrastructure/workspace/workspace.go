package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// State состояние рабочей директории
type State string

const (
	StateCreated       State = "created"        // Директория создана
	StatePopulated     State = "populated"      // Загрузка и results/ записаны
	StatePublished     State = "published"      // Результаты скопированы в общий каталог
	StateCleaned       State = "cleaned"        // Директория удалена
	StateFailedCleanup State = "failed_cleanup" // Удалить не удалось
)

// ResultsDir имя подкаталога результатов
const ResultsDir = "results"

var errWrongState = errors.New("workspace is in wrong state")

// Manager выделяет уникальные рабочие директории внутри root.
type Manager struct {
	root string
	log  *zap.Logger
	now  func() time.Time
}

// NewManager создаёт менеджер; root создаётся при первом Create.
func NewManager(root string, log *zap.Logger) *Manager {
	return &Manager{root: root, log: log, now: time.Now}
}

// Create выделяет новую директорию process_<время>_<токен>.
func (m *Manager) Create() (*Workspace, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, entity.NewError(entity.KindWorkspace, fmt.Errorf("create work root: %w", err))
	}

	name := fmt.Sprintf("process_%s_%s", m.now().Format("20060102_150405.000000000"), uuid.NewString()[:8])
	dir := filepath.Join(m.root, name)
	// Mkdir, а не MkdirAll: существующая директория считается ошибкой.
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, entity.NewError(entity.KindWorkspace, fmt.Errorf("create workspace: %w", err))
	}

	m.log.Debug("Workspace created", zap.String("dir", dir))
	return &Workspace{dir: dir, state: StateCreated, log: m.log}, nil
}

// Run выполняет fn внутри новой рабочей директории и удаляет её на любом пути выхода,
// включая панику. Ошибка удаления только логируется и не заменяет ошибку fn.
func (m *Manager) Run(ctx context.Context, fn func(ctx context.Context, ws *Workspace) error) (err error) {
	ws, err := m.Create()
	if err != nil {
		return err
	}

	defer func() {
		if cerr := ws.Cleanup(); cerr != nil {
			m.log.Error("Failed to clean up workspace",
				zap.String("dir", ws.Dir()),
				zap.Error(cerr))
		}
	}()

	return fn(ctx, ws)
}

// Workspace рабочая директория одного запроса
type Workspace struct {
	mu         sync.Mutex
	dir        string
	resultsDir string
	state      State
	log        *zap.Logger
}

// Dir путь к директории
func (w *Workspace) Dir() string { return w.dir }

// ResultsDir путь к подкаталогу результатов (пусто до Stage)
func (w *Workspace) ResultsDir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resultsDir
}

// State текущее состояние
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stage записывает загруженный файл и создаёт results/. Возвращает путь к файлу.
func (w *Workspace) Stage(upload entity.Upload) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateCreated {
		return "", entity.NewError(entity.KindWorkspace, fmt.Errorf("stage: %w (%s)", errWrongState, w.state))
	}

	path := filepath.Join(w.dir, upload.BaseName())
	if err := os.WriteFile(path, upload.Data, 0o644); err != nil {
		return "", entity.NewError(entity.KindWorkspace, fmt.Errorf("write upload: %w", err))
	}
	w.log.Info("File saved", zap.String("path", path), zap.Int("size", len(upload.Data)))

	results := filepath.Join(w.dir, ResultsDir)
	if err := os.Mkdir(results, 0o755); err != nil {
		return "", entity.NewError(entity.KindWorkspace, fmt.Errorf("create results dir: %w", err))
	}

	w.resultsDir = results
	w.state = StatePopulated
	return path, nil
}

// Publish отдаёт артефакты из results/ публикатору.
func (w *Workspace) Publish(ctx context.Context, publisher port.Publisher, artifacts []entity.Artifact) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StatePopulated {
		return entity.NewError(entity.KindPublication, fmt.Errorf("publish: %w (%s)", errWrongState, w.state))
	}
	if err := publisher.Publish(ctx, artifacts); err != nil {
		return entity.NewError(entity.KindPublication, err)
	}

	w.state = StatePublished
	return nil
}

// Cleanup рекурсивно удаляет директорию. Повторный вызов ничего не делает.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateCleaned {
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		w.state = StateFailedCleanup
		return entity.NewError(entity.KindCleanup, fmt.Errorf("remove workspace: %w", err))
	}

	w.state = StateCleaned
	w.log.Debug("Workspace cleaned", zap.String("dir", w.dir))
	return nil
}
