package entity

import "time"

// RunStatus состояние обработки запроса
type RunStatus string

const (
	RunProcessing RunStatus = "processing" // Конвейер выполняется
	RunSucceeded  RunStatus = "succeeded"  // Результаты опубликованы
	RunFailed     RunStatus = "failed"     // Ошибка на одной из стадий
)

// Run запись истории обработки одного файла
type Run struct {
	ID         string    // идентификатор запроса
	Filename   string    // имя загруженного файла
	Status     RunStatus // текущее состояние
	ErrorKind  ErrorKind // стадия ошибки, если есть
	Message    string    // текст ошибки для пользователя
	Width      int       // ширина маски
	Height     int       // высота маски
	Contours   int       // количество сохранённых контуров
	Foreground int       // пикселей переднего плана
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRun создаёт запись в состоянии processing
func NewRun(id, filename string, startedAt time.Time) *Run {
	return &Run{
		ID:        id,
		Filename:  filename,
		Status:    RunProcessing,
		StartedAt: startedAt,
	}
}

// Succeed фиксирует успешное завершение
func (r *Run) Succeed(bundle *ResultBundle, foreground int, at time.Time) {
	r.Status = RunSucceeded
	r.Width = bundle.Width
	r.Height = bundle.Height
	r.Contours = bundle.Contours
	r.Foreground = foreground
	r.FinishedAt = at
}

// Fail фиксирует ошибку и её стадию
func (r *Run) Fail(err error, at time.Time) {
	r.Status = RunFailed
	r.ErrorKind = KindOf(err)
	r.Message = err.Error()
	r.FinishedAt = at
}

// Duration время обработки
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
