package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

const msgNotDICOM = "File must be in DICOM format"

// Segmentation обработка одной загрузки
type Segmentation interface {
	Process(ctx context.Context, upload entity.Upload) (*entity.Run, error)
}

// History чтение истории обработки
type History interface {
	Get(ctx context.Context, id string) (*entity.Run, error)
	Recent(ctx context.Context, limit int) ([]*entity.Run, error)
}

// HealthChecker необязательная проверка внешней модели
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

type Handler struct {
	segmentation   Segmentation
	history        History
	model          HealthChecker
	maxUploadBytes int64
	log            *zap.Logger
}

func NewHandler(segmentation Segmentation, history History, model HealthChecker, maxUploadBytes int64, log *zap.Logger) *Handler {
	return &Handler{
		segmentation:   segmentation,
		history:        history,
		model:          model,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// runResponse запись истории в JSON
type runResponse struct {
	ID         string  `json:"id"`
	Filename   string  `json:"filename"`
	Status     string  `json:"status"`
	ErrorKind  string  `json:"error_kind,omitempty"`
	Message    string  `json:"message,omitempty"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Contours   int     `json:"contours"`
	Foreground int     `json:"foreground"`
	StartedAt  string  `json:"started_at"`
	FinishedAt string  `json:"finished_at,omitempty"`
	Seconds    float64 `json:"seconds"`
}

func toResponse(run *entity.Run) runResponse {
	resp := runResponse{
		ID:         run.ID,
		Filename:   run.Filename,
		Status:     string(run.Status),
		ErrorKind:  string(run.ErrorKind),
		Message:    run.Message,
		Width:      run.Width,
		Height:     run.Height,
		Contours:   run.Contours,
		Foreground: run.Foreground,
		StartedAt:  run.StartedAt.UTC().Format(timeLayout),
		Seconds:    run.Duration().Seconds(),
	}
	if !run.FinishedAt.IsZero() {
		resp.FinishedAt = run.FinishedAt.UTC().Format(timeLayout)
	}
	return resp
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Predict принимает DICOM в поле file и запускает конвейер.
func (h *Handler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "File too large"})
			return
		}
		h.log.Error("Failed to get file from form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file provided"})
		return
	}

	upload := entity.Upload{Filename: file.Filename}
	// Проверка формата до чтения содержимого
	if err := upload.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": msgNotDICOM})
		return
	}

	f, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open file", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Failed to read file"})
		return
	}
	defer f.Close()

	upload.Data, err = io.ReadAll(f)
	if err != nil {
		h.log.Error("Failed to read file", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Failed to read file"})
		return
	}

	run, err := h.segmentation.Process(c.Request.Context(), upload)
	if err != nil {
		body := gin.H{
			"detail": err.Error(),
			"kind":   string(entity.KindOf(err)),
		}
		if errors.Is(err, entity.ErrNotDICOM) {
			body["detail"] = msgNotDICOM
		}
		if run != nil {
			body["run_id"] = run.ID
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"run_id":   run.ID,
		"width":    run.Width,
		"height":   run.Height,
		"contours": run.Contours,
		"files":    []string{entity.PreviewFilename, entity.OutlineFilename},
	})
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list runs"})
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toResponse(run))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, port.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Run not found"})
		return
	}
	if err != nil {
		h.log.Error("Failed to get run", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get run"})
		return
	}
	c.JSON(http.StatusOK, toResponse(run))
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if h.model != nil {
		if err := h.model.CheckHealth(c.Request.Context()); err != nil {
			h.log.Warn("Model service unhealthy", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DEGRADED", "detail": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
