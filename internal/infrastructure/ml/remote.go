package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

// DefaultTimeout ограничение на один вызов модели
const DefaultTimeout = 30 * time.Second

// tensorPayload тело запроса и ответа сервиса инференса
type tensorPayload struct {
	Shape [4]int    `json:"shape"`
	Data  []float32 `json:"data"`
}

// RemoteSegmenter выполняет инференс через внешний сервис с моделью.
type RemoteSegmenter struct {
	inferenceURL string
	client       *http.Client
}

// NewRemoteSegmenter создаёт адаптер; inferenceURL указывает на POST-эндпоинт модели.
func NewRemoteSegmenter(inferenceURL string, client *http.Client) *RemoteSegmenter {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &RemoteSegmenter{
		inferenceURL: strings.TrimRight(inferenceURL, "/"),
		client:       client,
	}
}

// Segment отправляет тензор 1x1x256x256 и возвращает карту уверенности той же формы.
func (m *RemoteSegmenter) Segment(ctx context.Context, input *entity.InferenceTensor) (*entity.ConfidenceMap, error) {
	body, err := json.Marshal(tensorPayload{Shape: input.Shape, Data: input.Data})
	if err != nil {
		return nil, fmt.Errorf("encode tensor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.inferenceURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result tensorPayload
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := &entity.ConfidenceMap{Tensor: entity.Tensor{Shape: result.Shape, Data: result.Data}}
	if err := out.CheckShape(entity.ModelShape); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckHealth проверяет доступность сервиса модели
func (m *RemoteSegmenter) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.inferenceURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

var _ port.Segmenter = (*RemoteSegmenter)(nil)
