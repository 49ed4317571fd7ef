package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/infrastructure/storage"
)

type segmentationFunc func(ctx context.Context, upload entity.Upload) (*entity.Run, error)

func (f segmentationFunc) Process(ctx context.Context, upload entity.Upload) (*entity.Run, error) {
	return f(ctx, upload)
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

func succeeded(upload entity.Upload) *entity.Run {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := entity.NewRun("run-1", upload.BaseName(), start)
	run.Succeed(&entity.ResultBundle{Width: 256, Height: 256, Contours: 3}, 500, start.Add(2*time.Second))
	return run
}

func newRouter(t *testing.T, seg Segmentation, history History, model HealthChecker, outputDir string) http.Handler {
	t.Helper()
	if history == nil {
		history = storage.NewMemoryRunRepository()
	}
	return NewRouter(NewHandler(seg, history, model, 1<<20, zap.NewNop()), outputDir)
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func doUpload(t *testing.T, router http.Handler, field, filename string, data []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, data)
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestPredict_OK(t *testing.T) {
	var got entity.Upload
	seg := segmentationFunc(func(ctx context.Context, upload entity.Upload) (*entity.Run, error) {
		got = upload
		return succeeded(upload), nil
	})

	rec, resp := doUpload(t, newRouter(t, seg, nil, nil, ""), "file", "scan.DCM", []byte("payload"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", resp["status"])
	require.Equal(t, "run-1", resp["run_id"])
	require.Equal(t, float64(3), resp["contours"])
	require.Equal(t, "scan.DCM", got.Filename)
	require.Equal(t, []byte("payload"), got.Data)
}

func TestPredict_RejectsNonDICOM(t *testing.T) {
	seg := segmentationFunc(func(ctx context.Context, upload entity.Upload) (*entity.Run, error) {
		t.Fatal("pipeline must not run for non-DICOM uploads")
		return nil, nil
	})

	rec, resp := doUpload(t, newRouter(t, seg, nil, nil, ""), "file", "scan.png", []byte("png"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "File must be in DICOM format", resp["detail"])
}

func TestPredict_MissingField(t *testing.T) {
	rec, resp := doUpload(t, newRouter(t, nil, nil, nil, ""), "image", "scan.dcm", []byte("x"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No file provided", resp["detail"])
}

func TestPredict_TooLarge(t *testing.T) {
	rec, _ := doUpload(t, newRouter(t, nil, nil, nil, ""), "file", "scan.dcm", make([]byte, 2<<20))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict_PipelineFailure(t *testing.T) {
	seg := segmentationFunc(func(ctx context.Context, upload entity.Upload) (*entity.Run, error) {
		err := entity.NewError(entity.KindDecode, errors.New("no pixel data"))
		run := entity.NewRun("run-9", upload.Filename, time.Now())
		run.Fail(err, time.Now())
		return run, err
	})

	rec, resp := doUpload(t, newRouter(t, seg, nil, nil, ""), "file", "scan.dcm", []byte("x"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "decode: no pixel data", resp["detail"])
	require.Equal(t, "decode", resp["kind"])
	require.Equal(t, "run-9", resp["run_id"])
}

func TestRuns_ListAndGet(t *testing.T) {
	repo := storage.NewMemoryRunRepository()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, entity.NewRun("old", "a.dcm", base)))
	require.NoError(t, repo.Save(ctx, entity.NewRun("new", "b.dcm", base.Add(time.Minute))))
	router := newRouter(t, nil, repo, nil, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []runResponse `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	require.Equal(t, "new", list.Runs[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/old", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var one runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	require.Equal(t, "a.dcm", one.Filename)
	require.Equal(t, "processing", one.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=-1", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t, nil, nil, nil, "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	down := healthFunc(func(ctx context.Context) error { return errors.New("connection refused") })
	rec = httptest.NewRecorder()
	newRouter(t, nil, nil, down, "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_ServesPublishedFilesWithCORS(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, entity.OutlineFilename), []byte("<svg/>"), 0o644))
	router := newRouter(t, nil, nil, nil, dir)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/img/contour.svg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "<svg/>", rec.Body.String())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/predict", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
