package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"scan-segmenter/internal/domain/entity"
)

func newInput(t *testing.T) *entity.InferenceTensor {
	t.Helper()
	in, err := entity.NewInferenceTensor(mat.NewDense(entity.TensorHeight, entity.TensorWidth, nil))
	require.NoError(t, err)
	return in
}

func TestRemoteSegmenter_Segment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req tensorPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, entity.ModelShape, req.Shape)
		assert.Len(t, req.Data, entity.TensorHeight*entity.TensorWidth)

		out := make([]float32, len(req.Data))
		out[0] = 5
		_ = json.NewEncoder(w).Encode(tensorPayload{Shape: req.Shape, Data: out})
	}))
	defer srv.Close()

	seg := NewRemoteSegmenter(srv.URL, srv.Client())
	conf, err := seg.Segment(context.Background(), newInput(t))
	require.NoError(t, err)
	require.Equal(t, float32(5), conf.At(0, 0))
	require.Equal(t, 1, conf.Binarize().Count())
}

func TestRemoteSegmenter_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRemoteSegmenter(srv.URL, nil).Segment(context.Background(), newInput(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
	require.Contains(t, err.Error(), "model crashed")
}

func TestRemoteSegmenter_WrongShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tensorPayload{Shape: [4]int{1, 1, 2, 2}, Data: []float32{0, 0, 0, 0}})
	}))
	defer srv.Close()

	_, err := NewRemoteSegmenter(srv.URL, nil).Segment(context.Background(), newInput(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "tensor shape")
}

func TestRemoteSegmenter_CheckHealth(t *testing.T) {
	var unhealthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	seg := NewRemoteSegmenter(srv.URL+"/", nil)
	require.NoError(t, seg.CheckHealth(context.Background()))

	unhealthy.Store(true)
	require.Error(t, seg.CheckHealth(context.Background()))
}
