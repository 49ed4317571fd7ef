package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scan-segmenter/internal/domain/entity"
	"scan-segmenter/internal/domain/port"
)

func repositories(t *testing.T) map[string]port.RunRepository {
	t.Helper()

	sqliteRepo, err := OpenSQLiteRunRepository(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })

	return map[string]port.RunRepository{
		"memory": NewMemoryRunRepository(),
		"sqlite": sqliteRepo,
	}
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

			run := entity.NewRun("run-1", "scan.dcm", started)
			require.NoError(t, repo.Save(ctx, run))

			got, err := repo.Get(ctx, "run-1")
			require.NoError(t, err)
			require.Equal(t, entity.RunProcessing, got.Status)
			require.Equal(t, "scan.dcm", got.Filename)
			require.True(t, got.StartedAt.Equal(started))

			run.Succeed(&entity.ResultBundle{Width: 256, Height: 256, Contours: 2}, 1200, started.Add(time.Second))
			require.NoError(t, repo.Save(ctx, run))

			got, err = repo.Get(ctx, "run-1")
			require.NoError(t, err)
			require.Equal(t, entity.RunSucceeded, got.Status)
			require.Equal(t, 2, got.Contours)
			require.Equal(t, 1200, got.Foreground)
			require.Equal(t, time.Second, got.Duration())
		})
	}
}

func TestRunRepository_FailedRunKeepsKind(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()

			run := entity.NewRun("run-2", "broken.dcm", now)
			run.Fail(entity.NewError(entity.KindDecode, errors.New("bad preamble")), now)
			require.NoError(t, repo.Save(ctx, run))

			got, err := repo.Get(ctx, "run-2")
			require.NoError(t, err)
			require.Equal(t, entity.RunFailed, got.Status)
			require.Equal(t, entity.KindDecode, got.ErrorKind)
			require.Equal(t, "decode: bad preamble", got.Message)
		})
	}
}

func TestRunRepository_GetMissing(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Get(context.Background(), "nope")
			require.ErrorIs(t, err, port.ErrRunNotFound)
		})
	}
}

func TestRunRepository_RecentNewestFirst(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			for i, id := range []string{"a", "b", "c"} {
				require.NoError(t, repo.Save(ctx, entity.NewRun(id, id+".dcm", base.Add(time.Duration(i)*time.Minute))))
			}

			runs, err := repo.Recent(ctx, 2)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			require.Equal(t, "c", runs[0].ID)
			require.Equal(t, "b", runs[1].ID)

			all, err := repo.Recent(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
		})
	}
}

func TestMemoryRunRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRunRepository()
	ctx := context.Background()

	run := entity.NewRun("run-1", "scan.dcm", time.Now())
	require.NoError(t, repo.Save(ctx, run))
	run.Status = entity.RunFailed

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, entity.RunProcessing, got.Status)
}
