package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// clearEnv сбрасывает переменные, которые могли прийти из окружения разработчика.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfigFile, "HTTP_ADDR", "TELEGRAM_TOKEN", "MODEL_PATH", "INFERENCE_URL", "WORK_DIR",
		"OUTPUT_DIR", "DATABASE_PATH", "LOG_LEVEL", "MAX_UPLOAD_BYTES",
		"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_PREFIX", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	// Без .env из рабочей директории пакета.
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8000", cfg.HTTPAddr)
	require.Equal(t, "/app/data/results", cfg.WorkDir)
	require.Equal(t, "../svg-liver-editor/img", cfg.OutputDir)
	require.False(t, cfg.S3.Enabled())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
httpAddr: ":9000"
outputDir: /srv/viewer/img
s3:
  bucket: scans
  prefix: viewer
`), 0o644))
	t.Setenv(EnvConfigFile, path)
	t.Setenv("OUTPUT_DIR", "/tmp/img")
	t.Setenv("S3_REGION", "eu-central-1")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr)
	require.Equal(t, "/tmp/img", cfg.OutputDir)
	require.Equal(t, int64(1024), cfg.MaxUploadBytes)
	require.True(t, cfg.S3.Enabled())
	require.Equal(t, "scans", cfg.S3.Bucket)
	require.Equal(t, "viewer", cfg.S3.Prefix)
	require.Equal(t, "eu-central-1", cfg.S3.Region)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("INFERENCE_URL=http://model:9000/segment\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("INFERENCE_URL") })

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://model:9000/segment", cfg.InferenceURL)
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.WorkDir = ""
	cfg.ModelPath = ""
	cfg.MaxUploadBytes = 0

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "WORK_DIR")
	require.Contains(t, err.Error(), "MODEL_PATH")
	require.Contains(t, err.Error(), "MAX_UPLOAD_BYTES")
}
