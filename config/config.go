package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile путь к необязательному YAML-файлу конфигурации
const EnvConfigFile = "CONFIG_FILE"

type Config struct {
	HTTPAddr       string `yaml:"httpAddr" env:"HTTP_ADDR"`
	TelegramToken  string `yaml:"telegramToken" env:"TELEGRAM_TOKEN"`
	ModelPath      string `yaml:"modelPath" env:"MODEL_PATH"`       // ONNX-модель (сборка с тегом gocv)
	InferenceURL   string `yaml:"inferenceURL" env:"INFERENCE_URL"` // внешний сервис модели, приоритетнее ModelPath
	WorkDir        string `yaml:"workDir" env:"WORK_DIR"`           // корень рабочих директорий запросов
	OutputDir      string `yaml:"outputDir" env:"OUTPUT_DIR"`       // общий каталог просмотрщика
	DatabasePath   string `yaml:"databasePath" env:"DATABASE_PATH"` // пусто: история в памяти
	LogLevel       string `yaml:"logLevel" env:"LOG_LEVEL"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes" env:"MAX_UPLOAD_BYTES"`

	S3 S3Config `yaml:"s3" envPrefix:"S3_"`
}

// S3Config необязательное зеркало результатов в объектном хранилище
type S3Config struct {
	Bucket          string `yaml:"bucket" env:"BUCKET"`
	Region          string `yaml:"region" env:"REGION"`
	Endpoint        string `yaml:"endpoint" env:"ENDPOINT"`
	Prefix          string `yaml:"prefix" env:"PREFIX"`
	AccessKeyID     string `yaml:"accessKeyID" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secretAccessKey" env:"SECRET_ACCESS_KEY"`
}

// Enabled задан ли бакет
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Default значения по умолчанию
func Default() *Config {
	return &Config{
		HTTPAddr:       ":8000",
		ModelPath:      "model/segmentation.onnx",
		WorkDir:        "/app/data/results",
		OutputDir:      "../svg-liver-editor/img",
		LogLevel:       "info",
		MaxUploadBytes: 64 << 20,
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "latest",
		},
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML из CONFIG_FILE,
// затем переменные окружения (в том числе из .env).
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	var errs []error
	if c.WorkDir == "" {
		errs = append(errs, errors.New("WORK_DIR is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("OUTPUT_DIR is required"))
	}
	if c.InferenceURL == "" && c.ModelPath == "" {
		errs = append(errs, errors.New("INFERENCE_URL or MODEL_PATH is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}
