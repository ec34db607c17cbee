package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config описывает настройки запуска приложения.
// Значения берутся из YAML-файла (если задан) и перекрываются окружением.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// StorageBackend: "memory" или "postgres".
	StorageBackend string `yaml:"storage_backend"`
	PostgresDSN    string `yaml:"postgres_dsn"`

	// KafkaBrokers — список брокеров через запятую; пусто отключает события.
	KafkaBrokers string `yaml:"kafka_brokers"`

	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig — опциональная выгрузка снимков размещений в S3.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	Prefix    string `yaml:"prefix"`
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних систем.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:       ":8080",
		MetricsAddr:    ":9090",
		StorageBackend: "memory",
	}
}

// LoadConfig читает конфигурацию: сначала значения по умолчанию, затем
// YAML-файл по пути path (пустой путь пропускается), затем окружение.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.StorageBackend != "memory" && cfg.StorageBackend != "postgres" {
		return Config{}, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "postgres" && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("postgres backend requires a DSN")
	}
	if cfg.Archive.Enabled && cfg.Archive.Bucket == "" {
		return Config{}, fmt.Errorf("snapshot archive requires a bucket")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.HTTPAddr, "WMS_HTTP_ADDR")
	setFromEnv(&cfg.MetricsAddr, "WMS_METRICS_ADDR")
	setFromEnv(&cfg.StorageBackend, "WMS_STORAGE_BACKEND")
	setFromEnv(&cfg.PostgresDSN, "WMS_POSTGRES_DSN")
	setFromEnv(&cfg.KafkaBrokers, "KAFKA_BROKERS")

	setFromEnv(&cfg.Archive.Region, "WMS_ARCHIVE_REGION")
	setFromEnv(&cfg.Archive.Bucket, "WMS_ARCHIVE_BUCKET")
	setFromEnv(&cfg.Archive.Endpoint, "WMS_ARCHIVE_ENDPOINT")
	setFromEnv(&cfg.Archive.Prefix, "WMS_ARCHIVE_PREFIX")
	if v := os.Getenv("WMS_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("WMS_ARCHIVE_PATH_STYLE"); v != "" {
		cfg.Archive.PathStyle = v == "1" || v == "true"
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
