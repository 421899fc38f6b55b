package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the anomaly engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Model       ModelConfig       `yaml:"model"`
	Storage     StorageConfig     `yaml:"storage"`
	Cache       CacheConfig       `yaml:"cache"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	Retrain     RetrainConfig     `yaml:"retrain"`
}

// ServerConfig controls the gRPC, HTTP and metrics listeners.
type ServerConfig struct {
	GRPCAddress     string        `yaml:"grpcAddress"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ModelConfig shapes the isolation forest and its training data.
type ModelConfig struct {
	NumTrees      int     `yaml:"numTrees"`
	SubsampleSize int     `yaml:"subsampleSize"`
	Contamination float64 `yaml:"contamination"`
	TrainingSize  int     `yaml:"trainingSize"`
	Seed          int64   `yaml:"seed"`
	// RotateSeed draws a fresh seed for every retrain instead of reusing Seed.
	RotateSeed bool `yaml:"rotateSeed"`
	Workers    int  `yaml:"workers"`
}

// StorageConfig locates the primary model file.
type StorageConfig struct {
	ModelPath string `yaml:"modelPath"`
}

// CacheConfig controls the optional Valkey model mirror.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	Key          string        `yaml:"key"`
	TTL          time.Duration `yaml:"ttl"`
}

// ObjectStoreConfig controls the optional S3-compatible model mirror.
type ObjectStoreConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	Bucket          string `yaml:"bucket"`
	Object          string `yaml:"object"`
	Region          string `yaml:"region"`
	Secure          bool   `yaml:"secure"`
}

// RetrainConfig throttles on-demand retraining.
type RetrainConfig struct {
	// MinInterval is the minimum spacing between accepted retrain requests; zero disables throttling.
	MinInterval time.Duration `yaml:"minInterval"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ANOMALY_ENGINE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot train with.
func (c *Config) Validate() error {
	var errs []error
	if c.Model.NumTrees <= 0 {
		errs = append(errs, fmt.Errorf("model.numTrees must be positive, got %d", c.Model.NumTrees))
	}
	if c.Model.SubsampleSize <= 0 {
		errs = append(errs, fmt.Errorf("model.subsampleSize must be positive, got %d", c.Model.SubsampleSize))
	}
	if c.Model.TrainingSize <= 0 {
		errs = append(errs, fmt.Errorf("model.trainingSize must be positive, got %d", c.Model.TrainingSize))
	}
	if c.Model.Contamination <= 0 || c.Model.Contamination >= 0.5 {
		errs = append(errs, fmt.Errorf("model.contamination must be in (0, 0.5), got %v", c.Model.Contamination))
	}
	if c.Storage.ModelPath == "" {
		errs = append(errs, errors.New("storage.modelPath is required"))
	}
	if c.ObjectStore.Enabled && (c.ObjectStore.Endpoint == "" || c.ObjectStore.Bucket == "") {
		errs = append(errs, errors.New("objectStore.endpoint and objectStore.bucket are required when enabled"))
	}
	return errors.Join(errs...)
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			GRPCAddress:     ":50051",
			HTTPAddress:     ":5000",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Model: ModelConfig{
			NumTrees:      100,
			SubsampleSize: 256,
			Contamination: 0.1,
			TrainingSize:  1000,
			Seed:          42,
		},
		Storage: StorageConfig{ModelPath: "models/isolation_forest.json"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			Key:          "anomaly-engine:model",
		},
		ObjectStore: ObjectStoreConfig{
			Object: "isolation_forest.json",
			Region: "us-east-1",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANOMALY_ENGINE_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("ANOMALY_ENGINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("ANOMALY_ENGINE_MODEL_PATH"); v != "" {
		cfg.Storage.ModelPath = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_MODEL_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Model.Seed = seed
		}
	}
	if v := os.Getenv("ANOMALY_ENGINE_MODEL_ROTATE_SEED"); v != "" {
		cfg.Model.RotateSeed = parseBool(v)
	}
	if v := os.Getenv("ANOMALY_ENGINE_MODEL_TREES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Model.NumTrees = n
		}
	}
	if v := os.Getenv("ANOMALY_ENGINE_MODEL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Model.Workers = n
		}
	}
	if v := os.Getenv("ANOMALY_ENGINE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("ANOMALY_ENGINE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("ANOMALY_ENGINE_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("ANOMALY_ENGINE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("ANOMALY_ENGINE_S3_ENABLED"); v != "" {
		cfg.ObjectStore.Enabled = parseBool(v)
	}
	if v := os.Getenv("ANOMALY_ENGINE_S3_ENDPOINT"); v != "" {
		cfg.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_S3_ACCESS_KEY_ID"); v != "" {
		cfg.ObjectStore.AccessKeyID = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.ObjectStore.SecretAccessKey = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_S3_BUCKET"); v != "" {
		cfg.ObjectStore.Bucket = v
	}
	if v := os.Getenv("ANOMALY_ENGINE_S3_SECURE"); v != "" {
		cfg.ObjectStore.Secure = parseBool(v)
	}
	if v := os.Getenv("ANOMALY_ENGINE_RETRAIN_MIN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retrain.MinInterval = d
		}
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
