package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/wayfarer-backend/internal/data/db"
	"github.com/yungbote/wayfarer-backend/internal/platform/envutil"
	"github.com/yungbote/wayfarer-backend/internal/training"
)

const (
	TrainerModeBaseline = "baseline"
	TrainerModeHTTP     = "http"
)

type DatabaseConfig struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	SlowQuery    time.Duration `yaml:"slow_query"`
}

type TrainerConfig struct {
	Mode       string `yaml:"mode"`
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	MaxRetries int    `yaml:"max_retries"`
}

// ArtifactConfig selects where the baseline trainer writes model artifacts.
// A bucket switches from the local directory to GCS.
type ArtifactConfig struct {
	Dir          string `yaml:"dir"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	StorageMode  string `yaml:"storage_mode"`
	EmulatorHost string `yaml:"emulator_host"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockKey  string        `yaml:"lock_key"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type TrainingConfig struct {
	MinScore           float64 `yaml:"min_score"`
	Limit              int     `yaml:"limit"`
	ValidationFraction float64 `yaml:"validation_fraction"`
	Seed               int64   `yaml:"seed"`
	BaseModel          string  `yaml:"base_model"`
}

type OtelSettings struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	Headers     string  `yaml:"headers"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type Config struct {
	LogMode         string        `yaml:"log_mode"`
	ServiceName     string        `yaml:"service_name"`
	Environment     string        `yaml:"environment"`
	Port            string        `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	AdminJWTSecret  string        `yaml:"admin_jwt_secret"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Database  DatabaseConfig `yaml:"database"`
	Trainer   TrainerConfig  `yaml:"trainer"`
	Artifacts ArtifactConfig `yaml:"artifacts"`
	Redis     RedisConfig    `yaml:"redis"`
	Training  TrainingConfig `yaml:"training"`
	Otel      OtelSettings   `yaml:"otel"`
}

func DefaultConfig() Config {
	return Config{
		LogMode:         "development",
		ServiceName:     "wayfarer",
		Environment:     "development",
		Port:            "8080",
		ShutdownTimeout: 30 * time.Second,
		Database: DatabaseConfig{
			Driver:    db.DriverSQLite,
			DSN:       "wayfarer.db",
			SlowQuery: time.Second,
		},
		Trainer: TrainerConfig{
			Mode:       TrainerModeBaseline,
			MaxRetries: 2,
		},
		Artifacts: ArtifactConfig{Dir: "artifacts"},
		Training: TrainingConfig{
			MinScore:           training.DefaultMinScore,
			Limit:              training.DefaultLimit,
			ValidationFraction: training.DefaultValidationFraction,
			Seed:               training.DefaultSeed,
			BaseModel:          "baseline",
		},
		Otel: OtelSettings{SampleRatio: 1},
	}
}

// LoadConfig starts from defaults, applies the YAML file at path (if any) and
// then environment overrides. The merged result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.ServiceName = envutil.String("SERVICE_NAME", c.ServiceName)
	c.Environment = envutil.String("APP_ENV", c.Environment)
	c.Port = envutil.String("PORT", c.Port)
	if raw := envutil.String("CORS_ORIGINS", ""); raw != "" {
		c.CORSOrigins = splitList(raw)
	}
	c.AdminJWTSecret = envutil.String("JWT_SECRET_KEY", c.AdminJWTSecret)
	c.ShutdownTimeout = envutil.Duration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.Database.Driver = envutil.String("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = envutil.String("DATABASE_URL", c.Database.DSN)
	c.Database.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envutil.Int("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.SlowQuery = envutil.Duration("DB_SLOW_QUERY", c.Database.SlowQuery)

	c.Trainer.Mode = envutil.String("TRAINER_MODE", c.Trainer.Mode)
	c.Trainer.URL = envutil.String("TRAINER_URL", c.Trainer.URL)
	c.Trainer.APIKey = envutil.String("TRAINER_API_KEY", c.Trainer.APIKey)
	c.Trainer.MaxRetries = envutil.Int("TRAINER_MAX_RETRIES", c.Trainer.MaxRetries)

	c.Artifacts.Dir = envutil.String("ARTIFACT_DIR", c.Artifacts.Dir)
	c.Artifacts.Bucket = envutil.String("ARTIFACT_BUCKET", c.Artifacts.Bucket)
	c.Artifacts.Prefix = envutil.String("ARTIFACT_PREFIX", c.Artifacts.Prefix)
	c.Artifacts.StorageMode = envutil.String("OBJECT_STORAGE_MODE", c.Artifacts.StorageMode)
	c.Artifacts.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", c.Artifacts.EmulatorHost)

	c.Redis.Addr = envutil.String("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envutil.String("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envutil.Int("REDIS_DB", c.Redis.DB)
	c.Redis.LockKey = envutil.String("TRAINING_LOCK_KEY", c.Redis.LockKey)
	c.Redis.LockTTL = envutil.Duration("TRAINING_LOCK_TTL", c.Redis.LockTTL)

	c.Training.MinScore = envutil.Float("TRAINING_MIN_SCORE", c.Training.MinScore)
	c.Training.Limit = envutil.Int("TRAINING_LIMIT", c.Training.Limit)
	c.Training.ValidationFraction = envutil.Float("TRAINING_VALIDATION_FRACTION", c.Training.ValidationFraction)
	c.Training.Seed = envutil.Int64("TRAINING_SEED", c.Training.Seed)
	c.Training.BaseModel = envutil.String("TRAINING_BASE_MODEL", c.Training.BaseModel)

	c.Otel.Enabled = envutil.Bool("OTEL_ENABLED", c.Otel.Enabled)
	c.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.Otel.Endpoint)
	c.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.Otel.Insecure)
	c.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", c.Otel.Headers)
	c.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", c.Otel.SampleRatio)
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Database.Driver) {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn: required"))
	}
	switch c.Trainer.Mode {
	case TrainerModeBaseline:
	case TrainerModeHTTP:
		if strings.TrimSpace(c.Trainer.URL) == "" {
			errs = append(errs, errors.New("trainer.url: required when trainer.mode is http"))
		}
	default:
		errs = append(errs, fmt.Errorf("trainer.mode: unsupported %q", c.Trainer.Mode))
	}
	if c.Training.Limit <= 0 {
		errs = append(errs, errors.New("training.limit: must be positive"))
	}
	if c.Training.ValidationFraction <= 0 || c.Training.ValidationFraction >= 1 {
		errs = append(errs, errors.New("training.validation_fraction: must be within (0,1)"))
	}
	return errors.Join(errs...)
}

func (c Config) Options() training.Options {
	return training.Options{
		MinScore:           c.Training.MinScore,
		Limit:              c.Training.Limit,
		ValidationFraction: c.Training.ValidationFraction,
		Seed:               c.Training.Seed,
		BaseModel:          c.Training.BaseModel,
	}
}

func (c Config) Address() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	return ":" + port
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
