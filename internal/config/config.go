package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/readmit/readmit/internal/model"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	RawDataPath       string `mapstructure:"RAW_DATA_PATH"`
	CleanedDataPath   string `mapstructure:"CLEANED_DATA_PATH"`
	FeatureDataPath   string `mapstructure:"FEATURE_DATA_PATH"`
	FeatureSchemaPath string `mapstructure:"FEATURE_SCHEMA_PATH"`
	ModelPath         string `mapstructure:"MODEL_PATH"`
	StaticDir         string `mapstructure:"STATIC_DIR"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit   string   `mapstructure:"BODY_LIMIT"`
	TLSEnabled  bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string   `mapstructure:"TLS_KEY_FILE"`

	// RateLimitRPS of 0 disables per-client limiting on /predict.
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	TrainEstimators   int     `mapstructure:"TRAIN_ESTIMATORS"`
	TrainMaxDepth     int     `mapstructure:"TRAIN_MAX_DEPTH"`
	TrainLearningRate float64 `mapstructure:"TRAIN_LEARNING_RATE"`
	TrainGamma        float64 `mapstructure:"TRAIN_GAMMA"`
	TrainColSample    float64 `mapstructure:"TRAIN_COLSAMPLE"`
	TrainSubsample    float64 `mapstructure:"TRAIN_SUBSAMPLE"`
	TrainTestFraction float64 `mapstructure:"TRAIN_TEST_FRACTION"`
	TrainSeed         int64   `mapstructure:"TRAIN_SEED"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"RAW_DATA_PATH", "CLEANED_DATA_PATH", "FEATURE_DATA_PATH", "FEATURE_SCHEMA_PATH",
	"MODEL_PATH", "STATIC_DIR",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "BODY_LIMIT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"TRAIN_ESTIMATORS", "TRAIN_MAX_DEPTH", "TRAIN_LEARNING_RATE", "TRAIN_GAMMA",
	"TRAIN_COLSAMPLE", "TRAIN_SUBSAMPLE", "TRAIN_TEST_FRACTION", "TRAIN_SEED",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	d := model.DefaultParams()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RAW_DATA_PATH", "data/raw/diabetic_data.csv")
	v.SetDefault("CLEANED_DATA_PATH", "data/processed/cleaned.parquet")
	v.SetDefault("FEATURE_DATA_PATH", "data/processed/features.parquet")
	v.SetDefault("FEATURE_SCHEMA_PATH", "data/processed/feature_schema.json")
	v.SetDefault("MODEL_PATH", "models/readmission.model.zst")
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("TRAIN_ESTIMATORS", d.Estimators)
	v.SetDefault("TRAIN_MAX_DEPTH", d.MaxDepth)
	v.SetDefault("TRAIN_LEARNING_RATE", d.LearningRate)
	v.SetDefault("TRAIN_GAMMA", d.Gamma)
	v.SetDefault("TRAIN_COLSAMPLE", d.ColSample)
	v.SetDefault("TRAIN_SUBSAMPLE", d.Subsample)
	v.SetDefault("TRAIN_TEST_FRACTION", 0.2)
	v.SetDefault("TRAIN_SEED", d.Seed)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HasDatabase reports whether the Postgres schema mirror is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// TrainParams returns the boosting parameters with the configured overrides.
func (c *Config) TrainParams() model.Params {
	p := model.DefaultParams()
	p.Estimators = c.TrainEstimators
	p.MaxDepth = c.TrainMaxDepth
	p.LearningRate = c.TrainLearningRate
	p.Gamma = c.TrainGamma
	p.ColSample = c.TrainColSample
	p.Subsample = c.TrainSubsample
	p.Seed = c.TrainSeed
	return p
}

// Validate checks value ranges. DATABASE_URL is optional; when it is set the
// pool bounds must be consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.HasDatabase() {
		if c.DBMaxConns < 1 {
			return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns)
		}
		if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS must be in [0, DB_MAX_CONNS], got %d", c.DBMinConns)
		}
	}
	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1) {
		return fmt.Errorf("RATE_LIMIT_RPS must be non-negative and RATE_LIMIT_BURST at least 1 when limiting")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be non-negative, got %s", c.RequestTimeout)
	}
	if c.TrainTestFraction <= 0 || c.TrainTestFraction >= 1 {
		return fmt.Errorf("TRAIN_TEST_FRACTION must be in (0, 1), got %v", c.TrainTestFraction)
	}
	if err := c.TrainParams().Validate(); err != nil {
		return fmt.Errorf("training parameters: %w", err)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
