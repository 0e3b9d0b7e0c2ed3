package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendS3       = "s3"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Config is the process configuration, read from the environment and an
// optional .env file.
type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AIEnabled            bool          `mapstructure:"AI_ENABLED"`
	OpenAIAPIKey         string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL        string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel          string        `mapstructure:"OPENAI_MODEL"`
	AITimeout            time.Duration `mapstructure:"AI_TIMEOUT"`
	AIStreamTimeout      time.Duration `mapstructure:"AI_STREAM_TIMEOUT"`
	AIMaxRetries         int           `mapstructure:"AI_MAX_RETRIES"`
	AIDiagnosisMaxTokens int           `mapstructure:"AI_DIAGNOSIS_MAX_TOKENS"`
	AIPlanMaxTokens      int           `mapstructure:"AI_PLAN_MAX_TOKENS"`

	StoreBackend  string `mapstructure:"STORE_BACKEND"`
	DataFile      string `mapstructure:"DATA_FILE"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	NotifyChannel string `mapstructure:"POSTGRES_NOTIFY_CHANNEL"`
	S3Bucket      string `mapstructure:"S3_BUCKET"`
	S3Key         string `mapstructure:"S3_KEY"`
	S3Region      string `mapstructure:"S3_REGION"`
	S3Endpoint    string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey   string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey   string `mapstructure:"S3_SECRET_KEY"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "JWT_SECRET", "SUPABASE_JWT_SECRET", "CORS_ORIGINS",
	"AI_ENABLED", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"AI_TIMEOUT", "AI_STREAM_TIMEOUT", "AI_MAX_RETRIES",
	"AI_DIAGNOSIS_MAX_TOKENS", "AI_PLAN_MAX_TOKENS",
	"STORE_BACKEND", "DATA_FILE", "DATABASE_URL", "POSTGRES_NOTIFY_CHANNEL",
	"S3_BUCKET", "S3_KEY", "S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY",
	"MONGO_URI", "MONGO_DATABASE",
}

// Load reads an optional .env file and then the environment.  Values already
// present in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AI_ENABLED", true)
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_TIMEOUT", "60s")
	v.SetDefault("AI_STREAM_TIMEOUT", "5m")
	v.SetDefault("AI_MAX_RETRIES", 2)
	v.SetDefault("AI_DIAGNOSIS_MAX_TOKENS", 1024)
	v.SetDefault("AI_PLAN_MAX_TOKENS", 4096)
	v.SetDefault("STORE_BACKEND", BackendFile)
	v.SetDefault("DATA_FILE", "database/patients.json")
	v.SetDefault("POSTGRES_NOTIFY_CHANNEL", "patients_changed")
	v.SetDefault("S3_KEY", "patients.json")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("MONGO_DATABASE", "pt_planner")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = v.GetString("SUPABASE_JWT_SECRET")
	}
	cfg.CORSOrigins = splitOrigins(cfg.CORSOrigins)
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	return cfg, nil
}

func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// IsDev reports whether ENV is development.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate refuses configurations the server cannot run with.  A missing
// OpenAI key is not an error here: AI endpoints report it when called.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET (or SUPABASE_JWT_SECRET) is required")
	}
	if c.AIDiagnosisMaxTokens <= 0 || c.AIPlanMaxTokens <= 0 {
		return fmt.Errorf("AI token limits must be positive")
	}
	if c.AITimeout <= 0 || c.AIStreamTimeout <= 0 {
		return fmt.Errorf("AI timeouts must be positive")
	}

	switch c.StoreBackend {
	case BackendFile:
		if c.DataFile == "" {
			return fmt.Errorf("DATA_FILE is required when STORE_BACKEND is %q", BackendFile)
		}
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_BACKEND %q is not allowed in production", BackendMemory)
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORE_BACKEND is %q", BackendS3)
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_BACKEND is %q", BackendMongo)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of file, memory, s3, mongo, postgres, got %q", c.StoreBackend)
	}
	return nil
}
