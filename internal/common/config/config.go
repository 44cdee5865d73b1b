package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Providers     ProvidersConfig    `mapstructure:"providers"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Quota         QuotaConfig        `mapstructure:"quota"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	MetricsPort     int `mapstructure:"metrics_port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- External AI Providers ---

// ProvidersConfig holds settings for the external generation services.
type ProvidersConfig struct {
	Text  ProviderEndpoint `mapstructure:"text"`
	Image ProviderEndpoint `mapstructure:"image"`
	TTS   TTSEndpoint      `mapstructure:"tts"`
}

type ProviderEndpoint struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type TTSEndpoint struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
	DefaultVoiceID string `mapstructure:"default_voice_id"`
}

// StorageConfig holds settings for reference-asset blob uploads.
type StorageConfig struct {
	S3 struct {
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
		PublicURL string `mapstructure:"public_url"`
	} `mapstructure:"s3"`
}

// AuthConfig holds settings for bearer-token session resolution.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// QuotaConfig holds settings for the usage gate and recorder.
type QuotaConfig struct {
	CacheTTL             int    `mapstructure:"cache_ttl"`              // seconds
	ConflictRetries      int    `mapstructure:"conflict_retries"`       //
	ConflictBackoff      int    `mapstructure:"conflict_backoff"`       // milliseconds per attempt
	TrialPlanID          string `mapstructure:"trial_plan_id"`          //
	ProvisionTrialOnUser bool   `mapstructure:"provision_trial_on_use"` //
}

// PipelineConfig holds settings for the generation orchestrator.
type PipelineConfig struct {
	MaxRetries       int `mapstructure:"max_retries"`       // per external call
	CallTimeout      int `mapstructure:"call_timeout"`      // milliseconds, per attempt
	ImageConcurrency int `mapstructure:"image_concurrency"` // 0 = unbounded
	AudioConcurrency int `mapstructure:"audio_concurrency"` // 0 = unbounded
	MinScenes        int `mapstructure:"min_scenes"`
	MaxScenes        int `mapstructure:"max_scenes"`
}

// NotificationConfig holds settings for the completion email.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
