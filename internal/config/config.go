// Package config loads the relay configuration from an optional YAML file,
// .env files and environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Tyrowin/roomrelay/internal/log"
)

// Config is the full service configuration.
type Config struct {
	Server         ServerConfig    `mapstructure:"server"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	WebSocket      WebSocketConfig `mapstructure:"websocket"`
	Storage        StorageConfig   `mapstructure:"storage"`
	Static         StaticConfig    `mapstructure:"static"`
	Log            log.Config      `mapstructure:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=0,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WebSocketConfig controls per-connection limits and keepalive.
type WebSocketConfig struct {
	MaxMessageSize int64         `mapstructure:"max_message_size" validate:"gt=0"`
	PingInterval   time.Duration `mapstructure:"ping_interval" validate:"gt=0"`
	PongWait       time.Duration `mapstructure:"pong_wait" validate:"gt=0,gtfield=PingInterval"`
	WriteWait      time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	SendBuffer     int           `mapstructure:"send_buffer" validate:"gt=0"`
}

// StorageConfig selects and configures the upload blob store.
type StorageConfig struct {
	Driver        string        `mapstructure:"driver" validate:"oneof=local s3"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout" validate:"gt=0"`
	Local         LocalConfig   `mapstructure:"local"`
	S3            S3Config      `mapstructure:"s3"`
}

// LocalConfig configures the disk driver.
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// S3Config configures the S3 driver. Endpoint and UsePathStyle are for
// MinIO and other S3-compatible servers.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	PublicURL       string `mapstructure:"public_url" validate:"omitempty,url"`
}

// StaticConfig points at the web client bundle.
type StaticConfig struct {
	Dir string `mapstructure:"dir"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("websocket.max_message_size", 16<<20)
	v.SetDefault("websocket.ping_interval", "54s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.upload_timeout", "30s")
	v.SetDefault("storage.local.base_path", "./public/uploads")
	// every key needs a default so AutomaticEnv can see it during Unmarshal
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.s3.public_url", "")
	v.SetDefault("static.dir", "./public")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "roomrelay")
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads config.yaml from dir (or ./config, or .), then applies
// environment overrides. Nested keys map to upper-case env names with dots
// replaced by underscores, e.g. STORAGE_S3_BUCKET.
func Load(dir string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

// bindLegacyEnv keeps the variable names earlier deployments used.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("allowed_origins", "ALLOWED_ORIGINS")
	_ = v.BindEnv("websocket.max_message_size", "MAX_MESSAGE_SIZE")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func decode(v *viper.Viper) (*Config, error) {
	v.Set("server.port", parsePort(v.GetString("server.port"), 3000))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedOrigins = parseOrigins(v.GetStringSlice("allowed_origins"))

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and driver-specific requirements.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch cfg.Storage.Driver {
	case "local":
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("%w: storage.local.base_path is required for the local driver", ErrInvalid)
		}
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("%w: storage.s3.bucket is required for the s3 driver", ErrInvalid)
		}
	}
	return nil
}

// parseOrigins accepts both list values and a single comma separated
// string, which is what env variables produce.
func parseOrigins(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// parsePort also accepts the ":8080" form of SERVER_PORT.
func parsePort(raw string, fallback int) int {
	port, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(raw), ":"))
	if err != nil || port <= 0 {
		return fallback
	}
	return port
}
