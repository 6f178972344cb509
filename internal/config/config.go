package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// MaxPresignTTL is the longest lifetime S3 SigV4 accepts for a presigned URL (7 days)
const MaxPresignTTL = 7 * 24 * time.Hour

// Overwrite policies applied when a folder move would land on existing keys
const (
	OverwriteReject = "reject"
	OverwriteAllow  = "overwrite"
)

// Config holds all configuration for the drive service
type Config struct {
	// Server configuration
	Listen    string `mapstructure:"listen"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// TLS configuration
	EnableTLS bool   `mapstructure:"enable_tls"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`

	Store     StoreConfig     `mapstructure:"store"`
	Namespace NamespaceConfig `mapstructure:"namespace"`
	Presign   PresignConfig   `mapstructure:"presign"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// StoreConfig defines the object store connection
type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // s3, memory
	Endpoint  string `mapstructure:"endpoint"`
	Port      int    `mapstructure:"port"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	PathStyle bool   `mapstructure:"path_style"`
}

// URL returns the base URL of the object store endpoint
func (s StoreConfig) URL() string {
	scheme := "http"
	if s.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Endpoint, s.Port)
}

// NamespaceConfig controls the virtual folder layer
type NamespaceConfig struct {
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MarkerName        string   `mapstructure:"marker_name"`
	MoveConcurrency   int      `mapstructure:"move_concurrency"`
	OverwritePolicy   string   `mapstructure:"overwrite_policy"`
	MaxUploadBytes    int64    `mapstructure:"max_upload_bytes"`
}

// PresignConfig bounds the lifetime of presigned URLs
type PresignConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	MaxTTL     time.Duration `mapstructure:"max_ttl"`
}

// CORSConfig lists the browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig defines per-client request throttling
type RateLimitConfig struct {
	Enable            bool    `mapstructure:"enable"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// MetricsConfig defines metrics configuration
type MetricsConfig struct {
	Enable         bool          `mapstructure:"enable"`
	Path           string        `mapstructure:"path"`
	SystemInterval time.Duration `mapstructure:"system_interval"`
}

// legacyEnv maps the environment variables of the original deployment onto config keys
var legacyEnv = map[string]string{
	"store.endpoint":   "MINIO_ENDPOINT",
	"store.port":       "MINIO_PORT",
	"store.use_ssl":    "MINIO_USE_SSL",
	"store.access_key": "MINIO_ACCESS_KEY",
	"store.secret_key": "MINIO_SECRET_KEY",
	"store.bucket":     "MINIO_BUCKET_NAME",
}

// Load loads configuration from flags, environment, config file and defaults
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("enable_tls", false)

	// Store defaults match a local MinIO
	v.SetDefault("store.backend", "s3")
	v.SetDefault("store.endpoint", "localhost")
	v.SetDefault("store.port", 9000)
	v.SetDefault("store.use_ssl", false)
	v.SetDefault("store.region", "us-east-1")
	v.SetDefault("store.bucket", "mermaid")
	v.SetDefault("store.path_style", true)

	v.SetDefault("namespace.allowed_extensions", []string{".pdf", ".txt", ".docx"})
	v.SetDefault("namespace.marker_name", ".keep")
	v.SetDefault("namespace.move_concurrency", 4)
	v.SetDefault("namespace.overwrite_policy", OverwriteReject)
	v.SetDefault("namespace.max_upload_bytes", int64(100<<20))

	v.SetDefault("presign.default_ttl", time.Hour)
	v.SetDefault("presign.max_ttl", MaxPresignTTL)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("ratelimit.enable", true)
	v.SetDefault("ratelimit.requests_per_second", 20.0)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.system_interval", 15*time.Second)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"listen":     "listen",
		"log-level":  "log_level",
		"log-format": "log_format",
		"enable-tls": "enable_tls",
		"cert-file":  "cert_file",
		"key-file":   "key_file",
		"backend":    "store.backend",
		"bucket":     "store.bucket",
	}

	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	return nil
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("DRIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// DRIVE_* wins over the legacy name when both are set
	for key, legacy := range legacyEnv {
		envKey := "DRIVE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return err
		}
	}

	// Keys without defaults are invisible to Unmarshal unless bound explicitly
	for _, key := range []string{"cert_file", "key_file"} {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}

	return nil
}

// NormalizeExtension lower-cases ext and gives it a leading dot. Blank input
// yields the empty string.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

func normalize(cfg *Config) {
	exts := make([]string, 0, len(cfg.Namespace.AllowedExtensions))
	for _, ext := range cfg.Namespace.AllowedExtensions {
		if ext = NormalizeExtension(ext); ext != "" {
			exts = append(exts, ext)
		}
	}
	cfg.Namespace.AllowedExtensions = exts
	cfg.Namespace.OverwritePolicy = strings.ToLower(cfg.Namespace.OverwritePolicy)
	cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)
}

func validate(cfg *Config) error {
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log_format %q", cfg.LogFormat)
	}

	if cfg.Store.Bucket == "" {
		return fmt.Errorf("store.bucket is required")
	}

	switch cfg.Store.Backend {
	case "s3":
		if cfg.Store.Endpoint == "" {
			return fmt.Errorf("store.endpoint is required for the s3 backend")
		}
		if cfg.Store.Port < 1 || cfg.Store.Port > 65535 {
			return fmt.Errorf("store.port %d out of range", cfg.Store.Port)
		}
		if cfg.Store.AccessKey == "" || cfg.Store.SecretKey == "" {
			return fmt.Errorf("store.access_key and store.secret_key are required for the s3 backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}

	switch cfg.Namespace.OverwritePolicy {
	case OverwriteReject, OverwriteAllow:
	default:
		return fmt.Errorf("unknown namespace.overwrite_policy %q", cfg.Namespace.OverwritePolicy)
	}

	if cfg.Namespace.MoveConcurrency < 1 {
		return fmt.Errorf("namespace.move_concurrency must be at least 1")
	}
	if cfg.Namespace.MarkerName == "" || strings.Contains(cfg.Namespace.MarkerName, "/") {
		return fmt.Errorf("namespace.marker_name must be a non-empty name without separators")
	}
	if cfg.Namespace.MaxUploadBytes <= 0 {
		return fmt.Errorf("namespace.max_upload_bytes must be positive")
	}

	if cfg.Presign.MaxTTL <= 0 || cfg.Presign.MaxTTL > MaxPresignTTL {
		return fmt.Errorf("presign.max_ttl must be between 1s and %s", MaxPresignTTL)
	}
	if cfg.Presign.DefaultTTL <= 0 || cfg.Presign.DefaultTTL > cfg.Presign.MaxTTL {
		return fmt.Errorf("presign.default_ttl must be between 1s and presign.max_ttl")
	}

	if cfg.RateLimit.Enable && (cfg.RateLimit.RequestsPerSecond <= 0 || cfg.RateLimit.Burst < 1) {
		return fmt.Errorf("ratelimit.requests_per_second and ratelimit.burst must be positive")
	}

	// Validate TLS configuration
	if cfg.EnableTLS {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert-file or key-file not specified")
		}
	}

	return nil
}
