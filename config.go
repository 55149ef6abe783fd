package leadflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/leadflow/internal/movement"
)

// MovementConfig controls how stage moves are retried.
type MovementConfig struct {
	// MaxRetries is the number of retries after the initial persistence attempt.
	// Zero means "use the default" (3).
	MaxRetries int `yaml:"maxRetries"`

	// RetryDelays is the backoff before each retry, indexed by attempt.
	// Attempts past the end reuse the last delay.
	//
	// Default: [1s, 2s, 4s]
	RetryDelays []time.Duration `yaml:"retryDelays"`

	// FailureDisplay is how long a failed move stays visible before it is cleared.
	//
	// Default: 5 seconds
	FailureDisplay time.Duration `yaml:"failureDisplay"`
}

// KVBucketConfig configures the JetStream KV bucket holding CRM records.
type KVBucketConfig struct {
	// Name is the bucket name.
	Name string `yaml:"name"`

	// Replicas is the stream replica count (1 for a single server, 3 for a cluster).
	Replicas int `yaml:"replicas"`
}

// WebhookConfig configures the HTTP intake endpoint served by "leadflow serve".
type WebhookConfig struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `yaml:"listenAddr"`

	// Path is the route of the contact webhook.
	Path string `yaml:"path"`

	// MetricsPath is the route of the Prometheus endpoint. Empty disables it.
	MetricsPath string `yaml:"metricsPath"`
}

// Config is the configuration of a Service.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// Movement controls stage move retries.
	Movement MovementConfig `yaml:"movement"`

	// KVBucket controls the NATS JetStream KV bucket.
	KVBucket KVBucketConfig `yaml:"kvBucket"`

	// Webhook controls the HTTP intake endpoint.
	Webhook WebhookConfig `yaml:"webhook"`

	// OperationTimeout bounds every KV read or write issued by the service,
	// including each persistence attempt of a stage move.
	// Recommended: 10 seconds.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// StartupTimeout is the maximum time Start waits for the KV bucket.
	// Recommended: 30 seconds.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// ShutdownTimeout is the maximum time to wait for in-flight moves on shutdown.
	// Recommended: 10 seconds.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DefaultConfig returns a Config with production defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Movement: MovementConfig{
			MaxRetries:     3,
			RetryDelays:    []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
			FailureDisplay: 5 * time.Second,
		},
		KVBucket: KVBucketConfig{
			Name:     "leadflow-crm",
			Replicas: 1,
		},
		Webhook: WebhookConfig{
			ListenAddr:  ":8080",
			Path:        "/webhook/contacts",
			MetricsPath: "/metrics",
		},
		OperationTimeout: 10 * time.Second,
		StartupTimeout:   30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Movement.MaxRetries == 0 {
		cfg.Movement.MaxRetries = defaults.Movement.MaxRetries
	}
	if len(cfg.Movement.RetryDelays) == 0 {
		cfg.Movement.RetryDelays = defaults.Movement.RetryDelays
	}
	if cfg.Movement.FailureDisplay == 0 {
		cfg.Movement.FailureDisplay = defaults.Movement.FailureDisplay
	}
	if cfg.KVBucket.Name == "" {
		cfg.KVBucket.Name = defaults.KVBucket.Name
	}
	if cfg.KVBucket.Replicas == 0 {
		cfg.KVBucket.Replicas = defaults.KVBucket.Replicas
	}
	if cfg.Webhook.ListenAddr == "" {
		cfg.Webhook.ListenAddr = defaults.Webhook.ListenAddr
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = defaults.Webhook.Path
	}
	// Note: an empty MetricsPath is valid (endpoint disabled), so no default is applied
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - Movement policy is usable (non-negative retries, positive delays and display time)
//   - KVBucket.Name is a valid bucket name and 1 <= Replicas <= 5
//   - Webhook paths start with "/" and differ from each other
//   - OperationTimeout, StartupTimeout and ShutdownTimeout > 0
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if err := cfg.movementConfig().Validate(); err != nil {
		return err
	}

	if cfg.KVBucket.Name == "" || strings.ContainsAny(cfg.KVBucket.Name, ". *>") {
		return fmt.Errorf("%w: KVBucket.Name %q is not a valid bucket name", ErrInvalidConfig, cfg.KVBucket.Name)
	}
	if cfg.KVBucket.Replicas < 1 || cfg.KVBucket.Replicas > 5 {
		return fmt.Errorf("%w: KVBucket.Replicas must be between 1 and 5, got %d", ErrInvalidConfig, cfg.KVBucket.Replicas)
	}

	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		return fmt.Errorf("%w: Webhook.Path must start with '/', got %q", ErrInvalidConfig, cfg.Webhook.Path)
	}
	if cfg.Webhook.MetricsPath != "" {
		if !strings.HasPrefix(cfg.Webhook.MetricsPath, "/") {
			return fmt.Errorf("%w: Webhook.MetricsPath must start with '/', got %q", ErrInvalidConfig, cfg.Webhook.MetricsPath)
		}
		if cfg.Webhook.MetricsPath == cfg.Webhook.Path {
			return fmt.Errorf("%w: Webhook.Path and Webhook.MetricsPath must differ", ErrInvalidConfig)
		}
	}

	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("%w: OperationTimeout must be > 0, got %v", ErrInvalidConfig, cfg.OperationTimeout)
	}
	if cfg.StartupTimeout <= 0 {
		return fmt.Errorf("%w: StartupTimeout must be > 0, got %v", ErrInvalidConfig, cfg.StartupTimeout)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: ShutdownTimeout must be > 0, got %v", ErrInvalidConfig, cfg.ShutdownTimeout)
	}

	return nil
}

// ValidateWithWarnings logs warnings for values that are valid but not recommended.
//
// This is called after Validate() in NewService() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Movement.MaxRetries > len(cfg.Movement.RetryDelays) {
		logger.Warn(
			"more retries than retry delays, the last delay is reused",
			"maxRetries", cfg.Movement.MaxRetries,
			"retryDelays", len(cfg.Movement.RetryDelays),
		)
	}

	if cfg.Movement.FailureDisplay < time.Second {
		logger.Warn(
			"FailureDisplay is very short, users may not notice failed moves",
			"failureDisplay", cfg.Movement.FailureDisplay,
			"recommended", "5s",
		)
	}

	// A persistence attempt that outlives the next backoff makes retries overlap in wall time.
	if len(cfg.Movement.RetryDelays) > 0 && cfg.OperationTimeout > 4*cfg.Movement.RetryDelays[len(cfg.Movement.RetryDelays)-1] {
		logger.Warn(
			"OperationTimeout is long compared to retry delays",
			"operationTimeout", cfg.OperationTimeout,
			"lastRetryDelay", cfg.Movement.RetryDelays[len(cfg.Movement.RetryDelays)-1],
		)
	}
}

// movementConfig converts the movement section into the coordinator policy.
func (cfg *Config) movementConfig() movement.Config {
	return movement.Config{
		MaxRetries:       cfg.Movement.MaxRetries,
		RetryDelays:      cfg.Movement.RetryDelays,
		FailureDisplay:   cfg.Movement.FailureDisplay,
		OperationTimeout: cfg.OperationTimeout,
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Retry delays and the failure display are 100x shorter than production defaults.
// Use DefaultConfig() for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := leadflow.TestConfig()
//	cfg.KVBucket.Name = "crm-" + t.Name()
//	svc, err := leadflow.NewService(&cfg, js, strategy.NewProportional())
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Movement.RetryDelays = []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	cfg.Movement.FailureDisplay = 50 * time.Millisecond
	cfg.KVBucket.Name = "leadflow-test"
	cfg.Webhook.ListenAddr = "127.0.0.1:0"
	cfg.OperationTimeout = 2 * time.Second
	cfg.StartupTimeout = 5 * time.Second
	cfg.ShutdownTimeout = 2 * time.Second

	return cfg
}

// LoadConfig reads a YAML configuration file, applies defaults and validates it.
//
// Unknown keys are rejected so that typos do not silently fall back to defaults.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Config: Loaded configuration
//   - error: Read, parse or validation error
//
// Example:
//
//	cfg, err := leadflow.LoadConfig("leadflow.yaml")
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration, applies defaults and validates it.
//
// An empty document yields the defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
