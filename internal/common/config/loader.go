// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml and
// applies environment overrides (matching.average_speed_kmh -> MATCHING_AVERAGE_SPEED_KMH).
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	v.SetDefault("diversion.notify_customer_on_failure", true)
	return v
}

// AutomaticEnv only applies to keys viper already knows about, so the keys that
// are commonly set from the environment alone are bound explicitly.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"camunda.broker_address",
		"database.postgres.host",
		"database.postgres.user",
		"database.postgres.password",
		"database.redis.address",
		"predictor.base_url",
		"predictor.api_key",
		"explainer.api_key",
		"maps.api_key",
		"routing.backend",
	} {
		_ = v.BindEnv(key)
	}
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dispatch-worker"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.AuditIndex == "" {
		cfg.Database.Elasticsearch.AuditIndex = "dispatch-decisions"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.Matching.DefaultMaxRecommendations == 0 {
		cfg.Matching.DefaultMaxRecommendations = 5
	}
	if cfg.Matching.DefaultMaxDistanceKm == 0 {
		cfg.Matching.DefaultMaxDistanceKm = 200
	}
	if cfg.Matching.AverageSpeedKmh == 0 {
		cfg.Matching.AverageSpeedKmh = 40
	}
	if cfg.Matching.MaxWorkload == 0 {
		cfg.Matching.MaxWorkload = 5
	}

	if cfg.Predictor.Timeout == 0 {
		cfg.Predictor.Timeout = 800 * time.Millisecond
	}
	if cfg.Explainer.Provider == "" {
		cfg.Explainer.Provider = "genai"
	}
	if cfg.Explainer.Timeout == 0 {
		cfg.Explainer.Timeout = 2 * time.Second
	}
	if cfg.Maps.Timeout == 0 {
		cfg.Maps.Timeout = 3 * time.Second
	}

	if cfg.Routing.Backend == "" {
		cfg.Routing.Backend = "memory"
	}
	if cfg.Routing.CacheTTL == 0 {
		cfg.Routing.CacheTTL = 5 * time.Minute
	}
	if cfg.Routing.CoordinatePrecision == 0 {
		cfg.Routing.CoordinatePrecision = 4
	}
	if cfg.Routing.IncidentRadiusKm == 0 {
		cfg.Routing.IncidentRadiusKm = 5
	}

	if cfg.Tracking.HistoryCap == 0 {
		cfg.Tracking.HistoryCap = 100
	}
	if cfg.Tracking.StaleAfter == 0 {
		cfg.Tracking.StaleAfter = 30 * time.Minute
	}
	if cfg.Tracking.EvictSchedule == "" {
		cfg.Tracking.EvictSchedule = "@every 5m"
	}
	if cfg.Tracking.MQTT.ClientID == "" {
		cfg.Tracking.MQTT.ClientID = "dispatch-worker"
	}
	if cfg.Tracking.MQTT.Topic == "" {
		cfg.Tracking.MQTT.Topic = "dispatch/technicians/+/location"
	}

	if cfg.Diversion.RouteTimeout == 0 {
		cfg.Diversion.RouteTimeout = 3 * time.Second
	}

	if cfg.Notifications.Region == "" {
		cfg.Notifications.Region = "us-east-1"
	}
	if cfg.Notifications.SendTimeout == 0 {
		cfg.Notifications.SendTimeout = 5 * time.Second
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	switch cfg.Routing.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when routing.backend is redis")
		}
	default:
		return fmt.Errorf("routing.backend must be memory or redis, got %q", cfg.Routing.Backend)
	}

	if cfg.Predictor.Enabled && cfg.Predictor.BaseURL == "" {
		return fmt.Errorf("predictor.base_url is required when predictor.enabled is true")
	}
	switch cfg.Explainer.Provider {
	case "genai":
		if cfg.Explainer.Enabled && cfg.Explainer.BaseURL == "" {
			return fmt.Errorf("explainer.base_url is required when explainer.enabled is true")
		}
	case "openai":
		if cfg.Explainer.Enabled && cfg.Explainer.APIKey == "" {
			return fmt.Errorf("explainer.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("explainer.provider must be genai or openai, got %q", cfg.Explainer.Provider)
	}
	if cfg.Database.Elasticsearch.AuditEnable && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when audit is enabled")
	}
	if cfg.Tracking.HistoryCap < 1 {
		return fmt.Errorf("tracking.history_cap must be positive")
	}
	if cfg.Tracking.MQTT.Enabled && cfg.Tracking.MQTT.Broker == "" {
		return fmt.Errorf("tracking.mqtt.broker is required when tracking.mqtt.enabled is true")
	}
	if cfg.Tracking.MQTT.QoS > 2 {
		return fmt.Errorf("tracking.mqtt.qos must be 0, 1 or 2")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}
