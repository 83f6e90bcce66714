// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
	Matching      MatchingConfig          `mapstructure:"matching"`
	Predictor     PredictorConfig         `mapstructure:"predictor"`
	Explainer     ExplainerConfig         `mapstructure:"explainer"`
	Maps          MapsConfig              `mapstructure:"maps"`
	Routing       RoutingConfig           `mapstructure:"routing"`
	Tracking      TrackingConfig          `mapstructure:"tracking"`
	Diversion     DiversionConfig         `mapstructure:"diversion"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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

// Enabled reports whether a Postgres host was configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	AuditIndex  string   `mapstructure:"audit_index"`
	AuditEnable bool     `mapstructure:"audit_enabled"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// --- Matching core ---

type MatchingConfig struct {
	DefaultMaxRecommendations int     `mapstructure:"default_max_recommendations"`
	DefaultMaxDistanceKm      float64 `mapstructure:"default_max_distance_km"`
	AverageSpeedKmh           float64 `mapstructure:"average_speed_kmh"`
	MaxWorkload               int     `mapstructure:"max_workload"`
}

type PredictorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ExplainerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"` // genai | openai
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MapsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RoutingConfig struct {
	Backend             string        `mapstructure:"backend"` // memory | redis
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	CoordinatePrecision int           `mapstructure:"coordinate_precision"`
	IncidentRadiusKm    float64       `mapstructure:"incident_radius_km"`
}

type TrackingConfig struct {
	HistoryCap    int           `mapstructure:"history_cap"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	EvictSchedule string        `mapstructure:"evict_schedule"`
	MQTT          MQTTConfig    `mapstructure:"mqtt"`
}

// MQTTConfig enables the device location feed.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

type DiversionConfig struct {
	NotifyCustomerOnFailure bool          `mapstructure:"notify_customer_on_failure"`
	RouteTimeout            time.Duration `mapstructure:"route_timeout"`
}

// NotificationConfig holds AWS delivery settings.
type NotificationConfig struct {
	Region string `mapstructure:"region"`
	SMS    struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	CustomerServiceEmail string        `mapstructure:"customer_service_email"`
	SendTimeout          time.Duration `mapstructure:"send_timeout"`
}
