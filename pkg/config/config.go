package config

import (
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/pkg/database"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Autoscaler AutoscalerConfig `mapstructure:"autoscaler"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Docker     DockerConfig     `mapstructure:"docker"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Events     EventsConfig     `mapstructure:"events"`
	API        APIConfig        `mapstructure:"api"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AutoscalerConfig struct {
	// Interval is the evaluation tick; it doubles as the only cooldown
	// between scaling actions on one service.
	Interval      time.Duration `mapstructure:"interval"`
	PercentageMin float64       `mapstructure:"percentage_min"`
	PercentageMax float64       `mapstructure:"percentage_max"`
	Workers       int           `mapstructure:"workers"`
	DryRun        bool          `mapstructure:"dry_run"`
}

type RegistryConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
}

type DockerConfig struct {
	Host       string        `mapstructure:"host"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type MetricsSource string

const (
	SourceDocker   MetricsSource = "docker"
	SourceCadvisor MetricsSource = "cadvisor"
)

type MetricsConfig struct {
	Source        MetricsSource        `mapstructure:"source"`
	CadvisorURL   string               `mapstructure:"cadvisor_url"`
	Timeout       time.Duration        `mapstructure:"timeout"`
	DiscoveryDNS  string               `mapstructure:"discovery_dns"`
	DiscoveryPort int                  `mapstructure:"discovery_port"`
	Breaker       CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

func (c DatabaseConfig) ToDBConfig() database.Config {
	return database.Config{
		Host:           c.Host,
		Port:           c.Port,
		Name:           c.Name,
		User:           c.User,
		Password:       c.Password,
		SSLMode:        c.SSLMode,
		MaxConnections: c.MaxConnections,
	}
}

type EventsConfig struct {
	AMQPURL    string `mapstructure:"amqp_url"`
	Exchange   string `mapstructure:"exchange"`
	BufferSize int    `mapstructure:"buffer_size"`
	MaxHistory int    `mapstructure:"max_history"`
}

type APIConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}
