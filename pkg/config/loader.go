package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/swarm-autoscaler")
	}

	v.SetEnvPrefix("AUTOSCALER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: defaults plus environment overrides.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Dry run is presence-based: setting AUTOSCALER_DRYRUN to any value,
	// including empty, enables it.
	if _, present := os.LookupEnv("AUTOSCALER_DRYRUN"); present {
		cfg.Autoscaler.DryRun = true
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "swarm-autoscaler")
	v.SetDefault("app.mode", "production")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")

	v.SetDefault("autoscaler.interval", "300s")
	v.SetDefault("autoscaler.percentage_min", 25.0)
	v.SetDefault("autoscaler.percentage_max", 85.0)
	v.SetDefault("autoscaler.workers", 8)
	v.SetDefault("autoscaler.dry_run", false)

	v.SetDefault("registry.refresh_interval", "30s")
	v.SetDefault("registry.health_interval", "60s")

	v.SetDefault("docker.host", "unix:///var/run/docker.sock")
	v.SetDefault("docker.api_version", "v1.41")
	v.SetDefault("docker.timeout", "10s")

	v.SetDefault("metrics.source", "docker")
	v.SetDefault("metrics.cadvisor_url", "")
	v.SetDefault("metrics.timeout", "3s")
	v.SetDefault("metrics.discovery_dns", "tasks.autoscaler")
	v.SetDefault("metrics.discovery_port", 8080)
	v.SetDefault("metrics.circuit_breaker.max_failures", 5)
	v.SetDefault("metrics.circuit_breaker.timeout", "30s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "autoscaler")
	v.SetDefault("database.user", "autoscaler")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "swarm-autoscaler")
	v.SetDefault("events.buffer_size", 100)
	v.SetDefault("events.max_history", 10000)

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
}
