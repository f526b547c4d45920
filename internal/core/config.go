// Package core provides configuration management for the factory monitor
package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/notifier"
	"github.com/namansh70747/smart-factory-monitor/internal/observer"
	"github.com/namansh70747/smart-factory-monitor/internal/report"
	"github.com/namansh70747/smart-factory-monitor/internal/simulator"
	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "configs/factory.yaml"

var validate = validator.New()

// Config holds all factory monitor configuration with validation
type Config struct {
	App struct {
		Name     string `yaml:"name" validate:"required"`
		Version  string `yaml:"version" validate:"required"`
		LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	} `yaml:"app"`

	Database struct {
		Host           string        `yaml:"host" validate:"required"`
		Port           int           `yaml:"port" validate:"min=1,max=65535"`
		User           string        `yaml:"user" validate:"required"`
		Password       string        `yaml:"password"`
		DBName         string        `yaml:"dbname" validate:"required"`
		SSLMode        string        `yaml:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
		MaxConnections int           `yaml:"max_connections" validate:"min=1"`
		MinConnections int           `yaml:"min_connections" validate:"min=0,ltefield=MaxConnections"`
		QueryTimeout   time.Duration `yaml:"query_timeout" validate:"gt=0"`
		AutoMigrate    bool          `yaml:"auto_migrate"`
	} `yaml:"database"`

	Server struct {
		Port            int           `yaml:"port" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
		WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
		RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gt=0"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	} `yaml:"server"`

	Engine struct {
		KPI    analyzer.KPIConfig   `yaml:"kpi"`
		Alerts analyzer.AlertConfig `yaml:"alerts"`
		Report report.Config        `yaml:"report"`
	} `yaml:"engine"`

	Observer observer.Config `yaml:"observer"`
	Notifier notifier.Config `yaml:"notifier"`

	Simulator simulator.Config `yaml:"simulator"`

	Chat struct {
		RatePerSecond   float64 `yaml:"rate_per_second" validate:"gt=0"`
		Burst           int     `yaml:"burst" validate:"min=1"`
		MaxMessageBytes int     `yaml:"max_message_bytes" validate:"min=1"`
	} `yaml:"chat"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	c := &Config{}
	c.App.Name = "factory-monitor"
	c.App.Version = "1.0.0"
	c.App.LogLevel = "info"

	c.Database.Host = "localhost"
	c.Database.Port = 5432
	c.Database.User = "factory"
	c.Database.DBName = "factory"
	c.Database.SSLMode = "disable"
	c.Database.MaxConnections = 10
	c.Database.MinConnections = 2
	c.Database.QueryTimeout = 5 * time.Second

	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Server.RequestTimeout = 10 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second

	c.Engine.KPI = analyzer.DefaultKPIConfig()
	c.Engine.Alerts = analyzer.DefaultAlertConfig()
	c.Engine.Report = report.DefaultConfig()

	c.Observer = observer.DefaultConfig()
	c.Notifier = notifier.DefaultConfig()
	c.Simulator = simulator.DefaultConfig()

	c.Chat.RatePerSecond = 5
	c.Chat.Burst = 10
	c.Chat.MaxMessageBytes = 2000
	return c
}

// LoadConfig reads the YAML file over the defaults, applies environment
// overrides and validates the result
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Validate checks field constraints and the rules spanning several fields
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Engine.KPI.Validate(); err != nil {
		return fmt.Errorf("engine.kpi: %w", err)
	}
	if err := c.Engine.Alerts.Validate(); err != nil {
		return fmt.Errorf("engine.alerts: %w", err)
	}
	if _, err := c.Engine.Report.Location(); err != nil {
		return fmt.Errorf("engine.report: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides
func (c *Config) ApplyEnvOverrides() error {
	if host := os.Getenv("FACTORY_DB_HOST"); host != "" {
		c.Database.Host = host
	}
	if port := os.Getenv("FACTORY_DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("FACTORY_DB_PORT: %w", err)
		}
		c.Database.Port = p
	}
	if user := os.Getenv("FACTORY_DB_USER"); user != "" {
		c.Database.User = user
	}
	if password := os.Getenv("FACTORY_DB_PASSWORD"); password != "" {
		c.Database.Password = password
	}
	if dbname := os.Getenv("FACTORY_DB_NAME"); dbname != "" {
		c.Database.DBName = dbname
	}
	if logLevel := os.Getenv("FACTORY_LOG_LEVEL"); logLevel != "" {
		c.App.LogLevel = logLevel
	}
	if brokers := os.Getenv("FACTORY_KAFKA_BROKERS"); brokers != "" {
		c.Notifier.Brokers = splitList(brokers)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetDatabaseURL returns PostgreSQL connection string
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
