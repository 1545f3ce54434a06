package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/domdfcoding/statsbackend/internal/models"
)

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	InfluxDB  InfluxDBConfig  `mapstructure:"influxdb"`
	Data      DataConfig      `mapstructure:"data"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Domains   DomainsConfig   `mapstructure:"domains"`
}

type ServerConfig struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	CacheSize      int     `mapstructure:"cache_size"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type InfluxDBConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Org     string        `mapstructure:"org"`
	Bucket  string        `mapstructure:"bucket"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

type SchedulerConfig struct {
	// Spec is a standard five-field cron expression.
	Spec string `mapstructure:"spec"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DomainsConfig struct {
	Energy      EnergyConfig      `mapstructure:"energy"`
	Rainfall    RainfallConfig    `mapstructure:"rainfall"`
	Temperature TemperatureConfig `mapstructure:"temperature"`
}

type EnergyConfig struct {
	CurrentTopic  string `mapstructure:"current_topic"`
	VoltageSource string `mapstructure:"voltage_source"`
	StartDate     string `mapstructure:"start_date"`
}

type RainfallConfig struct {
	Topic      string  `mapstructure:"topic"`
	MinDailyMM float64 `mapstructure:"min_daily_mm"`
	StartDate  string  `mapstructure:"start_date"`
}

type TemperatureConfig struct {
	Topic     string  `mapstructure:"topic"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	MinValid  float64 `mapstructure:"min_valid"`
	StartDate string  `mapstructure:"start_date"`
}

// Load reads configuration from a YAML file, expanding ${ENV} references
// before parsing so secrets like the InfluxDB token can stay out of the
// file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadConfig(bytes.NewReader([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cache_size", 256)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("influxdb.url", "http://localhost:8086")
	v.SetDefault("influxdb.org", "Home")
	v.SetDefault("influxdb.bucket", "telegraf")
	v.SetDefault("influxdb.timeout", "60s")

	v.SetDefault("data.dir", "./data")

	v.SetDefault("scheduler.spec", "*/15 * * * *")

	v.SetDefault("mqtt.client_id", "statsbackend")
	v.SetDefault("mqtt.topic_prefix", "statsbackend")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("domains.energy.current_topic", "CT_CLAMP/tele/SENSOR")
	v.SetDefault("domains.energy.start_date", "2022-08-01")
	v.SetDefault("domains.rainfall.topic", "WEATHER_TEST/SENSOR")
	v.SetDefault("domains.rainfall.min_daily_mm", 0.28)
	v.SetDefault("domains.rainfall.start_date", "2022-08-01")
	v.SetDefault("domains.temperature.min_valid", -140.0)
	v.SetDefault("domains.temperature.start_date", "2022-07-01")
}

func (c *Config) validate() error {
	if c.InfluxDB.Token == "" {
		return fmt.Errorf("influxdb.token is required")
	}
	if c.Domains.Energy.VoltageSource == "" {
		return fmt.Errorf("domains.energy.voltage_source is required")
	}
	if c.Domains.Temperature.Topic == "" {
		return fmt.Errorf("domains.temperature.topic is required")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}

	for _, d := range []struct{ name, value string }{
		{"domains.energy.start_date", c.Domains.Energy.StartDate},
		{"domains.rainfall.start_date", c.Domains.Rainfall.StartDate},
		{"domains.temperature.start_date", c.Domains.Temperature.StartDate},
	} {
		if _, err := models.ParseDate(d.value); err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	return nil
}

// MustParseDate converts a validated start_date string into a Date.
// Only call after Load has succeeded.
func MustParseDate(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
