package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "companion.cfg.json"

// SessionConfig holds broker transport settings.
type SessionConfig struct {
	Scheme         string        `json:"scheme" mapstructure:"scheme"`
	Path           string        `json:"path" mapstructure:"path"`
	ClientIDPrefix string        `json:"clientIdPrefix" mapstructure:"clientIdPrefix"`
	ReconnectDelay time.Duration `json:"reconnectDelay" mapstructure:"reconnectDelay"`
	ConnectTimeout time.Duration `json:"connectTimeout" mapstructure:"connectTimeout"`
	PublishQoS     byte          `json:"publishQos" mapstructure:"publishQos"`
}

// SQLiteConfig holds the local settings database location
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds shared settings database credentials
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// SettingsConfig selects the settings store backend
type SettingsConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// InfluxConfig holds telemetry sink settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds the GELF sink settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// APIConfig holds the HTTP status server settings
type APIConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// ScriptDefaults are the detector thresholds offered before the operator changes them.
type ScriptDefaults struct {
	Confidence float64 `json:"confidence" mapstructure:"confidence"`
	Cooldown   int     `json:"cooldown" mapstructure:"cooldown"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("settings.type", "sqlite")
	viper.SetDefault("settings.sqlite.path", "./companion.db")
	viper.SetDefault("settings.postgres.host", "localhost")
	viper.SetDefault("settings.postgres.port", "5432")
	viper.SetDefault("settings.postgres.username", "postgres")
	viper.SetDefault("settings.postgres.password", "postgres")
	viper.SetDefault("settings.postgres.database", "companion")

	viper.SetDefault("session.scheme", "ws")
	viper.SetDefault("session.path", "/mqtt")
	viper.SetDefault("session.clientIdPrefix", "cat-detector-gui")
	viper.SetDefault("session.reconnectDelay", "5s")
	viper.SetDefault("session.connectTimeout", "5s")
	viper.SetDefault("session.publishQos", 0)

	viper.SetDefault("script.confidence", 0.55)
	viper.SetDefault("script.cooldown", 10)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "cat-detector")
	viper.SetDefault("influx.bucket", "companion")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("monitor.interval", "30s")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.address", "127.0.0.1:8080")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSessionConfig returns broker transport settings.
func GetSessionConfig() SessionConfig {
	qos := viper.GetInt("session.publishQos")
	if qos < 0 || qos > 2 {
		qos = 0
	}
	return SessionConfig{
		Scheme:         viper.GetString("session.scheme"),
		Path:           viper.GetString("session.path"),
		ClientIDPrefix: viper.GetString("session.clientIdPrefix"),
		ReconnectDelay: viper.GetDuration("session.reconnectDelay"),
		ConnectTimeout: viper.GetDuration("session.connectTimeout"),
		PublishQoS:     byte(qos),
	}
}

// GetSettingsConfig returns the settings store selection.
func GetSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Type: viper.GetString("settings.type"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("settings.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("settings.postgres.host"),
			Port:     viper.GetString("settings.postgres.port"),
			Username: viper.GetString("settings.postgres.username"),
			Password: viper.GetString("settings.postgres.password"),
			Database: viper.GetString("settings.postgres.database"),
		},
	}
}

// GetInfluxConfig returns telemetry sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetScriptDefaults returns the initial detector thresholds.
func GetScriptDefaults() ScriptDefaults {
	return ScriptDefaults{
		Confidence: viper.GetFloat64("script.confidence"),
		Cooldown:   viper.GetInt("script.cooldown"),
	}
}

// GetMonitorInterval returns how often the health monitor samples.
func GetMonitorInterval() time.Duration {
	return viper.GetDuration("monitor.interval")
}

// GetAPIConfig returns the HTTP status server settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled: viper.GetBool("api.enabled"),
		Address: viper.GetString("api.address"),
	}
}
