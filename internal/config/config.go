package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	commoncfg "garage-layout/internal/common/config"
	"garage-layout/internal/workbook"

	"gopkg.in/yaml.v3"
)

// Config garage-layout service configuration
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Output   OutputConfig   `yaml:"output"`
	Import   ImportConfig   `yaml:"import"`
	Workbook WorkbookConfig `yaml:"workbook"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// OutputConfig where exported documents land on disk
type OutputConfig struct {
	Dir               string `yaml:"dir"`
	CameraHubFile     string `yaml:"camera_hub_file"`
	DevicesConfigFile string `yaml:"devices_config_file"`
	FLIDir            string `yaml:"fli_dir"`
}

// ImportConfig workbook import caps; they can only lower the hard limits
type ImportConfig struct {
	MaxSheetRows int `yaml:"max_sheet_rows"`
	MaxDevices   int `yaml:"max_devices"`
}

// WorkbookConfig remote workbook source
type WorkbookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DBConfig Postgres config archive
type DBConfig struct {
	Enabled                  bool `yaml:"enabled"`
	commoncfg.DatabaseConfig `yaml:",inline"`
}

// RedisConfig Redis document store
type RedisConfig struct {
	Enabled               bool   `yaml:"enabled"`
	KeyPrefix             string `yaml:"key_prefix"`
	commoncfg.RedisConfig `yaml:",inline"`
}

// MQTTConfig change notices
type MQTTConfig struct {
	Enabled              bool   `yaml:"enabled"`
	Topic                string `yaml:"topic"`
	commoncfg.MQTTConfig `yaml:",inline"`
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Output.Dir = getEnv("OUTPUT_DIR", "./out")
	cfg.Output.CameraHubFile = getEnv("OUTPUT_CAMERA_HUB_FILE", "CameraHubConfig.xml")
	cfg.Output.DevicesConfigFile = getEnv("OUTPUT_DEVICES_CONFIG_FILE", "DevicesConfig.xml")
	cfg.Output.FLIDir = getEnv("OUTPUT_FLI_DIR", "fli")

	cfg.Import.MaxSheetRows = parseInt(getEnv("IMPORT_MAX_SHEET_ROWS", ""), workbook.MaxSheetRows)
	cfg.Import.MaxDevices = parseInt(getEnv("IMPORT_MAX_DEVICES", ""), workbook.MaxDevices)

	cfg.Workbook.URL = getEnv("WORKBOOK_URL", "")
	cfg.Workbook.Timeout = parseDuration(getEnv("WORKBOOK_TIMEOUT", ""), 30*time.Second)

	// Archive, Redis and MQTT are off unless asked for; the CLI runs without them.
	cfg.DB.Enabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_NAME", "garage_layout")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", "garage:config:")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "garage-layout")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "garage/config/changed")

	return cfg
}

// LoadFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ImportLimits returns the configured caps, clamped to the hard limits.
func (c *Config) ImportLimits() workbook.Limits {
	l := workbook.Limits{MaxSheetRows: c.Import.MaxSheetRows, MaxDevices: c.Import.MaxDevices}
	if l.MaxSheetRows <= 0 || l.MaxSheetRows > workbook.MaxSheetRows {
		l.MaxSheetRows = workbook.MaxSheetRows
	}
	if l.MaxDevices <= 0 || l.MaxDevices > workbook.MaxDevices {
		l.MaxDevices = workbook.MaxDevices
	}
	return l
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
