package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/angas/glowbridge/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
}

type AppConfigDatabase struct {
	Path string
	// How many days meter history should be stored before it gets purged
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files should be stored before they get deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetDataRetentionDays() int {
	if d.DataRetentionDays == nil {
		return 90
	}
	return *d.DataRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

type AppConfigGlow struct {
	Username string
	Password string
	// Identifier reported to the Glowmarkt API in the applicationId header
	ApplicationId *string `mapstructure:"application_id"`
	ApiUrl        *string `mapstructure:"api_url"`
	// Poll interval in minutes, default: 5
	UpdateIntervalMinutes *int `mapstructure:"update_interval_minutes"`
	// How long an issued token is considered valid, in hours, default: 168 (7 days)
	TokenLifetimeHours *int `mapstructure:"token_lifetime_hours"`
}

const defaultApplicationId = "b0f1b774-a586-4f72-9edd-27ead8aa7a8d"
const defaultApiUrl = "https://api.glowmarkt.com/api/v0-1"

func (g AppConfigGlow) GetApplicationId() string {
	if g.ApplicationId == nil {
		return defaultApplicationId
	}
	return *g.ApplicationId
}

func (g AppConfigGlow) GetApiUrl() string {
	if g.ApiUrl == nil {
		return defaultApiUrl
	}
	return strings.TrimRight(*g.ApiUrl, "/")
}

func (g AppConfigGlow) GetUpdateInterval() time.Duration {
	if g.UpdateIntervalMinutes == nil || *g.UpdateIntervalMinutes < 1 {
		return 5 * time.Minute
	}
	return time.Duration(*g.UpdateIntervalMinutes) * time.Minute
}

func (g AppConfigGlow) GetTokenLifetime() time.Duration {
	if g.TokenLifetimeHours == nil || *g.TokenLifetimeHours < 1 {
		return 168 * time.Hour
	}
	return time.Duration(*g.TokenLifetimeHours) * time.Hour
}

type AppConfigMqtt struct {
	Enabled  bool
	Host     string
	Port     int16
	Username string
	Password string
	// Home Assistant discovery prefix, default: "homeassistant"
	DiscoveryPrefix *string `mapstructure:"discovery_prefix"`
	// Root topic for state/availability/command topics, default: "glowbridge"
	BaseTopic *string `mapstructure:"base_topic"`
}

func (m AppConfigMqtt) GetDiscoveryPrefix() string {
	if m.DiscoveryPrefix == nil {
		return "homeassistant"
	}
	return *m.DiscoveryPrefix
}

func (m AppConfigMqtt) GetBaseTopic() string {
	if m.BaseTopic == nil {
		return "glowbridge"
	}
	return *m.BaseTopic
}

type AppConfigPurifier struct {
	// The demo air purifier device is off unless explicitly enabled
	Enabled bool
	Name    *string
	// Refresh interval in seconds, default: 30
	UpdateIntervalSeconds *int `mapstructure:"update_interval_seconds"`
}

func (p AppConfigPurifier) GetName() string {
	if p.Name == nil {
		return "Smart Air Purifier"
	}
	return *p.Name
}

func (p AppConfigPurifier) GetUpdateInterval() time.Duration {
	if p.UpdateIntervalSeconds == nil || *p.UpdateIntervalSeconds < 1 {
		return 30 * time.Second
	}
	return time.Duration(*p.UpdateIntervalSeconds) * time.Second
}

type AppConfigLogging struct {
	// Min log level for database: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return "JSON"
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return "TEXT"
	}
	return "JSON"
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	// Identifies this installation, used as the prefix of entity unique ids
	InstanceId *string `mapstructure:"instance_id"`
	Api        AppConfigApi
	Database   AppConfigDatabase
	Glow       AppConfigGlow
	Mqtt       AppConfigMqtt
	Purifier   AppConfigPurifier
	Logging    AppConfigLogging
}

func (c AppConfig) GetInstanceId() string {
	if c.InstanceId == nil || *c.InstanceId == "" {
		return "glowbridge"
	}
	return *c.InstanceId
}

func Load(path string) (*AppConfig, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath("config")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c AppConfig

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	return &c, nil
}

// Watch re-reads the config file whenever it changes on disk and hands the
// fresh config to onChange. Only options that are safe to apply at runtime
// (poll intervals, log levels) should be picked up by the caller.
func Watch(logger *slog.Logger, onChange func(*AppConfig)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed", slog.String("file", e.Name))
		var c AppConfig
		if err := viper.Unmarshal(&c); err != nil {
			logger.Error("unable to unmarshal changed config file", slog.Any("error", err))
			return
		}
		onChange(&c)
	})
	viper.WatchConfig()
}
