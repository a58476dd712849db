package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/notify"
	"github.com/ogulcanaydogan/norway-alerts/pkg/pipeline"
	"github.com/ogulcanaydogan/norway-alerts/pkg/poller"
	"github.com/ogulcanaydogan/norway-alerts/pkg/publish"
	"github.com/ogulcanaydogan/norway-alerts/pkg/render"
	"github.com/ogulcanaydogan/norway-alerts/pkg/sources"
)

// EnvPrefix prefixes every environment override, e.g. NORWAY_ALERTS_LOGGING_LEVEL.
const EnvPrefix = "NORWAY_ALERTS"

// Config holds all norway-alerts configuration.
type Config struct {
	Logging   LoggingConfig    `mapstructure:"logging"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Server    ServerConfig     `mapstructure:"server"`
	Poll      PollConfig       `mapstructure:"poll"`
	HTTP      HTTPConfig       `mapstructure:"http"`
	MQTT      MQTTConfig       `mapstructure:"mqtt"`
	Instances []InstanceConfig `mapstructure:"instances"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig defines the API server settings.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// PollConfig defines how often and how long upstream services are polled.
// Timeout bounds a single request; CycleTimeout bounds one instance's cycle.
type PollConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
}

// HTTPConfig defines upstream client settings.
type HTTPConfig struct {
	UserAgent string `mapstructure:"user_agent"`
}

// MQTTConfig defines the optional MQTT publisher.
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	Port           int           `mapstructure:"port"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            int           `mapstructure:"qos"`
	Retain         bool          `mapstructure:"retain"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// InstanceConfig defines one watched location and warning type.
type InstanceConfig struct {
	ID                 string              `mapstructure:"id"`
	Name               string              `mapstructure:"name"`
	WarningType        string              `mapstructure:"warning_type"`
	CountyID           string              `mapstructure:"county_id"`
	Latitude           *float64            `mapstructure:"latitude"`
	Longitude          *float64            `mapstructure:"longitude"`
	Lang               string              `mapstructure:"lang"`
	MunicipalityFilter string              `mapstructure:"municipality_filter"`
	CAPFormat          bool                `mapstructure:"cap_format"`
	TestMode           bool                `mapstructure:"test_mode"`
	Notifications      NotificationsConfig `mapstructure:"notifications"`
	Display            DisplayConfig       `mapstructure:"display"`
}

// NotificationsConfig enables change detection for an instance.
type NotificationsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Severity string `mapstructure:"severity"`
}

// DisplayConfig toggles parts of the markdown summary. Unset flags default to
// enabled.
type DisplayConfig struct {
	ShowIcon    *bool `mapstructure:"show_icon"`
	ShowStatus  *bool `mapstructure:"show_status"`
	ShowMap     *bool `mapstructure:"show_map"`
	SortByLevel bool  `mapstructure:"sort_by_level"`
}

// Load reads configuration from .env, file and environment variables.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("find home directory: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(filepath.Join(home, ".norway-alerts"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("storage.path", filepath.Join(home, ".norway-alerts", "alerts.db"))
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("poll.interval", poller.DefaultInterval.String())
	v.SetDefault("poll.timeout", sources.DefaultTimeout.String())
	v.SetDefault("poll.cycle_timeout", poller.DefaultCycleTimeout.String())
	v.SetDefault("http.user_agent", "")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "norway-alerts")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", publish.DefaultTopicPrefix)
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", true)
	v.SetDefault("mqtt.keep_alive", "60s")
	v.SetDefault("mqtt.connect_timeout", "10s")

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyInstanceDefaults()

	return &cfg, nil
}

func (c *Config) applyInstanceDefaults() {
	for i := range c.Instances {
		inst := &c.Instances[i]
		inst.ID = strings.TrimSpace(inst.ID)
		inst.WarningType = strings.ToLower(strings.TrimSpace(inst.WarningType))
		if inst.Name == "" {
			inst.Name = inst.ID
		}
		if inst.Lang == "" {
			inst.Lang = "en"
		}
		if inst.Notifications.Severity == "" {
			inst.Notifications.Severity = string(notify.DefaultThreshold)
		}
	}
}

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate reports every configuration problem. Each returned error wraps
// model.ErrConfigurationInvalid.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, model.InvalidConfig(format, args...))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level %q: expected debug, info, warn or error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		add("logging.format %q: expected json or text", c.Logging.Format)
	}
	if c.Poll.Interval < time.Minute {
		add("poll.interval %s: must be at least 1m", c.Poll.Interval)
	}
	if c.Poll.Timeout <= 0 {
		add("poll.timeout %s: must be positive", c.Poll.Timeout)
	}
	if c.Poll.CycleTimeout < c.Poll.Timeout {
		add("poll.cycle_timeout %s: must be at least poll.timeout", c.Poll.CycleTimeout)
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			add("mqtt.broker: required when mqtt is enabled")
		}
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			add("mqtt.port %d: out of range", c.MQTT.Port)
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			add("mqtt.qos %d: expected 0, 1 or 2", c.MQTT.QoS)
		}
	}

	if len(c.Instances) == 0 {
		add("instances: at least one instance is required")
	}
	seen := make(map[string]bool, len(c.Instances))
	for i, inst := range c.Instances {
		if !idPattern.MatchString(inst.ID) {
			add("instances[%d].id %q: lowercase letters, digits, '-' and '_' only", i, inst.ID)
		} else if seen[inst.ID] {
			add("instances[%d].id %q: duplicate", i, inst.ID)
		}
		seen[inst.ID] = true
		for _, err := range inst.validate() {
			errs = append(errs, fmt.Errorf("instance %q: %w", inst.ID, err))
		}
	}

	return errors.Join(errs...)
}

func (ic InstanceConfig) validate() []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, model.InvalidConfig(format, args...))
	}

	wt := model.WarningType(ic.WarningType)
	if !wt.Valid() && wt != model.WarningBoth {
		add("warning_type %q: expected landslide, flood, both, avalanche or metalerts", ic.WarningType)
		return errs
	}
	if ic.Lang != "en" && ic.Lang != "no" {
		add("lang %q: expected en or no", ic.Lang)
	}
	if _, err := notify.ParseThreshold(ic.Notifications.Severity); err != nil {
		errs = append(errs, err)
	}

	if wt == model.WarningWeather {
		hasLat, hasLon := ic.Latitude != nil, ic.Longitude != nil
		switch {
		case hasLat != hasLon:
			add("latitude and longitude must be set together")
		case hasLat && (*ic.Latitude < -90 || *ic.Latitude > 90):
			add("latitude %v: out of range", *ic.Latitude)
		case hasLon && (*ic.Longitude < -180 || *ic.Longitude > 180):
			add("longitude %v: out of range", *ic.Longitude)
		case !hasLat && ic.CountyID == "" && !ic.TestMode:
			add("metalerts needs latitude/longitude or county_id")
		}
		return errs
	}

	if ic.CountyID == "" {
		add("county_id: required for %s", ic.WarningType)
	} else if _, ok := sources.CountyName(ic.CountyID); !ok {
		add("county_id %q: unknown county", ic.CountyID)
	}
	return errs
}

// Instance maps the configuration onto a poller instance. The config must be
// valid.
func (ic InstanceConfig) Instance() poller.Instance {
	countyName, _ := sources.CountyName(ic.CountyID)
	threshold, err := notify.ParseThreshold(ic.Notifications.Severity)
	if err != nil {
		threshold = notify.DefaultThreshold
	}
	return poller.Instance{
		ID:          ic.ID,
		Name:        ic.Name,
		WarningType: model.WarningType(ic.WarningType),
		Lang:        ic.Lang,
		TestMode:    ic.TestMode,
		Location: pipeline.Location{
			CountyID:   ic.CountyID,
			CountyName: countyName,
			Latitude:   ic.Latitude,
			Longitude:  ic.Longitude,
		},
		Filter:        ic.MunicipalityFilter,
		CAPFormat:     ic.CAPFormat,
		SortByLevel:   ic.Display.SortByLevel,
		Display:       ic.Display.Options(),
		Notifications: ic.Notifications.Enabled,
		Threshold:     threshold,
	}
}

// SourceParams returns the upstream parameters of the instance.
func (ic InstanceConfig) SourceParams() sources.Params {
	countyName, _ := sources.CountyName(ic.CountyID)
	return sources.Params{
		CountyID:   ic.CountyID,
		CountyName: countyName,
		Latitude:   ic.Latitude,
		Longitude:  ic.Longitude,
		Lang:       ic.Lang,
		TestMode:   ic.TestMode,
	}
}

// Options resolves the display flags.
func (d DisplayConfig) Options() render.Options {
	opts := render.DefaultOptions()
	if d.ShowIcon != nil {
		opts.ShowIcon = *d.ShowIcon
	}
	if d.ShowStatus != nil {
		opts.ShowStatus = *d.ShowStatus
	}
	if d.ShowMap != nil {
		opts.ShowMap = *d.ShowMap
	}
	return opts
}

// Publisher returns the MQTT publisher settings.
func (m MQTTConfig) Publisher() publish.MQTTConfig {
	return publish.MQTTConfig{
		Broker:         m.Broker,
		Port:           m.Port,
		ClientID:       m.ClientID,
		Username:       m.Username,
		Password:       m.Password,
		TopicPrefix:    m.TopicPrefix,
		QoS:            byte(m.QoS),
		Retain:         m.Retain,
		KeepAlive:      m.KeepAlive,
		ConnectTimeout: m.ConnectTimeout,
	}
}
