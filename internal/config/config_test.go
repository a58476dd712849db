package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/norway-alerts/internal/config"
	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/notify"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

const validConfig = `
storage:
  path: /tmp/alerts.db
poll:
  interval: 15m
instances:
  - id: vestland
    name: Vestland landslide
    warning_type: landslide
    county_id: "46"
    municipality_filter: Bergen, Voss
    notifications:
      enabled: true
      severity: orange_plus
    display:
      show_map: false
      sort_by_level: true
  - id: bergen_weather
    warning_type: MetAlerts
    latitude: 60.39
    longitude: 5.32
    lang: "no"
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 30*time.Minute, cfg.Poll.Interval)
	assert.Equal(t, 10*time.Second, cfg.Poll.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Poll.CycleTimeout)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "norway_alerts", cfg.MQTT.TopicPrefix)
	assert.True(t, cfg.MQTT.Retain)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/tmp/alerts.db", cfg.Storage.Path)
	assert.Equal(t, 15*time.Minute, cfg.Poll.Interval)
	require.Len(t, cfg.Instances, 2)

	landslide := cfg.Instances[0]
	assert.Equal(t, "46", landslide.CountyID)
	assert.Equal(t, "en", landslide.Lang)

	inst := landslide.Instance()
	assert.Equal(t, model.WarningLandslide, inst.WarningType)
	assert.Equal(t, "Vestland", inst.Location.CountyName)
	assert.Equal(t, "Bergen, Voss", inst.Filter)
	assert.True(t, inst.Notifications)
	assert.Equal(t, notify.ThresholdOrangePlus, inst.Threshold)
	assert.True(t, inst.SortByLevel)
	assert.True(t, inst.Display.ShowIcon)
	assert.False(t, inst.Display.ShowMap)

	weather := cfg.Instances[1]
	assert.Equal(t, "metalerts", weather.WarningType)
	assert.Equal(t, "bergen_weather", weather.Name)
	assert.Equal(t, notify.DefaultThreshold, weather.Instance().Threshold)

	params := weather.SourceParams()
	require.NotNil(t, params.Latitude)
	assert.InDelta(t, 60.39, *params.Latitude, 1e-9)
	assert.Equal(t, "no", params.Lang)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NORWAY_ALERTS_LOGGING_LEVEL", "error")
	t.Setenv("NORWAY_ALERTS_SERVER_LISTEN", ":7070")
	t.Setenv("NORWAY_ALERTS_MQTT_ENABLED", "true")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.True(t, cfg.MQTT.Enabled)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NORWAY_ALERTS_HTTP_USER_AGENT=dotenv-agent\n"), 0o644))
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("NORWAY_ALERTS_HTTP_USER_AGENT") })

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-agent", cfg.HTTP.UserAgent)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := config.Load(writeConfig(t, "invalid: [yaml"))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"no instances", "logging:\n  level: info\n", "at least one instance"},
		{"bad level", "logging:\n  level: loud\ninstances:\n  - {id: a, warning_type: flood, county_id: \"46\"}\n", "logging.level"},
		{"bad id", "instances:\n  - {id: \"A B\", warning_type: flood, county_id: \"46\"}\n", "lowercase"},
		{"duplicate id", "instances:\n  - {id: a, warning_type: flood, county_id: \"46\"}\n  - {id: a, warning_type: flood, county_id: \"46\"}\n", "duplicate"},
		{"bad type", "instances:\n  - {id: a, warning_type: tsunami}\n", "warning_type"},
		{"missing county", "instances:\n  - {id: a, warning_type: both}\n", "county_id: required"},
		{"unknown county", "instances:\n  - {id: a, warning_type: avalanche, county_id: \"99\"}\n", "unknown county"},
		{"bad lang", "instances:\n  - {id: a, warning_type: flood, county_id: \"46\", lang: de}\n", "lang"},
		{"bad severity", "instances:\n  - {id: a, warning_type: flood, county_id: \"46\", notifications: {severity: purple}}\n", "purple"},
		{"metalerts without location", "instances:\n  - {id: a, warning_type: metalerts}\n", "latitude/longitude or county_id"},
		{"half coordinates", "instances:\n  - {id: a, warning_type: metalerts, latitude: 60}\n", "set together"},
		{"latitude range", "instances:\n  - {id: a, warning_type: metalerts, latitude: 91, longitude: 5}\n", "latitude 91"},
		{"mqtt broker", "mqtt:\n  enabled: true\ninstances:\n  - {id: a, warning_type: flood, county_id: \"46\"}\n", "mqtt.broker"},
		{"cycle timeout", "poll:\n  timeout: 30s\n  cycle_timeout: 10s\ninstances:\n  - {id: a, warning_type: flood, county_id: \"46\"}\n", "poll.cycle_timeout"},
		{"poll interval", "poll:\n  interval: 10s\ninstances:\n  - {id: a, warning_type: flood, county_id: \"46\"}\n", "poll.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeConfig(t, tt.yaml))
			require.NoError(t, err)

			err = cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrConfigurationInvalid)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_MetAlertsTestModeNeedsNoLocation(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "instances:\n  - {id: a, warning_type: metalerts, test_mode: true}\n"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
