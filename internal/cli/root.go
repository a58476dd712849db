package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/norway-alerts/internal/config"
	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/notify"
	"github.com/ogulcanaydogan/norway-alerts/pkg/poller"
	"github.com/ogulcanaydogan/norway-alerts/pkg/sources"
	"github.com/ogulcanaydogan/norway-alerts/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "norway-alerts",
	Short: "Norwegian landslide, flood, avalanche and weather warnings",
	Long: `norway-alerts polls the NVE and MET Norway warning services, normalizes
their alerts and publishes per-location sensors over HTTP, websocket and MQTT.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.norway-alerts/config.yaml)")
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initNotifiers creates the notification channels.
func initNotifiers(logger *slog.Logger) []notify.Notifier {
	return []notify.Notifier{notify.NewLogNotifier(logger)}
}

// initPollers builds one poller per configured instance. store may be nil.
func initPollers(cfg *config.Config, instances []config.InstanceConfig, store storage.Storage, logger *slog.Logger) ([]*poller.Poller, error) {
	registry := sources.DefaultRegistry()
	userAgent := cfg.HTTP.UserAgent
	if userAgent == "" {
		userAgent = sources.UserAgent(Version)
	}
	client := &http.Client{Timeout: cfg.Poll.Timeout}
	notifiers := initNotifiers(logger)

	pollers := make([]*poller.Poller, 0, len(instances))
	for _, ic := range instances {
		params := ic.SourceParams()
		params.UserAgent = userAgent
		params.HTTPClient = client
		params.Logger = logger.With("instance", ic.ID)

		srcs, err := registry.New(model.WarningType(ic.WarningType), params)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", ic.ID, err)
		}
		p := poller.New(ic.Instance(), srcs, store, notifiers, logger).WithTimeout(cfg.Poll.CycleTimeout)
		pollers = append(pollers, p)
	}
	return pollers, nil
}

// selectInstances returns the configured instances, or only the named one.
func selectInstances(cfg *config.Config, id string) ([]config.InstanceConfig, error) {
	if id == "" {
		return cfg.Instances, nil
	}
	for _, ic := range cfg.Instances {
		if ic.ID == id {
			return []config.InstanceConfig{ic}, nil
		}
	}
	return nil, fmt.Errorf("instance %q not found", id)
}
