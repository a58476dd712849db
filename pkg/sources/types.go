package sources

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// Default upstream endpoints.
const (
	LandslideBaseURL = "https://api01.nve.no/hydrology/forecast/landslide/v1.0.10/api"
	FloodBaseURL     = "https://api01.nve.no/hydrology/forecast/flood/v1.0.10/api"
	AvalancheBaseURL = "https://api01.nve.no/hydrology/forecast/avalanche/v6.3.0"
	MetAlertsBaseURL = "https://api.met.no/weatherapi/metalerts/2.0"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 10 * time.Second

// Source is the core interface for upstream warning services.
type Source interface {
	// Name returns the source identifier (e.g., "landslide", "metalerts").
	Name() string

	// WarningType returns the warning type of the alerts this source produces.
	WarningType() model.WarningType

	// Fetch retrieves and normalizes the current alerts. An empty slice is a valid
	// result; failures are returned as *model.SourceError.
	Fetch(ctx context.Context) ([]model.Alert, error)
}

// Params configures a source instance.
type Params struct {
	CountyID   string
	CountyName string
	Latitude   *float64
	Longitude  *float64
	Lang       string
	TestMode   bool

	// BaseURL overrides the default endpoint of the source.
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	Now        func() time.Time
	Logger     *slog.Logger
}

// Factory creates a source from params.
type Factory func(p Params) (Source, error)

func (p Params) withDefaults(baseURL string) Params {
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	if p.HTTPClient == nil {
		p.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if p.UserAgent == "" {
		p.UserAgent = UserAgent("dev")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Logger == nil {
		p.Logger = slog.New(slog.DiscardHandler)
	}
	if p.Lang != "no" {
		p.Lang = "en"
	}
	return p
}

// langKey maps a language code to the NVE language key (1 Norwegian, 2 English).
func langKey(lang string) string {
	if lang == "no" {
		return "1"
	}
	return "2"
}

// UserAgent returns the User-Agent sent to upstream APIs.
func UserAgent(version string) string {
	return "norway-alerts/" + version + " (+https://github.com/ogulcanaydogan/norway-alerts)"
}
