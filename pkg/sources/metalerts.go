package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// MetAlertsFallbackURL is used when an alert carries no resources.
const MetAlertsFallbackURL = "https://www.met.no/vaer-og-klima/ekstremvaervarsler-og-andre-faremeldinger"

var titleTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\+\d{2}:\d{2}`)

// severityLevels maps CAP severity onto a level when awareness_level is missing.
var severityLevels = map[string]model.Level{
	"minor":    model.LevelGreen,
	"moderate": model.LevelYellow,
	"severe":   model.LevelOrange,
	"extreme":  model.LevelRed,
}

type metFeatureCollection struct {
	Features []metFeature `json:"features"`
}

type metFeature struct {
	Properties metProperties `json:"properties"`
	When       struct {
		Interval []string `json:"interval"`
	} `json:"when"`
}

type metProperties struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	AwarenessLevel     string           `json:"awareness_level"`
	AwarenessType      string           `json:"awareness_type"`
	Certainty          string           `json:"certainty"`
	Severity           string           `json:"severity"`
	Description        string           `json:"description"`
	Instruction        string           `json:"instruction"`
	Consequences       string           `json:"consequences"`
	Contact            string           `json:"contact"`
	Area               string           `json:"area"`
	Event              string           `json:"event"`
	EventAwarenessName string           `json:"eventAwarenessName"`
	EventEndingTime    string           `json:"eventEndingTime"`
	County             []flexString     `json:"county"`
	GeographicDomain   string           `json:"geographicDomain"`
	RiskMatrixColor    string           `json:"riskMatrixColor"`
	TriggerLevel       flexString       `json:"triggerLevel"`
	Web                string           `json:"web"`
	Resources          []model.Resource `json:"resources"`
}

// MetAlertsSource fetches Met.no weather alerts for a point or a county.
type MetAlertsSource struct {
	params Params
	client *client
}

// NewMetAlerts creates the Met.no MetAlerts source.
func NewMetAlerts(p Params) (Source, error) {
	hasPoint := p.Latitude != nil && p.Longitude != nil
	if !p.TestMode && !hasPoint && p.CountyID == "" {
		return nil, model.InvalidConfig("metalerts source requires latitude/longitude or a county id")
	}
	if hasPoint {
		if *p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180 {
			return nil, model.InvalidConfig("coordinates %v,%v out of range", *p.Latitude, *p.Longitude)
		}
	}
	p = p.withDefaults(MetAlertsBaseURL)
	return &MetAlertsSource{params: p, client: newClient(string(model.WarningWeather), p)}, nil
}

// Name returns the source identifier.
func (s *MetAlertsSource) Name() string { return string(model.WarningWeather) }

// WarningType returns metalerts.
func (s *MetAlertsSource) WarningType() model.WarningType { return model.WarningWeather }

func (s *MetAlertsSource) endpoint() string {
	if s.params.TestMode {
		return s.params.BaseURL + "/example.json"
	}
	q := url.Values{}
	if s.params.Latitude != nil && s.params.Longitude != nil {
		q.Set("lat", strconv.FormatFloat(*s.params.Latitude, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(*s.params.Longitude, 'f', -1, 64))
	} else {
		q.Set("county", s.params.CountyID)
	}
	q.Set("lang", s.params.Lang)
	return s.params.BaseURL + "/current.json?" + q.Encode()
}

// Fetch retrieves the current weather alerts.
func (s *MetAlertsSource) Fetch(ctx context.Context) ([]model.Alert, error) {
	var fc metFeatureCollection
	if err := s.client.getJSON(ctx, s.endpoint(), &fc); err != nil {
		return nil, err
	}
	alerts := normalize(s.params.Logger, s.Name(), fc.Features, s.convert)
	s.params.Logger.Debug("fetched warnings", "source", s.Name(),
		"received", len(fc.Features), "kept", len(alerts))
	return alerts, nil
}

func (s *MetAlertsSource) convert(f metFeature) (model.Alert, error) {
	p := f.Properties
	title, from, to, err := metValidity(f)
	if err != nil {
		return model.Alert{}, err
	}
	level := metLevel(p)

	uri := MetAlertsFallbackURL
	if len(p.Resources) > 0 && p.Resources[0].URI != "" {
		uri = p.Resources[0].URI
	}
	var mapURL string
	for _, r := range p.Resources {
		if r.MimeType == "image/png" {
			mapURL = r.URI
			break
		}
	}

	event := strings.ToLower(p.Event)
	counties := make([]string, 0, len(p.County))
	for _, c := range p.County {
		counties = append(counties, string(c))
	}
	areas := []string{}
	if p.Area != "" {
		areas = append(areas, p.Area)
	}
	dangerType := p.Event
	if dangerType == "" {
		dangerType = "Weather warning"
	}

	return model.Alert{
		ID:              p.ID,
		Level:           level,
		LevelName:       level.Color(),
		WarningType:     model.WarningWeather,
		EventType:       model.IconKind(event),
		DangerType:      dangerType,
		Title:           title,
		Municipalities:  []string{},
		Areas:           areas,
		Counties:        counties,
		ValidFrom:       from,
		ValidTo:         to,
		MainText:        p.Description,
		WarningText:     p.Description,
		AdviceText:      p.Instruction,
		ConsequenceText: p.Consequences,
		Certainty:       p.Certainty,
		Severity:        p.Severity,
		URL:             uri,
		MapURL:          mapURL,
		Icon:            model.IconKey(event, level),
		Weather: &model.WeatherDetails{
			Event:              p.Event,
			AwarenessLevel:     p.AwarenessLevel,
			AwarenessType:      p.AwarenessType,
			EventAwarenessName: p.EventAwarenessName,
			Contact:            p.Contact,
			Web:                p.Web,
			GeographicDomain:   p.GeographicDomain,
			RiskMatrixColor:    p.RiskMatrixColor,
			TriggerLevel:       string(p.TriggerLevel),
			Resources:          p.Resources,
		},
	}, nil
}

// metLevel reads the level from awareness_level ("2; yellow; Moderate"), falling
// back to the CAP severity and certainty.
func metLevel(p metProperties) model.Level {
	if p.AwarenessLevel != "" {
		rank, _, _ := strings.Cut(p.AwarenessLevel, ";")
		if l, err := model.ParseLevel(rank); err == nil && l >= model.LevelGreen && l <= model.LevelRed {
			return l
		}
	}
	l, ok := severityLevels[strings.ToLower(strings.TrimSpace(p.Severity))]
	if !ok {
		return 0
	}
	if strings.EqualFold(p.Certainty, "unlikely") && l > model.LevelGreen {
		l--
	}
	return l
}

// metValidity returns the title stripped of timestamps and the validity window,
// taken from when.interval or from the timestamps embedded in the title.
func metValidity(f metFeature) (string, time.Time, time.Time, error) {
	title := f.Properties.Title
	stamps := titleTimestamp.FindAllString(title, -1)
	if len(stamps) >= 2 {
		title = strings.ReplaceAll(title, stamps[0], "")
		title = strings.ReplaceAll(title, stamps[1], "")
		title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), ", "))
	}

	var fromS, toS string
	switch {
	case len(f.When.Interval) == 2:
		fromS, toS = f.When.Interval[0], f.When.Interval[1]
	case len(stamps) >= 2:
		fromS, toS = stamps[0], stamps[1]
	default:
		return "", time.Time{}, time.Time{}, fmt.Errorf("alert %s: no validity window", f.Properties.ID)
	}

	from, err := model.ParseTime(fromS)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("valid_from: %w", err)
	}
	to, err := model.ParseTime(toS)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("valid_to: %w", err)
	}
	return title, from, to, nil
}
