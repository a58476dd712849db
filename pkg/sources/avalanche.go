package sources

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// minRegionShare is the share of a region's municipalities that must lie in the
// configured county when the county is not named in the region's county list.
const minRegionShare = 0.1

// regionWorkers bounds concurrent region detail requests.
const regionWorkers = 6

type avalancheSummaryRegion struct {
	ID                   flexString `json:"Id"`
	Name                 string     `json:"Name"`
	AvalancheWarningList []struct {
		RegionID    flexString `json:"RegionId"`
		DangerLevel flexInt    `json:"DangerLevel"`
	} `json:"AvalancheWarningList"`
}

type avalancheCounty struct {
	ID   flexString `json:"Id"`
	Name string     `json:"Name"`
}

type avalancheProblem struct {
	AvalancheProblemTypeName string `json:"AvalancheProblemTypeName"`
	AvalancheTypeName        string `json:"AvalancheTypeName"`
}

type avalancheAdvice struct {
	Text string `json:"Text"`
}

type mountainWeather struct {
	MeasurementTypes []measurementType `json:"MeasurementTypes"`
}

type measurementType struct {
	Name                string     `json:"Name"`
	Speed               flexString `json:"Speed"`
	Direction           flexString `json:"Direction"`
	Value               flexString `json:"Value"`
	MeasurementSubTypes []struct {
		Name  string     `json:"Name"`
		Value flexString `json:"Value"`
	} `json:"MeasurementSubTypes"`
}

type avalancheWarning struct {
	RegionID                flexString         `json:"RegionId"`
	RegionName              string             `json:"RegionName"`
	DangerLevel             flexInt            `json:"DangerLevel"`
	DangerLevelName         string             `json:"DangerLevelName"`
	MainText                string             `json:"MainText"`
	ValidFrom               string             `json:"ValidFrom"`
	ValidTo                 string             `json:"ValidTo"`
	CountyList              []avalancheCounty  `json:"CountyList"`
	MunicipalityList        []nveMunicipality  `json:"MunicipalityList"`
	AvalancheDanger         string             `json:"AvalancheDanger"`
	EmergencyWarning        string             `json:"EmergencyWarning"`
	AvalancheProblems       []avalancheProblem `json:"AvalancheProblems"`
	AvalancheAdvices        []avalancheAdvice  `json:"AvalancheAdvices"`
	SnowSurface             string             `json:"SnowSurface"`
	CurrentWeaklayers       string             `json:"CurrentWeaklayers"`
	LatestAvalancheActivity string             `json:"LatestAvalancheActivity"`
	LatestObservations      string             `json:"LatestObservations"`
	Author                  string             `json:"Author"`
	ExposedHeight1          flexInt            `json:"ExposedHeight1"`
	UtmZone                 flexInt            `json:"UtmZone"`
	UtmEast                 flexInt            `json:"UtmEast"`
	UtmNorth                flexInt            `json:"UtmNorth"`
	MountainWeather         mountainWeather    `json:"MountainWeather"`
}

// value returns a measurement of the mountain weather, such as the wind speed.
func (w mountainWeather) value(kind, field string) string {
	for _, m := range w.MeasurementTypes {
		if !strings.EqualFold(m.Name, kind) {
			continue
		}
		switch strings.ToLower(field) {
		case "speed":
			if m.Speed != "" {
				return string(m.Speed)
			}
		case "direction":
			if m.Direction != "" {
				return string(m.Direction)
			}
		case "value":
			if m.Value != "" {
				return string(m.Value)
			}
		}
		for _, sub := range m.MeasurementSubTypes {
			if strings.EqualFold(sub.Name, field) || field == "value" {
				return string(sub.Value)
			}
		}
	}
	return ""
}

// AvalancheSource fetches NVE avalanche bulletins relevant to one county.
type AvalancheSource struct {
	params Params
	client *client
}

// NewAvalanche creates the NVE avalanche source.
func NewAvalanche(p Params) (Source, error) {
	if p.CountyID == "" {
		return nil, model.InvalidConfig("avalanche source requires a county id")
	}
	if p.CountyName == "" {
		name, ok := CountyName(p.CountyID)
		if !ok {
			return nil, model.InvalidConfig("unknown county %q", p.CountyID)
		}
		p.CountyName = name
	}
	p = p.withDefaults(AvalancheBaseURL)
	return &AvalancheSource{params: p, client: newClient(string(model.WarningAvalanche), p)}, nil
}

// Name returns the source identifier.
func (s *AvalancheSource) Name() string { return string(model.WarningAvalanche) }

// WarningType returns avalanche.
func (s *AvalancheSource) WarningType() model.WarningType { return model.WarningAvalanche }

// Fetch finds regions with a bulletin for today or tomorrow and keeps the ones
// relevant to the configured county.
func (s *AvalancheSource) Fetch(ctx context.Context) ([]model.Alert, error) {
	now := s.params.Now().In(model.Oslo)
	today := now.Format("2006-01-02")
	tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")
	lk := langKey(s.params.Lang)

	var summary []avalancheSummaryRegion
	summaryURL := fmt.Sprintf("%s/api/RegionSummary/Simple/%s/%s/%s", s.params.BaseURL, lk, today, tomorrow)
	if err := s.client.getJSON(ctx, summaryURL, &summary); err != nil {
		return nil, err
	}

	var regions []string
	for _, r := range summary {
		for _, w := range r.AvalancheWarningList {
			if w.DangerLevel > 0 {
				id := string(w.RegionID)
				if id == "" {
					id = string(r.ID)
				}
				regions = append(regions, id)
				break
			}
		}
	}

	details := make([][]avalancheWarning, len(regions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(regionWorkers)
	for i, region := range regions {
		g.Go(func() error {
			detailURL := fmt.Sprintf("%s/api/AvalancheWarningByRegion/Detail/%s/%s/%s/%s",
				s.params.BaseURL, region, lk, today, tomorrow)
			if err := s.client.getJSON(gctx, detailURL, &details[i]); err != nil {
				if gctx.Err() != nil {
					return model.NewSourceError(s.Name(), model.ErrUpstreamUnavailable, gctx.Err())
				}
				s.params.Logger.Warn("skipping avalanche region", "region", region, "error", err)
				details[i] = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var raw []avalancheWarning
	for _, detail := range details {
		for _, w := range detail {
			if w.DangerLevel > 0 && s.relevant(w) {
				raw = append(raw, w)
			}
		}
	}

	alerts := normalize(s.params.Logger, s.Name(), raw, s.convert)
	s.params.Logger.Debug("fetched warnings", "source", s.Name(), "county", s.params.CountyID,
		"regions", len(regions), "kept", len(alerts))
	return alerts, nil
}

// relevant reports whether a region bulletin concerns the configured county.
func (s *AvalancheSource) relevant(w avalancheWarning) bool {
	for _, c := range w.CountyList {
		if c.Name == s.params.CountyName {
			return true
		}
	}
	if len(w.MunicipalityList) == 0 {
		return false
	}
	matches := 0
	for _, m := range w.MunicipalityList {
		if string(m.CountyID) == s.params.CountyID {
			matches++
		}
	}
	return float64(matches)/float64(len(w.MunicipalityList)) >= minRegionShare
}

func (s *AvalancheSource) convert(w avalancheWarning) (model.Alert, error) {
	from, err := model.ParseTime(w.ValidFrom)
	if err != nil {
		return model.Alert{}, fmt.Errorf("valid_from: %w", err)
	}
	to, err := model.ParseTime(w.ValidTo)
	if err != nil {
		return model.Alert{}, fmt.Errorf("valid_to: %w", err)
	}
	level := model.Level(w.DangerLevel)

	municipalities := make([]string, 0, len(w.MunicipalityList))
	for _, m := range w.MunicipalityList {
		if m.Name != "" {
			municipalities = append(municipalities, m.Name)
		}
	}
	counties := make([]string, 0, len(w.CountyList))
	for _, c := range w.CountyList {
		if c.Name != "" {
			counties = append(counties, c.Name)
		}
	}

	details := &model.AvalancheDetails{
		RegionID:                string(w.RegionID),
		RegionName:              w.RegionName,
		DangerLevelName:         w.DangerLevelName,
		AvalancheDanger:         w.AvalancheDanger,
		EmergencyWarning:        w.EmergencyWarning,
		SnowSurface:             w.SnowSurface,
		CurrentWeakLayers:       w.CurrentWeaklayers,
		LatestAvalancheActivity: w.LatestAvalancheActivity,
		LatestObservations:      w.LatestObservations,
		Forecaster:              w.Author,
		ExposedHeight:           int(w.ExposedHeight1),
		WindSpeed:               w.MountainWeather.value("wind", "speed"),
		WindDirection:           w.MountainWeather.value("wind", "direction"),
		Temperature:             w.MountainWeather.value("temperature", "value"),
		Precipitation:           w.MountainWeather.value("precipitation", "value"),
		UTMZone:                 int(w.UtmZone),
		UTMEast:                 int(w.UtmEast),
		UTMNorth:                int(w.UtmNorth),
	}
	for _, p := range w.AvalancheProblems {
		name := p.AvalancheProblemTypeName
		if name == "" {
			name = p.AvalancheTypeName
		}
		if name != "" {
			details.Problems = append(details.Problems, name)
		}
	}
	for _, a := range w.AvalancheAdvices {
		if a.Text != "" {
			details.Advices = append(details.Advices, a.Text)
		}
	}

	a := model.Alert{
		ID:             fmt.Sprintf("%s-%s", w.RegionID, from.In(model.Oslo).Format("2006-01-02")),
		Level:          level,
		LevelName:      level.Color(),
		WarningType:    model.WarningAvalanche,
		DangerType:     w.DangerLevelName,
		Title:          w.RegionName,
		Municipalities: municipalities,
		Areas:          []string{},
		Counties:       counties,
		ValidFrom:      from,
		ValidTo:        to,
		MainText:       w.MainText,
		WarningText:    w.AvalancheDanger,
		AdviceText:     strings.Join(details.Advices, " "),
		URL:            avalancheURL(s.params.Lang),
		Icon:           model.IconKey("avalanches", level),
		Avalanche:      details,
	}
	return a, nil
}

func avalancheURL(lang string) string {
	if lang == "no" {
		return varsomURL + "/snoskredvarsling"
	}
	return varsomURL + "/en/avalanche-bulletins"
}
