package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

const varsomURL = "https://www.varsom.no"

type nveMunicipality struct {
	ID         flexString `json:"Id"`
	Name       string     `json:"Name"`
	CountyID   flexString `json:"CountyId"`
	CountyName string     `json:"CountyName"`
}

type nveWarning struct {
	ID                     flexString        `json:"Id"`
	MasterID               flexString        `json:"MasterId"`
	ActivityLevel          flexString        `json:"ActivityLevel"`
	DangerTypeName         string            `json:"DangerTypeName"`
	MainText               string            `json:"MainText"`
	WarningText            string            `json:"WarningText"`
	AdviceText             string            `json:"AdviceText"`
	ConsequenceText        string            `json:"ConsequenceText"`
	ValidFrom              string            `json:"ValidFrom"`
	ValidTo                string            `json:"ValidTo"`
	DangerIncreaseDateTime string            `json:"DangerIncreaseDateTime"`
	DangerDecreaseDateTime string            `json:"DangerDecreaseDateTime"`
	MunicipalityList       []nveMunicipality `json:"MunicipalityList"`
}

// CountySource fetches NVE landslide or flood warnings for one county.
type CountySource struct {
	warningType model.WarningType
	params      Params
	client      *client
}

// NewLandslide creates the NVE landslide source.
func NewLandslide(p Params) (Source, error) {
	return newCountySource(model.WarningLandslide, LandslideBaseURL, p)
}

// NewFlood creates the NVE flood source.
func NewFlood(p Params) (Source, error) {
	return newCountySource(model.WarningFlood, FloodBaseURL, p)
}

func newCountySource(t model.WarningType, baseURL string, p Params) (*CountySource, error) {
	if p.CountyID == "" {
		return nil, model.InvalidConfig("%s source requires a county id", t)
	}
	p = p.withDefaults(baseURL)
	return &CountySource{warningType: t, params: p, client: newClient(string(t), p)}, nil
}

// Name returns the source identifier.
func (s *CountySource) Name() string { return string(s.warningType) }

// WarningType returns landslide or flood.
func (s *CountySource) WarningType() model.WarningType { return s.warningType }

// Fetch retrieves the county's warnings.
func (s *CountySource) Fetch(ctx context.Context) ([]model.Alert, error) {
	endpoint := fmt.Sprintf("%s/Warning/County/%s/%s",
		s.params.BaseURL, url.PathEscape(s.params.CountyID), langKey(s.params.Lang))

	var raw []nveWarning
	if err := s.client.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	alerts := normalize(s.params.Logger, s.Name(), raw, s.convert)
	s.params.Logger.Debug("fetched warnings", "source", s.Name(), "county", s.params.CountyID,
		"received", len(raw), "kept", len(alerts))
	return alerts, nil
}

func (s *CountySource) convert(w nveWarning) (model.Alert, error) {
	level, err := model.ParseLevel(string(w.ActivityLevel))
	if err != nil {
		return model.Alert{}, err
	}
	from, err := model.ParseTime(w.ValidFrom)
	if err != nil {
		return model.Alert{}, fmt.Errorf("valid_from: %w", err)
	}
	to, err := model.ParseTime(w.ValidTo)
	if err != nil {
		return model.Alert{}, fmt.Errorf("valid_to: %w", err)
	}

	masterID := string(w.MasterID)
	if masterID == "0" {
		masterID = ""
	}

	municipalities := make([]string, 0, len(w.MunicipalityList))
	var counties []string
	seenCounty := make(map[string]bool)
	for _, m := range w.MunicipalityList {
		if m.Name != "" {
			municipalities = append(municipalities, m.Name)
		}
		if m.CountyName != "" && !seenCounty[m.CountyName] {
			seenCounty[m.CountyName] = true
			counties = append(counties, m.CountyName)
		}
	}

	a := model.Alert{
		ID:              string(w.ID),
		MasterID:        masterID,
		Level:           level,
		LevelName:       level.Color(),
		WarningType:     s.warningType,
		DangerType:      w.DangerTypeName,
		Title:           w.DangerTypeName,
		Municipalities:  municipalities,
		Areas:           []string{},
		Counties:        counties,
		ValidFrom:       from,
		ValidTo:         to,
		DangerIncreases: model.ParseOptionalTime(w.DangerIncreaseDateTime),
		DangerDecreases: model.ParseOptionalTime(w.DangerDecreaseDateTime),
		MainText:        w.MainText,
		WarningText:     w.WarningText,
		AdviceText:      w.AdviceText,
		ConsequenceText: w.ConsequenceText,
		Icon:            model.IconKey(string(s.warningType), level),
	}
	a.URL = forecastURL(a, s.params.Lang)
	return a, nil
}

// forecastURL returns the varsom.no page of a landslide or flood forecast.
func forecastURL(a model.Alert, lang string) string {
	id := a.MasterID
	if id == "" {
		id = a.ID
	}
	if id == "" {
		return varsomURL
	}
	if lang == "no" {
		return varsomURL + "/flom-og-jordskred/varsling/varselid/" + id
	}
	return varsomURL + "/en/flood-and-landslide-warning-service/forecastid/" + id
}
