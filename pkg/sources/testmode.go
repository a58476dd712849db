package sources

import (
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// TestAlertID is the id of the synthetic alert injected in test mode.
const TestAlertID = "999999"

type testContent struct {
	dangerType  string
	mainText    string
	warningText string
	adviceText  string
	consequence string
}

var testContents = map[model.WarningType]testContent{
	model.WarningLandslide: {
		dangerType:  "Jordskred",
		mainText:    "Test Alert - Orange Landslide Warning for Testville",
		warningText: "Moderate danger of landslides in Testville municipality. Rain and changing temperatures can trigger slides on steep slopes.",
		adviceText:  "Avoid steep hillsides and slide-prone areas. Take extra care when travelling in the terrain.",
		consequence: "Landslides can damage infrastructure and endanger lives. Minor roads may be closed.",
	},
	model.WarningFlood: {
		dangerType:  "Flom",
		mainText:    "Test Alert - Orange Flood Warning for Testville",
		warningText: "Moderate danger of flooding in Testville municipality. Rain and snowmelt can cause inundation.",
		adviceText:  "Avoid flood-prone areas. Take extra care near streams and rivers.",
		consequence: "Flooding can damage buildings and infrastructure. Roads may be closed.",
	},
	model.WarningAvalanche: {
		dangerType:  "Skredfare",
		mainText:    "Test Alert - Orange Avalanche Warning for Testville",
		warningText: "Moderate danger of avalanches in Testville municipality. Weather can trigger slides in steep terrain.",
		adviceText:  "Avoid avalanche terrain. Take extra care in steep terrain above the tree line.",
		consequence: "Avalanches can seriously endanger life and health. Transport routes may be closed.",
	},
	model.WarningWeather: {
		dangerType:  "Wind",
		mainText:    "Orange wind warning",
		warningText: "Strong winds expected with gusts up to 25 m/s. This may cause damage to infrastructure and disrupt outdoor activities.",
		adviceText:  "Secure loose objects. Avoid unnecessary travel. Stay informed about weather updates.",
		consequence: "Damage to infrastructure possible. Travel disruptions expected. Outdoor activities hazardous.",
	},
}

// TestAlert returns the synthetic orange alert injected in test mode. It is valid
// from one hour before now until one day after.
func TestAlert(t model.WarningType, lang string, now time.Time) model.Alert {
	if t == model.WarningBoth || !t.Valid() {
		t = model.WarningLandslide
	}
	c := testContents[t]
	from := now.Add(-time.Hour).In(model.Oslo).Truncate(time.Second)
	to := now.Add(24 * time.Hour).In(model.Oslo).Truncate(time.Second)

	a := model.Alert{
		ID:              TestAlertID,
		Level:           model.LevelOrange,
		LevelName:       model.LevelOrange.Color(),
		WarningType:     t,
		DangerType:      c.dangerType,
		Title:           c.mainText,
		Municipalities:  []string{"Testville"},
		Areas:           []string{},
		Counties:        []string{"Vestland"},
		ValidFrom:       from,
		ValidTo:         to,
		MainText:        c.mainText,
		WarningText:     c.warningText,
		AdviceText:      c.adviceText,
		ConsequenceText: c.consequence,
	}

	switch t {
	case model.WarningWeather:
		a.Municipalities = []string{}
		a.Areas = []string{"Vestland, Bergen"}
		a.EventType = "wind"
		a.Certainty = "Likely"
		a.Severity = "Moderate"
		a.URL = MetAlertsFallbackURL
		a.Icon = model.IconKey("wind", a.Level)
		a.Weather = &model.WeatherDetails{
			Event:              "Wind",
			AwarenessLevel:     "3; orange; Moderate",
			AwarenessType:      "2; wind",
			EventAwarenessName: "orange; wind",
			Contact:            "Norwegian Meteorological Institute",
			Web:                "https://www.met.no",
			GeographicDomain:   "land",
			RiskMatrixColor:    "orange",
			TriggerLevel:       "moderate",
			Resources:          []model.Resource{{URI: MetAlertsFallbackURL, MimeType: "text/html"}},
		}
	case model.WarningAvalanche:
		a.URL = avalancheURL(lang)
		a.Icon = model.IconKey("avalanches", a.Level)
		a.Avalanche = &model.AvalancheDetails{
			RegionID:         "9999",
			RegionName:       "Testville",
			DangerLevelName:  "3 Considerable",
			EmergencyWarning: "Test emergency warning text for Testville avalanche alert",
			Forecaster:       "Test System",
		}
	default:
		increases := from.Add(12 * time.Hour)
		decreases := to.Add(-6 * time.Hour)
		a.DangerIncreases = &increases
		a.DangerDecreases = &decreases
		a.URL = forecastURL(a, lang)
		a.Icon = model.IconKey(string(t), a.Level)
	}
	return a
}
