package cap_test

import (
	"testing"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/cap"
	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nveAlert(level model.Level, wt model.WarningType) model.Alert {
	from := time.Date(2025, 3, 1, 7, 0, 0, 0, model.Oslo)
	return model.Alert{
		ID:             "101",
		MasterID:       "5001",
		Level:          level,
		LevelName:      level.Color(),
		WarningType:    wt,
		DangerType:     "Jordskred",
		Municipalities: []string{"Bergen", "Voss"},
		Counties:       []string{"Vestland"},
		ValidFrom:      from,
		ValidTo:        from.Add(24 * time.Hour),
		MainText:       "Orange landslide",
		WarningText:    "w",
		AdviceText:     "a",
		URL:            "https://www.varsom.no/en/flood-and-landslide-warning-service/forecastid/5001",
	}
}

func TestToCAP_LevelTable(t *testing.T) {
	tests := []struct {
		level     model.Level
		color     string
		severity  string
		awareness string
	}{
		{model.LevelGreen, "green", "Minor", "Low"},
		{model.LevelYellow, "yellow", "Moderate", "Moderate"},
		{model.LevelOrange, "orange", "Severe", "Severe"},
		{model.LevelRed, "red", "Extreme", "Extreme"},
		{model.LevelBlack, "black", "Extreme", "Extreme"},
		{0, "green", "Unknown", "Unknown"},
		{7, "green", "Unknown", "Unknown"},
	}

	for _, tt := range tests {
		c := cap.ToCAP(nveAlert(tt.level, model.WarningAvalanche))
		assert.Equal(t, tt.severity, c.Severity, "level %d", tt.level)
		assert.Equal(t, tt.color, c.AwarenessLevelColor, "level %d", tt.level)
		assert.Equal(t, tt.color, c.RiskMatrixColor, "level %d", tt.level)
		assert.Equal(t, tt.awareness, c.AwarenessLevelName, "level %d", tt.level)
		assert.Equal(t, "Likely", c.Certainty)
	}
}

func TestToCAP_NVE(t *testing.T) {
	a := nveAlert(model.LevelOrange, model.WarningLandslide)
	c := cap.ToCAP(a)

	assert.Equal(t, "Landslide", c.Event)
	assert.Equal(t, "landslide", c.EventType)
	assert.Equal(t, "orange; landslide", c.EventAwarenessName)
	assert.Equal(t, "3; orange; Severe", c.AwarenessLevel)
	assert.Equal(t, "3", c.AwarenessLevelNumeric)
	assert.Equal(t, "3; landslide", c.AwarenessType)
	assert.Equal(t, cap.NVEContact, c.Contact)
	assert.Equal(t, "land", c.GeographicDomain)
	assert.Equal(t, "Bergen, Voss", c.Area)
	assert.Equal(t, []string{"Bergen", "Voss"}, c.Areas)
	assert.Equal(t, "a", c.Instruction)
	assert.Equal(t, "w", c.Description)
	assert.Equal(t, "5001", c.MasterID)
	assert.Equal(t, a.URL, c.ResourceURL)
	require.Len(t, c.Resources, 1)
	assert.Equal(t, "text/html", c.Resources[0].MimeType)
	assert.Equal(t, a.ValidFrom, c.StartTime)
}

func TestToCAP_DoesNotAliasInput(t *testing.T) {
	a := nveAlert(model.LevelYellow, model.WarningFlood)
	c := cap.ToCAP(a)
	c.Municipalities[0] = "changed"
	assert.Equal(t, "Bergen", a.Municipalities[0])

	assert.Equal(t, cap.ToCAP(a), cap.ToCAP(a))
}

func TestToCAP_EmptyLists(t *testing.T) {
	a := nveAlert(model.LevelYellow, model.WarningFlood)
	a.Municipalities = nil
	a.Counties = nil
	a.URL = ""

	c := cap.ToCAP(a)
	assert.NotNil(t, c.Areas)
	assert.NotNil(t, c.County)
	assert.Empty(t, c.Area)
	assert.Nil(t, c.Resources)
}

func TestToCAP_WeatherPassThrough(t *testing.T) {
	from := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	a := model.Alert{
		ID:          "met-1",
		Level:       model.LevelOrange,
		WarningType: model.WarningWeather,
		EventType:   "wind",
		Title:       "Gale warning",
		Areas:       []string{"Vestland"},
		ValidFrom:   from,
		ValidTo:     from.Add(12 * time.Hour),
		Severity:    "Severe",
		Certainty:   "Likely",
		URL:         "https://www.met.no/alert/1",
		MapURL:      "https://api.met.no/map/1.png",
		Weather: &model.WeatherDetails{
			Event:              "gale",
			AwarenessLevel:     "3; orange; Severe",
			AwarenessType:      "1; wind",
			EventAwarenessName: "Orange wind",
			Contact:            "Norwegian Meteorological Institute",
			RiskMatrixColor:    "Orange",
			Resources:          []model.Resource{{URI: "https://www.met.no/alert/1", MimeType: "text/html"}},
		},
	}

	c := cap.ToCAP(a)
	assert.Equal(t, "gale", c.Event)
	assert.Equal(t, "3; orange; Severe", c.AwarenessLevel)
	assert.Equal(t, "orange", c.AwarenessLevelColor)
	assert.Equal(t, "Severe", c.AwarenessLevelName)
	assert.Equal(t, "1; wind", c.AwarenessType)
	assert.Equal(t, "Norwegian Meteorological Institute", c.Contact)
	assert.Equal(t, "Orange", c.RiskMatrixColor)
	assert.Equal(t, "Vestland", c.Area)
	assert.Equal(t, "https://api.met.no/map/1.png", c.MapURL)
	assert.Equal(t, "Likely", c.Certainty)
}

func TestToCAPAll_PreservesOrder(t *testing.T) {
	a := nveAlert(model.LevelYellow, model.WarningFlood)
	b := nveAlert(model.LevelRed, model.WarningFlood)
	b.ID = "102"

	out := cap.ToCAPAll([]model.Alert{a, b})
	require.Len(t, out, 2)
	assert.Equal(t, "101", out[0].ID)
	assert.Equal(t, "102", out[1].ID)
}
