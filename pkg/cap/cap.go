// Package cap converts normalized alerts into the Common Alerting Protocol shape
// used by Met.no, so NVE and Met.no alerts share one presentation.
package cap

import (
	"fmt"
	"strings"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// NVEContact is the contact of every NVE alert.
const NVEContact = "Norwegian Water Resources and Energy Directorate"

const varsomWeb = "https://www.varsom.no"

// Alert is a CAP-shaped alert.
type Alert struct {
	ID                    string            `json:"id"`
	Title                 string            `json:"title"`
	StartTime             time.Time         `json:"starttime"`
	EndTime               time.Time         `json:"endtime"`
	Status                model.Status      `json:"status,omitempty"`
	Event                 string            `json:"event"`
	EventType             string            `json:"event_type"`
	EventAwarenessName    string            `json:"event_awareness_name"`
	DangerType            string            `json:"danger_type"`
	Area                  string            `json:"area"`
	Areas                 []string          `json:"areas"`
	Municipalities        []string          `json:"municipalities"`
	Description           string            `json:"description"`
	Instruction           string            `json:"instruction"`
	Consequences          string            `json:"consequences"`
	MainText              string            `json:"main_text"`
	Level                 model.Level       `json:"level"`
	LevelName             string            `json:"level_name"`
	AwarenessLevel        string            `json:"awareness_level"`
	AwarenessLevelNumeric string            `json:"awareness_level_numeric"`
	AwarenessLevelColor   string            `json:"awareness_level_color"`
	AwarenessLevelName    string            `json:"awareness_level_name"`
	AwarenessType         string            `json:"awareness_type"`
	Severity              string            `json:"severity"`
	Certainty             string            `json:"certainty"`
	URL                   string            `json:"url"`
	ResourceURL           string            `json:"resource_url"`
	Web                   string            `json:"web"`
	Resources             []model.Resource  `json:"resources"`
	Contact               string            `json:"contact"`
	County                []string          `json:"county"`
	GeographicDomain      string            `json:"geographic_domain"`
	RiskMatrixColor       string            `json:"risk_matrix_color"`
	TriggerLevel          string            `json:"trigger_level,omitempty"`
	MapURL                string            `json:"map_url,omitempty"`
	MasterID              string            `json:"master_id,omitempty"`
	DangerIncreases       *time.Time        `json:"danger_increases,omitempty"`
	DangerDecreases       *time.Time        `json:"danger_decreases,omitempty"`
	WarningType           model.WarningType `json:"warning_type"`
	Icon                  string            `json:"entity_picture,omitempty"`

	Avalanche *model.AvalancheDetails `json:"avalanche,omitempty"`
}

type levelInfo struct {
	severity  string
	awareness string
}

var levels = map[model.Level]levelInfo{
	model.LevelGreen:  {"Minor", "Low"},
	model.LevelYellow: {"Moderate", "Moderate"},
	model.LevelOrange: {"Severe", "Severe"},
	model.LevelRed:    {"Extreme", "Extreme"},
	model.LevelBlack:  {"Extreme", "Extreme"},
}

var events = map[model.WarningType]string{
	model.WarningLandslide: "Landslide",
	model.WarningFlood:     "Flood",
	model.WarningAvalanche: "Avalanche",
}

// Severity returns the CAP severity of a level, or "Unknown".
func Severity(l model.Level) string {
	if info, ok := levels[l]; ok {
		return info.severity
	}
	return "Unknown"
}

// AwarenessName returns the CAP awareness name of a level, or "Unknown".
func AwarenessName(l model.Level) string {
	if info, ok := levels[l]; ok {
		return info.awareness
	}
	return "Unknown"
}

// ToCAP converts an alert. Met.no alerts keep the CAP fields they carry.
func ToCAP(a model.Alert) Alert {
	if a.WarningType == model.WarningWeather {
		return fromWeather(a)
	}
	return fromNVE(a)
}

// ToCAPAll converts a list of alerts, preserving order.
func ToCAPAll(alerts []model.Alert) []Alert {
	out := make([]Alert, len(alerts))
	for i, a := range alerts {
		out[i] = ToCAP(a)
	}
	return out
}

func fromNVE(a model.Alert) Alert {
	color := "green"
	if _, ok := levels[a.Level]; ok {
		color = a.Level.Color()
	}
	awareness := AwarenessName(a.Level)

	event, ok := events[a.WarningType]
	if !ok {
		event = a.WarningType.Label()
	}
	dangerType := a.DangerType
	if dangerType == "" {
		dangerType = event
	}

	var resources []model.Resource
	if a.URL != "" {
		resources = []model.Resource{{URI: a.URL, MimeType: "text/html"}}
	}

	return Alert{
		ID:                    a.ID,
		Title:                 a.MainText,
		StartTime:             a.ValidFrom,
		EndTime:               a.ValidTo,
		Status:                a.Status,
		Event:                 event,
		EventType:             string(a.WarningType),
		EventAwarenessName:    fmt.Sprintf("%s; %s", color, strings.ToLower(event)),
		DangerType:            dangerType,
		Area:                  strings.Join(a.Municipalities, ", "),
		Areas:                 nonNil(copyStrings(a.Municipalities)),
		Municipalities:        nonNil(copyStrings(a.Municipalities)),
		Description:           a.WarningText,
		Instruction:           a.AdviceText,
		Consequences:          a.ConsequenceText,
		MainText:              a.MainText,
		Level:                 a.Level,
		LevelName:             color,
		AwarenessLevel:        fmt.Sprintf("%d; %s; %s", a.Level, color, awareness),
		AwarenessLevelNumeric: fmt.Sprint(int(a.Level)),
		AwarenessLevelColor:   color,
		AwarenessLevelName:    awareness,
		AwarenessType:         fmt.Sprintf("%d; %s", a.Level, a.WarningType),
		Severity:              Severity(a.Level),
		Certainty:             "Likely",
		URL:                   a.URL,
		ResourceURL:           a.URL,
		Web:                   varsomWeb,
		Resources:             resources,
		Contact:               NVEContact,
		County:                nonNil(copyStrings(a.Counties)),
		GeographicDomain:      "land",
		RiskMatrixColor:       color,
		MasterID:              a.MasterID,
		DangerIncreases:       a.DangerIncreases,
		DangerDecreases:       a.DangerDecreases,
		WarningType:           a.WarningType,
		Icon:                  a.Icon,
		Avalanche:             a.Avalanche,
	}
}

func fromWeather(a model.Alert) Alert {
	w := a.Weather
	if w == nil {
		w = &model.WeatherDetails{}
	}

	numeric, color, name := splitAwareness(w.AwarenessLevel)
	if numeric == "" {
		numeric = fmt.Sprint(int(a.Level))
		color = a.Level.Color()
		name = a.Severity
	}
	event := w.Event
	if event == "" {
		event = a.EventType
	}

	resourceURL := a.URL
	if len(w.Resources) > 0 {
		resourceURL = w.Resources[0].URI
	}

	return Alert{
		ID:                    a.ID,
		Title:                 a.Title,
		StartTime:             a.ValidFrom,
		EndTime:               a.ValidTo,
		Status:                a.Status,
		Event:                 event,
		EventType:             a.EventType,
		EventAwarenessName:    w.EventAwarenessName,
		DangerType:            a.DangerType,
		Area:                  strings.Join(a.Areas, ", "),
		Areas:                 nonNil(copyStrings(a.Areas)),
		Municipalities:        nonNil(copyStrings(a.Municipalities)),
		Description:           a.WarningText,
		Instruction:           a.AdviceText,
		Consequences:          a.ConsequenceText,
		MainText:              a.MainText,
		Level:                 a.Level,
		LevelName:             a.Level.Color(),
		AwarenessLevel:        w.AwarenessLevel,
		AwarenessLevelNumeric: numeric,
		AwarenessLevelColor:   color,
		AwarenessLevelName:    name,
		AwarenessType:         w.AwarenessType,
		Severity:              a.Severity,
		Certainty:             a.Certainty,
		URL:                   a.URL,
		ResourceURL:           resourceURL,
		Web:                   w.Web,
		Resources:             w.Resources,
		Contact:               w.Contact,
		County:                nonNil(copyStrings(a.Counties)),
		GeographicDomain:      w.GeographicDomain,
		RiskMatrixColor:       w.RiskMatrixColor,
		TriggerLevel:          w.TriggerLevel,
		MapURL:                a.MapURL,
		WarningType:           a.WarningType,
		Icon:                  a.Icon,
	}
}

func splitAwareness(s string) (numeric, color, name string) {
	parts := strings.Split(s, ";")
	if len(parts) != 3 {
		return "", "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
