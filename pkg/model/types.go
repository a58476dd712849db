package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WarningType identifies the upstream warning service an alert came from.
type WarningType string

const (
	WarningLandslide WarningType = "landslide"
	WarningFlood     WarningType = "flood"
	WarningAvalanche WarningType = "avalanche"
	WarningWeather   WarningType = "metalerts"

	// WarningBoth is a configuration-only value that expands to landslide and flood.
	WarningBoth WarningType = "both"
)

// Valid reports whether w names a concrete warning service.
func (w WarningType) Valid() bool {
	switch w {
	case WarningLandslide, WarningFlood, WarningAvalanche, WarningWeather:
		return true
	}
	return false
}

// IsNVE reports whether the warning type is served by NVE (county based).
func (w WarningType) IsNVE() bool {
	return w == WarningLandslide || w == WarningFlood || w == WarningAvalanche || w == WarningBoth
}

// MaxLevel returns the highest valid level for the warning type.
func (w WarningType) MaxLevel() Level {
	if w == WarningAvalanche {
		return LevelBlack
	}
	return LevelRed
}

// Label returns a display label such as "Landslide".
func (w WarningType) Label() string {
	switch w {
	case WarningWeather:
		return "Weather"
	case WarningBoth:
		return "Landslide And Flood"
	case "":
		return ""
	}
	s := strings.ReplaceAll(string(w), "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// Level is the danger rank of an alert, 1 (green) to 5 (black).
type Level int

const (
	LevelGreen  Level = 1
	LevelYellow Level = 2
	LevelOrange Level = 3
	LevelRed    Level = 4
	LevelBlack  Level = 5
)

var levelColors = map[Level]string{
	LevelGreen:  "green",
	LevelYellow: "yellow",
	LevelOrange: "orange",
	LevelRed:    "red",
	LevelBlack:  "black",
}

var levelEmoji = map[Level]string{
	LevelGreen:  "🟢",
	LevelYellow: "🟡",
	LevelOrange: "🟠",
	LevelRed:    "🔴",
	LevelBlack:  "⚫",
}

// Color returns the color name of the level, or "unknown".
func (l Level) Color() string {
	if c, ok := levelColors[l]; ok {
		return c
	}
	return "unknown"
}

// Emoji returns a colored circle for the level.
func (l Level) Emoji() string {
	if e, ok := levelEmoji[l]; ok {
		return e
	}
	return "⚪"
}

// ValidFor reports whether l is in range for the warning type.
func (l Level) ValidFor(w WarningType) bool {
	return l >= LevelGreen && l <= w.MaxLevel()
}

// ParseLevel parses a numeric level such as "3".
func ParseLevel(s string) (Level, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse level %q: %w", s, err)
	}
	return Level(n), nil
}

// Status is the presentation state of an alert relative to the current time.
type Status string

const (
	StatusExpected Status = "Expected"
	StatusOngoing  Status = "Ongoing"
	StatusEnded    Status = "Ended"
)

// Resource is a CAP resource reference.
type Resource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
}

// WeatherDetails carries the CAP fields of a Met.no alert.
type WeatherDetails struct {
	Event              string     `json:"event"`
	AwarenessLevel     string     `json:"awareness_level"`
	AwarenessType      string     `json:"awareness_type"`
	EventAwarenessName string     `json:"event_awareness_name"`
	Contact            string     `json:"contact,omitempty"`
	Web                string     `json:"web,omitempty"`
	GeographicDomain   string     `json:"geographic_domain,omitempty"`
	RiskMatrixColor    string     `json:"risk_matrix_color,omitempty"`
	TriggerLevel       string     `json:"trigger_level,omitempty"`
	Resources          []Resource `json:"resources,omitempty"`
}

// AvalancheDetails carries the avalanche-specific parts of an NVE bulletin.
type AvalancheDetails struct {
	RegionID                string   `json:"region_id"`
	RegionName              string   `json:"region_name"`
	DangerLevelName         string   `json:"danger_level_name,omitempty"`
	AvalancheDanger         string   `json:"avalanche_danger,omitempty"`
	EmergencyWarning        string   `json:"emergency_warning,omitempty"`
	Problems                []string `json:"avalanche_problems,omitempty"`
	Advices                 []string `json:"avalanche_advices,omitempty"`
	SnowSurface             string   `json:"snow_surface,omitempty"`
	CurrentWeakLayers       string   `json:"current_weaklayers,omitempty"`
	LatestAvalancheActivity string   `json:"latest_avalanche_activity,omitempty"`
	LatestObservations      string   `json:"latest_observations,omitempty"`
	Forecaster              string   `json:"forecaster,omitempty"`
	ExposedHeight           int      `json:"exposed_height,omitempty"`
	WindSpeed               string   `json:"wind_speed,omitempty"`
	WindDirection           string   `json:"wind_direction,omitempty"`
	Temperature             string   `json:"temperature,omitempty"`
	Precipitation           string   `json:"precipitation,omitempty"`
	UTMZone                 int      `json:"utm_zone,omitempty"`
	UTMEast                 int      `json:"utm_east,omitempty"`
	UTMNorth                int      `json:"utm_north,omitempty"`
}

// Alert is the normalized warning record shared by every source.
type Alert struct {
	ID              string            `json:"id"`
	MasterID        string            `json:"master_id,omitempty"`
	Level           Level             `json:"level"`
	LevelName       string            `json:"level_name"`
	WarningType     WarningType       `json:"warning_type"`
	EventType       string            `json:"event_type,omitempty"`
	DangerType      string            `json:"danger_type,omitempty"`
	Title           string            `json:"title,omitempty"`
	Municipalities  []string          `json:"municipalities"`
	Areas           []string          `json:"areas"`
	Counties        []string          `json:"county,omitempty"`
	ValidFrom       time.Time         `json:"valid_from"`
	ValidTo         time.Time         `json:"valid_to"`
	DangerIncreases *time.Time        `json:"danger_increases,omitempty"`
	DangerDecreases *time.Time        `json:"danger_decreases,omitempty"`
	MainText        string            `json:"main_text"`
	WarningText     string            `json:"warning_text"`
	AdviceText      string            `json:"advice_text"`
	ConsequenceText string            `json:"consequence_text"`
	Certainty       string            `json:"certainty,omitempty"`
	Severity        string            `json:"severity,omitempty"`
	URL             string            `json:"url"`
	MapURL          string            `json:"map_url,omitempty"`
	Icon            string            `json:"entity_picture,omitempty"`
	Status          Status            `json:"status,omitempty"`
	Weather         *WeatherDetails   `json:"weather,omitempty"`
	Avalanche       *AvalancheDetails `json:"avalanche,omitempty"`
}

// StatusAt derives the alert status at the given instant.
func (a Alert) StatusAt(now time.Time) Status {
	switch {
	case now.Before(a.ValidFrom):
		return StatusExpected
	case now.After(a.ValidTo):
		return StatusEnded
	default:
		return StatusOngoing
	}
}

// Validate checks the level range and validity window of the alert.
func (a Alert) Validate() error {
	if !a.Level.ValidFor(a.WarningType) {
		return fmt.Errorf("alert %s: level %d out of range for %s", a.ID, a.Level, a.WarningType)
	}
	if a.ValidFrom.IsZero() || a.ValidTo.IsZero() {
		return fmt.Errorf("alert %s: missing validity window", a.ID)
	}
	if a.ValidFrom.After(a.ValidTo) {
		return fmt.Errorf("alert %s: valid_from %s after valid_to %s", a.ID,
			a.ValidFrom.Format(time.RFC3339), a.ValidTo.Format(time.RFC3339))
	}
	return nil
}

// Region returns a human readable area for the alert.
func (a Alert) Region() string {
	switch {
	case a.Avalanche != nil && a.Avalanche.RegionName != "":
		return a.Avalanche.RegionName
	case len(a.Areas) > 0:
		return strings.Join(a.Areas, ", ")
	case len(a.Municipalities) > 0:
		return strings.Join(a.Municipalities, ", ")
	}
	return "Unknown area"
}

// Snapshot is the last successfully fetched alert list of an instance.
type Snapshot struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Alerts     []Alert   `json:"alerts"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// AlertState is the part of an alert remembered between cycles for change detection.
type AlertState struct {
	AlertID     string      `json:"alert_id"`
	WarningType WarningType `json:"warning_type"`
	Level       Level       `json:"level"`
	Region      string      `json:"region"`
}

// NotificationKind describes why a notification was raised.
type NotificationKind string

const (
	NotificationNew      NotificationKind = "new"
	NotificationUpgraded NotificationKind = "upgraded"
	NotificationResolved NotificationKind = "resolved"
)

// Notification is a detected change in an instance's alert set.
type Notification struct {
	ID          string           `json:"id"`
	InstanceID  string           `json:"instance_id"`
	Kind        NotificationKind `json:"kind"`
	WarningType WarningType      `json:"warning_type"`
	AlertID     string           `json:"alert_id"`
	Level       Level            `json:"level"`
	Region      string           `json:"region"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationFilter controls which notifications are returned from storage.
type NotificationFilter struct {
	InstanceID string           `json:"instance_id,omitempty"`
	Kind       NotificationKind `json:"kind,omitempty"`
	Since      time.Time        `json:"since,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}
