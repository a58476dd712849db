package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/cap"
	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/render"
)

// Location is where an instance watches for alerts: a county or a point.
type Location struct {
	CountyID   string
	CountyName string
	Latitude   *float64
	Longitude  *float64
}

// Options controls how a result is computed.
type Options struct {
	Location Location

	// Filter is the raw municipality filter. Empty disables filtering.
	Filter string

	CAPFormat   bool
	SortByLevel bool
	Display     render.Options
}

// Result is the sensor-facing projection of an instance's alerts.
type Result struct {
	ActiveAlerts        int
	HighestLevel        string
	HighestLevelNumeric int
	Alerts              []model.Alert
	CAPAlerts           []cap.Alert
	FormattedContent    *string
	Location            Location
	MunicipalityFilter  *string
}

type resultJSON struct {
	ActiveAlerts        int      `json:"active_alerts"`
	HighestLevel        string   `json:"highest_level"`
	HighestLevelNumeric int      `json:"highest_level_numeric"`
	Alerts              any      `json:"alerts"`
	FormattedContent    *string  `json:"formatted_content,omitempty"`
	CountyName          string   `json:"county_name,omitempty"`
	CountyID            string   `json:"county_id,omitempty"`
	MunicipalityFilter  *string  `json:"municipality_filter"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
}

// MarshalJSON emits CAP-shaped alerts when CAP format is enabled.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		ActiveAlerts:        r.ActiveAlerts,
		HighestLevel:        r.HighestLevel,
		HighestLevelNumeric: r.HighestLevelNumeric,
		FormattedContent:    r.FormattedContent,
		CountyName:          r.Location.CountyName,
		CountyID:            r.Location.CountyID,
		MunicipalityFilter:  r.MunicipalityFilter,
		Latitude:            r.Location.Latitude,
		Longitude:           r.Location.Longitude,
	}
	switch {
	case r.CAPAlerts != nil:
		out.Alerts = r.CAPAlerts
	case r.Alerts != nil:
		out.Alerts = r.Alerts
	default:
		out.Alerts = []model.Alert{}
	}
	return json.Marshal(out)
}

// Aggregate runs the pipeline over a raw alert list at now. Green records are
// dropped before merging so they cannot hide an active record of the same master.
func Aggregate(raw []model.Alert, opts Options, now time.Time) (Result, error) {
	alerts := Dedupe(Active(raw))
	var filter *string
	if opts.Filter != "" {
		alerts = FilterMunicipalities(alerts, ParseFilter(opts.Filter))
		f := opts.Filter
		filter = &f
	}
	alerts = Annotate(alerts, now)
	if opts.SortByLevel {
		alerts = SortByLevel(alerts)
	}

	highest := HighestLevel(alerts)
	res := Result{
		ActiveAlerts:        len(alerts),
		HighestLevel:        highest.Color(),
		HighestLevelNumeric: int(highest),
		Alerts:              alerts,
		Location:            opts.Location,
		MunicipalityFilter:  filter,
	}

	if opts.CAPFormat {
		res.CAPAlerts = cap.ToCAPAll(alerts)
		content, err := render.Markdown(res.CAPAlerts, opts.Display, now)
		if err != nil {
			return Result{}, fmt.Errorf("aggregate: %w", err)
		}
		res.FormattedContent = &content
	}
	return res, nil
}
