// Package render produces the markdown summary of an instance's alerts.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/cap"
	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// NoActiveAlerts is rendered for an empty alert list.
const NoActiveAlerts = "No active alerts"

// DateLayout formats alert validity times, e.g. "Monday, 02 January kl. 15:04".
const DateLayout = "Monday, 02 January kl. 15:04"

const maxAreaMunicipalities = 5

// Options are the display flags of the summary.
type Options struct {
	ShowIcon   bool `json:"show_icon"`
	ShowStatus bool `json:"show_status"`
	ShowMap    bool `json:"show_map"`
}

// DefaultOptions enables every display element.
func DefaultOptions() Options {
	return Options{ShowIcon: true, ShowStatus: true, ShowMap: true}
}

type view struct {
	cap.Alert
	LevelEmoji     string
	StatusEmoji    string
	StartFormatted string
	EndFormatted   string
	DisplayArea    string
}

var statusEmoji = map[model.Status]string{
	model.StatusExpected: "⏳",
	model.StatusOngoing:  "⚠️",
	model.StatusEnded:    "✅",
}

const summaryTemplate = `{{- range $i, $a := .Alerts -}}
{{- if $i }}

---

{{ end -}}
### {{ if $.Options.ShowIcon }}{{ $a.LevelEmoji }} {{ end }}{{ heading $a }}
{{ if $.Options.ShowStatus }}**Status:** {{ $a.StatusEmoji }} {{ $a.Status }}
{{ end -}}
**Level:** {{ $a.AwarenessLevelColor }} ({{ $a.Severity }})
{{ if $a.DisplayArea }}**Area:** {{ $a.DisplayArea }}
{{ end -}}
{{ if $a.StartFormatted }}**Valid:** {{ $a.StartFormatted }} - {{ $a.EndFormatted }}
{{ end -}}
{{ if $a.Description }}
{{ $a.Description }}
{{ end -}}
{{ if $a.Instruction }}
**Advice:** {{ $a.Instruction }}
{{ end -}}
{{ if $a.Consequences }}
**Consequences:** {{ $a.Consequences }}
{{ end -}}
{{ if and $.Options.ShowMap $a.MapURL }}
![Map]({{ $a.MapURL }})
{{ end -}}
{{ if $a.URL }}
[More information]({{ $a.URL }})
{{- end }}
{{- end -}}`

var tmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"heading": heading,
}).Parse(summaryTemplate))

func heading(v view) string {
	switch {
	case v.Title != "" && v.WarningType == model.WarningWeather:
		return v.Title
	case v.Event != "":
		return v.Event + " warning"
	}
	return v.Title
}

// Markdown renders CAP-shaped alerts. Validity times are shown in Oslo time.
func Markdown(alerts []cap.Alert, opts Options, now time.Time) (string, error) {
	if len(alerts) == 0 {
		return NoActiveAlerts, nil
	}

	views := make([]view, len(alerts))
	for i, a := range alerts {
		views[i] = enrich(a, now)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Alerts  []view
		Options Options
	}{views, opts}); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func enrich(a cap.Alert, now time.Time) view {
	v := view{Alert: a, LevelEmoji: a.Level.Emoji(), DisplayArea: a.Area}
	if v.Status == "" && !a.StartTime.IsZero() {
		v.Status = model.Alert{ValidFrom: a.StartTime, ValidTo: a.EndTime}.StatusAt(now)
	}
	v.StatusEmoji = statusEmoji[v.Status]
	if !a.StartTime.IsZero() && !a.EndTime.IsZero() {
		v.StartFormatted = a.StartTime.In(model.Oslo).Format(DateLayout)
		v.EndFormatted = a.EndTime.In(model.Oslo).Format(DateLayout)
	}
	if v.DisplayArea == "" {
		v.DisplayArea = AreaSummary(a.Municipalities)
	}
	return v
}

// AreaSummary joins up to five municipalities and counts the rest.
func AreaSummary(municipalities []string) string {
	if len(municipalities) <= maxAreaMunicipalities {
		return strings.Join(municipalities, ", ")
	}
	return fmt.Sprintf("%s (+%d more)",
		strings.Join(municipalities[:maxAreaMunicipalities], ", "),
		len(municipalities)-maxAreaMunicipalities)
}
