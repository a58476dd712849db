package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

const maxMessageText = 100

// Detector compares successive alert lists of one instance.
type Detector struct {
	instanceID string
	threshold  Threshold
	previous   map[string]AlertState
}

// NewDetector creates a detector seeded with previously persisted state.
func NewDetector(instanceID string, threshold Threshold, previous []AlertState) *Detector {
	d := &Detector{
		instanceID: instanceID,
		threshold:  threshold,
		previous:   make(map[string]AlertState, len(previous)),
	}
	for _, s := range previous {
		d.previous[stateKey(s.WarningType, s.AlertID)] = s
	}
	return d
}

func stateKey(t model.WarningType, id string) string {
	return string(t) + ":" + id
}

// Detect returns the notifications raised by the current alert list and
// remembers it for the next call. Only alerts at or above the threshold are
// announced or resolved.
func (d *Detector) Detect(alerts []model.Alert, now time.Time) []Notification {
	minLevel := d.threshold.MinLevel()
	current := make(map[string]AlertState, len(alerts))
	var out []Notification

	for _, a := range alerts {
		key := stateKey(a.WarningType, a.ID)
		if _, dup := current[key]; dup {
			continue
		}
		state := AlertState{AlertID: a.ID, WarningType: a.WarningType, Level: a.Level, Region: a.Region()}
		current[key] = state

		if a.Level < minLevel {
			continue
		}
		prev, seen := d.previous[key]
		switch {
		case !seen:
			out = append(out, d.alertNotification(model.NotificationNew, a, now))
		case a.Level > prev.Level:
			out = append(out, d.alertNotification(model.NotificationUpgraded, a, now))
		}
	}

	keys := make([]string, 0, len(d.previous))
	for k := range d.previous {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		prev := d.previous[k]
		if _, still := current[k]; still || prev.Level < minLevel {
			continue
		}
		out = append(out, d.resolvedNotification(prev, now))
	}

	d.previous = current
	return out
}

// State returns the remembered alert states, sorted by key.
func (d *Detector) State() []AlertState {
	out := make([]AlertState, 0, len(d.previous))
	for _, s := range d.previous {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return stateKey(out[i].WarningType, out[i].AlertID) < stateKey(out[j].WarningType, out[j].AlertID)
	})
	return out
}

func (d *Detector) alertNotification(kind model.NotificationKind, a model.Alert, now time.Time) Notification {
	label := strings.ToUpper(string(kind[:1])) + string(kind[1:])
	color := a.Level.Color()
	message := fmt.Sprintf("%s - %s danger level", a.Region(), strings.ToUpper(color[:1])+color[1:])
	if text := truncate(a.MainText); text != "" {
		message += "\n\n" + text
	}
	return Notification{
		ID:          uuid.New().String(),
		InstanceID:  d.instanceID,
		Kind:        kind,
		WarningType: a.WarningType,
		AlertID:     a.ID,
		Level:       a.Level,
		Region:      a.Region(),
		Title:       fmt.Sprintf("%s %s %s Warning", a.Level.Emoji(), label, a.WarningType.Label()),
		Message:     message,
		CreatedAt:   now,
	}
}

func (d *Detector) resolvedNotification(s AlertState, now time.Time) Notification {
	return Notification{
		ID:          uuid.New().String(),
		InstanceID:  d.instanceID,
		Kind:        model.NotificationResolved,
		WarningType: s.WarningType,
		AlertID:     s.AlertID,
		Level:       s.Level,
		Region:      s.Region,
		Title:       fmt.Sprintf("✅ Resolved %s Warning", s.WarningType.Label()),
		Message:     s.Region + " - Warning no longer active",
		CreatedAt:   now,
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageText {
		return s
	}
	return string(r[:97]) + "..."
}
