// Package notify detects new, upgraded and resolved alerts between poll cycles.
package notify

import (
	"context"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// Re-export model types for convenience.
type (
	Notification     = model.Notification
	NotificationKind = model.NotificationKind
	AlertState       = model.AlertState
)

// Notifier delivers notifications to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers a notification. Implementations must be safe for concurrent use.
	Send(ctx context.Context, n Notification) error
}

// Threshold is the minimum level an alert needs to be announced.
type Threshold string

const (
	ThresholdAll        Threshold = "all"
	ThresholdYellowPlus Threshold = "yellow_plus"
	ThresholdOrangePlus Threshold = "orange_plus"
	ThresholdRedOnly    Threshold = "red_only"
)

// DefaultThreshold announces yellow and above.
const DefaultThreshold = ThresholdYellowPlus

var thresholdLevels = map[Threshold]model.Level{
	ThresholdAll:        model.LevelGreen,
	ThresholdYellowPlus: model.LevelYellow,
	ThresholdOrangePlus: model.LevelOrange,
	ThresholdRedOnly:    model.LevelRed,
}

// ParseThreshold validates a threshold name. Empty selects the default.
func ParseThreshold(s string) (Threshold, error) {
	if s == "" {
		return DefaultThreshold, nil
	}
	t := Threshold(s)
	if _, ok := thresholdLevels[t]; !ok {
		return "", model.InvalidConfig("unknown notification severity %q", s)
	}
	return t, nil
}

// MinLevel returns the lowest level announced at this threshold.
func (t Threshold) MinLevel() model.Level {
	if l, ok := thresholdLevels[t]; ok {
		return l
	}
	return thresholdLevels[DefaultThreshold]
}
