package model

import "fmt"

// iconKinds lists the warning pictograms available per event kind.
var iconKinds = map[string]bool{
	"avalanches":        true,
	"drivingconditions": true,
	"flood":             true,
	"forestfire":        true,
	"generic":           true,
	"ice":               true,
	"landslide":         true,
	"lightning":         true,
	"polarlow":          true,
	"rain":              true,
	"rainflood":         true,
	"snow":              true,
	"stormsurge":        true,
	"wind":              true,
}

// iconEventAliases maps upstream event names onto pictogram kinds.
var iconEventAliases = map[string]string{
	"avalanche":   "avalanches",
	"gale":        "wind",
	"icing":       "ice",
	"blowingsnow": "snow",
}

// IconKind normalizes an event or warning type name to a pictogram kind.
func IconKind(event string) string {
	if alias, ok := iconEventAliases[event]; ok {
		return alias
	}
	return event
}

// IconKey returns the pictogram key for an event kind and level, falling back to
// the generic pictogram. Green alerts have no icon.
func IconKey(event string, level Level) string {
	color := level.Color()
	switch level {
	case LevelYellow, LevelOrange, LevelRed:
	case LevelBlack:
		color = LevelRed.Color()
	default:
		return ""
	}
	kind := IconKind(event)
	if !iconKinds[kind] {
		kind = "generic"
	}
	return fmt.Sprintf("icon-warning-%s-%s", kind, color)
}
