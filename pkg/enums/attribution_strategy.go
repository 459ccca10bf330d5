package enums

import "fmt"

// AttributionStrategy selects which heuristic derives a lead's traffic source.
type AttributionStrategy string

const (
	AttributionStrategyGHLFields AttributionStrategy = "ghl_fields"
	AttributionStrategyCalendars AttributionStrategy = "calendars"
	AttributionStrategyHyros     AttributionStrategy = "hyros"
	AttributionStrategyTags      AttributionStrategy = "tags"
	AttributionStrategyNone      AttributionStrategy = "none"
)

var validAttributionStrategies = []AttributionStrategy{
	AttributionStrategyGHLFields,
	AttributionStrategyCalendars,
	AttributionStrategyHyros,
	AttributionStrategyTags,
	AttributionStrategyNone,
}

// IsValid reports whether the value matches the canonical strategy enum.
func (s AttributionStrategy) IsValid() bool {
	for _, candidate := range validAttributionStrategies {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAttributionStrategy converts raw input into AttributionStrategy.
func ParseAttributionStrategy(value string) (AttributionStrategy, error) {
	for _, candidate := range validAttributionStrategies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attribution strategy %q", value)
}
