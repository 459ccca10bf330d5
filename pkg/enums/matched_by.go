package enums

import "fmt"

// MatchedBy records whether a sale/appointment link came from the matcher or a human.
type MatchedBy string

const (
	MatchedByAuto   MatchedBy = "auto"
	MatchedByManual MatchedBy = "manual"
)

var validMatchedBy = []MatchedBy{MatchedByAuto, MatchedByManual}

// IsValid reports whether the value matches the canonical enum.
func (m MatchedBy) IsValid() bool {
	for _, candidate := range validMatchedBy {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMatchedBy converts raw input into MatchedBy.
func ParseMatchedBy(value string) (MatchedBy, error) {
	for _, candidate := range validMatchedBy {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid matched_by %q", value)
}
