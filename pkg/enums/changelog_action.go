package enums

import "fmt"

// ChangelogAction is the audited action recorded against a PCN.
type ChangelogAction string

const (
	ChangelogActionSubmitted ChangelogAction = "submitted"
	ChangelogActionApproved  ChangelogAction = "approved"
	ChangelogActionRejected  ChangelogAction = "rejected"
)

var validChangelogActions = []ChangelogAction{
	ChangelogActionSubmitted,
	ChangelogActionApproved,
	ChangelogActionRejected,
}

// IsValid reports whether the value matches the canonical enum.
func (a ChangelogAction) IsValid() bool {
	for _, candidate := range validChangelogActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseChangelogAction converts raw input into ChangelogAction.
func ParseChangelogAction(value string) (ChangelogAction, error) {
	for _, candidate := range validChangelogActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid changelog action %q", value)
}
