package enums

import "fmt"

// DraftStatus tracks an AI/survey-drafted PCN candidate through review.
type DraftStatus string

const (
	DraftStatusPending  DraftStatus = "pending"
	DraftStatusApproved DraftStatus = "approved"
	DraftStatusRejected DraftStatus = "rejected"
)

var validDraftStatuses = []DraftStatus{
	DraftStatusPending,
	DraftStatusApproved,
	DraftStatusRejected,
}

// IsValid reports whether the value matches the canonical enum.
func (s DraftStatus) IsValid() bool {
	for _, candidate := range validDraftStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDraftStatus converts raw input into DraftStatus.
func ParseDraftStatus(value string) (DraftStatus, error) {
	for _, candidate := range validDraftStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid draft status %q", value)
}
