package enums

import "fmt"

// ReleaseStatus tracks how much of a commission has become payable.
type ReleaseStatus string

const (
	ReleaseStatusPending  ReleaseStatus = "pending"
	ReleaseStatusPartial  ReleaseStatus = "partial"
	ReleaseStatusReleased ReleaseStatus = "released"
	ReleaseStatusPaid     ReleaseStatus = "paid"
)

var validReleaseStatuses = []ReleaseStatus{
	ReleaseStatusPending,
	ReleaseStatusPartial,
	ReleaseStatusReleased,
	ReleaseStatusPaid,
}

// IsValid reports whether the value matches the canonical enum.
func (s ReleaseStatus) IsValid() bool {
	for _, candidate := range validReleaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Rank orders release statuses so advancement can be enforced as monotonic.
func (s ReleaseStatus) Rank() int {
	switch s {
	case ReleaseStatusPending:
		return 0
	case ReleaseStatusPartial:
		return 1
	case ReleaseStatusReleased:
		return 2
	case ReleaseStatusPaid:
		return 3
	default:
		return -1
	}
}

// ParseReleaseStatus converts raw input into ReleaseStatus.
func ParseReleaseStatus(value string) (ReleaseStatus, error) {
	for _, candidate := range validReleaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release status %q", value)
}
