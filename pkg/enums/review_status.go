package enums

import "fmt"

// ReviewStatus tracks an unmatched payment through human review.
type ReviewStatus string

const (
	ReviewStatusPending ReviewStatus = "pending"
	ReviewStatusMatched ReviewStatus = "matched"
)

var validReviewStatuses = []ReviewStatus{ReviewStatusPending, ReviewStatusMatched}

// IsValid reports whether the value matches the canonical enum.
func (s ReviewStatus) IsValid() bool {
	for _, candidate := range validReviewStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReviewStatus converts raw input into ReviewStatus.
func ParseReviewStatus(value string) (ReviewStatus, error) {
	for _, candidate := range validReviewStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid review status %q", value)
}
