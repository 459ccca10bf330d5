package enums

import (
	"fmt"
	"strings"
)

// Processor identifies the external system that delivered a webhook.
type Processor string

const (
	ProcessorGHL    Processor = "ghl"
	ProcessorSurvey Processor = "survey"
	ProcessorStripe Processor = "stripe"
	ProcessorSquare Processor = "square"
	ProcessorPayPal Processor = "paypal"
)

var validProcessors = []Processor{
	ProcessorGHL,
	ProcessorSurvey,
	ProcessorStripe,
	ProcessorSquare,
	ProcessorPayPal,
}

// IsValid reports whether the value matches the canonical processor enum.
func (p Processor) IsValid() bool {
	for _, candidate := range validProcessors {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsPayment reports whether the processor delivers payment notifications.
func (p Processor) IsPayment() bool {
	return p == ProcessorStripe || p == ProcessorSquare || p == ProcessorPayPal
}

// ParseProcessor converts raw input into Processor, tolerating case.
func ParseProcessor(value string) (Processor, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validProcessors {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid processor %q", value)
}
