package enums

import "fmt"

// PaymentContext describes how much of a sale the triggering payment covers,
// which decides how much commission releases up front.
type PaymentContext string

const (
	PaymentContextFull        PaymentContext = "full"
	PaymentContextInstallment PaymentContext = "installment"
	PaymentContextDeferred    PaymentContext = "deferred"
)

var validPaymentContexts = []PaymentContext{
	PaymentContextFull,
	PaymentContextInstallment,
	PaymentContextDeferred,
}

// IsValid reports whether the value matches the canonical enum.
func (c PaymentContext) IsValid() bool {
	for _, candidate := range validPaymentContexts {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParsePaymentContext converts raw input into PaymentContext.
func ParsePaymentContext(value string) (PaymentContext, error) {
	for _, candidate := range validPaymentContexts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment context %q", value)
}
