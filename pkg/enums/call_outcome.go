package enums

import "fmt"

// CallOutcome is the finalized result of a sales call as reported on a PCN.
type CallOutcome string

const (
	CallOutcomeShowed    CallOutcome = "showed"
	CallOutcomeSigned    CallOutcome = "signed"
	CallOutcomeNoShow    CallOutcome = "no_show"
	CallOutcomeCancelled CallOutcome = "cancelled"
)

var validCallOutcomes = []CallOutcome{
	CallOutcomeShowed,
	CallOutcomeSigned,
	CallOutcomeNoShow,
	CallOutcomeCancelled,
}

// IsValid reports whether the value matches the canonical outcome enum.
func (o CallOutcome) IsValid() bool {
	for _, candidate := range validCallOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// Status returns the appointment status an outcome finalizes to.
func (o CallOutcome) Status() AppointmentStatus {
	switch o {
	case CallOutcomeSigned:
		return AppointmentStatusSigned
	case CallOutcomeNoShow:
		return AppointmentStatusNoShow
	case CallOutcomeCancelled:
		return AppointmentStatusCancelled
	default:
		return AppointmentStatusShowed
	}
}

// ParseCallOutcome converts raw input into CallOutcome. It only accepts the
// canonical spellings; synonym mapping lives in the field normalizer.
func ParseCallOutcome(value string) (CallOutcome, error) {
	for _, candidate := range validCallOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid call outcome %q", value)
}
