package enums

import "fmt"

// AppointmentStatus maps to the appointment_status_enum enum in Postgres.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusShowed    AppointmentStatus = "showed"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
	AppointmentStatusSigned    AppointmentStatus = "signed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

var validAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusShowed,
	AppointmentStatusNoShow,
	AppointmentStatusSigned,
	AppointmentStatusCancelled,
}

// IsValid reports whether the value matches the canonical status enum.
func (s AppointmentStatus) IsValid() bool {
	for _, candidate := range validAppointmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further webhook mutation may change the status.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCancelled || s == AppointmentStatusSigned
}

// ParseAppointmentStatus converts raw input into AppointmentStatus.
func ParseAppointmentStatus(value string) (AppointmentStatus, error) {
	for _, candidate := range validAppointmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid appointment status %q", value)
}
