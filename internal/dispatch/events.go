package dispatch

import (
	"strings"
	"unicode"
)

// canonical event kinds routed by the dispatcher.
const (
	eventAppointmentUpsert = "appointment.upsert"
	eventAppointmentCancel = "appointment.cancel"
	eventContactUpsert     = "contact.upsert"
	eventPaymentReceived   = "payment.received"
	eventSurveySubmission  = "survey.submission"
	eventUnknown           = ""
)

// eventAliases maps normalized external event-type spellings to canonical
// kinds. CRMs rename and re-case these across versions; all spellings of the
// same logical event land on one handler.
var eventAliases = map[string]string{
	"appointmentcreate":         eventAppointmentUpsert,
	"appointmentcreated":        eventAppointmentUpsert,
	"appointmentupdate":         eventAppointmentUpsert,
	"appointmentupdated":        eventAppointmentUpsert,
	"appointmentreschedule":     eventAppointmentUpsert,
	"appointmentrescheduled":    eventAppointmentUpsert,
	"appointmentbooked":         eventAppointmentUpsert,
	"calendarappointmentcreate": eventAppointmentUpsert,

	"appointmentdelete":    eventAppointmentCancel,
	"appointmentdeleted":   eventAppointmentCancel,
	"appointmentcancel":    eventAppointmentCancel,
	"appointmentcancelled": eventAppointmentCancel,
	"appointmentcanceled":  eventAppointmentCancel,

	"contactcreate":  eventContactUpsert,
	"contactcreated": eventContactUpsert,
	"contactupdate":  eventContactUpsert,
	"contactupdated": eventContactUpsert,

	"paymentreceived":  eventPaymentReceived,
	"paymentcreated":   eventPaymentReceived,
	"paymentsucceeded": eventPaymentReceived,
	"chargesucceeded":  eventPaymentReceived,
	"ordercompleted":   eventPaymentReceived,
	"invoicepaid":      eventPaymentReceived,

	"surveysubmission": eventSurveySubmission,
	"surveysubmitted":  eventSurveySubmission,
	"formsubmission":   eventSurveySubmission,
	"formsubmitted":    eventSurveySubmission,
}

// canonicalEventType resolves an external event-type string, in any casing or
// punctuation, to the canonical kind. Unknown types return eventUnknown.
func canonicalEventType(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return eventAliases[b.String()]
}
