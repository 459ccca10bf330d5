package fields

import (
	"sort"
)

// Field names a canonical value the pipeline understands. External payloads
// spell these a dozen different ways; the alias table below is the single
// place those spellings live.
type Field string

const (
	FieldCallOutcome            Field = "call_outcome"
	FieldNotes                  Field = "notes"
	FieldObjection              Field = "objection"
	FieldNurtureType            Field = "nurture_type"
	FieldFollowUpScheduled      Field = "follow_up_scheduled"
	FieldFollowUpDate           Field = "follow_up_date"
	FieldCashCollected          Field = "cash_collected"
	FieldOfferMade              Field = "offer_made"
	FieldNoShowCommunicative    Field = "no_show_communicative"
	FieldCancellationReason     Field = "cancellation_reason"
	FieldDisqualificationReason Field = "disqualification_reason"
	FieldQualificationStatus    Field = "qualification_status"

	FieldAppointmentID     Field = "appointment_id"
	FieldContactID         Field = "contact_id"
	FieldContactEmail      Field = "contact_email"
	FieldContactPhone      Field = "contact_phone"
	FieldContactName       Field = "contact_name"
	FieldCloserEmail       Field = "closer_email"
	FieldCalendarID        Field = "calendar_id"
	FieldLocationID        Field = "location_id"
	FieldScheduledAt       Field = "scheduled_at"
	FieldAppointmentStatus Field = "appointment_status"

	FieldCalendarName Field = "calendar_name"

	FieldPaymentID      Field = "payment_id"
	FieldPaymentAmount  Field = "payment_amount"
	FieldPaidAt         Field = "paid_at"
	FieldPaymentContext Field = "payment_context"
)

// aliasTable is ordered: the first alias present in a payload wins.
var aliasTable = map[Field][]string{
	FieldCallOutcome: {
		"pcn - call outcome",
		"call outcome",
		"callOutcome",
		"outcome",
		"appointment outcome",
		"status",
	},
	FieldNotes: {
		"pcn - notes",
		"notes",
		"call notes",
		"note",
	},
	FieldObjection: {
		"pcn - why didn't they move forward",
		"whyDidntMoveForward",
		"why didnt move forward",
		"objection",
		"primary objection",
	},
	FieldNurtureType: {
		"pcn - nurture type",
		"nurtureType",
		"nurture type",
		"nurture",
	},
	FieldFollowUpScheduled: {
		"pcn - follow up scheduled",
		"followUpScheduled",
		"follow up scheduled",
		"follow up booked",
	},
	FieldFollowUpDate: {
		"pcn - follow up date",
		"followUpDate",
		"follow up date",
	},
	FieldCashCollected: {
		"pcn - cash collected",
		"cashCollected",
		"cash collected",
		"amount collected",
		"collected",
	},
	FieldOfferMade: {
		"pcn - was an offer made",
		"wasOfferMade",
		"was offer made",
		"offer made",
	},
	FieldNoShowCommunicative: {
		"pcn - no show communicative",
		"noShowCommunicative",
		"no show communicative",
		"communicative",
	},
	FieldCancellationReason: {
		"pcn - cancellation reason",
		"cancellationReason",
		"cancellation reason",
		"cancel reason",
	},
	FieldDisqualificationReason: {
		"pcn - disqualification reason",
		"disqualificationReason",
		"disqualification reason",
		"dq reason",
	},
	FieldQualificationStatus: {
		"pcn - qualification status",
		"qualificationStatus",
		"qualification status",
		"qualified",
	},

	FieldAppointmentID: {
		"appointmentId",
		"appointment id",
		"appointment_id",
		"calendar.appointmentId",
		"id",
	},
	FieldContactID: {
		"contactId",
		"contact id",
		"contact_id",
	},
	FieldContactEmail: {
		"contact email",
		"customer email",
		"email",
		"buyer email",
	},
	FieldContactPhone: {
		"contact phone",
		"customer phone",
		"phone",
		"phone number",
	},
	FieldContactName: {
		"contact name",
		"customer name",
		"full name",
		"name",
	},
	FieldCloserEmail: {
		"closer email",
		"rep email",
		"assigned user email",
		"user email",
	},
	FieldCalendarID: {
		"calendarId",
		"calendar id",
		"calendar_id",
	},
	FieldLocationID: {
		"locationId",
		"location id",
		"location_id",
		"accountId",
	},
	FieldScheduledAt: {
		"startTime",
		"start time",
		"scheduledAt",
		"scheduled at",
		"appointment time",
	},
	FieldAppointmentStatus: {
		"appointmentStatus",
		"appointment status",
		"calendar.status",
	},

	FieldPaymentID: {
		"paymentId",
		"payment id",
		"transactionId",
		"transaction id",
		"charge id",
	},
	FieldPaymentAmount: {
		"amount",
		"amount paid",
		"total",
		"payment amount",
	},
	FieldPaidAt: {
		"paidAt",
		"paid at",
		"payment date",
		"created",
	},
	FieldPaymentContext: {
		"paymentContext",
		"payment context",
		"paymentType",
		"payment type",
	},
	FieldCalendarName: {
		"calendarName",
		"calendar name",
		"calendar.name",
	},
}

// Lookup returns the first value in payload matching any registered alias for
// the field. The payload is flattened first so aliases match at any nesting
// depth; both the full dot path and the leaf key participate.
func Lookup(payload map[string]any, field Field) (any, bool) {
	return lookupFlattened(Flatten(payload), field)
}

// LookupString is Lookup restricted to non-empty string results.
func LookupString(payload map[string]any, field Field) (string, bool) {
	return lookupString(Flatten(payload), field)
}

// View is a pre-flattened payload for repeated lookups.
type View struct {
	byNorm map[string]any
	// order keeps deterministic tie-breaking for keys that normalize equal.
	order []string
}

// NewView flattens the payload once and indexes it by normalized key.
func NewView(payload map[string]any) *View {
	flat := Flatten(payload)
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	v := &View{byNorm: make(map[string]any, len(flat)*2)}
	for _, key := range keys {
		val := flat[key]
		full := NormalizeKey(key)
		if _, exists := v.byNorm[full]; !exists {
			v.byNorm[full] = val
			v.order = append(v.order, full)
		}
		leaf := NormalizeKey(leafSegment(key))
		if _, exists := v.byNorm[leaf]; !exists {
			v.byNorm[leaf] = val
			v.order = append(v.order, leaf)
		}
	}
	return v
}

// Get returns the first alias hit for the field.
func (v *View) Get(field Field) (any, bool) {
	for _, alias := range aliasTable[field] {
		if val, ok := v.byNorm[NormalizeKey(alias)]; ok {
			return val, true
		}
	}
	return nil, false
}

// GetString returns the first alias hit coerced to a trimmed string.
func (v *View) GetString(field Field) (string, bool) {
	val, ok := v.Get(field)
	if !ok {
		return "", false
	}
	s, ok := asString(val)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func lookupFlattened(flat map[string]any, field Field) (any, bool) {
	view := &View{byNorm: make(map[string]any, len(flat)*2)}
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		val := flat[key]
		full := NormalizeKey(key)
		if _, exists := view.byNorm[full]; !exists {
			view.byNorm[full] = val
		}
		leaf := NormalizeKey(leafSegment(key))
		if _, exists := view.byNorm[leaf]; !exists {
			view.byNorm[leaf] = val
		}
	}
	return view.Get(field)
}

func lookupString(flat map[string]any, field Field) (string, bool) {
	val, ok := lookupFlattened(flat, field)
	if !ok {
		return "", false
	}
	s, ok := asString(val)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Aliases returns a copy of the registered aliases for a field.
func Aliases(field Field) []string {
	src := aliasTable[field]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
