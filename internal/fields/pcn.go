package fields

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// PCNValues is the canonical post-call-note shape extracted from an arbitrary
// survey or form payload. Pointer fields distinguish absent from zero.
type PCNValues struct {
	Outcome                enums.CallOutcome
	Notes                  string
	Objection              string
	NurtureType            string
	FollowUpScheduled      Tristate
	FollowUpDate           *time.Time
	CashCollected          *decimal.Decimal
	OfferMade              Tristate
	NoShowCommunicative    Tristate
	CancellationReason     string
	DisqualificationReason string
	QualificationStatus    string
}

// ExtractPCN resolves the canonical PCN fields from a raw payload. The
// outcome is the only mandatory field; its absence or an unrecognized value
// is an error, everything else is best-effort.
func ExtractPCN(payload map[string]any) (*PCNValues, error) {
	view := NewView(payload)
	return ExtractPCNFromView(view)
}

// ExtractPCNFromView is ExtractPCN over an already-flattened view.
func ExtractPCNFromView(view *View) (*PCNValues, error) {
	rawOutcome, _ := view.GetString(FieldCallOutcome)
	outcome, err := CoerceOutcome(rawOutcome)
	if err != nil {
		return nil, err
	}

	values := &PCNValues{Outcome: outcome}
	values.Notes, _ = view.GetString(FieldNotes)
	values.Objection, _ = view.GetString(FieldObjection)
	values.NurtureType, _ = view.GetString(FieldNurtureType)
	values.CancellationReason, _ = view.GetString(FieldCancellationReason)
	values.DisqualificationReason, _ = view.GetString(FieldDisqualificationReason)
	values.QualificationStatus, _ = view.GetString(FieldQualificationStatus)

	if raw, ok := view.Get(FieldFollowUpScheduled); ok {
		values.FollowUpScheduled = CoerceBool(raw)
	}
	if raw, ok := view.Get(FieldOfferMade); ok {
		values.OfferMade = CoerceBool(raw)
	}
	if raw, ok := view.Get(FieldNoShowCommunicative); ok {
		values.NoShowCommunicative = CoerceBool(raw)
	}
	if raw, ok := view.Get(FieldFollowUpDate); ok {
		if parsed, parsedOK := CoerceTime(raw); parsedOK {
			values.FollowUpDate = &parsed
		}
	}
	if raw, ok := view.Get(FieldCashCollected); ok {
		if amount, amountOK := CoerceCurrency(raw); amountOK {
			values.CashCollected = &amount
		}
	}

	return values, nil
}
