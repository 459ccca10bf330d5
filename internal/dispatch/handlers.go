package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lib/pq"

	"github.com/angelmondragon/closetrack-backend/internal/appointments"
	"github.com/angelmondragon/closetrack-backend/internal/attribution"
	"github.com/angelmondragon/closetrack-backend/internal/fields"
	"github.com/angelmondragon/closetrack-backend/internal/payments"
	"github.com/angelmondragon/closetrack-backend/internal/pcn"
	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
)

// handleAppointmentUpsert applies a booking event: contact and calendar are
// refreshed first, then the appointment row, then attribution.
func (d *Dispatcher) handleAppointmentUpsert(ctx context.Context, company *models.Company, payload map[string]any, view *fields.View) error {
	externalID, ok := view.GetString(fields.FieldAppointmentID)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "appointment id missing from payload")
	}
	scheduledRaw, ok := view.Get(fields.FieldScheduledAt)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "scheduled time missing from payload")
	}
	scheduledAt, ok := fields.CoerceTime(scheduledRaw)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "scheduled time unparseable")
	}

	contact, err := d.upsertContact(ctx, company, payload, view)
	if err != nil {
		return err
	}
	calendar, err := d.upsertCalendar(ctx, company, view)
	if err != nil {
		return err
	}

	params := appointments.UpsertParams{
		CompanyID:   company.ID,
		ExternalID:  externalID,
		ScheduledAt: scheduledAt,
	}
	if contact != nil {
		params.ContactID = &contact.ID
	}
	if calendar != nil {
		params.CalendarID = &calendar.ID
		params.CloserID = calendar.DefaultCloserID
	}
	if closer := d.lookupCloser(ctx, company, view); closer != nil {
		params.CloserID = &closer.ID
	}
	if rawStatus, ok := view.GetString(fields.FieldAppointmentStatus); ok {
		if status, err := enums.ParseAppointmentStatus(strings.ToLower(rawStatus)); err == nil {
			params.Status = status
		}
	}

	appointment, err := d.appts.Upsert(ctx, params)
	if err != nil {
		return err
	}

	if d.attrib == nil {
		return nil
	}
	result, err := d.attrib.Resolve(ctx, attribution.Input{
		Company:     company,
		Appointment: appointment,
		Contact:     contact,
		Calendar:    calendar,
	})
	if err != nil {
		return err
	}
	if result.Confidence > 0 {
		return d.appts.SetAttribution(ctx, company.ID, appointment.ID,
			result.TrafficSource, result.LeadSource, result.Confidence)
	}
	return nil
}

// handleAppointmentCancel is safe out of order: a cancel arriving before the
// create is a not-found the caller records; a replay is a no-op.
func (d *Dispatcher) handleAppointmentCancel(ctx context.Context, company *models.Company, view *fields.View) error {
	externalID, ok := view.GetString(fields.FieldAppointmentID)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "appointment id missing from payload")
	}
	appointment, err := d.appts.GetByExternalID(ctx, company.ID, externalID)
	if err != nil {
		return err
	}
	_, err = d.appts.ApplyStatus(ctx, company.ID, appointment.ID, enums.AppointmentStatusCancelled)
	return err
}

// upsertContact refreshes the contact row from the payload. Payloads without
// a contact id carry no contact to store; that is not an error.
func (d *Dispatcher) upsertContact(ctx context.Context, company *models.Company, payload map[string]any, view *fields.View) (*models.Contact, error) {
	if d.contacts == nil {
		return nil, nil
	}
	externalID, ok := view.GetString(fields.FieldContactID)
	if !ok {
		return nil, nil
	}
	contact := &models.Contact{
		CompanyID:  company.ID,
		ExternalID: externalID,
	}
	contact.Email, _ = view.GetString(fields.FieldContactEmail)
	contact.Phone, _ = view.GetString(fields.FieldContactPhone)
	contact.Name, _ = view.GetString(fields.FieldContactName)
	contact.CustomFields = extractCustomFields(payload)
	contact.Tags = pq.StringArray(extractTags(payload))
	return d.contacts.Upsert(ctx, contact)
}

// upsertCalendar refreshes the calendar's name only; the manually-assigned
// traffic source is tenant configuration and survives syncs.
func (d *Dispatcher) upsertCalendar(ctx context.Context, company *models.Company, view *fields.View) (*models.Calendar, error) {
	if d.cals == nil {
		return nil, nil
	}
	externalID, ok := view.GetString(fields.FieldCalendarID)
	if !ok {
		return nil, nil
	}
	name, ok := view.GetString(fields.FieldCalendarName)
	if !ok {
		name = externalID
	}
	return d.cals.Upsert(ctx, &models.Calendar{
		CompanyID:  company.ID,
		ExternalID: externalID,
		Name:       name,
	})
}

// lookupCloser resolves the rep the payload names, best-effort.
func (d *Dispatcher) lookupCloser(ctx context.Context, company *models.Company, view *fields.View) *models.User {
	if d.closers == nil {
		return nil
	}
	email, ok := view.GetString(fields.FieldCloserEmail)
	if !ok {
		return nil
	}
	closer, err := d.closers.FindByEmail(ctx, company.ID, email)
	if err != nil {
		return nil
	}
	return closer
}

// handleSurvey turns a survey submission into a PCN submission or draft.
func (d *Dispatcher) handleSurvey(ctx context.Context, company *models.Company, payload map[string]any, view *fields.View) error {
	if d.pcn == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "pcn service not wired")
	}
	externalID, ok := view.GetString(fields.FieldAppointmentID)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "appointment id missing from survey")
	}
	values, err := fields.ExtractPCNFromView(view)
	if err != nil {
		return err
	}
	appointment, err := d.appts.GetByExternalID(ctx, company.ID, externalID)
	if err != nil {
		return err
	}

	if d.tenants.AutoSubmitAllowed(company, string(enums.PCNSourceSurvey)) {
		_, err = d.pcn.Submit(ctx, pcn.SubmitParams{
			CompanyID:        company.ID,
			AppointmentID:    appointment.ID,
			Source:           enums.PCNSourceSurvey,
			Actor:            "survey-webhook",
			Values:           *values,
			StrictValidation: true,
		})
		return err
	}
	_, err = d.pcn.SaveDraft(ctx, pcn.DraftParams{
		CompanyID:     company.ID,
		AppointmentID: appointment.ID,
		Source:        enums.PCNSourceSurvey,
		Values:        *values,
	})
	return err
}

// handlePayment normalizes the notification and hands it to the matcher.
func (d *Dispatcher) handlePayment(ctx context.Context, company *models.Company, processor enums.Processor, view *fields.View) error {
	if d.payments == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "payment service not wired")
	}
	paymentID, ok := view.GetString(fields.FieldPaymentID)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id missing from payload")
	}
	amountRaw, ok := view.Get(fields.FieldPaymentAmount)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount missing from payload")
	}
	amount, ok := fields.CoerceCurrency(amountRaw)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount unparseable")
	}

	params := payments.IngestParams{
		CompanyID:         company.ID,
		Processor:         processor,
		ExternalPaymentID: paymentID,
		Amount:            amount,
	}
	if raw, ok := view.Get(fields.FieldPaidAt); ok {
		if paidAt, ok := fields.CoerceTime(raw); ok {
			params.PaidAt = paidAt
		}
	}
	params.ContactEmail, _ = view.GetString(fields.FieldContactEmail)
	params.ContactPhone, _ = view.GetString(fields.FieldContactPhone)
	params.ContactName, _ = view.GetString(fields.FieldContactName)
	params.CloserEmail, _ = view.GetString(fields.FieldCloserEmail)
	if raw, ok := view.GetString(fields.FieldPaymentContext); ok {
		if parsed, err := enums.ParsePaymentContext(strings.ToLower(raw)); err == nil {
			params.PaymentContext = parsed
		}
	}

	_, err := d.payments.Ingest(ctx, params)
	return err
}

// extractCustomFields pulls the tenant-defined field bag out of the payload,
// stored as delivered.
func extractCustomFields(payload map[string]any) json.RawMessage {
	for _, key := range []string{"customFields", "custom_fields", "customData", "custom_data"} {
		if raw, ok := payload[key]; ok {
			if encoded, err := json.Marshal(raw); err == nil {
				return encoded
			}
		}
	}
	return nil
}

func extractTags(payload map[string]any) []string {
	raw, ok := payload["tags"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				tags = append(tags, s)
			}
		}
		return tags
	case string:
		var tags []string
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				tags = append(tags, trimmed)
			}
		}
		return tags
	default:
		return nil
	}
}
