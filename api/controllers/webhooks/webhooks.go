package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/closetrack-backend/api/responses"
	"github.com/angelmondragon/closetrack-backend/internal/dispatch"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
)

const (
	signatureHeader = "X-Signature"
	timestampHeader = "X-Timestamp"
	eventTypeHeader = "X-Event-Type"
)

// Dispatcher is the webhook pipeline entrypoint.
type Dispatcher interface {
	HandleCRM(ctx context.Context, delivery dispatch.Delivery) (*dispatch.Outcome, error)
	HandleSurvey(ctx context.Context, delivery dispatch.Delivery) (*dispatch.Outcome, error)
	HandlePayment(ctx context.Context, processor enums.Processor, delivery dispatch.Delivery) (*dispatch.Outcome, error)
}

type receipt struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// CRMWebhook accepts calendar/contact deliveries from the CRM.
func CRMWebhook(dispatcher Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		delivery, err := readDelivery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome, err := dispatcher.HandleCRM(ctx, *delivery)
		if err != nil {
			// Authentication failures are the only errors the sender sees.
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt{Received: true, Duplicate: outcome.Duplicate})
	}
}

// PaymentWebhook accepts payment notifications for the processor in the path.
func PaymentWebhook(dispatcher Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		processor, err := enums.ParseProcessor(chi.URLParam(r, "processor"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment processor"))
			return
		}
		delivery, err := readDelivery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome, err := dispatcher.HandlePayment(ctx, processor, *delivery)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt{Received: true, Duplicate: outcome.Duplicate})
	}
}

// SurveyWebhook accepts post-call survey submissions. The sender cannot set
// headers, so the tenant authenticates with a company+secret query pair.
func SurveyWebhook(dispatcher Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		outcome, err := dispatcher.HandleSurvey(ctx, dispatch.Delivery{
			Body:         body,
			CompanyParam: r.URL.Query().Get("company"),
			SecretParam:  r.URL.Query().Get("secret"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt{Received: true, Duplicate: outcome.Duplicate})
	}
}

func readDelivery(r *http.Request) (*dispatch.Delivery, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}
	return &dispatch.Delivery{
		EventType: eventType(r, body),
		Signature: r.Header.Get(signatureHeader),
		Timestamp: r.Header.Get(timestampHeader),
		Body:      body,
	}, nil
}

// eventType prefers the header; senders that cannot set it carry the type in
// the body instead.
func eventType(r *http.Request, body []byte) string {
	if header := r.Header.Get(eventTypeHeader); header != "" {
		return header
	}
	var peek struct {
		Type  string `json:"type"`
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return ""
	}
	if peek.Type != "" {
		return peek.Type
	}
	return peek.Event
}
