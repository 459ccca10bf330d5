package attribution

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/internal/fields"
	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
)

// Result is what the resolver hands back. Confidence 0 with empty sources is
// a valid outcome; attribution is best-effort.
type Result struct {
	TrafficSource string
	LeadSource    string
	Confidence    float64
}

// Input bundles the records a strategy may consult. Contact and Calendar are
// optional; strategies treat nil as "signal absent".
type Input struct {
	Company     *models.Company
	Appointment *models.Appointment
	Contact     *models.Contact
	Calendar    *models.Calendar
}

// customFieldProbes are the common field names tried when the tenant's
// configured field path misses.
var customFieldProbes = []string{
	"source",
	"lead_source",
	"leadSource",
	"utm_source",
	"utmSource",
	"traffic_source",
	"trafficSource",
	"ad_source",
}

// calendarNamePatterns extract a trailing source token from a calendar
// display name, tried in order: "(fb)", "[fb]", "- fb".
var calendarNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(([^)]+)\)\s*$`),
	regexp.MustCompile(`\[([^\]]+)\]\s*$`),
	regexp.MustCompile(`-\s*([A-Za-z][A-Za-z0-9 ]*?)\s*$`),
}

// tagChannelVocabulary is the fixed set of channel names recognized in a
// contact's tag list when no "source:" prefix is present.
var tagChannelVocabulary = map[string]string{
	"facebook":  "facebook",
	"fb":        "facebook",
	"instagram": "instagram",
	"ig":        "instagram",
	"youtube":   "youtube",
	"yt":        "youtube",
	"tiktok":    "tiktok",
	"google":    "google",
	"adwords":   "google",
	"linkedin":  "linkedin",
	"referral":  "referral",
	"organic":   "organic",
	"email":     "email",
	"podcast":   "podcast",
}

type recordFinder interface {
	FindByContact(ctx context.Context, companyID, contactID uuid.UUID) (*models.AttributionRecord, error)
}

// Resolver derives {trafficSource, leadSource, confidence} for an
// appointment using exactly the strategy the tenant configured.
type Resolver struct {
	repo recordFinder
	logg *logger.Logger
}

func NewResolver(repo recordFinder, logg *logger.Logger) (*Resolver, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "attribution repo required")
	}
	return &Resolver{repo: repo, logg: logg}, nil
}

// Resolve runs the tenant's single configured strategy. No blending: one
// strategy is attempted and its answer, including "nothing", is final.
func (r *Resolver) Resolve(ctx context.Context, input Input) (Result, error) {
	if input.Company == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "company required for attribution")
	}
	switch input.Company.AttributionStrategy {
	case enums.AttributionStrategyGHLFields:
		return r.resolveCustomFields(input), nil
	case enums.AttributionStrategyCalendars:
		return r.resolveCalendar(input), nil
	case enums.AttributionStrategyHyros:
		return r.resolveSyncedRecord(ctx, input)
	case enums.AttributionStrategyTags:
		return r.resolveTags(input), nil
	case enums.AttributionStrategyNone:
		return Result{}, nil
	default:
		return Result{}, nil
	}
}

// resolveCustomFields looks up the tenant-configured field path in the
// contact's custom-field bag, falling back to a probe list at lower
// confidence.
func (r *Resolver) resolveCustomFields(input Input) Result {
	if input.Contact == nil || len(input.Contact.CustomFields) == 0 {
		return Result{}
	}
	var bag map[string]any
	if err := json.Unmarshal(input.Contact.CustomFields, &bag); err != nil {
		return Result{}
	}
	if path := strings.TrimSpace(input.Company.AttributionFieldPath); path != "" {
		if value, ok := lookupLoose(bag, path); ok {
			return Result{TrafficSource: value, LeadSource: value, Confidence: 0.9}
		}
	}
	for _, probe := range customFieldProbes {
		if value, ok := lookupLoose(bag, probe); ok {
			return Result{TrafficSource: value, LeadSource: value, Confidence: 0.6}
		}
	}
	return Result{}
}

// resolveCalendar prefers the manually-assigned source (confidence 1.0) and
// only then tries to extract a token from the calendar's display name (0.8).
func (r *Resolver) resolveCalendar(input Input) Result {
	if input.Calendar == nil {
		return Result{}
	}
	if manual := strings.TrimSpace(input.Calendar.TrafficSource); manual != "" {
		return Result{TrafficSource: manual, LeadSource: manual, Confidence: 1.0}
	}
	name := strings.TrimSpace(input.Calendar.Name)
	if name == "" {
		return Result{}
	}
	for _, pattern := range calendarNamePatterns {
		if m := pattern.FindStringSubmatch(name); m != nil {
			token := strings.TrimSpace(m[1])
			if token != "" {
				return Result{TrafficSource: token, LeadSource: token, Confidence: 0.8}
			}
		}
	}
	return Result{}
}

// resolveSyncedRecord reads the out-of-band synced attribution row.
func (r *Resolver) resolveSyncedRecord(ctx context.Context, input Input) (Result, error) {
	if input.Contact == nil {
		return Result{}, nil
	}
	record, err := r.repo.FindByContact(ctx, input.Company.ID, input.Contact.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, nil
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load synced attribution record")
	}
	return Result{
		TrafficSource: record.TrafficSource,
		LeadSource:    record.LeadSource,
		Confidence:    0.95,
	}, nil
}

// resolveTags scans the contact's tags for a "source:" prefix or a known
// channel name.
func (r *Resolver) resolveTags(input Input) Result {
	if input.Contact == nil {
		return Result{}
	}
	for _, tag := range input.Contact.Tags {
		lowered := strings.ToLower(strings.TrimSpace(tag))
		for _, prefix := range []string{"source:", "src:", "utm:"} {
			if strings.HasPrefix(lowered, prefix) {
				value := strings.TrimSpace(lowered[len(prefix):])
				if value != "" {
					return Result{TrafficSource: value, LeadSource: value, Confidence: 0.9}
				}
			}
		}
	}
	for _, tag := range input.Contact.Tags {
		lowered := strings.ToLower(strings.TrimSpace(tag))
		if channel, ok := tagChannelVocabulary[lowered]; ok {
			return Result{TrafficSource: channel, LeadSource: channel, Confidence: 0.7}
		}
	}
	return Result{}
}

// lookupLoose tries the exact key first, then a normalized-key comparison so
// tenant-entered paths survive case and punctuation drift.
func lookupLoose(bag map[string]any, key string) (string, bool) {
	if raw, ok := bag[key]; ok {
		if s, sok := stringValue(raw); sok {
			return s, true
		}
	}
	flat := fields.Flatten(bag)
	want := fields.NormalizeKey(key)
	for flatKey, raw := range flat {
		if fields.NormalizeKey(flatKey) == want {
			if s, sok := stringValue(raw); sok {
				return s, true
			}
		}
	}
	return "", false
}

func stringValue(raw any) (string, bool) {
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
