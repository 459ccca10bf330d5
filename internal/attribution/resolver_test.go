package attribution

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

type fakeRecordFinder struct {
	record *models.AttributionRecord
	err    error
}

func (f *fakeRecordFinder) FindByContact(context.Context, uuid.UUID, uuid.UUID) (*models.AttributionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.record == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.record, nil
}

func newResolver(t *testing.T, finder *fakeRecordFinder) *Resolver {
	t.Helper()
	if finder == nil {
		finder = &fakeRecordFinder{}
	}
	resolver, err := NewResolver(finder, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return resolver
}

func company(strategy enums.AttributionStrategy) *models.Company {
	return &models.Company{ID: uuid.New(), AttributionStrategy: strategy}
}

func TestManualCalendarSourceBeatsNameExtraction(t *testing.T) {
	resolver := newResolver(t, nil)
	result, err := resolver.Resolve(context.Background(), Input{
		Company: company(enums.AttributionStrategyCalendars),
		Calendar: &models.Calendar{
			Name:          "Strategy Call (youtube)",
			TrafficSource: "facebook",
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.TrafficSource != "facebook" {
		t.Fatalf("expected manual source to win, got %q", result.TrafficSource)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %f", result.Confidence)
	}
}

func TestCalendarNameExtractionPatterns(t *testing.T) {
	resolver := newResolver(t, nil)
	cases := []struct {
		name string
		want string
	}{
		{"Strategy Call (fb)", "fb"},
		{"Demo Call [instagram]", "instagram"},
		{"Closing Call - youtube", "youtube"},
	}
	for _, tc := range cases {
		result, err := resolver.Resolve(context.Background(), Input{
			Company:  company(enums.AttributionStrategyCalendars),
			Calendar: &models.Calendar{Name: tc.name},
		})
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tc.name, err)
		}
		if result.TrafficSource != tc.want {
			t.Errorf("calendar %q resolved to %q, want %q", tc.name, result.TrafficSource, tc.want)
		}
		if result.Confidence != 0.8 {
			t.Errorf("calendar %q confidence = %f, want 0.8", tc.name, result.Confidence)
		}
	}
}

func TestCustomFieldsConfiguredPathWins(t *testing.T) {
	resolver := newResolver(t, nil)
	bag, _ := json.Marshal(map[string]any{
		"Where did you hear about us": "podcast",
		"utm_source":                  "google",
	})
	comp := company(enums.AttributionStrategyGHLFields)
	comp.AttributionFieldPath = "where_did_you_hear_about_us"

	result, err := resolver.Resolve(context.Background(), Input{
		Company: comp,
		Contact: &models.Contact{CustomFields: bag},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.TrafficSource != "podcast" {
		t.Fatalf("expected configured path hit, got %q", result.TrafficSource)
	}
	if result.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %f", result.Confidence)
	}
}

func TestCustomFieldsProbeFallbackIsLowerConfidence(t *testing.T) {
	resolver := newResolver(t, nil)
	bag, _ := json.Marshal(map[string]any{"utm_source": "google"})
	comp := company(enums.AttributionStrategyGHLFields)
	comp.AttributionFieldPath = "missing_field"

	result, err := resolver.Resolve(context.Background(), Input{
		Company: comp,
		Contact: &models.Contact{CustomFields: bag},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.TrafficSource != "google" {
		t.Fatalf("expected probe fallback hit, got %q", result.TrafficSource)
	}
	if result.Confidence != 0.6 {
		t.Fatalf("expected confidence 0.6, got %f", result.Confidence)
	}
}

func TestSyncedRecordStrategy(t *testing.T) {
	finder := &fakeRecordFinder{record: &models.AttributionRecord{
		TrafficSource: "facebook",
		LeadSource:    "fb-campaign-12",
		SyncedAt:      time.Now(),
	}}
	resolver := newResolver(t, finder)
	result, err := resolver.Resolve(context.Background(), Input{
		Company: company(enums.AttributionStrategyHyros),
		Contact: &models.Contact{ID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.TrafficSource != "facebook" || result.LeadSource != "fb-campaign-12" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSyncedRecordMissingIsNotAnError(t *testing.T) {
	resolver := newResolver(t, &fakeRecordFinder{})
	result, err := resolver.Resolve(context.Background(), Input{
		Company: company(enums.AttributionStrategyHyros),
		Contact: &models.Contact{ID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Confidence != 0 || result.TrafficSource != "" {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestTagStrategySourcePrefix(t *testing.T) {
	resolver := newResolver(t, nil)
	result, err := resolver.Resolve(context.Background(), Input{
		Company: company(enums.AttributionStrategyTags),
		Contact: &models.Contact{Tags: pq.StringArray{"vip", "source: TikTok"}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.TrafficSource != "tiktok" {
		t.Fatalf("expected prefixed tag hit, got %q", result.TrafficSource)
	}
	if result.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %f", result.Confidence)
	}
}

func TestTagStrategyVocabulary(t *testing.T) {
	resolver := newResolver(t, nil)
	result, err := resolver.Resolve(context.Background(), Input{
		Company: company(enums.AttributionStrategyTags),
		Contact: &models.Contact{Tags: pq.StringArray{"hot-lead", "IG"}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.TrafficSource != "instagram" {
		t.Fatalf("expected vocabulary hit, got %q", result.TrafficSource)
	}
}

func TestNoneStrategyReturnsZeroConfidence(t *testing.T) {
	resolver := newResolver(t, nil)
	result, err := resolver.Resolve(context.Background(), Input{
		Company: company(enums.AttributionStrategyNone),
		Contact: &models.Contact{Tags: pq.StringArray{"facebook"}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Confidence != 0 || result.TrafficSource != "" {
		t.Fatalf("expected no attribution, got %+v", result)
	}
}
