package fields

import (
	"strings"
	"testing"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
)

func TestFlattenNestedPayload(t *testing.T) {
	payload := map[string]any{
		"calendar": map[string]any{
			"appointmentId": "apt-1",
			"contact": map[string]any{
				"email": "jane@example.com",
			},
		},
		"locationId": "loc-1",
	}

	flat := Flatten(payload)
	if flat["calendar.appointmentId"] != "apt-1" {
		t.Fatalf("expected dotted key for appointmentId, got %v", flat)
	}
	if flat["calendar.contact.email"] != "jane@example.com" {
		t.Fatalf("expected deep dotted key for email, got %v", flat)
	}
	if flat["locationId"] != "loc-1" {
		t.Fatalf("expected top-level key preserved, got %v", flat)
	}
}

func TestNormalizeKeyCollapsesSpellings(t *testing.T) {
	variants := []string{
		"PCN - Call Outcome",
		"pcn_call_outcome",
		"pcnCallOutcome",
		"PCN   CALL   OUTCOME",
		"pcn.call.outcome",
	}
	want := NormalizeKey(variants[0])
	for _, variant := range variants[1:] {
		if got := NormalizeKey(variant); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", variant, got, want)
		}
	}
}

func TestAliasCoverageEveryRegisteredAliasResolves(t *testing.T) {
	for field, aliases := range aliasTable {
		for _, alias := range aliases {
			// Exercise case and spacing variants of each registered alias.
			for _, variant := range []string{alias, strings.ToUpper(alias), "  " + alias + "  "} {
				payload := map[string]any{variant: "value"}
				got, ok := Lookup(payload, field)
				if !ok {
					t.Errorf("field %s: alias variant %q did not resolve", field, variant)
					continue
				}
				if got != "value" {
					t.Errorf("field %s: alias variant %q resolved to %v", field, variant, got)
				}
			}
		}
	}
}

func TestLookupMatchesNestedAlias(t *testing.T) {
	payload := map[string]any{
		"customData": map[string]any{
			"PCN - Call Outcome": "Signed",
		},
	}
	got, ok := Lookup(payload, FieldCallOutcome)
	if !ok || got != "Signed" {
		t.Fatalf("expected nested alias hit, got %v ok=%v", got, ok)
	}
}

func TestLookupAliasOrderWins(t *testing.T) {
	// "pcn - call outcome" is registered before "status"; when both are
	// present the more specific alias must win.
	payload := map[string]any{
		"status":             "booked",
		"PCN - Call Outcome": "Signed",
	}
	got, ok := Lookup(payload, FieldCallOutcome)
	if !ok || got != "Signed" {
		t.Fatalf("expected specific alias to win, got %v", got)
	}
}

func TestCoerceBool(t *testing.T) {
	cases := []struct {
		in   any
		want Tristate
	}{
		{true, BoolTrue},
		{false, BoolFalse},
		{"yes", BoolTrue},
		{"No", BoolFalse},
		{"TRUE", BoolTrue},
		{"0", BoolFalse},
		{"1", BoolTrue},
		{float64(1), BoolTrue},
		{float64(0), BoolFalse},
		{"maybe", BoolUnknown},
		{float64(7), BoolUnknown},
		{nil, BoolUnknown},
	}
	for _, tc := range cases {
		if got := CoerceBool(tc.in); got != tc.want {
			t.Errorf("CoerceBool(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCoerceCurrency(t *testing.T) {
	cases := []struct {
		in     any
		want   string
		wantOK bool
	}{
		{"$1,500", "1500", true},
		{"$1,500.50", "1500.50", true},
		{"1500", "1500", true},
		{float64(99.9), "99.9", true},
		{"USD 250", "250", true},
		{"", "", false},
		{"n/a", "", false},
		{"$", "", false},
	}
	for _, tc := range cases {
		got, ok := CoerceCurrency(tc.in)
		if ok != tc.wantOK {
			t.Errorf("CoerceCurrency(%v) ok = %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if ok && got.String() != tc.want {
			t.Errorf("CoerceCurrency(%v) = %s, want %s", tc.in, got.String(), tc.want)
		}
	}
}

func TestCoerceCurrencyZeroIsPresent(t *testing.T) {
	got, ok := CoerceCurrency("$0")
	if !ok {
		t.Fatalf("expected $0 to parse as present zero")
	}
	if !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestOutcomeSynonymClosure(t *testing.T) {
	cases := []struct {
		in   string
		want enums.CallOutcome
	}{
		{"show", enums.CallOutcomeShowed},
		{"Showed - Won", enums.CallOutcomeShowed},
		{"showed", enums.CallOutcomeShowed},
		{"Closed", enums.CallOutcomeSigned},
		{"Signed", enums.CallOutcomeSigned},
		{"no show", enums.CallOutcomeNoShow},
		{"No-Show", enums.CallOutcomeNoShow},
		{"no_show", enums.CallOutcomeNoShow},
		{"CANCELLED", enums.CallOutcomeCancelled},
		{"canceled", enums.CallOutcomeCancelled},
	}
	for _, tc := range cases {
		got, err := CoerceOutcome(tc.in)
		if err != nil {
			t.Errorf("CoerceOutcome(%q) returned error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CoerceOutcome(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestOutcomeUnknownIsRejectedNotDefaulted(t *testing.T) {
	for _, raw := range []string{"maybe", "", "pending", "great call"} {
		_, err := CoerceOutcome(raw)
		if err == nil {
			t.Errorf("CoerceOutcome(%q) succeeded, want rejection", raw)
			continue
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeUnsupportedOutcome) {
			t.Errorf("CoerceOutcome(%q) error has wrong code: %v", raw, err)
		}
	}
}

func TestExtractPCNCanonicalScenario(t *testing.T) {
	payload := map[string]any{
		"PCN - Call Outcome":   "Signed",
		"PCN - Cash Collected": "$1,500",
		"PCN - Notes":          "paid in full",
	}

	values, err := ExtractPCN(payload)
	if err != nil {
		t.Fatalf("ExtractPCN: %v", err)
	}
	if values.Outcome != enums.CallOutcomeSigned {
		t.Fatalf("expected signed outcome, got %s", values.Outcome)
	}
	if values.CashCollected == nil || values.CashCollected.String() != "1500" {
		t.Fatalf("expected cash collected 1500, got %v", values.CashCollected)
	}
	if values.Notes != "paid in full" {
		t.Fatalf("expected notes, got %q", values.Notes)
	}
}

func TestExtractPCNRejectsMissingOutcome(t *testing.T) {
	if _, err := ExtractPCN(map[string]any{"PCN - Notes": "hello"}); err == nil {
		t.Fatalf("expected missing outcome to fail extraction")
	}
}

func TestExtractPCNOptionalFields(t *testing.T) {
	payload := map[string]any{
		"outcome":                   "no show",
		"PCN - No Show Communicative": "yes",
		"PCN - Follow Up Scheduled": "no",
		"PCN - Follow Up Date":      "2026-03-15",
	}
	values, err := ExtractPCN(payload)
	if err != nil {
		t.Fatalf("ExtractPCN: %v", err)
	}
	if values.Outcome != enums.CallOutcomeNoShow {
		t.Fatalf("expected no_show, got %s", values.Outcome)
	}
	if values.NoShowCommunicative != BoolTrue {
		t.Fatalf("expected communicative true")
	}
	if values.FollowUpScheduled != BoolFalse {
		t.Fatalf("expected follow up scheduled false")
	}
	if values.FollowUpDate == nil || values.FollowUpDate.Format("2006-01-02") != "2026-03-15" {
		t.Fatalf("expected follow up date parsed, got %v", values.FollowUpDate)
	}
	if values.CashCollected != nil {
		t.Fatalf("expected absent cash collected, got %v", values.CashCollected)
	}
}
