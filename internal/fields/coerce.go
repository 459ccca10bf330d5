package fields

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
)

// Tristate is the result of boolean coercion. External systems send booleans
// as words; anything unrecognized is Unknown, never an error.
type Tristate int

const (
	BoolUnknown Tristate = iota
	BoolTrue
	BoolFalse
)

// CoerceBool maps loose external representations onto a tristate.
func CoerceBool(val any) Tristate {
	switch v := val.(type) {
	case bool:
		if v {
			return BoolTrue
		}
		return BoolFalse
	case float64:
		if v == 1 {
			return BoolTrue
		}
		if v == 0 {
			return BoolFalse
		}
		return BoolUnknown
	case int:
		if v == 1 {
			return BoolTrue
		}
		if v == 0 {
			return BoolFalse
		}
		return BoolUnknown
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1":
			return BoolTrue
		case "false", "no", "n", "0":
			return BoolFalse
		}
		return BoolUnknown
	case json.Number:
		return CoerceBool(v.String())
	default:
		return BoolUnknown
	}
}

// CoerceCurrency strips currency formatting and parses the remainder as a
// decimal. Empty or non-numeric input is absent, not zero: "$0" and "no
// value supplied" mean different things downstream.
func CoerceCurrency(val any) (decimal.Decimal, bool) {
	switch v := val.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case decimal.Decimal:
		return v, true
	case json.Number:
		return CoerceCurrency(v.String())
	case string:
		var b strings.Builder
		for _, r := range v {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				b.WriteRune(r)
			}
		}
		cleaned := b.String()
		if cleaned == "" || cleaned == "-" || cleaned == "." {
			return decimal.Decimal{}, false
		}
		parsed, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return parsed, true
	default:
		return decimal.Decimal{}, false
	}
}

// outcomeSynonyms maps normalized external outcome text onto the canonical
// enum. Keys are normalized with normalizeText (lower case, punctuation to
// spaces, collapsed whitespace).
var outcomeSynonyms = map[string]enums.CallOutcome{
	"show":        enums.CallOutcomeShowed,
	"shows":       enums.CallOutcomeShowed,
	"showed":      enums.CallOutcomeShowed,
	"showed up":   enums.CallOutcomeShowed,
	"attended":    enums.CallOutcomeShowed,
	"showed won":  enums.CallOutcomeShowed,
	"showed lost": enums.CallOutcomeShowed,
	"completed":   enums.CallOutcomeShowed,

	"signed":      enums.CallOutcomeSigned,
	"sign":        enums.CallOutcomeSigned,
	"closed":      enums.CallOutcomeSigned,
	"close":       enums.CallOutcomeSigned,
	"closed won":  enums.CallOutcomeSigned,
	"won":         enums.CallOutcomeSigned,
	"sale":        enums.CallOutcomeSigned,
	"sold":        enums.CallOutcomeSigned,
	"deal closed": enums.CallOutcomeSigned,

	"no show":      enums.CallOutcomeNoShow,
	"noshow":       enums.CallOutcomeNoShow,
	"no showed":    enums.CallOutcomeNoShow,
	"did not show": enums.CallOutcomeNoShow,
	"didnt show":   enums.CallOutcomeNoShow,
	"missed":       enums.CallOutcomeNoShow,

	"cancelled":      enums.CallOutcomeCancelled,
	"canceled":       enums.CallOutcomeCancelled,
	"cancel":         enums.CallOutcomeCancelled,
	"call cancelled": enums.CallOutcomeCancelled,
	"call canceled":  enums.CallOutcomeCancelled,
}

// CoerceOutcome resolves raw outcome text through the synonym table. Unknown
// text is an error: guessing an outcome would corrupt status and commission
// decisions downstream.
func CoerceOutcome(raw string) (enums.CallOutcome, error) {
	normalized := normalizeText(raw)
	if normalized == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnsupportedOutcome, "empty call outcome")
	}
	if outcome, ok := outcomeSynonyms[normalized]; ok {
		return outcome, nil
	}
	if outcome := enums.CallOutcome(strings.ReplaceAll(normalized, " ", "_")); outcome.IsValid() {
		return outcome, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeUnsupportedOutcome, fmt.Sprintf("unrecognized call outcome %q", raw))
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01/02/2006 15:04",
}

// CoerceTime parses the handful of timestamp shapes seen in the wild,
// including unix seconds and milliseconds.
func CoerceTime(val any) (time.Time, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, true
	case float64:
		return unixTime(int64(v)), true
	case int64:
		return unixTime(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return unixTime(n), true
		}
		return CoerceTime(v.String())
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return time.Time{}, false
		}
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return unixTime(n), true
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func unixTime(n int64) time.Time {
	// Heuristic: values past the year ~33658 as seconds are milliseconds.
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}

// normalizeText lowers the input, converts punctuation to spaces, and
// collapses runs of whitespace.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func asString(val any) (string, bool) {
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v), true
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}
