package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/closetrack-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
)

// Verifier checks webhook authenticity: an HMAC-SHA256 over
// "<timestamp>.<raw body>" compared in constant time, plus a bounded replay
// window on the timestamp.
type Verifier struct {
	replayWindow   time.Duration
	requireSecrets bool
	now            func() time.Time
}

func NewVerifier(cfg config.WebhookConfig) *Verifier {
	return &Verifier{
		replayWindow:   cfg.ReplayWindow,
		requireSecrets: cfg.RequireSecrets,
		now:            time.Now,
	}
}

// Verify checks the delivery against the tenant's secret. When the tenant
// has no secret configured and secrets are not enforced, the delivery passes
// unverified and the caller is told so it can log a warning. Every failure
// path returns a signature-invalid error so the transport layer answers 401.
func (v *Verifier) Verify(secret, signature, timestamp string, body []byte) (verified bool, err error) {
	if secret == "" {
		if v.requireSecrets {
			return false, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "no webhook secret configured for tenant")
		}
		return false, nil
	}
	if signature == "" {
		return false, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature header missing")
	}
	sentAt, ok := parseTimestamp(timestamp)
	if !ok {
		return false, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "delivery timestamp missing or unparseable")
	}
	if age := v.now().Sub(sentAt); age > v.replayWindow || age < -v.replayWindow {
		return false, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "delivery timestamp outside replay window")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature is not valid hex")
	}
	if !hmac.Equal(expected, provided) {
		return false, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature mismatch")
	}
	return true, nil
}

// Sign produces the signature a sender would attach. Shared with tests and
// with outbound webhook tooling.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseTimestamp accepts unix seconds, unix milliseconds or RFC 3339.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1_000_000_000_000 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
