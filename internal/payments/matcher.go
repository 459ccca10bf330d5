package payments

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/internal/appointments"
)

// Signal weights. Email is the strongest identifier, phone close behind,
// a bare name match is only a hint. Extra agreeing signals and a closer
// match nudge the score up without ever reaching certainty; 1.0 is
// reserved for explicit manual matches.
const (
	scoreEmail       = 0.90
	scorePhone       = 0.85
	scoreName        = 0.50
	boostExtraSignal = 0.03
	boostCloser      = 0.05
	scoreAutoCap     = 0.98
)

// Candidate is one scored appointment suggestion. The struct is persisted
// as JSON on unmatched payments so reviewers see what the matcher saw.
type Candidate struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Score         float64   `json:"score"`
	EmailMatch    bool      `json:"email_match"`
	PhoneMatch    bool      `json:"phone_match"`
	NameMatch     bool      `json:"name_match"`
	CloserMatch   bool      `json:"closer_match"`
}

// MatchOutcome is the matcher's verdict over a candidate set.
type MatchOutcome struct {
	Best       *Candidate
	Candidates []Candidate
	Accepted   bool
}

// scoreRow turns matched signals into a confidence score. A row with only a
// closer match carries no contact evidence and scores zero.
func scoreRow(row appointments.CandidateRow) float64 {
	var base float64
	var signals int
	if row.EmailMatch {
		base = scoreEmail
		signals++
	}
	if row.PhoneMatch {
		if base < scorePhone {
			base = scorePhone
		}
		signals++
	}
	if row.NameMatch {
		if base < scoreName {
			base = scoreName
		}
		signals++
	}
	if signals == 0 {
		return 0
	}
	score := base + float64(signals-1)*boostExtraSignal
	if row.CloserMatch {
		score += boostCloser
	}
	if score > scoreAutoCap {
		score = scoreAutoCap
	}
	return score
}

// Evaluate scores every candidate row and picks a winner. Ties on score go
// to the most recently scheduled appointment. Accepted is true only when the
// winner clears the threshold; the matcher never guesses below it.
func Evaluate(rows []appointments.CandidateRow, threshold float64, maxCandidates int) MatchOutcome {
	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		score := scoreRow(row)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			AppointmentID: row.Appointment.ID,
			ScheduledAt:   row.Appointment.ScheduledAt,
			Score:         score,
			EmailMatch:    row.EmailMatch,
			PhoneMatch:    row.PhoneMatch,
			NameMatch:     row.NameMatch,
			CloserMatch:   row.CloserMatch,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ScheduledAt.After(candidates[j].ScheduledAt)
	})
	if maxCandidates > 0 && len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	outcome := MatchOutcome{Candidates: candidates}
	if len(candidates) > 0 {
		best := candidates[0]
		outcome.Best = &best
		outcome.Accepted = best.Score >= threshold
	}
	return outcome
}
