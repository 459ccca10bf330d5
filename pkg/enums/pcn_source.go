package enums

import "fmt"

// PCNSource identifies who produced a PCN submission.
type PCNSource string

const (
	PCNSourceHuman  PCNSource = "human"
	PCNSourceSurvey PCNSource = "survey"
	PCNSourceAI     PCNSource = "ai"
)

var validPCNSources = []PCNSource{PCNSourceHuman, PCNSourceSurvey, PCNSourceAI}

// IsValid reports whether the value matches the canonical enum.
func (s PCNSource) IsValid() bool {
	for _, candidate := range validPCNSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsAutomated reports whether the source is a machine producer. Automated
// re-submissions against a submitted PCN are rejected; only a human may correct.
func (s PCNSource) IsAutomated() bool {
	return s == PCNSourceSurvey || s == PCNSourceAI
}

// ParsePCNSource converts raw input into PCNSource.
func ParsePCNSource(value string) (PCNSource, error) {
	for _, candidate := range validPCNSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pcn source %q", value)
}
