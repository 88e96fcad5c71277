package domain

import (
	"fmt"
	"strings"
)

// Outcome is the pass/fail result of a gate stage.
type Outcome string

// Gate outcomes.
const (
	OutcomePass Outcome = "PASS"
	OutcomeFail Outcome = "FAIL"
)

// Severity classifies a FAIL verdict.
type Severity string

// Known severities. Anything else, including an empty severity, is
// treated as unclassified.
const (
	SeverityStructuralFlaw          Severity = "structural_flaw"
	SeverityFixableWithRegeneration Severity = "fixable_with_regeneration"
)

// Verdict is the structured report returned by the correctness and style
// checks.
type Verdict struct {
	Outcome  Outcome  `json:"verdict"`
	Severity Severity `json:"severity,omitempty"`
	Report   string   `json:"report,omitempty"`
}

// Passed reports whether the verdict is PASS.
func (v Verdict) Passed() bool {
	return v.Outcome == OutcomePass
}

// ParseOutcome normalises a verdict string such as "pass" or " FAIL ".
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToUpper(strings.TrimSpace(s))) {
	case OutcomePass:
		return OutcomePass, nil
	case OutcomeFail:
		return OutcomeFail, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVerdict, s)
	}
}

// ParseSeverity normalises a severity string. Unknown values are returned
// as-is so the caller can record them; they are never treated as fixable.
func ParseSeverity(s string) Severity {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	return Severity(norm)
}
