// Package pipeline drives a single generation attempt through its stages:
//
//	Ideation -> Drafting -> Correctness-Check -> Style-Check -> Tagging -> Accepted
//
// A failing gate either rejects the attempt outright (structural flaws and
// unclassified severities) or sends it back to Drafting with corrective
// feedback until the regeneration budget runs out. Every stage error is
// converted into a terminal status; Run never returns an error and never
// panics.
package pipeline
