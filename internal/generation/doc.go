// Package generation provides the boundary between the question pipeline and
// the external AI/LLM reasoning service used for content generation.
//
// The StageClient interface is the only capability consumed from the
// service: it takes a system context and a user context and returns raw
// text. Stages builds the five pipeline stages (ideation, drafting,
// correctness check, style check, tagging) on top of a StageClient by
// rendering prompt templates and decoding the model's JSON output into
// domain values. Output that cannot be decoded or fails validation is
// reported as a *MalformedOutputError so the pipeline can decide whether to
// retry.
package generation
