// Package domain defines the core entities of question generation: buckets
// (categories with production quotas), ideas, drafts, finished items, stage
// verdicts and the audit record kept for rejected attempts.
//
// Types in this package carry no behaviour beyond construction and
// validation. The generation pipeline, the quota tracker and the scheduler
// all exchange these values.
package domain
