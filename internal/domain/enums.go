package domain

import "fmt"

// JobStatus tracks the lifecycle of a reconciliation job.
type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobRunning         JobStatus = "running"
	JobCompleted       JobStatus = "completed"
	JobPartiallyFailed JobStatus = "partially_failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobPartiallyFailed:
		return true
	}
	return false
}

// RecordStatus classifies the reconciliation outcome for one entity.
type RecordStatus string

const (
	StatusPending        RecordStatus = "pending"
	StatusMatched        RecordStatus = "matched"
	StatusDaysMismatch   RecordStatus = "days_mismatch"
	StatusCostMismatch   RecordStatus = "cost_mismatch"
	StatusEntityNotFound RecordStatus = "entity_not_found"
	StatusFailed         RecordStatus = "failed"
)

func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPending, StatusMatched, StatusDaysMismatch, StatusCostMismatch,
		StatusEntityNotFound, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status is a terminal reconciliation outcome.
func (s RecordStatus) Terminal() bool {
	return s.Valid() && s != StatusPending
}

// Confidence maps each record status to its confidence score.
// Never derive confidence any other way; this map is the single source.
var Confidence = map[RecordStatus]float64{
	StatusMatched:        1.0,
	StatusCostMismatch:   0.5,
	StatusDaysMismatch:   0.3,
	StatusEntityNotFound: 0.0,
	StatusFailed:         0.0,
	StatusPending:        0.0,
}

// ConfidenceFor returns the confidence score for a status, or an error for
// unknown statuses.
func ConfidenceFor(status RecordStatus) (float64, error) {
	c, ok := Confidence[status]
	if !ok {
		return 0, fmt.Errorf("unknown record status: %q", status)
	}
	return c, nil
}

// Recommendation is the project-level routing decision.
type Recommendation string

const (
	RecommendProceed          Recommendation = "proceed"
	RecommendProceedWithFlags Recommendation = "proceed_with_flags"
	RecommendReview           Recommendation = "review"
	RecommendReject           Recommendation = "reject"
)

func (r Recommendation) Valid() bool {
	switch r {
	case RecommendProceed, RecommendProceedWithFlags, RecommendReview, RecommendReject:
		return true
	}
	return false
}

// RequiresHuman reports whether the recommendation halts for a human decision.
func (r Recommendation) RequiresHuman() bool {
	return r == RecommendReview || r == RecommendReject
}

// RecipientKind identifies who a notification intent targets.
type RecipientKind string

const (
	RecipientWorker RecipientKind = "worker"
	RecipientClient RecipientKind = "client"
)

func (k RecipientKind) Valid() bool {
	return k == RecipientWorker || k == RecipientClient
}

// DiscrepancyKind names which declared value diverged.
type DiscrepancyKind string

const (
	DiscrepancyDays           DiscrepancyKind = "days"
	DiscrepancyCost           DiscrepancyKind = "cost"
	DiscrepancyBoth           DiscrepancyKind = "both"
	DiscrepancyEntityNotFound DiscrepancyKind = "entity_not_found"
)

func (k DiscrepancyKind) Valid() bool {
	switch k {
	case DiscrepancyDays, DiscrepancyCost, DiscrepancyBoth, DiscrepancyEntityNotFound:
		return true
	}
	return false
}

// FailureReason distinguishes why a record ended in the failed status.
type FailureReason string

const (
	FailureChainError   FailureReason = "chain_error"
	FailureCanceled     FailureReason = "canceled"
	FailureNotAttempted FailureReason = "not_attempted"
	FailureInvalidInput FailureReason = "invalid_input"
)

func (r FailureReason) Valid() bool {
	switch r {
	case FailureChainError, FailureCanceled, FailureNotAttempted, FailureInvalidInput:
		return true
	}
	return false
}

// ReviewAction is the outcome of a human review decision.
type ReviewAction string

const (
	ReviewAccept  ReviewAction = "accept_and_proceed"
	ReviewCorrect ReviewAction = "correct_and_retry"
	ReviewCancel  ReviewAction = "cancel"
)

func (a ReviewAction) Valid() bool {
	switch a {
	case ReviewAccept, ReviewCorrect, ReviewCancel:
		return true
	}
	return false
}
