package domain

// OutcomeStatus classifies the result of processing a single WorkItem.
type OutcomeStatus string

// Outcome statuses. Every status is exactly one of success, skipped or failed.
const (
	OutcomeSuccess               OutcomeStatus = "success"
	OutcomeSkippedNoIdentifier   OutcomeStatus = "skipped_no_identifier"
	OutcomeSkippedInvalidPayload OutcomeStatus = "skipped_invalid_payload"
	OutcomeSkippedAlreadyExists  OutcomeStatus = "skipped_already_exists"
	OutcomeFailedBackendRejected OutcomeStatus = "failed_backend_rejected"
	OutcomeFailedNoClient        OutcomeStatus = "failed_no_client"
	OutcomeFailedUnexpected      OutcomeStatus = "failed_unexpected_error"
)

// IsSuccess reports whether the status counts as successful.
func (s OutcomeStatus) IsSuccess() bool {
	return s == OutcomeSuccess
}

// IsSkipped reports whether the status counts as skipped.
func (s OutcomeStatus) IsSkipped() bool {
	switch s {
	case OutcomeSkippedNoIdentifier, OutcomeSkippedInvalidPayload, OutcomeSkippedAlreadyExists:
		return true
	default:
		return false
	}
}

// IsFailed reports whether the status counts as failed.
// Unknown statuses are treated as failures.
func (s OutcomeStatus) IsFailed() bool {
	return !s.IsSuccess() && !s.IsSkipped()
}

// ItemOutcome is the result of processing one WorkItem.
type ItemOutcome struct {
	// Status classifies the outcome.
	Status OutcomeStatus

	// Identifier echoes WorkItem.Identifier.
	Identifier string

	// Error holds a message for failed and skipped outcomes.
	Error string

	// Warning is set when the item succeeded but a follow-up step did not,
	// for example moving the source file after upload.
	Warning string

	// DocumentID is the repository id created by an upload.
	DocumentID string
}

// NewOutcome creates an outcome for the given item.
func NewOutcome(item WorkItem, status OutcomeStatus, msg string) ItemOutcome {
	return ItemOutcome{
		Status:     status,
		Identifier: item.Identifier(),
		Error:      msg,
	}
}
