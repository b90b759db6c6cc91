package enums

import "fmt"

// SubmissionStatus tracks a wishlist submission through the draft order pipeline.
// queued is the only non-terminal state.
type SubmissionStatus string

const (
	SubmissionStatusQueued              SubmissionStatus = "queued"
	SubmissionStatusCreated             SubmissionStatus = "created"
	SubmissionStatusCreatedWithWarnings SubmissionStatus = "created_with_warnings"
	SubmissionStatusFailed              SubmissionStatus = "failed"
)

var validSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusQueued,
	SubmissionStatusCreated,
	SubmissionStatusCreatedWithWarnings,
	SubmissionStatusFailed,
}

// String implements fmt.Stringer.
func (s SubmissionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubmissionStatus.
func (s SubmissionStatus) IsValid() bool {
	for _, candidate := range validSubmissionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status can no longer change through the pipeline.
func (s SubmissionStatus) IsTerminal() bool {
	return s.IsValid() && s != SubmissionStatusQueued
}

// IsCreated reports whether a remote draft order exists for the submission.
func (s SubmissionStatus) IsCreated() bool {
	return s == SubmissionStatusCreated || s == SubmissionStatusCreatedWithWarnings
}

// ParseSubmissionStatus converts raw input into a SubmissionStatus.
func ParseSubmissionStatus(value string) (SubmissionStatus, error) {
	for _, candidate := range validSubmissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid submission status %q", value)
}
