package enums

import "fmt"

// SubmissionSource records who initiated a submission.
type SubmissionSource string

const (
	SubmissionSourceCustomer SubmissionSource = "customer"
	SubmissionSourceAdmin    SubmissionSource = "admin"
)

var validSubmissionSources = []SubmissionSource{
	SubmissionSourceCustomer,
	SubmissionSourceAdmin,
}

func (s SubmissionSource) String() string {
	return string(s)
}

func (s SubmissionSource) IsValid() bool {
	for _, candidate := range validSubmissionSources {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseSubmissionSource(value string) (SubmissionSource, error) {
	for _, candidate := range validSubmissionSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid submission source %q", value)
}
