package services

import (
	"errors"
	"strings"
)

var (
	// ErrNotLoanable is returned by CreateLoan when the document does not exist or is
	// already out on loan.
	ErrNotLoanable = errors.New("document not loanable")

	// ErrLoanNotFound is returned when the referenced loan does not exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrSubscriberNotFound is returned when the referenced subscriber does not exist.
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrDocumentNotFound is returned when the referenced document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
)

// ValidationError reports the required fields missing from a creation request.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

func requireFields(fields ...[2]string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
