package domain

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no prior reading exists.
	ErrNotFound = errors.New("not found")
	// ErrInvalidUnit indicates an unsupported rate unit was configured.
	ErrInvalidUnit = errors.New("invalid rate unit")
)

// Error subjects delivered to the error channel.
const (
	SubjectConnect = "Unable to connect to PostgreSQL."
	SubjectQuery   = "Unable to query PostgreSQL statistics."
)

// CollectionError replaces the report when the probe could not read statistics.
type CollectionError struct {
	cause   error
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewCollectionError renders the failure message and its stack trace into the body.
func NewCollectionError(subject string, err error) *CollectionError {
	lead := "The probe was unable to connect to the PostgreSQL server:"
	if subject == SubjectQuery {
		lead = "The probe was unable to read PostgreSQL statistics:"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s \n\n%v", lead, err)
	if trace := stackOf(err); trace != "" {
		fmt.Fprintf(&b, "\n\n%s", trace)
	}
	return &CollectionError{Subject: subject, Body: b.String(), cause: err}
}

func (e *CollectionError) Error() string {
	if e.cause == nil {
		return e.Subject
	}
	return e.Subject + " " + e.cause.Error()
}

func (e *CollectionError) Unwrap() error {
	return e.cause
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

func stackOf(err error) string {
	var st stackTracer
	if !errors.As(err, &st) {
		return ""
	}
	return strings.TrimPrefix(fmt.Sprintf("%+v", st.StackTrace()), "\n")
}
