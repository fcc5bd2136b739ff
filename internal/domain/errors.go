package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSubjectNotFound is returned when the referenced subject does not exist.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrChapterNotFound is returned when the referenced chapter does not exist.
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrQuizNotFound is returned when the referenced quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound is returned when the referenced question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAttemptNotFound is returned when the referenced attempt does not exist.
	ErrAttemptNotFound = errors.New("attempt not found")

	// ErrUnauthorized signals a role or ownership mismatch.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrQuizNotAvailable signals a start outside the availability window.
	ErrQuizNotAvailable = errors.New("quiz is not available at the moment")
	// ErrAttemptSubmitted signals a second submit on a submitted attempt.
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	// ErrInvalidCredentials signals a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries a human-readable message for bad or missing
// input, duplicate resources, and business-rule violations.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is any of the entity-absent sentinels.
func IsNotFound(err error) bool {
	for _, sentinel := range []error{
		ErrUserNotFound, ErrSubjectNotFound, ErrChapterNotFound,
		ErrQuizNotFound, ErrQuestionNotFound, ErrAttemptNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
