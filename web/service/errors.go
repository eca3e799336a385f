package service

import (
	"errors"
	"fmt"
)

var (
	ErrUserExists            = errors.New("user already exists")
	ErrUserNotFound          = errors.New("user not found")
	ErrIncorrectPassword     = errors.New("incorrect password")
	ErrInvalidToken          = errors.New("invalid or expired token")
	ErrInvalidResetToken     = errors.New("invalid or expired reset token")
	ErrInvalidDateOfBirth    = errors.New("date of birth must be YYYY-MM-DD")
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidDateRange      = errors.New("start date is after end date")
	ErrNoSymptoms            = errors.New("at least one symptom is required")
	ErrReportNotFound        = errors.New("report not found")
	ErrReportAlreadyApproved = errors.New("report already approved")
)

// UpstreamError reports a failed call to the prediction service. StatusCode
// is zero when no response was received.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("prediction service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("prediction service unavailable: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
