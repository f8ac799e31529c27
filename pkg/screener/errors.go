package screener

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CaptureError reports a failed capture of a single URL.
type CaptureError struct {
	URL string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.URL, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

func captureError(url string, err error) error {
	if err == nil {
		return nil
	}
	return &CaptureError{URL: url, Err: err}
}

// IsDNSError reports whether err was caused by a failed name lookup.
func IsDNSError(err error) bool {
	if err == nil {
		return false
	}

	errMessage := fullErrorMessage(err)
	return strings.Contains(errMessage, "net::ERR_NAME_NOT_RESOLVED") ||
		strings.Contains(errMessage, "no such host")
}

// IsTimeout reports whether err was caused by the capture deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errMessage := fullErrorMessage(err)
	return strings.Contains(errMessage, "context deadline exceeded") ||
		strings.Contains(errMessage, "timeout")
}

// RootCause returns the message of the innermost wrapped error.
func RootCause(err error) string {
	if err == nil {
		return ""
	}

	rootErr := err
	for {
		unwrappedErr := errors.Unwrap(rootErr)
		if unwrappedErr == nil {
			break
		}
		rootErr = unwrappedErr
	}
	return rootErr.Error()
}

func fullErrorMessage(err error) string {
	var sb strings.Builder
	for err != nil {
		sb.WriteString(err.Error())
		err = errors.Unwrap(err)
		if err != nil {
			sb.WriteString(" | ")
		}
	}
	return sb.String()
}
