package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks user-input problems: unreadable photo, unsupported
	// format, missing selection. The wizard stays on the current stage.
	ErrValidation = errors.New("validation error")
	// ErrPayloadTooLarge marks a 413 from the generation service or a local
	// normalization result that could not meet the byte budget.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrRateLimited marks a 429; RetryAfter carries server guidance.
	ErrRateLimited = errors.New("rate limited")
	// ErrBlocked marks a 403; the session needs a refresh.
	ErrBlocked = errors.New("request blocked")
	// ErrServerFailure marks 5xx responses.
	ErrServerFailure = errors.New("server failure")
	// ErrTransient marks fetch-level failures worth retrying with the same image.
	ErrTransient = errors.New("transient failure")
	// ErrGenerationFailed marks a job that reached the failed terminal status.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrExpired marks a job whose result link has expired.
	ErrExpired = errors.New("result expired")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// StatusError carries the classification of a non-2xx service response along
// with any detail the server provided.
type StatusError struct {
	Status     int
	Detail     string
	RetryAfter int
	marker     error
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("service returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("service returned %d", e.Status)
}

func (e *StatusError) Unwrap() error { return e.marker }

// NewStatusError classifies an HTTP status into the sentinel taxonomy.
func NewStatusError(status int, detail string, retryAfter int) *StatusError {
	err := &StatusError{Status: status, Detail: strings.TrimSpace(detail), RetryAfter: retryAfter}
	switch {
	case status == 413:
		err.marker = ErrPayloadTooLarge
	case status == 429:
		err.marker = ErrRateLimited
	case status == 403:
		err.marker = ErrBlocked
	case status >= 500:
		err.marker = ErrServerFailure
	default:
		err.marker = ErrTransient
	}
	return err
}

// UserMessage converts an error into the message surfaced to the booth guest.
// Every asynchronous failure funnels through here at the stage boundary.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	hasStatus := errors.As(err, &statusErr)
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return "That photo is too large. Maximum size is 10MB."
	case errors.Is(err, ErrRateLimited):
		if hasStatus && statusErr.RetryAfter > 0 {
			return fmt.Sprintf("Too many requests right now. Please try again in %d seconds.", statusErr.RetryAfter)
		}
		return "Too many requests right now. Please try again shortly."
	case errors.Is(err, ErrBlocked):
		return "This session can no longer submit photos. Please refresh and try again."
	case errors.Is(err, ErrServerFailure):
		return "Something went wrong on our side. Please try again."
	case errors.Is(err, ErrExpired):
		return "This result link has expired."
	case errors.Is(err, ErrGenerationFailed):
		return "We could not generate your image. Please try another photo."
	case errors.Is(err, ErrValidation):
		return trimmedDetail(err, "That photo could not be used. Please try another one.")
	default:
		return trimmedDetail(err, "Something went wrong. Please try again.")
	}
}

func trimmedDetail(err error, fallback string) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Detail != "" {
		return statusErr.Detail
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrValidation, ErrTransient} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return fallback
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
