package sync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// SourceUnavailableError is returned when a page of Mantis tickets cannot be fetched.
// It aborts the current sync pass.
type SourceUnavailableError struct {
	Project    string
	Page       int
	StatusCode int
	Body       string
	Err        error
}

func (e *SourceUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch Mantis issues for project %s page %d: status %d: %s", e.Project, e.Page, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("failed to fetch Mantis issues for project %s page %d: %v", e.Project, e.Page, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// CreateError is returned when Jira rejects an issue create request.
// Body holds the raw Jira response for diagnostics.
type CreateError struct {
	SourceID   int64
	StatusCode int
	Body       string
	Err        error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("failed to create Jira issue for Mantis #%d: status %d: %s", e.SourceID, e.StatusCode, bodyOrErr(e.Body, e.Err))
}

func (e *CreateError) Unwrap() error { return e.Err }

// LinkError is returned when the back-reference note cannot be added to a Mantis ticket.
type LinkError struct {
	SourceID      int64
	DestinationID string
	StatusCode    int
	Body          string
	Err           error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("failed to link Mantis #%d to Jira %s: status %d: %s", e.SourceID, e.DestinationID, e.StatusCode, bodyOrErr(e.Body, e.Err))
}

func (e *LinkError) Unwrap() error { return e.Err }

// DuplicateKeyError is returned by a Ledger when a source id has already been recorded.
type DuplicateKeyError struct {
	SourceID int64
	Err      error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("Mantis #%d is already recorded in the ledger", e.SourceID)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

func bodyOrErr(body string, err error) string {
	if body != "" {
		return body
	}
	if err != nil {
		return err.Error()
	}
	return "<empty response>"
}

// IsTransient reports whether err is worth retrying soon: network failures,
// rate limiting and server errors. Everything else (bad requests, auth, mapping
// problems) will fail the same way on the next attempt.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if status := statusCodeOf(err); status != 0 {
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// statusCodeOf returns the HTTP status carried by err, or 0 when there is none.
func statusCodeOf(err error) int {
	var sourceErr *SourceUnavailableError
	if errors.As(err, &sourceErr) && sourceErr.StatusCode != 0 {
		return sourceErr.StatusCode
	}
	var createErr *CreateError
	if errors.As(err, &createErr) && createErr.StatusCode != 0 {
		return createErr.StatusCode
	}
	var linkErr *LinkError
	if errors.As(err, &linkErr) && linkErr.StatusCode != 0 {
		return linkErr.StatusCode
	}
	return 0
}

// classify returns a short label for log lines.
func classify(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
