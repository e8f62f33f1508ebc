package sync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"source 503", &SourceUnavailableError{StatusCode: 503}, true},
		{"source 429", &SourceUnavailableError{StatusCode: 429}, true},
		{"source 401", &SourceUnavailableError{StatusCode: 401}, false},
		{"source network", &SourceUnavailableError{Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, true},
		{"create 400", &CreateError{StatusCode: 400}, false},
		{"create 502 wrapped", fmt.Errorf("pass: %w", &CreateError{StatusCode: 502}), true},
		{"link 404", &LinkError{StatusCode: 404}, false},
		{"duplicate", &DuplicateKeyError{SourceID: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "failed to create Jira issue for Mantis #12: status 400: {\"errors\":{}}",
		(&CreateError{SourceID: 12, StatusCode: 400, Body: `{"errors":{}}`}).Error())
	assert.Equal(t, "failed to link Mantis #12 to Jira DEMO-4: status 0: timeout",
		(&LinkError{SourceID: 12, DestinationID: "DEMO-4", Err: errors.New("timeout")}).Error())
	assert.Equal(t, "failed to fetch Mantis issues for project 2 page 3: status 500: oops",
		(&SourceUnavailableError{Project: "2", Page: 3, StatusCode: 500, Body: "oops"}).Error())
	assert.Equal(t, "Mantis #7 is already recorded in the ledger", (&DuplicateKeyError{SourceID: 7}).Error())
}

func TestWithRetry(t *testing.T) {
	transient := &SourceUnavailableError{StatusCode: 503}
	settings := RetrySettings{Attempts: 2, Backoff: time.Millisecond}

	t.Run("recovers", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), settings, "test", func() error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), settings, "test", func() error {
			calls++
			return transient
		})
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent", func(t *testing.T) {
		calls := 0
		permanent := &SourceUnavailableError{StatusCode: 403}
		err := withRetry(context.Background(), settings, "test", func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := withRetry(ctx, RetrySettings{Attempts: 5, Backoff: time.Hour}, "test", func() error {
			calls++
			return transient
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
