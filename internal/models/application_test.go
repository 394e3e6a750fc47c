package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanRetry(t *testing.T) {
	tests := []struct {
		name string
		app  Application
		want bool
	}{
		{"Failed with attempts left", Application{Status: StatusFailed, Attempts: 1, MaxAttempts: 3}, true},
		{"Skipped with attempts left", Application{Status: StatusSkipped, Attempts: 2, MaxAttempts: 3}, true},
		{"Failed with attempts exhausted", Application{Status: StatusFailed, Attempts: 3, MaxAttempts: 3}, false},
		{"Success is final", Application{Status: StatusSuccess, Attempts: 1, MaxAttempts: 3}, false},
		{"Pending is not retryable", Application{Status: StatusPending, Attempts: 0, MaxAttempts: 3}, false},
		{"Processing is not retryable", Application{Status: StatusProcessing, Attempts: 1, MaxAttempts: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.app.CanRetry())
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, (&Application{Status: StatusSuccess}).IsTerminal())
	assert.True(t, (&Application{Status: StatusFailed}).IsTerminal())
	assert.True(t, (&Application{Status: StatusSkipped}).IsTerminal())
	assert.False(t, (&Application{Status: StatusPending}).IsTerminal())
	assert.False(t, (&Application{Status: StatusProcessing}).IsTerminal())
}

func TestSetError(t *testing.T) {
	app := &Application{Status: StatusProcessing}
	app.SetError(StatusFailed, "Timeout: navigation exceeded 30000ms")

	assert.Equal(t, StatusFailed, app.Status)
	if assert.NotNil(t, app.ErrorMessage) {
		assert.Equal(t, "Timeout: navigation exceeded 30000ms", *app.ErrorMessage)
	}
}
