package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWants(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		enabled bool
		stage   string
		want    bool
	}{
		{"All mode captures page load", "all", true, StagePageLoaded, true},
		{"All mode captures errors", "all", true, StageError, true},
		{"Minimal skips page load", "minimal", true, StagePageLoaded, false},
		{"Minimal keeps before submit", "minimal", true, StageBeforeSubmit, true},
		{"Minimal keeps success", "minimal", true, StageSuccess, true},
		{"Errors mode skips success", "errors", true, StageSuccess, false},
		{"Errors mode keeps missing trigger", "errors", true, StageNoTrigger, true},
		{"Errors mode keeps after submit", "errors", true, StageAfterSubmit, true},
		{"Disabled sink captures nothing", "all", false, StageError, false},
		{"Unknown mode falls back to all", "sometimes", true, StagePageLoaded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSink(t.TempDir(), tt.mode, tt.enabled)
			assert.Equal(t, tt.want, s.Wants(tt.stage))
		})
	}
}
