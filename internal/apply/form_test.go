package apply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBirthDate(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		wantDisplay string
		wantHidden  string
	}{
		{"ISO input", "1990-05-17", "17/05/1990", "1990-05-17"},
		{"Display input", "17/05/1990", "17/05/1990", "1990-05-17"},
		{"Wrong length passthrough", "17/5/1990", "17/5/1990", "17/5/1990"},
		{"Garbage passthrough", "not a date", "not a date", "not a date"},
		{"Empty passthrough", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display, hidden := normalizeBirthDate(tt.value)
			assert.Equal(t, tt.wantDisplay, display)
			assert.Equal(t, tt.wantHidden, hidden)
		})
	}
}
