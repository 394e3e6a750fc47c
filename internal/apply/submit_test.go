package apply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name       string
		result     *SubmitResult
		pageHTML   string
		wantOK     bool
		wantReason string
	}{
		{
			name:       "Network error fails even with success page",
			result:     &SubmitResult{Err: "fetch failed"},
			pageHTML:   "<p>Grazie per la candidatura</p>",
			wantOK:     false,
			wantReason: "Submit error: fetch failed",
		},
		{
			name:       "Error keyword in body beats 200",
			result:     &SubmitResult{Ok: true, Status: 200, HasError: true},
			wantOK:     false,
			wantReason: "Server response contains error indicator",
		},
		{
			name:   "200 with success keyword",
			result: &SubmitResult{Ok: true, Status: 200, HasThanks: true},
			wantOK: true,
		},
		{
			name:   "Bare 200 without keyword still succeeds",
			result: &SubmitResult{Ok: true, Status: 200, BodyLength: 12},
			wantOK: true,
		},
		{
			name:       "Non-2xx falls through to page scan, nothing found",
			result:     &SubmitResult{Ok: false, Status: 500},
			pageHTML:   "<p>pagina generica</p>",
			wantOK:     false,
			wantReason: "Submission verification failed: could not verify",
		},
		{
			name:     "Non-2xx rescued by page content keyword",
			result:   &SubmitResult{Ok: false, Status: 302},
			pageHTML: "<h1>Candidatura inviata!</h1>",
			wantOK:   true,
		},
		{
			name:     "No fetch result, success keyword in page",
			result:   nil,
			pageHTML: "<p>Conferma ricevuta</p>",
			wantOK:   true,
		},
		{
			name:     "Accented keyword still matches",
			result:   nil,
			pageHTML: "<p>La tua candidatura è stata confermàta</p>",
			wantOK:   true,
		},
		{
			name:       "No result and no keyword fails",
			result:     nil,
			pageHTML:   "<p>niente di utile</p>",
			wantOK:     false,
			wantReason: "Submission verification failed: could not verify",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := classifyOutcome(tt.result, tt.pageHTML)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestContainsSuccessKeyword(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"Plain grazie", "Grazie per esserti candidato", true},
		{"Accent folded", "candidatura INVIÀTA", true},
		{"English thank you", "Thank you!", true},
		{"Substring conferm", "confermazione avvenuta", true},
		{"Nothing relevant", "errore durante l'invio", false},
		{"Empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsSuccessKeyword(tt.content))
		})
	}
}

func TestParseSubmitResult(t *testing.T) {
	raw := map[string]interface{}{
		"ok":          true,
		"status":      float64(200),
		"statusText":  "OK",
		"url":         "https://www.helplavoro.it/salvaCandidatura.html",
		"bodyLength":  float64(532),
		"bodyPreview": "<div>Grazie</div>",
		"hasGrazie":   true,
		"hasConferm":  false,
		"hasErrore":   false,
		"hasInviata":  false,
	}

	result := parseSubmitResult(raw)
	assert.True(t, result.Ok)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, "OK", result.StatusText)
	assert.Equal(t, 532, result.BodyLength)
	assert.True(t, result.HasThanks)
	assert.False(t, result.HasError)
	assert.Empty(t, result.Err)
}

func TestParseSubmitResultUnexpectedShape(t *testing.T) {
	result := parseSubmitResult("not a map")
	assert.NotNil(t, result)
	assert.False(t, result.Ok)
}
