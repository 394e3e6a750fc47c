package apply

import (
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SubmitResult is the raw outcome of the in-page fetch POST.
type SubmitResult struct {
	Ok          bool
	Status      int
	StatusText  string
	URL         string
	BodyLength  int
	BodyPreview string
	HasThanks   bool // "grazie"
	HasConfirm  bool // "conferm"
	HasError    bool // "errore"
	HasSent     bool // "inviata"
	Err         string
}

// successKeywords are scanned (accent-folded, lowercase) in response bodies
// and page content to recognize a confirmed submission.
var successKeywords = []string{"grazie", "thank", "ricevuta", "conferm", "success", "inviata"}

// normalizeText lowercases and strips diacritics so Italian page content
// matches plain-ASCII keywords.
func normalizeText(str string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, str)
	return strings.ToLower(result)
}

func containsSuccessKeyword(content string) bool {
	folded := normalizeText(content)
	for _, keyword := range successKeywords {
		if strings.Contains(folded, keyword) {
			return true
		}
	}
	return false
}

// submitForm validates the form in-page and, if valid, POSTs it via fetch
// from the page context. A fetch instead of a navigation submit keeps the
// raw response readable; a navigation would race the page away from us.
// A failed client-side validation returns (nil, nil): the attempt is left
// unconfirmed and verification will classify it.
func submitForm(page playwright.Page) (*SubmitResult, error) {
	// Replicate the site's submitHandler: append the encodedpresentazione
	// hidden field, then run jQuery validation.
	validation, err := page.Evaluate(`() => {
		var input = $("<input>").attr("type", "hidden").attr("name", "encodedpresentazione")
			.val(escape($(document.getElementById("presentazione_offerta")).val()));
		$("#frmOfferta").append($(input));

		if ($("#frmOfferta").valid()) {
			return { valid: true };
		} else {
			return { valid: false, errors: $("#frmOfferta").validate().errorList.map(e => e.message) };
		}
	}`)
	if err != nil {
		return nil, fmt.Errorf("form validation failed to run: %w", err)
	}

	log.Printf("📨 Form validation result: %v", validation)

	if m, ok := validation.(map[string]interface{}); ok {
		if valid, _ := m["valid"].(bool); !valid {
			log.Printf("❌ Form validation failed: %v", m["errors"])
			return nil, nil
		}
	}

	raw, err := page.Evaluate(`() => {
		return new Promise((resolve) => {
			var form = document.getElementById('frmOfferta');
			var formData = new FormData(form);
			var actionUrl = form.getAttribute('action') || '';

			if (!actionUrl.startsWith('http')) {
				actionUrl = window.location.origin + actionUrl;
			}

			fetch(actionUrl, {
				method: 'POST',
				body: formData,
				credentials: 'same-origin'
			})
			.then(response => {
				return response.text().then(text => {
					resolve({
						ok: response.ok,
						status: response.status,
						statusText: response.statusText,
						url: response.url,
						bodyLength: text.length,
						bodyPreview: text.substring(0, 500),
						hasGrazie: text.toLowerCase().includes('grazie'),
						hasConferm: text.toLowerCase().includes('conferm'),
						hasErrore: text.toLowerCase().includes('errore'),
						hasInviata: text.toLowerCase().includes('inviata')
					});
				});
			})
			.catch(error => {
				resolve({ ok: false, error: error.toString() });
			});
		});
	}`)
	if err != nil {
		return nil, fmt.Errorf("form submit failed to run: %w", err)
	}

	result := parseSubmitResult(raw)
	log.Printf("📨 Submit response: status=%d, ok=%v, bodyLength=%d", result.Status, result.Ok, result.BodyLength)
	if result.URL != "" {
		log.Printf("📨 Response URL: %s", result.URL)
	}
	if result.BodyPreview != "" {
		preview := result.BodyPreview
		if len(preview) > 300 {
			preview = preview[:300]
		}
		log.Printf("📨 Response preview: %s", preview)
	}
	if result.Err != "" {
		log.Printf("❌ Submit error: %s", result.Err)
	}

	return result, nil
}

// parseSubmitResult decodes the loosely-typed map the page evaluation yields.
func parseSubmitResult(raw interface{}) *SubmitResult {
	result := &SubmitResult{}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return result
	}

	result.Ok, _ = m["ok"].(bool)
	result.Status = asInt(m["status"])
	result.StatusText, _ = m["statusText"].(string)
	result.URL, _ = m["url"].(string)
	result.BodyLength = asInt(m["bodyLength"])
	result.BodyPreview, _ = m["bodyPreview"].(string)
	result.HasThanks, _ = m["hasGrazie"].(bool)
	result.HasConfirm, _ = m["hasConferm"].(bool)
	result.HasError, _ = m["hasErrore"].(bool)
	result.HasSent, _ = m["hasInviata"].(bool)
	result.Err, _ = m["error"].(string)

	return result
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// classifyOutcome decides success vs failure for one submission, in strict
// priority order: network-level error, then an explicit error keyword in the
// response body, then the HTTP status, then a keyword scan of the page
// content. When nothing matches, the submission is treated as failed rather
// than silently assumed successful.
func classifyOutcome(result *SubmitResult, pageContent string) (bool, string) {
	if result != nil {
		if result.Err != "" {
			return false, fmt.Sprintf("Submit error: %s", result.Err)
		}
		if result.HasError {
			return false, "Server response contains error indicator"
		}
		if result.Ok && result.Status >= 200 && result.Status < 300 {
			if result.HasThanks || result.HasConfirm || result.HasSent {
				log.Println("✅ Server response contains success indicator")
			} else {
				log.Printf("✅ Server responded %d OK (bodyLength=%d)", result.Status, result.BodyLength)
			}
			return true, ""
		}
	}

	if containsSuccessKeyword(pageContent) {
		log.Println("✅ Success indicator found in page content")
		return true, ""
	}

	return false, "Submission verification failed: could not verify"
}
