package apply

import (
	"log"

	"github.com/playwright-community/playwright-go"
)

// The HelpLavoro DOM is not under our control and not stable. Every UI
// interaction is a named capability with an ordered list of locator
// strategies, most specific first; the engine tries each in order and logs
// which one won, so selector drift shows up in logs before it breaks runs.
type locatorChain struct {
	name      string
	selectors []string
}

// formScope keeps field lookups inside the application form, away from the
// login modal which repeats nome/email fields.
const formScope = "#frmOfferta"

var (
	applyTriggerChain = locatorChain{
		name: "apply trigger",
		selectors: []string{
			// Exact HelpLavoro selectors
			"a.btn-inviacandidatura",
			"a[data-target='#modalInviaCandidatura']",
			".btn-inviacandidatura",
			// Fallback
			`a:has-text("Rispondi all'offerta")`,
			`button:has-text("Rispondi all'offerta")`,
			`a:has-text("CANDIDATI SUBITO")`,
			`button:has-text("CANDIDATI SUBITO")`,
			`a:has-text("Candidati subito")`,
		},
	}

	directOptionChain = locatorChain{
		name: "direct application option",
		selectors: []string{
			// Exact HelpLavoro selectors
			"a[href='#collapseDiretta']",
			"a[aria-controls='collapseDiretta']",
			`.label-login:has-text("Candidatura diretta")`,
			// Fallback
			`a:has-text("Candidatura diretta")`,
			`div:has-text("Candidatura diretta")`,
			`text=Candidatura diretta`,
		},
	}

	jobTitleChain = locatorChain{
		name: "job title",
		selectors: []string{
			"h1.job-title",
			"h1",
			".titolo-offerta",
			"[class*='title']",
		},
	}

	companyNameChain = locatorChain{
		name: "company name",
		selectors: []string{
			".azienda",
			".company-name",
			"[class*='company']",
			"[class*='azienda']",
		},
	}

	fileInputChain = locatorChain{
		name: "cv file input",
		selectors: []string{
			"input[type='file']",
			"input[name*='cv']",
			"input[name*='curriculum']",
			"input[accept*='pdf']",
		},
	}
)

// firstVisible walks a chain and returns the first visible match together
// with the selector that produced it.
func firstVisible(page playwright.Page, chain locatorChain) (playwright.Locator, string) {
	for _, selector := range chain.selectors {
		loc := page.Locator(selector).First()
		visible, err := loc.IsVisible()
		if err != nil || !visible {
			continue
		}
		log.Printf("🎯 Located %s via %s", chain.name, selector)
		return loc, selector
	}
	return nil, ""
}

// firstAttached is firstVisible without the visibility requirement, for
// styled radio/checkbox inputs that are hidden behind custom widgets.
func firstAttached(page playwright.Page, selectors []string) playwright.Locator {
	for _, selector := range selectors {
		loc := page.Locator(selector).First()
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		return loc
	}
	return nil
}
