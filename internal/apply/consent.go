package apply

import (
	"log"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Generic accept buttons tried when no known CMP is detected.
var genericConsentSelectors = []string{
	"#accept-choices",
	".sn-b-def.sn-blue",
	`button:has-text("Accetta")`,
	`button:has-text("Accept")`,
	`button:has-text("Accetto")`,
	`button:has-text("OK")`,
	`button:has-text("Accetta tutti")`,
	`button:has-text("Accept all")`,
	`a:has-text("Accetta")`,
	`a:has-text("Accept")`,
	".cookie-accept",
	"#cookie-accept",
}

// dismissConsent clears cookie/consent overlays so they cannot obstruct the
// apply flow. HelpLavoro runs Google Funding Choices as primary CMP with
// Snigel as secondary; both load async and can take seconds to appear.
// Nothing here is fatal: a consent banner left standing only risks later
// clicks being intercepted.
func dismissConsent(page playwright.Page) {
	if dismissFundingChoices(page) {
		return
	}

	if dismissSnigel(page) {
		return
	}

	// Generic fallback
	for _, selector := range genericConsentSelectors {
		loc := page.Locator(selector).First()
		if visible, err := loc.IsVisible(); err != nil || !visible {
			continue
		}
		if err := loc.Click(playwright.LocatorClickOptions{Force: playwright.Bool(true)}); err != nil {
			continue
		}
		log.Printf("🍪 Accepted cookies: %s", selector)
		time.Sleep(1500 * time.Millisecond)
		return
	}

	// Last resort: remove any known overlay and restore page scroll
	removed, err := page.Evaluate(`() => {
		let removed = [];
		const fc = document.querySelector('div.fc-consent-root');
		if (fc) { fc.remove(); removed.push('fc-consent-root'); }
		const sn = document.querySelector('#snigel-cmp-framework');
		if (sn) { sn.remove(); removed.push('snigel-cmp'); }
		document.body.style.overflow = 'auto';
		document.body.style.overflowY = 'auto';
		return removed;
	}`)
	if err == nil {
		if list, ok := removed.([]interface{}); ok && len(list) > 0 {
			log.Printf("🧹 Removed overlays via JS: %v", list)
			time.Sleep(1 * time.Second)
			return
		}
	}

	log.Println("🍪 No cookie/consent banner found or already accepted")
}

// dismissFundingChoices handles the Google FC consent dialog.
func dismissFundingChoices(page playwright.Page) bool {
	dialog := page.Locator("div.fc-consent-root .fc-dialog")
	if err := dialog.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(3000),
	}); err != nil {
		return false
	}
	log.Println("🍪 Google Funding Choices consent dialog detected")

	acceptSelectors := []string{
		"div.fc-consent-root .fc-primary-button",
		"div.fc-consent-root .fc-cta-consent",
		"div.fc-consent-root button.fc-primary-button",
		"div.fc-consent-root .fc-button-label",
	}

	for _, selector := range acceptSelectors {
		btn := page.Locator(selector).First()
		if err := btn.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(3000),
		}); err != nil {
			continue
		}
		if err := btn.Click(playwright.LocatorClickOptions{Force: playwright.Bool(true)}); err != nil {
			continue
		}
		log.Printf("🍪 Clicked FC consent: %s", selector)
		time.Sleep(2 * time.Second)

		// Verify the dialog actually went away
		root := page.Locator("div.fc-consent-root")
		if err := root.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateHidden,
			Timeout: playwright.Float(5000),
		}); err != nil {
			page.Evaluate(`document.querySelector('div.fc-consent-root')?.remove()`)
			page.Evaluate(`document.body.style.overflow = 'auto'`)
			log.Println("🧹 FC consent removed via JS fallback")
		}
		return true
	}

	// No button matched, force-remove the dialog
	log.Println("🧹 No FC button found, removing dialog via JS")
	page.Evaluate(`document.querySelector('div.fc-consent-root')?.remove()`)
	page.Evaluate(`document.body.style.overflow = 'auto'`)
	return true
}

// dismissSnigel handles the Snigel CMP banner.
func dismissSnigel(page playwright.Page) bool {
	banner := page.Locator("#snigel-cmp-framework")
	if err := banner.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(3000),
	}); err != nil {
		return false
	}
	log.Println("🍪 Snigel CMP banner detected")

	accept := page.Locator("#accept-choices")
	if err := accept.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(3000),
	}); err != nil {
		return false
	}
	if err := accept.Click(playwright.LocatorClickOptions{Force: playwright.Bool(true)}); err != nil {
		return false
	}
	log.Println("🍪 Clicked #accept-choices")
	time.Sleep(2 * time.Second)
	return true
}
