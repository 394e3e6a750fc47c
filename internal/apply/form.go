package apply

import (
	"fmt"
	"log"
	"strings"
	"time"

	"go-helpapply-automation/internal/models"

	"github.com/playwright-community/playwright-go"
)

// fillForm populates the HelpLavoro application form. Every field has its own
// fallback chain; a field whose chain is exhausted is logged and skipped so
// one drifted selector does not sink the whole attempt.
func fillForm(page playwright.Page, app *models.Application) {
	fillField(page, []string{formScope + " input[name='nome']", "input[name*='nome']"}, app.Name)
	fillField(page, []string{formScope + " input[name='cognome']", "input[name*='cognome']"}, app.Surname)
	fillField(page, []string{formScope + " input[name='email']", formScope + " input[type='email']"}, app.Email)

	// Sesso radio: HelpLavoro uses value="1" for Maschio, value="2" for Femmina
	if app.Sex == "M" {
		clickRadio(page, []string{"#sessoM", formScope + " input[name='sesso'][value='1']", "input[value='M']"})
	} else {
		clickRadio(page, []string{"#sessoF", formScope + " input[name='sesso'][value='2']", "input[value='F']"})
	}

	fillBirthDate(page, app.BirthDate)
	fillMunicipality(page, app.Municipality)

	if app.Address != nil && *app.Address != "" {
		fillField(page, []string{formScope + " input[name='indirizzo']", "#indirizzo"}, *app.Address)
	}

	fillField(page, []string{formScope + " input[name='cap']", "input[name*='cap']"}, app.PostalCode)
	fillField(page, []string{formScope + " input[name='cellulare']", formScope + " input[type='tel']", "input[name*='cellulare']"}, app.Phone)

	selectDropdown(page, []string{formScope + " select[name='studi']", "#studi"}, app.Education)
	selectDropdown(page, []string{formScope + " select[name='occupazione']", "#occupazione"}, app.Occupation)
	selectDropdown(page, []string{formScope + " select[name='area']", "#area", "select[name*='area']"}, app.CompetenceArea)

	if app.CoverLetter != nil && *app.CoverLetter != "" {
		fillField(page, []string{formScope + " textarea[name='presentazione']", "#presentazione_offerta", "textarea[name*='presentazione']"}, *app.CoverLetter)
	}

	// Consent controls. Privacy is a required checkbox, the other three are
	// yes/no radio pairs that must land on "no" when not accepted.
	if app.AcceptPrivacy {
		checkBox(page, []string{formScope + " input[name='consenso']", "#consenso", "input[name*='consenso']"})
	}

	if app.AcceptMarketing {
		clickRadio(page, []string{"#consensonlA", formScope + " input[name='consensonl'][value='1']"})
	} else {
		clickRadio(page, []string{"#consensonlN", formScope + " input[name='consensonl'][value='0']"})
	}

	if app.AcceptThirdParty {
		clickRadio(page, []string{"#consensoterziA", formScope + " input[name='consensoterzi'][value='1']"})
	} else {
		clickRadio(page, []string{"#consensoterziN", formScope + " input[name='consensoterzi'][value='0']"})
	}

	if app.AcceptDataBank {
		clickRadio(page, []string{"#depositoA", formScope + " input[name='deposito'][value='1']"})
	} else {
		clickRadio(page, []string{"#depositoN", formScope + " input[name='deposito'][value='0']"})
	}
}

// fillField fills the first visible match of the selector list.
func fillField(page playwright.Page, selectors []string, value string) {
	for _, selector := range selectors {
		loc := page.Locator(selector).First()
		if visible, err := loc.IsVisible(); err != nil || !visible {
			continue
		}
		if err := loc.Fill(value); err != nil {
			continue
		}
		log.Printf("✏️ Filled field: %s", selector)
		return
	}
	log.Printf("⚠️ Could not find field for: %s", selectors[0])
}

// clickRadio clicks a radio control. Radios on the form are styled and often
// hidden behind custom widgets, so a force click with a JS fallback is needed.
func clickRadio(page playwright.Page, selectors []string) {
	for _, selector := range selectors {
		loc := firstAttached(page, []string{selector})
		if loc == nil {
			continue
		}
		if err := loc.Click(playwright.LocatorClickOptions{Force: playwright.Bool(true)}); err != nil {
			if _, err := loc.Evaluate("el => el.click()", nil); err != nil {
				continue
			}
		}
		log.Printf("🔘 Clicked radio: %s", selector)
		return
	}
	log.Printf("⚠️ Could not find radio for: %s", selectors[0])
}

// checkBox ticks a checkbox if it is not already checked.
func checkBox(page playwright.Page, selectors []string) {
	for _, selector := range selectors {
		loc := firstAttached(page, []string{selector})
		if loc == nil {
			continue
		}
		if checked, err := loc.IsChecked(); err == nil && checked {
			log.Printf("☑️ Already checked: %s", selector)
			return
		}
		if err := loc.Check(playwright.LocatorCheckOptions{Force: playwright.Bool(true)}); err != nil {
			if _, err := loc.Evaluate(`el => { el.checked = true; el.dispatchEvent(new Event("change")); }`, nil); err != nil {
				continue
			}
		}
		log.Printf("☑️ Checked: %s", selector)
		return
	}
	log.Printf("⚠️ Could not find checkbox for: %s", selectors[0])
}

// selectDropdown picks an option by exact value/label first, then
// case-insensitive substring, all inside the page for speed.
func selectDropdown(page playwright.Page, selectors []string, value string) {
	for _, selector := range selectors {
		loc := page.Locator(selector).First()
		if visible, err := loc.IsVisible(); err != nil || !visible {
			continue
		}

		result, err := page.Evaluate(`(args) => {
			const [sel, val] = args;
			const select = document.querySelector(sel);
			if (!select) return null;
			const valLower = val.toLowerCase();
			for (let opt of select.options) {
				if (opt.value === val || opt.text === val) {
					select.value = opt.value;
					select.dispatchEvent(new Event('change', {bubbles: true}));
					return opt.text;
				}
			}
			for (let opt of select.options) {
				if (opt.text.toLowerCase().includes(valLower)) {
					select.value = opt.value;
					select.dispatchEvent(new Event('change', {bubbles: true}));
					return opt.text;
				}
			}
			return null;
		}`, []interface{}{selector, value})
		if err != nil || result == nil {
			continue
		}

		log.Printf("🔽 Selected dropdown %s: %v", selector, result)
		return
	}
	log.Printf("⚠️ Could not select dropdown for: %s with value: %s", selectors[0], value)
}

// normalizeBirthDate accepts dd/mm/yyyy or yyyy-mm-dd and returns both the
// display (dd/mm/yyyy) and hidden (yyyy-mm-dd) representations.
func normalizeBirthDate(value string) (display, hidden string) {
	display, hidden = value, value
	if len(value) != 10 {
		return display, hidden
	}

	switch {
	case strings.Contains(value, "-"):
		parts := strings.Split(value, "-")
		if len(parts) == 3 {
			display = fmt.Sprintf("%s/%s/%s", parts[2], parts[1], parts[0])
			hidden = value
		}
	case strings.Contains(value, "/"):
		parts := strings.Split(value, "/")
		if len(parts) == 3 {
			hidden = fmt.Sprintf("%s-%s-%s", parts[2], parts[1], parts[0])
			display = value
		}
	}
	return display, hidden
}

// fillBirthDate handles the two-part birth date control: a visible datepicker
// (#datanascita, dd/mm/yyyy) plus a hidden field (#hiddendatanascita,
// yyyy-mm-dd) that the site's dp.change handler normally populates. Both are
// set and change events fired so the form validator sees them.
func fillBirthDate(page playwright.Page, value string) {
	display, hidden := normalizeBirthDate(value)

	picker := firstAttached(page, []string{"#datanascita", formScope + " input.datepicker"})
	if picker != nil {
		if err := picker.Fill(display); err != nil {
			log.Printf("⚠️ Error filling date picker: %v", err)
		} else {
			log.Printf("📅 Filled #datanascita: %s", display)
		}
	}

	hiddenField := firstAttached(page, []string{"#hiddendatanascita", formScope + " input[name='datanascita']"})
	if hiddenField != nil {
		if _, err := hiddenField.Evaluate("(el, v) => { el.value = v; }", hidden); err != nil {
			log.Printf("⚠️ Error setting hidden date: %v", err)
		} else {
			log.Printf("📅 Set hidden birth date: %s", hidden)
		}
	}

	if picker != nil {
		picker.DispatchEvent("change", nil)
		picker.DispatchEvent("blur", nil)
	}
}

// fillMunicipality drives the jQuery typeahead on the Comune field: type a
// partial value, poll for the dropdown, pick exact then partial then first
// match, and fall back to direct DOM assignment if no dropdown ever shows.
func fillMunicipality(page playwright.Page, value string) {
	loc := page.Locator("#comune").First()
	if visible, err := loc.IsVisible(); err != nil || !visible {
		loc = page.Locator("input[name='comune']").First()
		if visible, err := loc.IsVisible(); err != nil || !visible {
			log.Println("⚠️ Could not find Comune field")
			return
		}
	}

	// Clear any existing value first
	loc.Click()
	loc.Fill("")
	time.Sleep(300 * time.Millisecond)

	// Type a prefix to trigger the typeahead
	search := value
	if len(value) > 4 {
		search = value[:4]
	}
	if err := loc.PressSequentially(search, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(100),
	}); err != nil {
		log.Printf("⚠️ Error typing municipality: %v", err)
		return
	}
	log.Printf("🏘️ Typed %q in Comune field, waiting for typeahead...", search)

	if pickTypeaheadItem(page, value) {
		time.Sleep(500 * time.Millisecond)
		return
	}

	// No dropdown ever appeared: assign directly and fire the events the
	// site's handlers listen for.
	log.Println("⚠️ Typeahead dropdown did not appear, using JS fallback")
	_, err := page.Evaluate(`(val) => {
		const el = document.querySelector('#comune');
		if (el) {
			el.value = val;
			el.dispatchEvent(new Event('change', {bubbles: true}));
			el.dispatchEvent(new Event('blur', {bubbles: true}));
		}
	}`, value)
	if err != nil {
		log.Printf("⚠️ Municipality JS fallback failed: %v", err)
		return
	}
	log.Printf("🏘️ Set Comune via JS fallback: %s", value)
}

// pickTypeaheadItem polls for the dropdown and clicks the best match.
func pickTypeaheadItem(page playwright.Page, value string) bool {
	valueLower := strings.ToLower(value)

	for attempt := 0; attempt < 10; attempt++ {
		time.Sleep(500 * time.Millisecond)

		items, err := page.Locator("ul.typeahead.dropdown-menu li").All()
		if err != nil {
			continue
		}

		var visible []playwright.Locator
		var texts []string
		for _, item := range items {
			if ok, err := item.IsVisible(); err == nil && ok {
				text, _ := item.InnerText()
				visible = append(visible, item)
				texts = append(texts, strings.TrimSpace(text))
			}
		}
		if len(visible) == 0 {
			continue
		}
		log.Printf("🏘️ Typeahead dropdown appeared with %d items", len(visible))

		// Exact match first
		for i, text := range texts {
			if strings.EqualFold(text, value) {
				visible[i].Click()
				log.Printf("🏘️ Clicked exact match: %q", text)
				return true
			}
		}

		// Then partial match
		for i, text := range texts {
			if strings.Contains(strings.ToLower(text), valueLower) {
				visible[i].Click()
				log.Printf("🏘️ Clicked partial match: %q", text)
				return true
			}
		}

		// Give up on matching, take what the site offers
		visible[0].Click()
		log.Printf("🏘️ Clicked first available: %q", texts[0])
		return true
	}

	return false
}
