package browser

import (
	"fmt"

	"go-helpapply-automation/internal/config"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightManager owns the single Chromium instance shared by a run.
type PlaywrightManager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywright(cfg *config.Config) (*PlaywrightManager, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not launch playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		SlowMo:   playwright.Float(cfg.SlowMo),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	return &PlaywrightManager{pw: pw, browser: browser}, nil
}

// NewPage opens a fresh page with the standard viewport.
func (pm *PlaywrightManager) NewPage() (playwright.Page, error) {
	page, err := pm.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}

	if err := page.SetViewportSize(1280, 800); err != nil {
		page.Close()
		return nil, fmt.Errorf("could not set viewport: %w", err)
	}

	return page, nil
}

func (pm *PlaywrightManager) Close() error {
	if pm.browser != nil {
		if err := pm.browser.Close(); err != nil {
			return err
		}
		pm.browser = nil
	}
	if pm.pw != nil {
		if err := pm.pw.Stop(); err != nil {
			return err
		}
		pm.pw = nil
	}
	return nil
}
