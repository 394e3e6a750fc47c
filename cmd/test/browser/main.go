package main

import (
	"fmt"
	"log"

	"github.com/playwright-community/playwright-go"

	"go-helpapply-automation/internal/browser"
	"go-helpapply-automation/internal/config"
)

func main() {
	fmt.Println("🌐 Testing Browser Manager...")

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Headless = false

	//create playwright manager
	pm, err := browser.NewPlaywright(cfg)
	if err != nil {
		log.Fatalf("Failed to create Playwright: %v", err)
	}
	defer pm.Close()

	fmt.Println("✅ Playwright started")

	//create page and navigate
	page, err := pm.NewPage()
	if err != nil {
		log.Fatalf("Failed to create page: %v", err)
	}

	fmt.Println("🔍 Navigating to HelpLavoro...")
	_, err = page.Goto("https://www.helplavoro.it/", playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(cfg.NavTimeout),
	})
	if err != nil {
		log.Fatalf("Failed to navigate: %v", err)
	}

	title, err := page.Title()
	if err != nil {
		log.Fatalf("Failed to read title: %v", err)
	}
	fmt.Printf("✅ Page loaded: %s\n", title)

	//check the listing search form is reachable
	count, err := page.Locator("form").Count()
	if err != nil {
		log.Fatalf("Failed to count forms: %v", err)
	}
	fmt.Printf("📋 Forms on homepage: %d\n", count)

	fmt.Println("🏁 Browser check finished.")
}
