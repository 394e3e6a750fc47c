// Submission pipeline for HelpLavoro job applications: one browser page per
// application, driven through navigation, consent dismissal, apply-flow
// discovery, form fill, CV upload, submit and verification.

package apply

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go-helpapply-automation/internal/artifacts"
	"go-helpapply-automation/internal/browser"
	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/cvloader"
	"go-helpapply-automation/internal/models"
	"go-helpapply-automation/utils"

	"github.com/playwright-community/playwright-go"
)

type Applicator struct {
	cfg  *config.Config
	cvs  cvloader.Loader
	sink *artifacts.Sink
	pw   *browser.PlaywrightManager
}

func NewApplicator(cfg *config.Config, cvs cvloader.Loader, sink *artifacts.Sink) *Applicator {
	return &Applicator{cfg: cfg, cvs: cvs, sink: sink}
}

// StartBrowser launches the shared Chromium instance. A launch failure is a
// session-level infrastructure error and propagates to the caller.
func (a *Applicator) StartBrowser() error {
	pm, err := browser.NewPlaywright(a.cfg)
	if err != nil {
		return err
	}
	a.pw = pm
	log.Printf("🌐 Browser started (headless=%v)", a.cfg.Headless)
	return nil
}

func (a *Applicator) StopBrowser() error {
	if a.pw == nil {
		return nil
	}
	err := a.pw.Close()
	a.pw = nil
	log.Println("🌐 Browser stopped")
	return err
}

// Apply drives one application through the site flow and returns it with a
// terminal status. Business failures (skip, failed submission) are states on
// the record, never errors: the only contract is that the returned record is
// terminal, completed_at is stamped and the page is closed, on every path.
func (a *Applicator) Apply(ctx context.Context, app *models.Application) *models.Application {
	log.Printf("🚀 Processing: %s", app.JobURL)
	log.Printf("👤 Candidate: %s %s (%s)", app.Name, app.Surname, app.Email)

	defer func() {
		now := time.Now()
		app.CompletedAt = &now
	}()

	page, err := a.pw.NewPage()
	if err != nil {
		app.SetError(models.StatusFailed, classifyError(err))
		log.Printf("❌ Error: %v", err)
		return app
	}
	defer page.Close()

	if err := a.runFlow(ctx, page, app); err != nil {
		app.SetError(models.StatusFailed, classifyError(err))
		log.Printf("❌ Error: %v", err)

		if a.sink.Wants(artifacts.StageError) {
			// Best-effort: a failing screenshot must not mask the real error
			if path, capErr := a.sink.Capture(page, app.ID, artifacts.StageError); capErr == nil {
				app.ScreenshotPath = &path
			}
		}
	}

	return app
}

// runFlow is the fallible part of the pipeline. It returns an error only for
// failures to be classified at the boundary; skip and dry-run outcomes set
// the application status and return nil.
func (a *Applicator) runFlow(ctx context.Context, page playwright.Page, app *models.Application) error {
	// Navigate, then give async page scripts (CMP, ads) a moment to settle
	log.Println("🧭 Navigating to job page...")
	if _, err := page.Goto(app.JobURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(a.cfg.NavTimeout),
	}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	time.Sleep(1 * time.Second)

	dismissConsent(page)
	utils.MouseJiggle(page)
	utils.SmoothScroll(page) // the apply button sits below the fold

	a.capture(page, app, artifacts.StagePageLoaded, nil)

	// Extract job info the record is missing
	if app.JobTitle == nil {
		if title := extractText(page, jobTitleChain, 3); title != "" {
			app.JobTitle = &title
		}
	}
	if app.CompanyName == nil {
		if company := extractText(page, companyNameChain, 2); company != "" {
			app.CompanyName = &company
		}
	}
	log.Printf("💼 Job: %s @ %s", deref(app.JobTitle), deref(app.CompanyName))

	// Find and click the apply trigger
	log.Println("1️⃣ Looking for 'Rispondi all'offerta' button...")
	trigger, _ := firstVisible(page, applyTriggerChain)
	if trigger == nil {
		a.capture(page, app, artifacts.StageNoTrigger, &app.ScreenshotPath)
		app.SetError(models.StatusSkipped, "Rispondi all'offerta button not found")
		log.Println("⏭️ Apply trigger not found, skipping")
		return nil
	}
	if err := trigger.Click(); err != nil {
		return fmt.Errorf("failed to click apply trigger: %w", err)
	}
	time.Sleep(500 * time.Millisecond) // transient popup
	a.capture(page, app, artifacts.StageAfterTrigger, nil)

	// Pick the direct application path, as opposed to apply-via-login
	log.Println("2️⃣ Looking for 'Candidatura diretta' option...")
	direct, _ := firstVisible(page, directOptionChain)
	if direct == nil {
		a.capture(page, app, artifacts.StageNoDirect, &app.ScreenshotPath)
		app.SetError(models.StatusSkipped, "Candidatura diretta option not found")
		log.Println("⏭️ Direct application option not found, skipping")
		return nil
	}
	if err := direct.Click(); err != nil {
		return fmt.Errorf("failed to click direct application option: %w", err)
	}
	time.Sleep(1 * time.Second) // Bootstrap collapse animation

	// Best-effort wait for the form: a timeout is not fatal, the form may
	// already be interactable
	firstInput := page.Locator(formScope + " input[name='nome']")
	if err := firstInput.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	}); err != nil {
		log.Println("⚠️ Form visibility check timed out, proceeding anyway")
	} else {
		log.Println("📋 Form fields are now visible")
	}
	a.capture(page, app, artifacts.StageFormVisible, nil)

	log.Println("📝 Filling application form...")
	fillForm(page, app)

	tempCV, err := a.uploadCV(ctx, page, app.CVReference)
	if err != nil {
		return err
	}
	// The staged file must survive until the form POST streams it
	defer cvloader.Cleanup(tempCV)

	var preSubmitPath string
	if a.sink.Wants(artifacts.StageBeforeSubmit) {
		if path, err := a.sink.Capture(page, app.ID, artifacts.StageBeforeSubmit); err == nil {
			preSubmitPath = path
		}
	}

	// Dry run: everything except the real submit
	if a.cfg.DryRun {
		log.Println("🧪 DRY RUN MODE - skipping actual submit")
		app.SetError(models.StatusSuccess, "DRY RUN - Form filled but not submitted")
		if preSubmitPath != "" {
			app.ScreenshotPath = &preSubmitPath
		}
		return nil
	}

	log.Println("📤 Submitting application...")
	result, err := submitForm(page)

	// The transient CV is no longer needed whatever happened
	cvloader.Cleanup(tempCV)

	if err != nil {
		return err
	}

	time.Sleep(500 * time.Millisecond)

	content, _ := page.Content()
	success, reason := classifyOutcome(result, content)

	if success {
		if a.sink.Wants(artifacts.StageSuccess) {
			time.Sleep(1 * time.Second) // let the confirmation popup render
			a.capture(page, app, artifacts.StageSuccess, &app.ScreenshotPath)
		}
		app.Status = models.StatusSuccess
		app.ErrorMessage = nil
		log.Println("✅ Application submitted successfully!")
	} else {
		a.capture(page, app, artifacts.StageAfterSubmit, &app.ScreenshotPath)
		app.SetError(models.StatusFailed, reason)
		log.Printf("❌ %s", reason)
	}

	return nil
}

// uploadCV resolves the CV reference, stages it as a transient file and
// attaches it to the form's file input. The browser needs a real filesystem
// path, bytes are not enough.
func (a *Applicator) uploadCV(ctx context.Context, page playwright.Page, reference string) (string, error) {
	content, filename, err := a.cvs.Load(ctx, reference)
	if err != nil {
		return "", fmt.Errorf("cv load failed: %w", err)
	}

	tempPath, err := cvloader.Stage(a.cfg.ScreenshotsPath, content, filename)
	if err != nil {
		return "", err
	}

	for _, selector := range fileInputChain.selectors {
		loc := page.Locator(selector).First()
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		if err := loc.SetInputFiles(tempPath); err != nil {
			continue
		}
		log.Printf("📎 Uploaded CV: %s", filename)
		return tempPath, nil
	}

	log.Println("⚠️ Could not find file upload field")
	return tempPath, nil
}

// capture takes a policy-gated screenshot, optionally recording the path on
// the application. Capture failures are logged and swallowed.
func (a *Applicator) capture(page playwright.Page, app *models.Application, stage string, into **string) {
	if !a.sink.Wants(stage) {
		return
	}
	path, err := a.sink.Capture(page, app.ID, stage)
	if err != nil {
		log.Printf("⚠️ Capture failed at %s: %v", stage, err)
		return
	}
	if into != nil {
		*into = &path
	}
}

// extractText pulls trimmed inner text from the first visible chain match.
func extractText(page playwright.Page, chain locatorChain, minLen int) string {
	loc, _ := firstVisible(page, chain)
	if loc == nil {
		return ""
	}
	text, err := loc.InnerText()
	if err != nil {
		return ""
	}
	text = strings.TrimSpace(text)
	if len(text) <= minLen {
		return ""
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// classifyError reduces a pipeline error to a short recorded message,
// separating timeouts from everything else.
func classifyError(err error) string {
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return "Timeout: " + msg
	}
	return msg
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
