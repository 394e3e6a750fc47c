package artifacts

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/playwright-community/playwright-go"
)

// Named capture checkpoints of the apply flow.
const (
	StagePageLoaded   = "page_loaded"
	StageAfterTrigger = "after_trigger"
	StageFormVisible  = "form_visible"
	StageBeforeSubmit = "before_submit"
	StageSuccess      = "success"
	StageAfterSubmit  = "after_submit"
	StageError        = "error"
	StageNoTrigger    = "error_no_trigger"
	StageNoDirect     = "error_no_direct"
)

// Which checkpoints actually produce a screenshot, per configured mode.
// Trades diagnostic completeness against storage volume.
var stagesByMode = map[string]map[string]bool{
	"all": {
		StagePageLoaded: true, StageAfterTrigger: true, StageFormVisible: true,
		StageBeforeSubmit: true, StageSuccess: true, StageAfterSubmit: true,
		StageError: true, StageNoTrigger: true, StageNoDirect: true,
	},
	"minimal": {
		StageBeforeSubmit: true, StageSuccess: true, StageAfterSubmit: true,
		StageError: true, StageNoTrigger: true, StageNoDirect: true,
	},
	"errors": {
		StageError: true, StageNoTrigger: true, StageNoDirect: true,
		StageAfterSubmit: true,
	},
}

// Sink persists page screenshots and HTML snapshots for diagnostics,
// optionally mirroring them to a GCS bucket.
type Sink struct {
	dir     string
	mode    string
	enabled bool
	bucket  *storage.BucketHandle
}

func NewSink(dir, mode string, enabled bool) *Sink {
	if enabled {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("⚠️ Failed to create screenshots directory: %v", err)
		}
	}
	return &Sink{dir: dir, mode: mode, enabled: enabled}
}

// WithMirror attaches a GCS bucket that every capture is copied to.
// Mirroring failures never affect the pipeline outcome.
func (s *Sink) WithMirror(ctx context.Context, bucketName string) *Sink {
	client, err := storage.NewClient(ctx)
	if err != nil {
		log.Printf("⚠️ Cloud storage not available, keeping captures local only: %v", err)
		return s
	}
	s.bucket = client.Bucket(bucketName)
	log.Printf("☁️ Mirroring captures to bucket %s", bucketName)
	return s
}

// Wants reports whether the configured mode captures the given checkpoint.
func (s *Sink) Wants(stage string) bool {
	if !s.enabled {
		return false
	}
	allowed, ok := stagesByMode[s.mode]
	if !ok {
		allowed = stagesByMode["all"]
	}
	return allowed[stage]
}

// Capture saves a full-page screenshot and the page HTML, named by
// application id, checkpoint and timestamp. Returns the local PNG path.
func (s *Sink) Capture(page playwright.Page, appID int64, stage string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	base := fmt.Sprintf("app_%d_%s_%s", appID, stage, timestamp)

	pngPath := filepath.Join(s.dir, base+".png")
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(pngPath),
		FullPage: playwright.Bool(true),
	}); err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	log.Printf("📸 Screenshot saved: %s.png", base)

	htmlPath := filepath.Join(s.dir, base+".html")
	html, err := page.Content()
	if err == nil {
		if err := os.WriteFile(htmlPath, []byte(html), 0644); err != nil {
			log.Printf("⚠️ Failed to save page HTML: %v", err)
		}
	} else {
		log.Printf("⚠️ Failed to read page content: %v", err)
	}

	s.mirror(pngPath)
	s.mirror(htmlPath)

	return pngPath, nil
}

// mirror uploads a local capture to GCS, best-effort.
func (s *Sink) mirror(localPath string) {
	if s.bucket == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := os.ReadFile(localPath)
	if err != nil {
		log.Printf("⚠️ Mirror skipped, cannot read %s: %v", localPath, err)
		return
	}

	objectName := "screenshots/" + filepath.Base(localPath)
	w := s.bucket.Object(objectName).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		log.Printf("⚠️ Mirror upload failed for %s: %v", objectName, err)
		w.Close()
		return
	}
	if err := w.Close(); err != nil {
		log.Printf("⚠️ Mirror upload failed for %s: %v", objectName, err)
		return
	}
	log.Printf("☁️ Mirrored capture: %s", objectName)
}
