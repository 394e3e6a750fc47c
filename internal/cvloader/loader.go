package cvloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-helpapply-automation/internal/config"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// ErrNotFound means the CV reference could not be resolved by the backend.
var ErrNotFound = errors.New("cv not found")

// Loader resolves a CV reference to raw bytes plus a filename.
type Loader interface {
	Load(ctx context.Context, reference string) ([]byte, string, error)
	Exists(ctx context.Context, reference string) bool
}

// New builds the loader selected by cv_loader_type.
func New(ctx context.Context, cfg *config.Config) (Loader, error) {
	switch cfg.CVLoaderType {
	case "local":
		return &LocalLoader{BasePath: cfg.CVBasePath}, nil
	case "url":
		return &URLLoader{Client: &http.Client{Timeout: 30 * time.Second}}, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud storage client: %w", err)
		}
		return &GCSLoader{bucket: client.Bucket(cfg.GCSBucket)}, nil
	default:
		return nil, fmt.Errorf("unknown cv loader type: %s", cfg.CVLoaderType)
	}
}

// ---------------- LOCAL ----------------

// LocalLoader reads CVs from the local filesystem.
type LocalLoader struct {
	BasePath string
}

func (l *LocalLoader) resolve(reference string) string {
	if filepath.IsAbs(reference) {
		return reference
	}
	return filepath.Join(l.BasePath, reference)
}

func (l *LocalLoader) Load(_ context.Context, reference string) ([]byte, string, error) {
	path := l.resolve(reference)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, "", fmt.Errorf("failed to read cv: %w", err)
	}
	return content, filepath.Base(path), nil
}

func (l *LocalLoader) Exists(_ context.Context, reference string) bool {
	_, err := os.Stat(l.resolve(reference))
	return err == nil
}

// ---------------- URL ----------------

// URLLoader fetches CVs from a public URL.
type URLLoader struct {
	Client *http.Client
}

func (l *URLLoader) Load(ctx context.Context, reference string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reference, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid cv url: %w", err)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: %s returned %d", ErrNotFound, reference, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download cv: %w", err)
	}

	return content, FilenameFromURL(reference), nil
}

func (l *URLLoader) Exists(ctx context.Context, reference string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, reference, nil)
	if err != nil {
		return false
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// FilenameFromURL extracts a usable filename from a CV URL, defaulting to cv.pdf
func FilenameFromURL(url string) string {
	name := url
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "?"); i >= 0 {
		name = name[:i]
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return "cv.pdf"
	}
	return name
}

// ---------------- GCS ----------------

// GCSLoader reads CVs from a Google Cloud Storage bucket.
type GCSLoader struct {
	bucket *storage.BucketHandle
}

func (l *GCSLoader) Load(ctx context.Context, reference string) ([]byte, string, error) {
	reader, err := l.bucket.Object(reference).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, reference)
		}
		return nil, "", fmt.Errorf("failed to open cv object: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read cv object: %w", err)
	}

	name := reference
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return content, name, nil
}

func (l *GCSLoader) Exists(ctx context.Context, reference string) bool {
	_, err := l.bucket.Object(reference).Attrs(ctx)
	return err == nil
}

// ---------------- TEMP STAGING ----------------

// Stage writes the CV to a transient file so the browser upload step has a
// filesystem path to attach. The file must outlive the form POST: the browser
// streams it during submission.
func Stage(dir string, content []byte, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("temp_%s_%s", uuid.NewString()[:8], filename))
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to stage cv: %w", err)
	}
	return path, nil
}

// Cleanup removes a staged CV file, ignoring a file already gone.
func Cleanup(path string) {
	if path == "" {
		return
	}
	os.Remove(path)
}
