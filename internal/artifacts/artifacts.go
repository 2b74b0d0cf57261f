// Package artifacts saves debug bundles for non-Success outcomes: the
// page HTML and the rendered-state screenshot, named deterministically by
// item index and timestamp so a failed item can be traced back to its
// page state after the run.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/ddihound/ddihound/internal/browser"
	"github.com/ddihound/ddihound/internal/logger"
)

const stampLayout = "20060102_150405"

// Writer persists debug bundles under a single directory.
type Writer struct {
	dir string
}

// NewWriter creates the artifact directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the artifact directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Save writes the bundle for one item and returns the common base path.
// Artifact saving is diagnostic only: failures are logged, not returned
// as run errors, except when even the HTML cannot be written.
func (w *Writer) Save(index int, status string, snap browser.Snapshot) (string, error) {
	base := filepath.Join(w.dir, fmt.Sprintf("%04d_%s_%s", index, status, snap.Taken.Format(stampLayout)))

	htmlPath := base + ".html"
	if err := os.WriteFile(htmlPath, []byte(snap.HTML), 0o644); err != nil {
		return "", fmt.Errorf("failed to save page snapshot: %w", err)
	}

	if len(snap.Screenshot) > 0 {
		shotPath := base + ".png"
		if err := os.WriteFile(shotPath, snap.Screenshot, 0o644); err != nil {
			logger.Warn("could not save screenshot", "path", shotPath, "error", err)
		}
	}

	logger.Debug("debug artifacts saved",
		"base", base,
		"html_size", humanize.Bytes(uint64(len(snap.HTML))),
		"screenshot_size", humanize.Bytes(uint64(len(snap.Screenshot))))

	return base, nil
}
