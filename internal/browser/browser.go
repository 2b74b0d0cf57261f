// Package browser abstracts the page-interaction primitives the pipeline
// needs from a browser-automation backend. The pipeline core only
// sequences these calls; everything DOM-related lives behind this
// interface so the pipeline is testable without a real browser.
package browser

import (
	"context"
	"time"
)

// Snapshot is a capture of current page state: the rendered HTML plus a
// full-page screenshot for the debug artifact bundle.
type Snapshot struct {
	HTML       string
	Title      string
	Screenshot []byte
	Taken      time.Time
}

// Browser is the automation capability the interaction session drives.
// All calls honor ctx cancellation and deadlines.
type Browser interface {
	// Navigate loads a URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Type clears the field matching selector and types text into it.
	Type(ctx context.Context, selector, text string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// PressEnter sends an Enter key press to the focused element.
	PressEnter(ctx context.Context) error

	// WaitStable blocks until the page reaches a stable rendered state or
	// the ceiling elapses, in which case it returns an error wrapping
	// context.DeadlineExceeded. The page is left in whatever state it
	// reached; callers may still snapshot it.
	WaitStable(ctx context.Context, ceiling time.Duration) error

	// ReadText returns the visible text of the first element matching
	// selector.
	ReadText(ctx context.Context, selector string) (string, error)

	// Candidates returns the visible text of every element matching
	// selector, in document order. Used to read suggestion dropdowns.
	Candidates(ctx context.Context, selector string) ([]string, error)

	// ClickCandidate clicks the index-th element matching selector.
	ClickCandidate(ctx context.Context, selector string, index int) error

	// Snapshot captures the current page state.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Close releases the underlying browser resources.
	Close() error
}
