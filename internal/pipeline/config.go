// Package pipeline owns the run configuration, the request pacing and the
// sequential driver loop that turns the work-item table into checkpoint
// entries and output snapshots.
package pipeline

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the immutable run configuration. Populate it, Normalize it,
// Validate it, then hand it to the driver.
type Config struct {
	// Source names the interaction-checker profile to run against.
	Source string `validate:"required"`

	// InputPath is the work-item CSV; OutputPath receives atomic result
	// snapshots. They may be the same file.
	InputPath  string `validate:"required"`
	OutputPath string `validate:"required"`

	// CheckpointPath is the append-only progress log consulted on resume.
	CheckpointPath string `validate:"required"`

	// ArtifactDir receives debug bundles for non-Success items. Empty
	// disables artifact capture.
	ArtifactDir string

	// LogFile, when set, tees log events into a durable file.
	LogFile string

	// RangeStart and RangeEnd bound the slice of the queue to process,
	// half-open. RangeEnd <= 0 means the end of the table.
	RangeStart int `validate:"min=0"`
	RangeEnd   int

	// MinDelay is the minimum gap between browser interactions; Jitter is
	// the uniform random extra added on top. MinDelay is clamped upward,
	// never below the scraping floor.
	MinDelay time.Duration
	Jitter   time.Duration

	// StableWait caps the post-submit wait for the result page.
	// StepTimeout caps each individual browser step.
	StableWait  time.Duration
	StepTimeout time.Duration

	// BatchSize is how many processed items trigger an output snapshot.
	BatchSize int `validate:"max=100"`

	Headless bool
}

const (
	defaultBatchSize   = 10
	maxBatchSize       = 100
	defaultJitter      = 3 * time.Second
	defaultStableWait  = 20 * time.Second
	defaultStepTimeout = 30 * time.Second
)

// Normalize applies defaults and floors in place. Configuration can
// raise the interaction delay but never lower it below the floor.
func (c *Config) Normalize() {
	if c.MinDelay < minDelayFloor {
		c.MinDelay = minDelayFloor
	}
	if c.Jitter < 0 {
		c.Jitter = defaultJitter
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchSize > maxBatchSize {
		c.BatchSize = maxBatchSize
	}
	if c.StableWait <= 0 {
		c.StableWait = defaultStableWait
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = defaultStepTimeout
	}
	if c.RangeEnd < 0 {
		c.RangeEnd = 0
	}
}

// Validate checks the normalized configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.RangeEnd > 0 && c.RangeEnd <= c.RangeStart {
		return fmt.Errorf("invalid configuration: range end %d must be greater than start %d", c.RangeEnd, c.RangeStart)
	}
	return nil
}
