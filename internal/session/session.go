// Package session drives one interaction lookup end to end: navigate to
// the checker, enter both drug names through the autocomplete, submit,
// wait for the result page and run the source's extraction chain. Every
// run produces exactly one terminal checkpoint entry; the session never
// retries internally.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ddihound/ddihound/internal/browser"
	"github.com/ddihound/ddihound/internal/checkpoint"
	"github.com/ddihound/ddihound/internal/dataset"
	"github.com/ddihound/ddihound/internal/extract"
	"github.com/ddihound/ddihound/internal/logger"
	"github.com/ddihound/ddihound/internal/source"
)

// Options tune session timing.
type Options struct {
	// StableWait caps how long the session waits for the result page to
	// settle after submitting. Exceeding it is not fatal: the page is
	// snapshotted as-is and extraction decides the outcome.
	StableWait time.Duration

	// Pause separates interaction steps so autocomplete widgets have time
	// to populate before candidates are read. Zero selects the default;
	// negative disables pausing.
	Pause time.Duration
}

const (
	defaultStableWait = 20 * time.Second
	defaultPause      = 1500 * time.Millisecond
)

// Session runs interaction lookups against one source profile on a
// shared browser.
type Session struct {
	b       browser.Browser
	profile source.Profile
	opts    Options

	warmedUp bool
	lastSnap browser.Snapshot
	hasSnap  bool
}

// New builds a session. The browser is shared across items and closed by
// the caller.
func New(b browser.Browser, profile source.Profile, opts Options) *Session {
	if opts.StableWait <= 0 {
		opts.StableWait = defaultStableWait
	}
	if opts.Pause == 0 {
		opts.Pause = defaultPause
	}
	return &Session{b: b, profile: profile, opts: opts}
}

// LastSnapshot returns the most recent page capture and whether one
// exists. The driver uses it to write debug artifacts for non-Success
// outcomes.
func (s *Session) LastSnapshot() (browser.Snapshot, bool) {
	return s.lastSnap, s.hasSnap
}

// Run performs one lookup and classifies its outcome. The returned entry
// is always terminal: Success when the chain produced a determinate
// result, Timeout when the page never settled and extraction was
// indeterminate, Failed when a settled page matched no strategy, Error
// when the interaction itself broke.
func (s *Session) Run(ctx context.Context, item dataset.Item) checkpoint.Entry {
	entry := checkpoint.Entry{
		PairKey:   checkpoint.PairKey(item.DrugA, item.DrugB),
		Timestamp: time.Now(),
	}
	s.hasSnap = false

	log := logger.With("pair", entry.PairKey, "source", s.profile.Name)

	lowConf, err := s.interact(ctx, item)
	if err != nil {
		log.Error("interaction failed", "error", err)
		entry.Status = classifyErr(err)
		s.capture(ctx)
		return entry
	}

	timedOut := false
	if err := s.b.WaitStable(ctx, s.opts.StableWait); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			log.Error("wait for results failed", "error", err)
			entry.Status = classifyErr(err)
			s.capture(ctx)
			return entry
		}
		// Page never settled; extract from whatever rendered.
		log.Warn("result page did not settle", "ceiling", s.opts.StableWait)
		timedOut = true
	}

	snap, err := s.b.Snapshot(ctx)
	if err != nil {
		log.Error("snapshot failed", "error", err)
		entry.Status = classifyErr(err)
		return entry
	}
	s.lastSnap = snap
	s.hasSnap = true

	result, err := s.profile.Chain.Extract(extract.NewPage(snap.HTML, snap.Title))
	switch {
	case err == nil:
		entry.Status = checkpoint.StatusSuccess
		entry.Severity = result.Severity
		entry.Text = result.Description
		entry.Strategy = result.Strategy
		entry.LowConfidence = result.LowConfidence || lowConf
		log.Info("interaction extracted",
			"severity", entry.Severity,
			"strategy", entry.Strategy,
			"low_confidence", entry.LowConfidence)
	case errors.Is(err, extract.ErrNoStrategyMatched) && timedOut:
		entry.Status = checkpoint.StatusTimeout
		log.Warn("no result before ceiling", "status", entry.Status)
	case errors.Is(err, extract.ErrNoStrategyMatched):
		entry.Status = checkpoint.StatusFailed
		log.Warn("page matched no extraction strategy", "status", entry.Status)
	default:
		entry.Status = checkpoint.StatusError
		log.Error("extraction failed", "error", err)
	}
	return entry
}

// interact performs the page workflow up to and including submitting the
// interaction check. Reports whether any drug was added via a
// low-confidence match.
func (s *Session) interact(ctx context.Context, item dataset.Item) (bool, error) {
	if s.profile.WarmupURL != "" && !s.warmedUp {
		if err := s.b.Navigate(ctx, s.profile.WarmupURL); err != nil {
			return false, fmt.Errorf("warmup navigation failed: %w", err)
		}
		s.warmedUp = true
		s.pause(ctx)
	}

	if err := s.b.Navigate(ctx, s.profile.CheckerURL); err != nil {
		return false, fmt.Errorf("checker navigation failed: %w", err)
	}
	s.pause(ctx)

	lowA, err := s.addDrug(ctx, item.DrugA)
	if err != nil {
		return false, fmt.Errorf("adding %q failed: %w", item.DrugA, err)
	}
	s.pause(ctx)

	lowB, err := s.addDrug(ctx, item.DrugB)
	if err != nil {
		return false, fmt.Errorf("adding %q failed: %w", item.DrugB, err)
	}
	s.pause(ctx)

	if err := s.submit(ctx); err != nil {
		return false, err
	}
	return lowA || lowB, nil
}

// addDrug types a name into the search field and commits a suggestion.
// When no dropdown entry can be found or clicked it falls back to the
// profile's add button, or Enter, and flags the add low-confidence since
// the committed name was never verified against a suggestion.
func (s *Session) addDrug(ctx context.Context, name string) (bool, error) {
	if err := s.b.Type(ctx, s.profile.InputSelector, name); err != nil {
		return false, fmt.Errorf("typing into search field: %w", err)
	}
	s.pause(ctx)

	for _, sel := range s.profile.SuggestionSelectors {
		candidates, err := s.b.Candidates(ctx, sel)
		if err != nil || len(candidates) == 0 {
			continue
		}
		m, ok := SelectCandidate(name, candidates)
		if !ok {
			continue
		}
		if err := s.b.ClickCandidate(ctx, sel, m.Index); err != nil {
			logger.Debug("suggestion click failed, trying next selector",
				"selector", sel, "error", err)
			continue
		}
		logger.Debug("suggestion selected",
			"name", name, "picked", m.Text, "low_confidence", m.LowConfidence)
		return m.LowConfidence, nil
	}

	logger.Warn("no suggestion matched, committing raw name", "name", name)
	if s.profile.AddSelector != "" {
		if err := s.b.Click(ctx, s.profile.AddSelector); err != nil {
			return false, fmt.Errorf("add button click failed: %w", err)
		}
		return true, nil
	}
	if err := s.b.PressEnter(ctx); err != nil {
		return false, fmt.Errorf("committing name: %w", err)
	}
	return true, nil
}

// submit clicks the check-interactions trigger, trying each known
// selector revision in order.
func (s *Session) submit(ctx context.Context) error {
	var lastErr error
	for _, sel := range s.profile.CheckSelectors {
		if err := s.b.Click(ctx, sel); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("no check-interactions trigger clickable: %w", lastErr)
}

// capture best-effort snapshots the page after a mid-workflow failure so
// the artifact bundle shows what the site served.
func (s *Session) capture(ctx context.Context) {
	snap, err := s.b.Snapshot(ctx)
	if err != nil {
		return
	}
	s.lastSnap = snap
	s.hasSnap = true
}

func (s *Session) pause(ctx context.Context) {
	if s.opts.Pause <= 0 {
		return
	}
	t := time.NewTimer(s.opts.Pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// classifyErr maps a workflow error onto a terminal status: deadline
// errors are timeouts, everything else is an infrastructure error.
func classifyErr(err error) checkpoint.Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return checkpoint.StatusTimeout
	}
	return checkpoint.StatusError
}
