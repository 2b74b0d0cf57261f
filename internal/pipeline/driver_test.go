package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ddihound/ddihound/internal/browser"
	"github.com/ddihound/ddihound/internal/checkpoint"
	"github.com/ddihound/ddihound/internal/dataset"
	"github.com/ddihound/ddihound/internal/extract"
	"github.com/ddihound/ddihound/internal/source"
)

// fakeRunner returns scripted entries per pair key and counts invocations
// so idempotence tests can assert zero browser work.
type fakeRunner struct {
	entries map[string]checkpoint.Entry
	calls   []string
	snap    browser.Snapshot
	hasSnap bool
}

func (f *fakeRunner) Run(_ context.Context, item dataset.Item) checkpoint.Entry {
	key := checkpoint.PairKey(item.DrugA, item.DrugB)
	f.calls = append(f.calls, key)
	if e, ok := f.entries[key]; ok {
		e.PairKey = key
		return e
	}
	return checkpoint.Entry{
		PairKey:  key,
		Severity: extract.SeverityModerate,
		Text:     "interaction text",
		Status:   checkpoint.StatusSuccess,
	}
}

func (f *fakeRunner) LastSnapshot() (browser.Snapshot, bool) {
	return f.snap, f.hasSnap
}

func instantLimiter(waits *[]time.Duration) *Limiter {
	l := NewLimiter(2*time.Second, 0)
	l.sleep = func(_ context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return nil
	}
	return l
}

func writeInput(t *testing.T, dir string, rows ...string) string {
	t.Helper()
	header := "Drug_A_Name,Drug_B_Name,Drug_A_Class,Drug_B_Class,DrugsCom_Severity,DrugsCom_Text"
	content := header + "\n" + strings.Join(rows, "\n") + "\n"
	path := filepath.Join(dir, "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newHarness(t *testing.T, dir string, runner *fakeRunner, rows ...string) (*Driver, *dataset.Table, *checkpoint.Store) {
	t.Helper()
	input := writeInput(t, dir, rows...)

	table, err := dataset.Load(input)
	if err != nil {
		t.Fatal(err)
	}
	store, err := checkpoint.Open(filepath.Join(dir, "checkpoint.csv"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := Config{
		Source:         "drugscom",
		InputPath:      input,
		OutputPath:     filepath.Join(dir, "output.csv"),
		CheckpointPath: filepath.Join(dir, "checkpoint.csv"),
	}
	cfg.Normalize()

	d := NewDriver(cfg, table, store, instantLimiter(nil), runner, nil, source.DrugsCom())
	return d, table, store
}

func TestDriver_ThreeItemScenario(t *testing.T) {
	// Item 0 carries a prior result, item 1 resolves to a determinate
	// None, item 2 times out. Only the last two reach the browser and the
	// checkpoint gains exactly two entries.
	dir := t.TempDir()
	runner := &fakeRunner{entries: map[string]checkpoint.Entry{
		"aspirin+warfarin":  {Severity: extract.SeverityNone, Status: checkpoint.StatusSuccess},
		"aspirin+ibuprofen": {Status: checkpoint.StatusTimeout},
	}}

	d, table, store := newHarness(t, dir, runner,
		"lisinopril,amlodipine,ACE,CCB,Moderate,known interaction",
		"aspirin,warfarin,NSAID,anticoagulant,TBD,",
		"aspirin,ibuprofen,NSAID,NSAID,TBD,",
	)

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", summary.Skipped)
	}
	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2", summary.Processed)
	}
	if store.Len() != 2 {
		t.Errorf("checkpoint has %d entries, want 2", store.Len())
	}
	if store.Has("lisinopril+amlodipine") {
		t.Error("pre-populated row must never be checkpointed")
	}
	if got := table.Get(1, "DrugsCom_Severity"); got != string(extract.SeverityNone) {
		t.Errorf("row 1 severity = %q, want None", got)
	}
	if got := table.Get(2, "DrugsCom_Severity"); got != string(checkpoint.StatusTimeout) {
		t.Errorf("row 2 severity = %q, want Timeout placeholder", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "output.csv")); err != nil {
		t.Errorf("final output snapshot missing: %v", err)
	}
}

func TestDriver_SecondRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}

	d, _, _ := newHarness(t, dir, runner,
		"aspirin,warfarin,NSAID,anticoagulant,TBD,",
		"aspirin,ibuprofen,NSAID,NSAID,TBD,",
	)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	firstOutput, err := os.ReadFile(filepath.Join(dir, "output.csv"))
	if err != nil {
		t.Fatal(err)
	}
	firstCalls := len(runner.calls)

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != firstCalls {
		t.Errorf("second run performed %d browser interactions, want 0", len(runner.calls)-firstCalls)
	}
	if summary.Skipped != 2 {
		t.Errorf("second run skipped = %d, want 2", summary.Skipped)
	}

	secondOutput, err := os.ReadFile(filepath.Join(dir, "output.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(firstOutput) != string(secondOutput) {
		t.Error("second run changed the output")
	}
}

func TestDriver_ResumeSkipsCheckpointedKeys(t *testing.T) {
	// Simulate a kill between items: a fresh driver over the same
	// checkpoint file must only run the remaining item, and failed
	// entries stay done.
	dir := t.TempDir()
	rows := []string{
		"aspirin,warfarin,NSAID,anticoagulant,TBD,",
		"aspirin,ibuprofen,NSAID,NSAID,TBD,",
	}

	first := &fakeRunner{entries: map[string]checkpoint.Entry{
		"aspirin+warfarin": {Status: checkpoint.StatusFailed},
	}}
	d1, _, _ := newHarness(t, dir, first, rows...)
	d1.cfg.RangeEnd = 1
	if _, err := d1.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	second := &fakeRunner{}
	d2, _, _ := newHarness(t, dir, second, rows...)
	if _, err := d2.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(second.calls) != 1 {
		t.Fatalf("resumed run made %d interactions, want 1: %v", len(second.calls), second.calls)
	}
	if second.calls[0] != "aspirin+ibuprofen" {
		t.Errorf("resumed run processed %q, want the first unfinished pair", second.calls[0])
	}
}

func TestDriver_WaitsOnceRatePerProcessedItem(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}

	var waits []time.Duration
	d, _, _ := newHarness(t, dir, runner,
		"lisinopril,amlodipine,ACE,CCB,Moderate,known",
		"aspirin,warfarin,NSAID,anticoagulant,TBD,",
	)
	d.limiter = instantLimiter(&waits)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(waits) != 1 {
		t.Fatalf("limiter waited %d times, want 1 (skips consume no delay)", len(waits))
	}
	if waits[0] < 2*time.Second {
		t.Errorf("wait %v is below the floor", waits[0])
	}
}

func TestDriver_ConsecutiveErrorsAbort(t *testing.T) {
	dir := t.TempDir()

	var rows []string
	entries := map[string]checkpoint.Entry{}
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, n := range names {
		rows = append(rows, n+",zzz,classA,classB,TBD,")
		entries[n+"+zzz"] = checkpoint.Entry{Status: checkpoint.StatusError}
	}
	runner := &fakeRunner{entries: entries}

	d, _, store := newHarness(t, dir, runner, rows...)
	_, err := d.Run(context.Background())
	if err == nil {
		t.Fatal("expected the run to abort on consecutive errors")
	}
	if len(runner.calls) != maxConsecutiveErrors+1 {
		t.Errorf("ran %d items before aborting, want %d", len(runner.calls), maxConsecutiveErrors+1)
	}
	// Every attempted item was still persisted before the abort.
	if store.Len() != maxConsecutiveErrors+1 {
		t.Errorf("checkpoint has %d entries, want %d", store.Len(), maxConsecutiveErrors+1)
	}
}

func TestDriver_SuccessResetsErrorStreak(t *testing.T) {
	dir := t.TempDir()

	var rows []string
	entries := map[string]checkpoint.Entry{}
	for i, n := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		rows = append(rows, n+",zzz,classA,classB,TBD,")
		if i == 3 {
			entries[n+"+zzz"] = checkpoint.Entry{Severity: extract.SeverityMinor, Status: checkpoint.StatusSuccess}
		} else {
			entries[n+"+zzz"] = checkpoint.Entry{Status: checkpoint.StatusError}
		}
	}
	runner := &fakeRunner{entries: entries}

	d, _, _ := newHarness(t, dir, runner, rows...)
	if _, err := d.Run(context.Background()); err != nil {
		t.Errorf("interleaved success must reset the streak, got %v", err)
	}
}

func TestDriver_CancellationStopsAtItemBoundary(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}

	d, _, _ := newHarness(t, dir, runner,
		"aspirin,warfarin,NSAID,anticoagulant,TBD,",
		"aspirin,ibuprofen,NSAID,NSAID,TBD,",
	)

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel while the first item is in flight; it must still be finished
	// and persisted, and the second never started.
	wrapped := &cancelAfterFirst{inner: runner, cancel: cancel}
	d.runner = wrapped

	summary, err := d.Run(ctx)
	if err != nil {
		t.Fatalf("graceful cancellation must not be an error, got %v", err)
	}
	if !summary.Canceled {
		t.Error("summary should report cancellation")
	}
	if summary.Processed != 1 {
		t.Errorf("processed = %d, want the in-flight item finished", summary.Processed)
	}
	if len(runner.calls) != 1 {
		t.Errorf("runner called %d times, want 1", len(runner.calls))
	}

	if _, err := os.Stat(filepath.Join(dir, "output.csv")); err != nil {
		t.Errorf("cancelled run must still publish an output snapshot: %v", err)
	}
}

type cancelAfterFirst struct {
	inner  *fakeRunner
	cancel context.CancelFunc
}

func (c *cancelAfterFirst) Run(ctx context.Context, item dataset.Item) checkpoint.Entry {
	e := c.inner.Run(ctx, item)
	c.cancel()
	return e
}

func (c *cancelAfterFirst) LastSnapshot() (browser.Snapshot, bool) {
	return c.inner.LastSnapshot()
}

func TestDriver_RangeBounds(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}

	d, _, _ := newHarness(t, dir, runner,
		"a,zzz,classA,classB,TBD,",
		"b,zzz,classA,classB,TBD,",
		"c,zzz,classA,classB,TBD,",
	)
	d.cfg.RangeStart = 1
	d.cfg.RangeEnd = 2

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "b+zzz" {
		t.Errorf("range [1,2) should process exactly the middle item, got %v", runner.calls)
	}
}

func TestConfig_NormalizeAndValidate(t *testing.T) {
	cfg := Config{
		Source:         "drugscom",
		InputPath:      "in.csv",
		OutputPath:     "out.csv",
		CheckpointPath: "ckpt.csv",
		MinDelay:       500 * time.Millisecond,
	}
	cfg.Normalize()

	if cfg.MinDelay != minDelayFloor {
		t.Errorf("MinDelay = %v, want floored to %v", cfg.MinDelay, minDelayFloor)
	}
	if cfg.BatchSize != defaultBatchSize {
		t.Errorf("BatchSize = %d, want default %d", cfg.BatchSize, defaultBatchSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestConfig_ValidateRejectsMissingPaths(t *testing.T) {
	cfg := Config{Source: "drugscom"}
	cfg.Normalize()
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for missing paths")
	}
}

func TestConfig_ValidateRejectsInvertedRange(t *testing.T) {
	cfg := Config{
		Source:         "drugscom",
		InputPath:      "in.csv",
		OutputPath:     "out.csv",
		CheckpointPath: "ckpt.csv",
		RangeStart:     5,
		RangeEnd:       3,
	}
	cfg.Normalize()
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for inverted range")
	}
}
