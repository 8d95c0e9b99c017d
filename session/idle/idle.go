// Package idle decides when a terminal pane has stopped producing output.
//
// The Detector polls a snapshot function, remembers when the content last
// changed, and reports success once the content has been stable for the
// configured quiet period. If the overall timeout runs out first it reports a
// timeout instead. A timeout is an ordinary outcome, not an error.
package idle

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ticmd/log"
)

// Kind tags the outcome of a wait.
type Kind string

const (
	KindSuccess Kind = "success"
	KindTimeout Kind = "timeout"
)

// progressInterval is the spacing of "still waiting" log lines, measured on
// the detector clock.
const progressInterval = 5 * time.Second

// ErrInvalidOptions is returned when a duration in Options is not positive.
var ErrInvalidOptions = errors.New("invalid idle options")

// Result is the outcome of a wait that ran to completion.
type Result struct {
	Kind    Kind
	Elapsed time.Duration
	// Polls is the number of snapshots taken.
	Polls int
}

// Options configures one wait.
type Options struct {
	// Timeout is the overall budget.
	Timeout time.Duration
	// QuietFor is how long the content must stay unchanged. It may exceed
	// Timeout, in which case only an already-idle pane can succeed.
	QuietFor time.Duration
	// PollInterval is the sampling cadence; keep it well below QuietFor.
	PollInterval time.Duration
}

// Validate checks that all durations are positive.
func (o Options) Validate() error {
	switch {
	case o.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidOptions, o.Timeout)
	case o.QuietFor <= 0:
		return fmt.Errorf("%w: quiet-for must be positive, got %v", ErrInvalidOptions, o.QuietFor)
	case o.PollInterval <= 0:
		return fmt.Errorf("%w: poll-interval must be positive, got %v", ErrInvalidOptions, o.PollInterval)
	}
	return nil
}

// FetchFunc returns the current content of a pane as lines. It must not
// modify the pane. An empty slice means no content.
type FetchFunc func(ctx context.Context) ([]string, error)

// Detector runs idle waits. The zero value is not usable; use NewDetector.
// A Detector holds no per-wait state and may be shared between goroutines.
type Detector struct {
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.now = now
	}
}

// WithSleep replaces the interruptible sleep between polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) DetectorOption {
	return func(d *Detector) {
		d.sleep = sleep
	}
}

// NewDetector creates a Detector using the wall clock unless overridden.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait polls fetch until the content has been unchanged for opts.QuietFor or
// opts.Timeout has elapsed. The first non-empty snapshot counts as a change,
// so success never comes sooner than QuietFor after the first poll.
//
// The timeout is checked between polls only, so the call may overrun it by
// up to one PollInterval. A fetch error ends the wait immediately and is
// returned unchanged; so is the context error if ctx is cancelled.
func (d *Detector) Wait(ctx context.Context, fetch FetchFunc, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	start := d.now()
	monitor := newSnapshotMonitor()
	lastChange := start
	polls := 0
	progress := log.NewEvery(progressInterval)

	for d.now().Sub(start) < opts.Timeout {
		lines, err := fetch(ctx)
		if err != nil {
			log.Debug("[IDLE] fetch failed after %d polls: %v", polls, err)
			return Result{}, err
		}
		polls++

		now := d.now()
		if progress.ShouldLogAt(now) {
			log.InfoLog.Printf("waiting for idle: %d polls, %v since last change", polls, now.Sub(lastChange))
		}
		if monitor.changed(joinSnapshot(lines)) {
			lastChange = now
		} else if now.Sub(lastChange) >= opts.QuietFor {
			return Result{Kind: KindSuccess, Elapsed: now.Sub(start), Polls: polls}, nil
		}

		if err := d.sleep(ctx, opts.PollInterval); err != nil {
			return Result{}, err
		}
	}

	return Result{Kind: KindTimeout, Elapsed: d.now().Sub(start), Polls: polls}, nil
}

// joinSnapshot normalizes a snapshot to the text that is compared.
func joinSnapshot(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// snapshotMonitor remembers the digest of the last distinct snapshot. It
// starts out holding the digest of the empty snapshot.
type snapshotMonitor struct {
	prevHash [sha256.Size]byte
}

func newSnapshotMonitor() *snapshotMonitor {
	return &snapshotMonitor{prevHash: hash("")}
}

// changed records s and reports whether it differs from the previous snapshot.
func (m *snapshotMonitor) changed(s string) bool {
	h := hash(s)
	if h == m.prevHash {
		return false
	}
	m.prevHash = h
	return true
}

// hash computes SHA256 without allocating a byte slice from the string.
func hash(s string) [sha256.Size]byte {
	h := sha256.New()
	io.WriteString(h, s)
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}
