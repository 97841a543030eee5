package thermalcapture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/thermal-capture/internal/future"
)

// Discoverer races camera discovery across transports and commits to the
// first usable result.
type Discoverer struct {
	scanner Scanner
}

// NewDiscoverer creates a Discoverer on top of a scanner.
func NewDiscoverer(scanner Scanner) *Discoverer {
	return &Discoverer{scanner: scanner}
}

// DiscoverOne scans the given transports concurrently and blocks until one
// camera has been accepted, every transport finished with nothing found, a
// scan error was reported before any find, or the context is done.
//
// The first Found event wins. Scanner callbacks run concurrently, possibly
// one goroutine per transport, so "first" means first to resolve the shared
// future, not first by wall-clock event time. Every later Found is logged as
// ignored; Lost and Finished are informational. A scan error only resolves
// the race if no camera won it first.
//
// Scanning resources are released before returning, regardless of outcome.
func (d *Discoverer) DiscoverOne(ctx context.Context, transports ...Transport) (Identity, error) {
	if len(transports) == 0 {
		return Identity{}, fmt.Errorf("thermal-capture: no transports to scan")
	}

	fut := future.New[Identity]()

	want := make(map[Transport]struct{}, len(transports))
	for _, t := range transports {
		want[t] = struct{}{}
	}

	// The Found path needs its own accepted flag on top of the future's
	// at-most-once contract, so late events can be distinguished from the
	// winning one when logging.
	var accepted atomic.Bool

	// Finished bookkeeping for the nothing-found terminal state: once every
	// transport has reported Finished without any Found, the future resolves
	// to ErrNoCameraFound instead of blocking forever.
	var (
		finishedMu sync.Mutex
		finished   = make(map[Transport]bool, len(transports))
	)

	callbacks := DiscoveryCallbacks{
		OnFound: func(camera DiscoveredCamera) {
			if accepted.Swap(true) {
				slog.Info("discovery: camera found (ignored, already decided)",
					"name", camera.DisplayName,
					"identity", camera.Identity.String(),
					"trace_id", camera.TraceID,
				)
				return
			}
			// Identity is a value; assigning it here is the copy that makes
			// it safe to outlive the scanner's event.
			slog.Info("discovery: camera found",
				"name", camera.DisplayName,
				"identity", camera.Identity.String(),
				"trace_id", camera.TraceID,
			)
			fut.Set(camera.Identity)
		},
		OnError: func(transport Transport, err error) {
			if Classify(err) == ClassIgnorable {
				slog.Info("discovery: ignorable scan condition",
					"transport", transport.String(),
					"error", err,
				)
				return
			}
			// Deliver to the waiter rather than treating the scan error as
			// fatal here; the future ignores it if a camera already won.
			if fut.Fail(fmt.Errorf("thermal-capture: discovery on %s: %w", transport, err)) {
				slog.Error("discovery: scan error",
					"transport", transport.String(),
					"error", err,
				)
			} else {
				slog.Info("discovery: scan error (ignored, already decided)",
					"transport", transport.String(),
					"error", err,
				)
			}
		},
		OnLost: func(identity Identity) {
			slog.Info("discovery: camera lost", "identity", identity.String())
		},
		OnFinished: func(transport Transport) {
			slog.Debug("discovery: transport finished", "transport", transport.String())
			if _, ok := want[transport]; !ok {
				return
			}
			finishedMu.Lock()
			finished[transport] = true
			done := len(finished) >= len(want)
			finishedMu.Unlock()
			if done {
				// No-op if a camera or an error already resolved the race.
				fut.Fail(ErrNoCameraFound)
			}
		},
	}

	handle, err := d.scanner.Scan(ctx, transports, callbacks)
	if err != nil {
		return Identity{}, fmt.Errorf("thermal-capture: start scan: %w", err)
	}
	defer handle.Stop()

	identity, err := fut.Wait(ctx)
	if err != nil {
		return Identity{}, err
	}
	return identity, nil
}
