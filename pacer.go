package thermalcapture

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// SyncStrategy selects how FrameSync waits for the next frame start.
type SyncStrategy int

const (
	// SyncSleep sleeps until the next frame start. May give some frames a
	// slightly shorter slot due to oversleep, but is cheap on every
	// platform. Prefer this whenever possible.
	SyncSleep SyncStrategy = iota
	// SyncSpin waits for the next frame start in a tight loop. Lower jitter
	// at full CPU cost; efficiency varies widely between platforms.
	SyncSpin
	// SyncManual records "now" as the new frame start without waiting,
	// handing synchronization control to the caller. Use for externally
	// clocked sources.
	SyncManual
)

// String returns a human-readable string representation of the strategy.
func (s SyncStrategy) String() string {
	switch s {
	case SyncSleep:
		return "sleep"
	case SyncSpin:
		return "spin"
	case SyncManual:
		return "manual"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// FramePacer holds a processing or render loop at a target frame rate.
//
// Call FrameSync once per loop iteration. Each iteration has two phases:
// measure the time used since the previous sync, then wait out whatever is
// left of the 1/fps frame slot using the selected strategy.
//
// All methods are safe for concurrent use, though a pacer normally belongs
// to a single loop.
type FramePacer struct {
	clk clock.Clock

	mu         sync.Mutex
	targetFPS  float64
	lastSync   time.Time
	logging    bool
	logEvery   int
	frameIndex int
	logMark    time.Time
	logFrames  int
}

// NewFramePacer creates a pacer for the given target frame rate. fps must be
// positive; non-positive values are clamped to the default of 9 fps, the
// conventional rate of export-unrestricted thermal cameras.
//
// When logging is enabled the pacer emits one rate log line every
// logIntervalFrames frames. Logging is cosmetic only and never affects
// pacing decisions.
func NewFramePacer(fps float64, enableLogging bool, logIntervalFrames int) *FramePacer {
	if fps <= 0 {
		fps = 9
	}
	if logIntervalFrames <= 0 {
		logIntervalFrames = 30
	}
	p := &FramePacer{
		clk:       clock.New(),
		targetFPS: fps,
		logging:   enableLogging,
		logEvery:  logIntervalFrames,
	}
	p.Reset()
	return p
}

// FrameRate returns the target frame rate.
func (p *FramePacer) FrameRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetFPS
}

// SetFrameRate changes the target frame rate without resetting accumulated
// timing or log state. Consider whether Reset or SetLogInterval should
// follow. Non-positive rates are ignored.
func (p *FramePacer) SetFrameRate(fps float64) {
	if fps <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targetFPS = fps
}

// Logging reports whether rate logging is enabled.
func (p *FramePacer) Logging() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logging
}

// SetLogging enables or disables rate logging.
func (p *FramePacer) SetLogging(enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logging = enable
}

// LogInterval returns the number of frames between rate log lines.
func (p *FramePacer) LogInterval() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logEvery
}

// SetLogInterval sets the number of frames between rate log lines.
// Non-positive intervals are ignored.
func (p *FramePacer) SetLogInterval(frames int) {
	if frames <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logEvery = frames
}

// Reset clears timers, counters and log state. Call it once immediately
// before the loop begins if pacer construction and loop start are not
// adjacent in time.
func (p *FramePacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clk.Now()
	p.lastSync = now
	p.logMark = now
	p.frameIndex = 0
	p.logFrames = 0
}

// frameDuration returns the slot length for the current target rate.
// Caller holds p.mu.
func (p *FramePacer) frameDuration() time.Duration {
	return time.Duration(float64(time.Second) / p.targetFPS)
}

// FrameSync synchronizes the loop to the target frame rate. Call once per
// iteration.
func (p *FramePacer) FrameSync(strategy SyncStrategy) {
	p.mu.Lock()
	deadline := p.lastSync.Add(p.frameDuration())

	switch strategy {
	case SyncManual:
		// No waiting; the caller owns synchronization.
	case SyncSpin:
		p.mu.Unlock()
		for p.clk.Now().Before(deadline) {
			runtime.Gosched()
		}
		p.mu.Lock()
	default: // SyncSleep
		if wait := deadline.Sub(p.clk.Now()); wait > 0 {
			p.mu.Unlock()
			p.clk.Sleep(wait)
			p.mu.Lock()
		}
	}

	p.lastSync = p.clk.Now()
	p.frameIndex++
	p.logFrames++
	p.maybeLogLocked()
	p.mu.Unlock()
}

// UsedFrameTime is the time elapsed since the last frame sync. Diagnostic
// read accessor only.
func (p *FramePacer) UsedFrameTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clk.Now().Sub(p.lastSync)
}

// RemainingFrameTime is the time left until the next frame should start,
// clamped to zero. Diagnostic read accessor only.
func (p *FramePacer) RemainingFrameTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	remaining := p.frameDuration() - p.clk.Now().Sub(p.lastSync)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// maybeLogLocked emits the rate log line once every logEvery frames.
// Caller holds p.mu.
func (p *FramePacer) maybeLogLocked() {
	if !p.logging || p.logFrames < p.logEvery {
		return
	}
	elapsed := p.lastSync.Sub(p.logMark)
	actual := 0.0
	if elapsed > 0 {
		actual = float64(p.logFrames) / elapsed.Seconds()
	}
	slog.Info("pacer: frame rate",
		"target_fps", p.targetFPS,
		"actual_fps", actual,
		"frames", p.frameIndex,
	)
	p.logMark = p.lastSync
	p.logFrames = 0
}
