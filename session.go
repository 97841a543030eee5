package thermalcapture

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// SessionConfig configures one streaming session.
//
// Per-session configuration is passed by value into the session and closed
// over by its callbacks; there is no process-wide settings state.
type SessionConfig struct {
	// Stream is the device stream to drive (required).
	Stream Stream
	// Renderer produces display images from received frames (required).
	Renderer Renderer
	// Recorder, if non-nil, records the session to RecordPath.
	Recorder Recorder
	// RecordPath is the recording destination. Required when Recorder is set.
	RecordPath string
	// RecordSource selects stream-side attachment vs explicit feeding from
	// the processing loop.
	RecordSource RecordSource
	// TargetFPS is the processing loop cadence. Must be positive.
	TargetFPS float64
	// SyncStrategy is the pacer wait strategy. Zero value is SyncSleep.
	SyncStrategy SyncStrategy
	// FrameCount bounds the session to stop once this many frames have been
	// received. Zero means run until cancelled.
	FrameCount uint64
	// ExtractMeasurements seeds spot measurements and logs their values per
	// processed frame.
	ExtractMeasurements bool
	// PrintStats logs whole-image temperature statistics per processed frame.
	PrintStats bool
	// PrintCameraInfo logs the camera information embedded in the first
	// processed frame.
	PrintCameraInfo bool
	// PacerLogging enables the pacer's periodic frame rate log line.
	PacerLogging bool
	// Display, if non-nil, receives every rendered image.
	Display func(*Image)
}

// SessionStats are the final counters of a finished session. They are
// reported on a best-effort basis even when the session ends abnormally.
type SessionStats struct {
	// FramesReceived is the number of frame notifications delivered by the
	// device.
	FramesReceived uint64
	// FramesRendered is the number of completed processing cycles. Always
	// less than or equal to FramesReceived: bursts are coalesced into frame
	// skips, never queued.
	FramesRendered uint64
	// FramesRecorded is the recorder's final frame counter.
	FramesRecorded uint64
	// FramesLost is the recorder's final lost-frame counter.
	FramesLost uint64
	// TransientErrors is the number of transient device conditions absorbed
	// by the loop.
	TransientErrors uint64
	// Duration is the wall-clock session length.
	Duration time.Duration
}

// Session lifecycle states.
const (
	sessionIdle int32 = iota
	sessionStreaming
	sessionStopping
	sessionStopped
)

// Session owns one device stream from start to teardown.
//
// The device delivers "new frame" notifications on its own I/O goroutine;
// the notification callback only increments a counter. A separate processing
// loop, paced by a FramePacer, polls that counter and performs rendering,
// recording and measurement extraction. The loop never blocks the notifier:
// if frames arrive faster than cycles complete, the poll coalesces them and
// the extra frames are skipped.
//
// A Session runs at most once.
type Session struct {
	cfg   SessionConfig
	clk   clock.Clock
	pacer *FramePacer

	state atomic.Int32

	// framesReceived is written by the device I/O goroutine and read by the
	// processing loop; it is the only datum those two share.
	framesReceived atomic.Uint64
	framesRendered uint64
	transientErrs  atomic.Uint64
	fatal          atomic.Pointer[error]

	printedCameraInfo bool
}

// NewSession creates a session with fail-fast configuration validation.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Stream == nil {
		return nil, fmt.Errorf("thermal-capture: session requires a stream")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("thermal-capture: session requires a renderer")
	}
	if cfg.TargetFPS <= 0 {
		return nil, fmt.Errorf("thermal-capture: invalid target fps %.2f (must be > 0)", cfg.TargetFPS)
	}
	if cfg.Recorder != nil && cfg.RecordPath == "" {
		return nil, fmt.Errorf("thermal-capture: recording requires a path")
	}

	return &Session{
		cfg:   cfg,
		clk:   clock.New(),
		pacer: NewFramePacer(cfg.TargetFPS, cfg.PacerLogging, 0),
	}, nil
}

// Run acquires the stream, drives the processing loop until a termination
// condition is met, and tears everything down.
//
// Termination conditions, checked once per loop iteration: the context is
// done (cooperative cancellation; an in-flight cycle is never interrupted),
// the bounded frame count has been received, or a fatal device error
// arrived. Transient device errors are absorbed; the returned stats count
// them. Cancellation and the frame bound are normal completion, not errors.
func (s *Session) Run(ctx context.Context) (SessionStats, error) {
	if !s.state.CompareAndSwap(sessionIdle, sessionStreaming) {
		return SessionStats{}, fmt.Errorf("thermal-capture: session already run")
	}

	start := s.clk.Now()
	var stats SessionStats

	recording := s.cfg.Recorder != nil
	attached := false
	if recording {
		if err := s.cfg.Recorder.Start(s.cfg.RecordPath); err != nil {
			s.state.Store(sessionStopped)
			return stats, fmt.Errorf("thermal-capture: start recorder: %w", err)
		}
		if s.cfg.RecordSource == RecordFromStream {
			if err := s.cfg.Stream.AttachRecorder(s.cfg.Recorder); err != nil {
				_ = s.cfg.Recorder.Stop()
				s.state.Store(sessionStopped)
				return stats, fmt.Errorf("thermal-capture: attach recorder: %w", err)
			}
			attached = true
		}
		slog.Info("session: recording",
			"path", s.cfg.RecordPath,
			"source", s.cfg.RecordSource.String(),
		)
	}

	if err := s.cfg.Stream.Start(s.onFrame, s.onStreamError); err != nil {
		if recording {
			if attached {
				s.cfg.Stream.DetachRecorder()
			}
			_ = s.cfg.Recorder.Stop()
		}
		s.state.Store(sessionStopped)
		return stats, fmt.Errorf("thermal-capture: start stream: %w", err)
	}

	slog.Info("session: stream is up and running",
		"target_fps", s.cfg.TargetFPS,
		"bounded", s.cfg.FrameCount > 0,
	)

	var runErr error
	s.pacer.Reset()
	var lastSeen uint64
	for {
		if ctx.Err() != nil {
			slog.Info("session: cancelled")
			break
		}
		if p := s.fatal.Load(); p != nil {
			runErr = *p
			break
		}
		received := s.framesReceived.Load()
		if s.cfg.FrameCount > 0 && received >= s.cfg.FrameCount {
			slog.Info("session: frame bound reached", "frames", received)
			break
		}
		if received > lastSeen {
			// Coalesce: only the latest frame is processed, so a burst
			// causes frame skips rather than backlog growth.
			lastSeen = received
			s.processCycle()
		}
		s.pacer.FrameSync(s.cfg.SyncStrategy)
	}

	s.state.Store(sessionStopping)

	if recording {
		if attached {
			s.cfg.Stream.DetachRecorder()
		}
		slog.Info("session: draining recorder")
		if err := s.cfg.Recorder.Stop(); err != nil {
			slog.Error("session: recorder stop failed", "error", err)
			if runErr == nil {
				runErr = fmt.Errorf("thermal-capture: stop recorder: %w", err)
			}
		}
		stats.FramesRecorded = s.cfg.Recorder.FrameCount()
		stats.FramesLost = s.cfg.Recorder.LostFrameCount()
		slog.Info("session: recording finished",
			"path", s.cfg.RecordPath,
			"recorded", stats.FramesRecorded,
			"lost", stats.FramesLost,
		)
	}

	s.cfg.Stream.Stop()
	s.state.Store(sessionStopped)

	stats.FramesReceived = s.framesReceived.Load()
	stats.FramesRendered = s.framesRendered
	stats.TransientErrors = s.transientErrs.Load()
	stats.Duration = s.clk.Now().Sub(start)

	slog.Info("session: stopped",
		"frames_received", stats.FramesReceived,
		"frames_rendered", stats.FramesRendered,
		"transient_errors", stats.TransientErrors,
		"duration", stats.Duration,
	)
	return stats, runErr
}

// onFrame runs on the device I/O goroutine for every received frame. It must
// stay this cheap: no rendering, no I/O, no locks.
func (s *Session) onFrame() {
	s.framesReceived.Add(1)
}

// onStreamError runs on the device I/O goroutine. Classification, not the
// raw condition, decides what happens: transient conditions are counted and
// absorbed, ignorable ones logged, and the first fatal error stops the loop
// on its next iteration.
func (s *Session) onStreamError(err error) {
	switch Classify(err) {
	case ClassTransient:
		s.transientErrs.Add(1)
		slog.Debug("session: transient device condition", "error", err)
	case ClassIgnorable:
		slog.Info("session: ignorable device condition", "error", err)
	default:
		if s.fatal.CompareAndSwap(nil, &err) {
			slog.Error("session: fatal device error", "error", err)
		} else {
			slog.Debug("session: fatal device error (already stopping)", "error", err)
		}
	}
}

// processCycle performs one processing pass over the latest frame: render,
// record, extract side data, display.
func (s *Session) processCycle() {
	if err := s.cfg.Renderer.Update(); err != nil {
		// Render failures skip the cycle; the next frame gets a fresh
		// attempt. The loop's termination conditions are unaffected.
		slog.Warn("session: renderer update failed",
			"error", err,
			"class", Classify(err).String(),
		)
		return
	}

	img, ok := s.cfg.Renderer.Image()
	if !ok {
		// First-frame warm-up: no valid frame data yet.
		return
	}

	if ta, ok := s.cfg.Renderer.(ThermalAccessor); ok {
		ta.WithThermalImage(s.processThermal)
	}

	if s.cfg.Display != nil {
		s.cfg.Display(img)
	}
	s.framesRendered++
}

// processThermal handles the radiometric side work of one cycle. The image
// is only valid for the duration of the call.
func (s *Session) processThermal(img ThermalImage) {
	if img == nil {
		return
	}

	if s.cfg.Recorder != nil && s.cfg.RecordSource == RecordFromColorizer {
		if err := s.cfg.Recorder.AddImage(img); err != nil {
			slog.Warn("session: recorder rejected image", "error", err)
		}
	}

	if s.cfg.PrintCameraInfo && !s.printedCameraInfo {
		if info, ok := img.CameraInformation(); ok {
			slog.Info("session: camera information",
				"model", info.ModelName,
				"serial", info.SerialNumber,
				"lens", info.Lens,
				"program_version", info.ProgramVersion,
				"range_min_c", info.RangeMin.Celsius(),
				"range_max_c", info.RangeMax.Celsius(),
			)
			s.printedCameraInfo = true
		}
	}

	if s.cfg.PrintStats {
		if st, ok := img.Statistics(); ok {
			slog.Info("session: image statistics",
				"avg_c", st.Average.Celsius(),
				"min_c", st.Min.Celsius(),
				"max_c", st.Max.Celsius(),
				"hot_spot", fmt.Sprintf("%d,%d", st.HotSpot.X, st.HotSpot.Y),
				"cold_spot", fmt.Sprintf("%d,%d", st.ColdSpot.X, st.ColdSpot.Y),
			)
		} else {
			slog.Info("session: image statistics unavailable")
		}
	}

	if s.cfg.ExtractMeasurements {
		s.extractMeasurements(img)
	}
}

// extractMeasurements seeds three spots across the image on first use and
// logs the current spot values.
func (s *Session) extractMeasurements(img ThermalImage) {
	m, ok := img.Measurements()
	if !ok {
		slog.Info("session: image measurements unavailable")
		return
	}

	spots := m.Spots()
	if len(spots) < 3 {
		w, h := img.Width(), img.Height()
		for _, pt := range [][2]int{{w / 3, h / 3}, {w / 2, h / 2}, {w * 2 / 3, h * 2 / 3}} {
			if _, err := m.AddSpot(pt[0], pt[1]); err != nil {
				slog.Warn("session: add spot failed", "x", pt[0], "y", pt[1], "error", err)
			}
		}
		spots = m.Spots()
	}

	for _, sp := range spots {
		slog.Info("session: spot",
			"id", sp.ID,
			"x", sp.X,
			"y", sp.Y,
			"value_c", sp.Value.Celsius(),
		)
	}
}
