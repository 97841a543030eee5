// Package emulator is an in-process synthetic thermal camera implementing
// the thermalcapture collaborator interfaces: scanner, connector, streams,
// renderer, measurements. It generates a deterministic moving temperature
// field, which makes it the device of choice for tests and for running the
// sample binaries without hardware.
package emulator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	thermalcapture "github.com/e7canasta/thermal-capture"
)

// Config describes one emulated camera.
type Config struct {
	// DeviceID uniquely identifies the camera. Required.
	DeviceID string
	// DisplayName is the human readable camera name.
	DisplayName string
	// Transport the camera is discoverable on.
	Transport thermalcapture.Transport
	// Width and Height of generated frames.
	Width, Height int
	// FPS is the frame generation rate.
	FPS float64
	// DiscoveryDelay is how long the scanner takes to find this camera.
	DiscoveryDelay time.Duration
	// NUCInterval, when positive, replaces every NUCInterval-th frame with a
	// NUC-in-progress condition, the way real cameras pause during a
	// non-uniformity correction.
	NUCInterval uint64
	// RejectLogin makes Connect fail with an invalid-login condition.
	RejectLogin bool
	// AuthStatus is the authentication outcome. Zero value is approved.
	AuthStatus thermalcapture.AuthStatus
	// Clock drives frame generation and discovery delays. Nil means the
	// real clock.
	Clock clock.Clock
}

// DefaultConfig returns a 320x240, 9 fps emulated camera.
func DefaultConfig() Config {
	return Config{
		DeviceID:    "emu-0",
		DisplayName: "Emulated Camera",
		Transport:   thermalcapture.TransportEmulator,
		Width:       320,
		Height:      240,
		FPS:         9,
	}
}

// Camera is an emulated camera. It implements thermalcapture.Camera.
type Camera struct {
	cfg Config
	clk clock.Clock

	mu           sync.Mutex
	connected    bool
	onDisconnect func(error)
	streams      []thermalcapture.Stream
}

// NewCamera creates an emulated camera. Invalid dimensions and rates fall
// back to the defaults.
func NewCamera(cfg Config) *Camera {
	def := DefaultConfig()
	if cfg.DeviceID == "" {
		cfg.DeviceID = def.DeviceID
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = def.DisplayName
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Camera{cfg: cfg, clk: clk}
}

// Identity returns the identity the scanner reports for this camera.
func (c *Camera) Identity() thermalcapture.Identity {
	return thermalcapture.Identity{
		DeviceID:  c.cfg.DeviceID,
		Transport: c.cfg.Transport,
	}
}

// Authenticate implements thermalcapture.Camera.
func (c *Camera) Authenticate(_ context.Context, clientName string) (thermalcapture.AuthStatus, error) {
	slog.Debug("emulator: authenticate", "device_id", c.cfg.DeviceID, "client", clientName)
	return c.cfg.AuthStatus, nil
}

// Connect implements thermalcapture.Camera.
func (c *Camera) Connect(_ context.Context, identity thermalcapture.Identity, onDisconnect func(error)) error {
	if c.cfg.RejectLogin {
		return thermalcapture.NewDeviceError(thermalcapture.CondInvalidLogin, "camera rejected credentials")
	}
	if identity.DeviceID != c.cfg.DeviceID {
		return thermalcapture.NewDeviceError(thermalcapture.CondInvalidIdentity,
			fmt.Sprintf("no such device %q", identity.DeviceID))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	c.connected = true
	c.onDisconnect = onDisconnect
	c.streams = []thermalcapture.Stream{
		newStream(c, true),
		newStream(c, false),
	}
	slog.Info("emulator: connected", "device_id", c.cfg.DeviceID)
	return nil
}

// Disconnect implements thermalcapture.Camera.
func (c *Camera) Disconnect() {
	c.mu.Lock()
	streams := c.streams
	c.connected = false
	c.streams = nil
	c.onDisconnect = nil
	c.mu.Unlock()

	for _, s := range streams {
		s.Stop()
	}
	slog.Info("emulator: disconnected", "device_id", c.cfg.DeviceID)
}

// DropConnection simulates an unexpected connection loss, invoking the
// disconnect callback the way a real camera's transport would.
func (c *Camera) DropConnection(err error) {
	c.mu.Lock()
	cb := c.onDisconnect
	streams := c.streams
	c.connected = false
	c.streams = nil
	c.onDisconnect = nil
	c.mu.Unlock()

	for _, s := range streams {
		s.Stop()
	}
	if cb != nil {
		go cb(err)
	}
}

// Streams implements thermalcapture.Camera.
func (c *Camera) Streams() []thermalcapture.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams
}

func (c *Camera) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// stream is one emulated image stream. The thermal stream carries the
// radiometric field; the colorized stream is the same field pre-rendered
// camera-side.
type stream struct {
	cam     *Camera
	thermal bool

	seq atomic.Uint64

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	recorder thermalcapture.Recorder
}

func newStream(cam *Camera, thermal bool) *stream {
	return &stream{cam: cam, thermal: thermal}
}

// IsThermal implements thermalcapture.Stream.
func (s *stream) IsThermal() bool { return s.thermal }

// CurrentSeq returns the sequence number of the latest generated frame.
// Zero means no frame has been generated yet.
func (s *stream) CurrentSeq() uint64 { return s.seq.Load() }

// Start implements thermalcapture.Stream. Frames are generated on a
// stream-owned goroutine at the configured rate.
func (s *stream) Start(onFrame func(), onError func(error)) error {
	if !s.cam.isConnected() {
		return thermalcapture.NewDeviceError(thermalcapture.CondNotConnected, "camera is not connected")
	}
	if onFrame == nil || onError == nil {
		return fmt.Errorf("emulator: stream callbacks are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return thermalcapture.NewDeviceError(thermalcapture.CondAlreadyStreaming, "stream already active")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	interval := time.Duration(float64(time.Second) / s.cam.cfg.FPS)
	ticker := s.cam.clk.Ticker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(onFrame, onError)
			}
		}
	}()

	slog.Info("emulator: stream started",
		"device_id", s.cam.cfg.DeviceID,
		"thermal", s.thermal,
		"fps", s.cam.cfg.FPS,
	)
	return nil
}

// tick generates one frame. Runs on the stream goroutine, the emulated
// equivalent of the device I/O context.
func (s *stream) tick(onFrame func(), onError func(error)) {
	next := s.seq.Load() + 1

	if n := s.cam.cfg.NUCInterval; n > 0 && next%n == 0 {
		// The camera pauses frames during a NUC; report the condition
		// instead of a frame.
		onError(thermalcapture.NewDeviceError(thermalcapture.CondNUCInProgress, "non-uniformity correction"))
		return
	}

	s.seq.Store(next)

	s.mu.Lock()
	rec := s.recorder
	s.mu.Unlock()
	if rec != nil {
		if err := rec.AddImage(s.cam.synthesize(next, nil)); err != nil {
			slog.Warn("emulator: attached recorder rejected frame", "seq", next, "error", err)
		}
	}

	onFrame()
}

// Stop implements thermalcapture.Stream.
func (s *stream) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	slog.Info("emulator: stream stopped", "device_id", s.cam.cfg.DeviceID, "thermal", s.thermal)
}

// AttachRecorder implements thermalcapture.Stream. Only the thermal stream
// supports attachment, matching cameras whose colorized streams cannot be
// recorded.
func (s *stream) AttachRecorder(r thermalcapture.Recorder) error {
	if !s.thermal {
		return fmt.Errorf("emulator: colorized stream does not support recording")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
	return nil
}

// DetachRecorder implements thermalcapture.Stream.
func (s *stream) DetachRecorder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = nil
}
