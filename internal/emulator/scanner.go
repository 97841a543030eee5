package emulator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	thermalcapture "github.com/e7canasta/thermal-capture"
)

// Scanner discovers emulated cameras. It implements thermalcapture.Scanner.
//
// Each requested transport is scanned on its own goroutine, mirroring real
// discovery backends: cameras registered on the transport are reported as
// found after their configured discovery delay, then the transport reports
// finished. Transports with no registered cameras finish immediately.
type Scanner struct {
	clk     clock.Clock
	mu      sync.Mutex
	cameras []*Camera
}

// NewScanner creates a scanner over the given cameras.
func NewScanner(cameras ...*Camera) *Scanner {
	clk := clock.New()
	if len(cameras) > 0 && cameras[0].cfg.Clock != nil {
		clk = cameras[0].cfg.Clock
	}
	return &Scanner{clk: clk, cameras: cameras}
}

// Register adds a camera to the scanner's view of the world.
func (s *Scanner) Register(cam *Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = append(s.cameras, cam)
}

// Camera returns the camera behind a discovered identity, or nil when the
// identity does not belong to this scanner.
func (s *Scanner) Camera(identity thermalcapture.Identity) *Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cam := range s.cameras {
		if cam.cfg.DeviceID == identity.DeviceID {
			return cam
		}
	}
	return nil
}

type scanHandle struct {
	cancel context.CancelFunc
}

func (h *scanHandle) Stop() { h.cancel() }

// Scan implements thermalcapture.Scanner.
func (s *Scanner) Scan(ctx context.Context, transports []thermalcapture.Transport, callbacks thermalcapture.DiscoveryCallbacks) (thermalcapture.ScanHandle, error) {
	scanCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	cameras := make([]*Camera, len(s.cameras))
	copy(cameras, s.cameras)
	s.mu.Unlock()

	for _, transport := range transports {
		go s.scanTransport(scanCtx, transport, cameras, callbacks)
	}
	return &scanHandle{cancel: cancel}, nil
}

func (s *Scanner) scanTransport(ctx context.Context, transport thermalcapture.Transport, cameras []*Camera, callbacks thermalcapture.DiscoveryCallbacks) {
	slog.Debug("emulator: scanning", "transport", transport.String())

	for _, cam := range cameras {
		if cam.cfg.Transport != transport {
			continue
		}
		if delay := cam.cfg.DiscoveryDelay; delay > 0 {
			timer := s.clk.Timer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return
		}
		callbacks.OnFound(thermalcapture.DiscoveredCamera{
			Identity:    cam.Identity(),
			DisplayName: cam.cfg.DisplayName,
			TraceID:     uuid.NewString(),
		})
	}

	if ctx.Err() == nil && callbacks.OnFinished != nil {
		callbacks.OnFinished(transport)
	}
}
