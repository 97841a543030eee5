package thermalcapture

import "context"

// The interfaces in this file are the narrow seams to the device layer. The
// orchestration core never speaks a camera protocol, colorizes pixels, or
// touches recorded file formats itself; it drives collaborators that do.
// internal/emulator provides an in-process implementation of all of them.

// DiscoveryCallbacks is the set of events a scanner delivers while scanning.
//
// Callbacks are invoked from scanner-owned goroutines, possibly one per
// transport, in any order and any number of times. OnFound and OnError are
// required; OnLost and OnFinished may be nil.
type DiscoveryCallbacks struct {
	// OnFound is called for each camera found.
	OnFound func(camera DiscoveredCamera)
	// OnError is called when scanning a transport failed.
	OnError func(transport Transport, err error)
	// OnLost is called when a previously found camera disappeared.
	OnLost func(identity Identity)
	// OnFinished is called when scanning completed on one transport.
	OnFinished func(transport Transport)
}

// ScanHandle represents one active scan.
type ScanHandle interface {
	// Stop ends scanning on all transports. It does not trigger OnFinished
	// events and is safe to call after the scan already finished.
	Stop()
}

// Scanner searches for cameras on one or more transports.
type Scanner interface {
	// Scan starts scanning the given transports and returns immediately.
	// Events are delivered on scanner-owned goroutines until the handle is
	// stopped or the context is done.
	Scan(ctx context.Context, transports []Transport, callbacks DiscoveryCallbacks) (ScanHandle, error)
}

// AuthStatus is the outcome of an authentication handshake.
type AuthStatus int

const (
	// AuthApproved means the camera accepted this client.
	AuthApproved AuthStatus = iota
	// AuthPending means the certificate awaits approval in the camera UI.
	AuthPending
	// AuthDenied means the camera rejected this client.
	AuthDenied
)

// String returns a human-readable string representation of the status.
func (s AuthStatus) String() string {
	switch s {
	case AuthApproved:
		return "approved"
	case AuthPending:
		return "pending"
	case AuthDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Camera is the device connector.
type Camera interface {
	// Authenticate registers this client with the camera. Cameras without
	// an authentication step return AuthApproved.
	Authenticate(ctx context.Context, clientName string) (AuthStatus, error)
	// Connect establishes the control connection described by identity.
	// onDisconnect, if non-nil, is invoked once if the connection is lost
	// unexpectedly; it runs on a camera-owned goroutine.
	Connect(ctx context.Context, identity Identity, onDisconnect func(error)) error
	// Disconnect tears the connection down. Safe to call when not connected.
	Disconnect()
	// Streams lists the camera's available streams. Only valid while
	// connected.
	Streams() []Stream
}

// Stream is one live image stream of a connected camera.
type Stream interface {
	// IsThermal reports whether the stream carries radiometric data, as
	// opposed to a camera-side colorized stream.
	IsThermal() bool
	// Start begins streaming. onFrame is invoked once per received frame on
	// a device-owned goroutine and must be cheap: it may do no rendering or
	// I/O, since blocking it risks dropped frames. onError receives device
	// errors on the same goroutine.
	Start(onFrame func(), onError func(error)) error
	// Stop ends streaming. Safe to call when not streaming.
	Stop()
	// AttachRecorder records every received frame directly from the stream.
	// Not all streams support attachment.
	AttachRecorder(r Recorder) error
	// DetachRecorder removes an attached recorder. Safe to call when no
	// recorder is attached.
	DetachRecorder()
}

// Renderer produces display images from the most recently received frame.
type Renderer interface {
	// Update pulls the latest frame into the renderer.
	Update() error
	// Image returns the current rendered image. ok is false until the first
	// frame has been rendered (warm-up).
	Image() (img *Image, ok bool)
}

// ThermalImage is read access to one radiometric frame.
type ThermalImage interface {
	Width() int
	Height() int
	// Signal returns the mono16 signal values, row-major, Width*Height long.
	Signal() []uint16
	// Statistics returns whole-image temperature statistics, if available.
	Statistics() (ImageStatistics, bool)
	// Measurements returns the measurement set of this image, if available.
	Measurements() (Measurements, bool)
	// CameraInformation returns static camera information, if available.
	CameraInformation() (CameraInformation, bool)
}

// Measurements is the mutable measurement set of a thermal image.
type Measurements interface {
	// Spots lists the spot measurements with current values.
	Spots() []Spot
	// AddSpot places a new spot measurement at the given pixel.
	AddSpot(x, y int) (Spot, error)
}

// ThermalAccessor is implemented by renderers backed by a thermal stream.
// Renderers for camera-side colorized streams do not implement it.
type ThermalAccessor interface {
	// WithThermalImage runs fn with the current thermal image, or with nil
	// if no frame has been received yet. The image is only valid inside fn.
	WithThermalImage(fn func(ThermalImage))
}

// Recorder persists a sequence of thermal images.
type Recorder interface {
	// Start opens the destination and begins accepting images.
	Start(path string) error
	// Stop drains any buffered images and finalizes the destination.
	Stop() error
	// AddImage appends one image. Implementations may buffer; images that
	// cannot be buffered are dropped and counted as lost.
	AddImage(img ThermalImage) error
	// FrameCount is the number of images recorded so far.
	FrameCount() uint64
	// LostFrameCount is the number of images dropped.
	LostFrameCount() uint64
}
