package thermalcapture

import (
	"fmt"
	"image"
	"time"
)

// Transport identifies a communication interface a camera can be reached on.
type Transport int

const (
	// TransportEmulator is the in-process synthetic camera.
	TransportEmulator Transport = iota
	// TransportUSB is a locally attached UVC camera.
	TransportUSB
	// TransportNetwork is a camera reachable over IP.
	TransportNetwork
)

// String returns a human-readable string representation of the transport.
func (t Transport) String() string {
	switch t {
	case TransportEmulator:
		return "emulator"
	case TransportUSB:
		return "usb"
	case TransportNetwork:
		return "network"
	default:
		return fmt.Sprintf("transport(%d)", int(t))
	}
}

// Identity holds the connection settings for a single camera.
//
// Identity is a plain value: assigning it copies it, which is what lets a
// discovery callback hand an identity across the blocking boundary without
// retaining anything owned by the scanner.
type Identity struct {
	// DeviceID uniquely identifies the camera on its transport.
	DeviceID string
	// Address is the transport-specific address (e.g. an IP address).
	// Empty for transports that address by DeviceID alone.
	Address string
	// Transport the camera was reached on.
	Transport Transport
}

// IdentityFromAddress builds a network identity directly from a known
// address, skipping discovery entirely.
func IdentityFromAddress(address string) Identity {
	return Identity{
		DeviceID:  address,
		Address:   address,
		Transport: TransportNetwork,
	}
}

// String returns the identity in "transport/device[@address]" form.
func (id Identity) String() string {
	if id.Address != "" && id.Address != id.DeviceID {
		return fmt.Sprintf("%s/%s@%s", id.Transport, id.DeviceID, id.Address)
	}
	return fmt.Sprintf("%s/%s", id.Transport, id.DeviceID)
}

// DiscoveredCamera is the plain information a scanner reports for one find.
type DiscoveredCamera struct {
	// Identity to use when connecting.
	Identity Identity
	// DisplayName is the human readable camera name.
	DisplayName string
	// TraceID is a unique identifier for correlating discovery logs.
	TraceID string
}

// Image is a rendered (colorized) output frame.
type Image struct {
	// Seq is the stream sequence number of the source frame.
	Seq uint64
	// Timestamp is when the source frame was received.
	Timestamp time.Time
	// Width in pixels.
	Width int
	// Height in pixels.
	Height int
	// Pixels contains interleaved RGB bytes, Width*Height*3 long.
	Pixels []byte
}

// ThermalValue is a temperature sample in kelvin.
type ThermalValue float64

// Celsius returns the value converted to degrees Celsius.
func (v ThermalValue) Celsius() float64 { return float64(v) - 273.15 }

// ImageStatistics are whole-image temperature statistics.
type ImageStatistics struct {
	Min     ThermalValue
	Max     ThermalValue
	Average ThermalValue
	// HotSpot is the pixel position of the maximum temperature.
	HotSpot image.Point
	// ColdSpot is the pixel position of the minimum temperature.
	ColdSpot image.Point
}

// Spot is a single-point measurement placed on a thermal image.
type Spot struct {
	ID    int
	X, Y  int
	Value ThermalValue
}

// CameraInformation is static information embedded in a thermal image.
type CameraInformation struct {
	ModelName      string
	SerialNumber   string
	Lens           string
	ProgramVersion string
	RangeMin       ThermalValue
	RangeMax       ThermalValue
}

// RecordSource selects where an attached recorder takes its frames from.
type RecordSource int

const (
	// RecordFromStream attaches the recorder directly to the device stream;
	// every received frame is recorded, including frames the processing loop
	// skips.
	RecordFromStream RecordSource = iota
	// RecordFromColorizer feeds the recorder explicitly from the processing
	// loop; only frames that complete a processing cycle are recorded.
	RecordFromColorizer
)

// String returns a human-readable string representation of the record source.
func (r RecordSource) String() string {
	switch r {
	case RecordFromStream:
		return "stream"
	case RecordFromColorizer:
		return "colorizer"
	default:
		return fmt.Sprintf("source(%d)", int(r))
	}
}
