package emulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	thermalcapture "github.com/e7canasta/thermal-capture"
)

// collectingCallbacks gathers discovery events for inspection.
type collectingCallbacks struct {
	mu       sync.Mutex
	found    []thermalcapture.DiscoveredCamera
	finished []thermalcapture.Transport
}

func (c *collectingCallbacks) callbacks() thermalcapture.DiscoveryCallbacks {
	return thermalcapture.DiscoveryCallbacks{
		OnFound: func(cam thermalcapture.DiscoveredCamera) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.found = append(c.found, cam)
		},
		OnError: func(thermalcapture.Transport, error) {},
		OnFinished: func(tr thermalcapture.Transport) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.finished = append(c.finished, tr)
		},
	}
}

func (c *collectingCallbacks) snapshot() (found int, finished int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.found), len(c.finished)
}

func TestScanFindsRegisteredCameras(t *testing.T) {
	cam := NewCamera(testConfig())
	scanner := NewScanner(cam)

	var col collectingCallbacks
	handle, err := scanner.Scan(context.Background(),
		[]thermalcapture.Transport{thermalcapture.TransportEmulator}, col.callbacks())
	require.NoError(t, err)
	defer handle.Stop()

	require.Eventually(t, func() bool {
		found, finished := col.snapshot()
		return found == 1 && finished == 1
	}, time.Second, time.Millisecond)

	col.mu.Lock()
	defer col.mu.Unlock()
	assert.Equal(t, cam.cfg.DeviceID, col.found[0].Identity.DeviceID)
	assert.Equal(t, cam.cfg.DisplayName, col.found[0].DisplayName)
	assert.NotEmpty(t, col.found[0].TraceID)
}

func TestScanEmptyTransportFinishesImmediately(t *testing.T) {
	scanner := NewScanner()

	var col collectingCallbacks
	handle, err := scanner.Scan(context.Background(),
		[]thermalcapture.Transport{thermalcapture.TransportUSB}, col.callbacks())
	require.NoError(t, err)
	defer handle.Stop()

	require.Eventually(t, func() bool {
		found, finished := col.snapshot()
		return found == 0 && finished == 1
	}, time.Second, time.Millisecond)
}

func TestScanOnlyMatchingTransport(t *testing.T) {
	usbCfg := testConfig()
	usbCfg.DeviceID = "usb-0"
	usbCfg.Transport = thermalcapture.TransportUSB

	scanner := NewScanner(NewCamera(testConfig()), NewCamera(usbCfg))

	var col collectingCallbacks
	handle, err := scanner.Scan(context.Background(),
		[]thermalcapture.Transport{thermalcapture.TransportUSB}, col.callbacks())
	require.NoError(t, err)
	defer handle.Stop()

	require.Eventually(t, func() bool {
		_, finished := col.snapshot()
		return finished == 1
	}, time.Second, time.Millisecond)

	col.mu.Lock()
	defer col.mu.Unlock()
	require.Len(t, col.found, 1)
	assert.Equal(t, "usb-0", col.found[0].Identity.DeviceID)
}

func TestScanStopSuppressesDelayedFinds(t *testing.T) {
	cfg := testConfig()
	cfg.DiscoveryDelay = time.Hour
	scanner := NewScanner(NewCamera(cfg))

	var col collectingCallbacks
	handle, err := scanner.Scan(context.Background(),
		[]thermalcapture.Transport{thermalcapture.TransportEmulator}, col.callbacks())
	require.NoError(t, err)

	handle.Stop()
	time.Sleep(20 * time.Millisecond)

	found, finished := col.snapshot()
	assert.Equal(t, 0, found)
	assert.Equal(t, 0, finished, "a stopped scan reports nothing further")
}

func TestScannerCameraLookup(t *testing.T) {
	cam := NewCamera(testConfig())
	scanner := NewScanner()
	scanner.Register(cam)

	assert.Equal(t, cam, scanner.Camera(cam.Identity()))
	assert.Nil(t, scanner.Camera(thermalcapture.Identity{DeviceID: "nope"}))
}
