package thermalcapture_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	thermalcapture "github.com/e7canasta/thermal-capture"
	"github.com/e7canasta/thermal-capture/internal/emulator"
	"github.com/e7canasta/thermal-capture/internal/seqfile"
)

// TestDiscoverConnectStream exercises the whole flow against the emulated
// camera: discovery race, connect, stream selection, and a bounded paced
// session.
func TestDiscoverConnectStream(t *testing.T) {
	cfg := emulator.DefaultConfig()
	cfg.Width, cfg.Height = 32, 24
	cfg.FPS = 100
	scanner := emulator.NewScanner(emulator.NewCamera(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	identity, err := thermalcapture.NewDiscoverer(scanner).DiscoverOne(ctx,
		thermalcapture.TransportEmulator,
		thermalcapture.TransportUSB,
		thermalcapture.TransportNetwork)
	require.NoError(t, err)
	assert.Equal(t, "emu-0", identity.DeviceID)

	camera := scanner.Camera(identity)
	require.NotNil(t, camera)

	require.NoError(t, thermalcapture.ConnectCamera(ctx, camera, identity, "integration-test", nil))
	defer camera.Disconnect()

	stream, err := thermalcapture.FindStream(camera, true)
	require.NoError(t, err)

	renderer, err := emulator.NewThermalRenderer(stream)
	require.NoError(t, err)

	session, err := thermalcapture.NewSession(thermalcapture.SessionConfig{
		Stream:              stream,
		Renderer:            renderer,
		TargetFPS:           100,
		FrameCount:          20,
		ExtractMeasurements: true,
		PrintStats:          true,
		PrintCameraInfo:     true,
	})
	require.NoError(t, err)

	stats, err := session.Run(ctx)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, stats.FramesReceived, uint64(20))
	assert.Greater(t, stats.FramesRendered, uint64(0))
	assert.LessOrEqual(t, stats.FramesRendered, stats.FramesReceived)
}

// TestRecordThenPlayBack records a short session to a sequence file and
// replays it.
func TestRecordThenPlayBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session"+seqfile.FileExtension)

	cfg := emulator.DefaultConfig()
	cfg.Width, cfg.Height = 32, 24
	cfg.FPS = 100
	camera := emulator.NewCamera(cfg)
	identity := camera.Identity()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, thermalcapture.ConnectCamera(ctx, camera, identity, "integration-test", nil))
	defer camera.Disconnect()

	stream, err := thermalcapture.FindStream(camera, true)
	require.NoError(t, err)

	renderer, err := emulator.NewThermalRenderer(stream)
	require.NoError(t, err)

	session, err := thermalcapture.NewSession(thermalcapture.SessionConfig{
		Stream:     stream,
		Renderer:   renderer,
		Recorder:   seqfile.NewRecorder(seqfile.Metadata{DeviceID: identity.DeviceID, FrameRate: 100}),
		RecordPath: path,
		TargetFPS:  100,
		FrameCount: 15,
	})
	require.NoError(t, err)

	stats, err := session.Run(ctx)
	require.NoError(t, err)
	require.Greater(t, stats.FramesRecorded, uint64(0))

	player, err := seqfile.Open(path)
	require.NoError(t, err)
	defer player.Close()

	assert.Equal(t, stats.FramesRecorded, player.FrameCount())
	assert.Equal(t, 100.0, player.FrameRate())

	var played uint64
	for player.Next() {
		frame := player.Current()
		assert.Equal(t, 32, frame.Width())
		assert.Equal(t, 24, frame.Height())
		st, ok := frame.Statistics()
		require.True(t, ok)
		assert.Less(t, float64(st.Min), float64(st.Max))
		played++
	}
	assert.Equal(t, stats.FramesRecorded, played)
}
