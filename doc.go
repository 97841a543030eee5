// Package thermalcapture is the client-side orchestration shell for thermal
// camera streaming: discovery, session control, pacing and error policy.
//
// The device layer itself (protocol, colorization, file formats) sits behind
// the narrow collaborator interfaces in this package; internal/emulator
// implements them with a synthetic in-process camera.
//
// # Quick Start
//
// Discover a camera, connect, and stream a bounded session:
//
//	scanner := emulator.NewScanner(emulator.NewCamera(emulator.DefaultConfig()))
//
//	identity, err := thermalcapture.NewDiscoverer(scanner).
//		DiscoverOne(ctx, thermalcapture.TransportEmulator)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	camera := scanner.Camera(identity)
//	if err := thermalcapture.ConnectCamera(ctx, camera, identity, "my-app", nil); err != nil {
//	    log.Fatal(err)
//	}
//	defer camera.Disconnect()
//
//	stream, err := thermalcapture.FindStream(camera, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	renderer, err := emulator.NewThermalRenderer(stream)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := thermalcapture.NewSession(thermalcapture.SessionConfig{
//	    Stream:     stream,
//	    Renderer:   renderer,
//	    TargetFPS:  9,
//	    FrameCount: 100,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := session.Run(ctx)
//
// # Design
//
//   - Discovery races every requested transport concurrently and commits to
//     the first camera found; the race is decided by a single-assignment
//     future (internal/future), so late finds and late errors are ignored
//     safely. A scan that finishes everywhere with nothing found resolves to
//     ErrNoCameraFound instead of blocking.
//   - The streaming session decouples the device's "new frame" notification
//     (an atomic counter increment on the device goroutine) from the paced
//     processing loop. Bursts are coalesced into frame skips; the notifier
//     is never blocked.
//   - Device errors are classified before anything else happens. Transient
//     conditions (a NUC in progress) are absorbed by the loop; fatal ones
//     stop the session and surface to the caller; the library never exits
//     the process.
//   - FramePacer holds any loop at a target rate with sleep, spin or manual
//     synchronization, and doubles as the playback clock for recorded
//     sequences (internal/seqfile).
package thermalcapture
