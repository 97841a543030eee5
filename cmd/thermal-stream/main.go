package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	thermalcapture "github.com/e7canasta/thermal-capture"
	"github.com/e7canasta/thermal-capture/internal/emulator"
	"github.com/e7canasta/thermal-capture/internal/seqfile"
)

// Version information
const version = "v0.1.0"

func main() {
	transports := flag.String("transports", "emulator", "Comma-separated transports to scan: emulator, usb, network")
	address := flag.String("address", "", "Connect directly to this address, skipping discovery")
	clientName := flag.String("client-name", "thermal-stream", "Client name presented during authentication")
	fps := flag.Float64("fps", 9.0, "Target processing frame rate")
	sync := flag.String("sync", "sleep", "Pacing strategy: sleep, spin, manual")
	frameCount := flag.Uint64("frame-count", 0, "Stop after this many received frames (0 = unlimited)")
	colorized := flag.Bool("colorized", false, "Render the colorized stream instead of the thermal one")
	record := flag.String("record", "", "Record the sequence to this file")
	recordFromColorizer := flag.Bool("record-from-colorizer", false, "Feed the recorder from rendered images instead of the raw stream")
	outputDir := flag.String("output", "", "Directory to save rendered frames as PNG (optional)")
	stats := flag.Bool("stats", false, "Log image statistics every processed frame")
	measurements := flag.Bool("measurements", false, "Extract spot measurements every processed frame")
	camInfo := flag.Bool("cam-info", false, "Log camera information once")
	pacerLog := flag.Bool("pacer-log", false, "Log pacer frame rate periodically")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("thermal-stream %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	wanted, err := parseTransports(*transports)
	if err != nil {
		log.Fatalf("Invalid transports: %v", err)
	}

	strategy, err := parseStrategy(*sync)
	if err != nil {
		log.Fatalf("Invalid sync strategy: %v", err)
	}

	if *recordFromColorizer && *record == "" {
		log.Fatalf("--record-from-colorizer requires --record")
	}

	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	fmt.Printf("\n")
	fmt.Printf("thermal-stream %s\n", version)
	fmt.Printf("  Transports:    %s\n", *transports)
	if *address != "" {
		fmt.Printf("  Address:       %s\n", *address)
	}
	fmt.Printf("  Target FPS:    %.2f\n", *fps)
	fmt.Printf("  Strategy:      %s\n", *sync)
	if *frameCount > 0 {
		fmt.Printf("  Frame Count:   %d\n", *frameCount)
	} else {
		fmt.Printf("  Frame Count:   unlimited\n")
	}
	if *record != "" {
		fmt.Printf("  Recording:     %s\n", *record)
	}
	fmt.Printf("\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The emulated camera stands in for hardware on every transport.
	emuCfg := emulator.DefaultConfig()
	emuCfg.FPS = *fps
	cam := emulator.NewCamera(emuCfg)
	scanner := emulator.NewScanner(cam)

	var identity thermalcapture.Identity
	if *address != "" {
		identity = thermalcapture.IdentityFromAddress(*address)
	} else {
		discoverer := thermalcapture.NewDiscoverer(scanner)

		discoveryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		identity, err = discoverer.DiscoverOne(discoveryCtx, wanted...)
		cancel()
		if err != nil {
			if errors.Is(err, thermalcapture.ErrNoCameraFound) {
				log.Fatalf("No camera found on %s", *transports)
			}
			log.Fatalf("Discovery failed: %v", err)
		}
	}

	slog.Info("connecting", "identity", identity.String())

	camera := scanner.Camera(identity)
	if camera == nil {
		log.Fatalf("No camera registered for identity %s", identity)
	}

	onDisconnect := func(err error) {
		slog.Error("camera disconnected", "error", err)
		stop()
	}
	if err := thermalcapture.ConnectCamera(ctx, camera, identity, *clientName, onDisconnect); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer camera.Disconnect()

	stream, err := thermalcapture.FindStream(camera, !*colorized)
	if err != nil {
		log.Fatalf("Stream selection failed: %v", err)
	}

	var renderer thermalcapture.Renderer
	if *colorized {
		renderer, err = emulator.NewColorizedRenderer(stream)
	} else {
		renderer, err = emulator.NewThermalRenderer(stream)
	}
	if err != nil {
		log.Fatalf("Renderer setup failed: %v", err)
	}

	cfg := thermalcapture.SessionConfig{
		Stream:              stream,
		Renderer:            renderer,
		TargetFPS:           *fps,
		SyncStrategy:        strategy,
		FrameCount:          *frameCount,
		ExtractMeasurements: *measurements,
		PrintStats:          *stats,
		PrintCameraInfo:     *camInfo,
		PacerLogging:        *pacerLog,
	}
	if *record != "" {
		cfg.Recorder = seqfile.NewRecorder(seqfile.Metadata{
			DeviceID:  identity.DeviceID,
			FrameRate: *fps,
		})
		cfg.RecordPath = *record
		if *recordFromColorizer {
			cfg.RecordSource = thermalcapture.RecordFromColorizer
		}
	}
	if *outputDir != "" {
		saved := 0
		cfg.Display = func(img *thermalcapture.Image) {
			if err := savePNG(*outputDir, img); err != nil {
				slog.Error("failed to save frame", "error", err, "seq", img.Seq)
				return
			}
			saved++
		}
	}

	session, err := thermalcapture.NewSession(cfg)
	if err != nil {
		log.Fatalf("Session setup failed: %v", err)
	}

	fmt.Printf("Streaming... press Ctrl+C to stop\n\n")

	result, err := session.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session ended with error", "error", err)
	}

	fmt.Printf("\n")
	fmt.Printf("  Duration:          %s\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("  Frames Received:   %d\n", result.FramesReceived)
	fmt.Printf("  Frames Rendered:   %d\n", result.FramesRendered)
	if *record != "" {
		fmt.Printf("  Frames Recorded:   %d\n", result.FramesRecorded)
		fmt.Printf("  Frames Lost:       %d\n", result.FramesLost)
	}
	fmt.Printf("  Transient Errors:  %d\n", result.TransientErrors)
	fmt.Printf("\n")
}

func parseTransports(list string) ([]thermalcapture.Transport, error) {
	var out []thermalcapture.Transport
	for _, name := range strings.Split(list, ",") {
		switch strings.TrimSpace(name) {
		case "emulator":
			out = append(out, thermalcapture.TransportEmulator)
		case "usb":
			out = append(out, thermalcapture.TransportUSB)
		case "network":
			out = append(out, thermalcapture.TransportNetwork)
		case "":
		default:
			return nil, fmt.Errorf("unknown transport %q", name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no transports given")
	}
	return out, nil
}

func parseStrategy(name string) (thermalcapture.SyncStrategy, error) {
	switch name {
	case "sleep":
		return thermalcapture.SyncSleep, nil
	case "spin":
		return thermalcapture.SyncSpin, nil
	case "manual":
		return thermalcapture.SyncManual, nil
	}
	return thermalcapture.SyncSleep, fmt.Errorf("unknown strategy %q", name)
}

// savePNG writes a rendered RGB frame to outputDir.
func savePNG(outputDir string, frame *thermalcapture.Image) error {
	name := fmt.Sprintf("frame_%06d.png", frame.Seq)
	path := filepath.Join(outputDir, name)

	img := &image.RGBA{
		Pix:    make([]uint8, frame.Width*frame.Height*4),
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	for i := 0; i < frame.Width*frame.Height; i++ {
		img.Pix[i*4+0] = frame.Pixels[i*3+0]
		img.Pix[i*4+1] = frame.Pixels[i*3+1]
		img.Pix[i*4+2] = frame.Pixels[i*3+2]
		img.Pix[i*4+3] = 255
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return png.Encode(file, img)
}
