package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	thermalcapture "github.com/e7canasta/thermal-capture"
	"github.com/e7canasta/thermal-capture/internal/seqfile"
)

// Version information
const version = "v0.1.0"

func main() {
	fps := flag.Float64("fps", 0, "Playback frame rate (0 = rate recorded in the file)")
	sync := flag.String("sync", "sleep", "Pacing strategy: sleep, spin, manual")
	loops := flag.Int("loops", 1, "Times to play the sequence (0 = forever)")
	stats := flag.Bool("stats", false, "Log image statistics per frame")
	pacerLog := flag.Bool("pacer-log", false, "Log pacer frame rate periodically")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sequence-play %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: sequence file argument is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  sequence-play recording%s\n", seqfile.FileExtension)
		fmt.Fprintf(os.Stderr, "  sequence-play --fps 25 --loops 0 recording%s\n\n", seqfile.FileExtension)
		flag.PrintDefaults()
		os.Exit(1)
	}
	path := flag.Arg(0)

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	strategy, err := parseStrategy(*sync)
	if err != nil {
		log.Fatalf("Invalid sync strategy: %v", err)
	}

	player, err := seqfile.Open(path)
	if err != nil {
		log.Fatalf("Failed to open sequence: %v", err)
	}
	defer player.Close()

	rate := *fps
	if rate <= 0 {
		rate = player.FrameRate()
	}

	hdr := player.Header()
	fmt.Printf("\n")
	fmt.Printf("sequence-play %s\n", version)
	fmt.Printf("  File:          %s\n", path)
	fmt.Printf("  Device:        %s\n", orUnknown(hdr.DeviceID))
	fmt.Printf("  Resolution:    %dx%d\n", hdr.Width, hdr.Height)
	fmt.Printf("  Frames:        %d\n", hdr.TotalFrames)
	fmt.Printf("  Recorded FPS:  %.2f\n", hdr.FrameRate)
	fmt.Printf("  Playback FPS:  %.2f\n", rate)
	fmt.Printf("\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pacer := thermalcapture.NewFramePacer(rate, *pacerLog, 0)

	start := time.Now()
	played := 0
	for loop := 0; *loops == 0 || loop < *loops; loop++ {
		if err := player.First(); err != nil {
			log.Fatalf("Rewind failed: %v", err)
		}
		for player.Next() {
			if ctx.Err() != nil {
				goto done
			}
			frame := player.Current()

			if *stats {
				if st, ok := frame.Statistics(); ok {
					slog.Info("frame",
						"index", played,
						"avg_c", st.Average.Celsius(),
						"min_c", st.Min.Celsius(),
						"max_c", st.Max.Celsius(),
					)
				}
			} else {
				slog.Debug("frame",
					"index", played,
					"timestamp_ns", frame.TimestampNs(),
				)
			}
			played++

			pacer.FrameSync(strategy)
		}
	}

done:
	elapsed := time.Since(start)
	fmt.Printf("\n")
	fmt.Printf("  Frames Played:  %d\n", played)
	fmt.Printf("  Duration:       %s\n", elapsed.Round(time.Millisecond))
	if elapsed > 0 {
		fmt.Printf("  Actual FPS:     %.2f\n", float64(played)/elapsed.Seconds())
	}
	fmt.Printf("\n")
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

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}
