// Package seqfile records and replays thermal image sequences as flat files.
//
// A sequence file is a fixed-size JSON header region followed by length-
// framed radiometric frames. The recorder buffers writes on a background
// goroutine and drops frames it cannot buffer, so feeding it from a
// streaming loop never blocks the loop; dropped frames are counted as lost.
package seqfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	thermalcapture "github.com/e7canasta/thermal-capture"
)

// FileExtension is the conventional extension for sequence files.
const FileExtension = ".tseq"

const (
	magic        = "TSEQ1\n"
	headerRegion = 512
	// bufferFrames is the recorder's write buffer depth.
	bufferFrames = 64
)

// Header describes a recorded sequence.
type Header struct {
	Version     int     `json:"version"`
	DeviceID    string  `json:"device_id,omitempty"`
	FrameRate   float64 `json:"frame_rate"`
	CreatedNs   int64   `json:"created_ns"`
	TotalFrames uint64  `json:"total_frames"`
	LostFrames  uint64  `json:"lost_frames"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// Metadata is what a recorder knows about its source up front.
type Metadata struct {
	// DeviceID of the recorded camera, if known.
	DeviceID string
	// FrameRate the sequence should be played back at. Non-positive falls
	// back to 9 fps.
	FrameRate float64
}

type frameRecord struct {
	timestampNs int64
	width       int
	height      int
	signal      []uint16
}

// Recorder writes thermal images to a sequence file. It implements
// thermalcapture.Recorder.
type Recorder struct {
	meta Metadata

	mu      sync.Mutex
	file    *os.File
	path    string
	pending chan *frameRecord
	done    chan struct{}

	width, height int

	frames uint64 // atomic
	lost   uint64 // atomic
}

// NewRecorder creates an idle recorder. Call Start to open a destination.
func NewRecorder(meta Metadata) *Recorder {
	if meta.FrameRate <= 0 {
		meta.FrameRate = 9
	}
	return &Recorder{meta: meta}
}

// Start implements thermalcapture.Recorder.
func (r *Recorder) Start(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return fmt.Errorf("seqfile: recorder already started")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("seqfile: create %s: %w", path, err)
	}
	// Reserve the header region; the real header lands here on Stop.
	if _, err := f.Write(make([]byte, headerRegion)); err != nil {
		f.Close()
		return fmt.Errorf("seqfile: reserve header: %w", err)
	}

	r.file = f
	r.path = path
	r.pending = make(chan *frameRecord, bufferFrames)
	r.done = make(chan struct{})
	atomic.StoreUint64(&r.frames, 0)
	atomic.StoreUint64(&r.lost, 0)

	go r.writeLoop(f, r.pending, r.done)

	slog.Info("seqfile: recording started", "path", path, "frame_rate", r.meta.FrameRate)
	return nil
}

// AddImage implements thermalcapture.Recorder. It never blocks: when the
// write buffer is full the image is dropped and counted as lost.
func (r *Recorder) AddImage(img thermalcapture.ThermalImage) error {
	r.mu.Lock()
	pending := r.pending
	r.mu.Unlock()

	if pending == nil {
		return fmt.Errorf("seqfile: recorder is not started")
	}
	if img == nil {
		return fmt.Errorf("seqfile: nil image")
	}

	src := img.Signal()
	signal := make([]uint16, len(src))
	copy(signal, src)

	rec := &frameRecord{
		timestampNs: time.Now().UnixNano(),
		width:       img.Width(),
		height:      img.Height(),
		signal:      signal,
	}

	select {
	case pending <- rec:
	default:
		atomic.AddUint64(&r.lost, 1)
		slog.Debug("seqfile: dropping frame, write buffer full")
	}
	return nil
}

// writeLoop drains the pending channel to disk.
func (r *Recorder) writeLoop(f *os.File, pending <-chan *frameRecord, done chan<- struct{}) {
	defer close(done)
	for rec := range pending {
		if err := writeFrame(f, rec); err != nil {
			slog.Error("seqfile: write frame failed", "error", err)
			atomic.AddUint64(&r.lost, 1)
			continue
		}
		r.mu.Lock()
		if r.width == 0 {
			r.width, r.height = rec.width, rec.height
		}
		r.mu.Unlock()
		atomic.AddUint64(&r.frames, 1)
	}
}

func writeFrame(f *os.File, rec *frameRecord) error {
	payload := 2 + 2 + 8 + len(rec.signal)*2
	buf := make([]byte, 4+payload)
	binary.LittleEndian.PutUint32(buf[0:], uint32(payload))
	binary.LittleEndian.PutUint16(buf[4:], uint16(rec.width))
	binary.LittleEndian.PutUint16(buf[6:], uint16(rec.height))
	binary.LittleEndian.PutUint64(buf[8:], uint64(rec.timestampNs))
	for i, v := range rec.signal {
		binary.LittleEndian.PutUint16(buf[16+i*2:], v)
	}
	_, err := f.Write(buf)
	return err
}

// Stop implements thermalcapture.Recorder. It drains every buffered frame,
// finalizes the header and closes the file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	pending := r.pending
	done := r.done
	f := r.file
	path := r.path
	r.pending = nil
	r.done = nil
	r.file = nil
	r.mu.Unlock()

	if f == nil {
		return nil
	}

	close(pending)
	<-done

	hdr := Header{
		Version:     1,
		DeviceID:    r.meta.DeviceID,
		FrameRate:   r.meta.FrameRate,
		CreatedNs:   time.Now().UnixNano(),
		TotalFrames: atomic.LoadUint64(&r.frames),
		LostFrames:  atomic.LoadUint64(&r.lost),
		Width:       r.width,
		Height:      r.height,
	}
	if err := writeHeader(f, hdr); err != nil {
		f.Close()
		return fmt.Errorf("seqfile: finalize %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("seqfile: close %s: %w", path, err)
	}

	slog.Info("seqfile: recording stopped",
		"path", path,
		"frames", hdr.TotalFrames,
		"lost", hdr.LostFrames,
	)
	return nil
}

func writeHeader(f *os.File, hdr Header) error {
	body, err := json.Marshal(hdr)
	if err != nil {
		return err
	}
	if len(magic)+len(body) > headerRegion {
		return fmt.Errorf("header too large: %d bytes", len(body))
	}

	region := make([]byte, headerRegion)
	copy(region, magic)
	copy(region[len(magic):], body)
	_, err = f.WriteAt(region, 0)
	return err
}

// FrameCount implements thermalcapture.Recorder.
func (r *Recorder) FrameCount() uint64 { return atomic.LoadUint64(&r.frames) }

// LostFrameCount implements thermalcapture.Recorder.
func (r *Recorder) LostFrameCount() uint64 { return atomic.LoadUint64(&r.lost) }
