package seqfile

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"

	thermalcapture "github.com/e7canasta/thermal-capture"
)

// Player reads frames back out of a sequence file.
//
// Playback is a cursor: First rewinds to the first frame, Next advances and
// reports whether a frame was read, Current returns the frame under the
// cursor. The zero cursor sits before the first frame, so a fresh player is
// driven with Next/Current alone.
type Player struct {
	file    *os.File
	header  Header
	current *Frame
}

// Open opens a recorded sequence for playback.
func Open(path string) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seqfile: open %s: %w", path, err)
	}

	region := make([]byte, headerRegion)
	if _, err := io.ReadFull(f, region); err != nil {
		f.Close()
		return nil, fmt.Errorf("seqfile: read header of %s: %w", path, err)
	}
	if !bytes.HasPrefix(region, []byte(magic)) {
		f.Close()
		return nil, fmt.Errorf("seqfile: %s is not a sequence file", path)
	}
	body := bytes.TrimRight(region[len(magic):], "\x00")

	var hdr Header
	if err := json.Unmarshal(body, &hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("seqfile: decode header of %s: %w", path, err)
	}

	return &Player{file: f, header: hdr}, nil
}

// Header returns the sequence header.
func (p *Player) Header() Header { return p.header }

// FrameCount returns the number of frames recorded in the sequence.
func (p *Player) FrameCount() uint64 { return p.header.TotalFrames }

// FrameRate returns the rate the sequence was recorded at.
func (p *Player) FrameRate() float64 { return p.header.FrameRate }

// First rewinds the cursor to before the first frame.
func (p *Player) First() error {
	if _, err := p.file.Seek(headerRegion, io.SeekStart); err != nil {
		return fmt.Errorf("seqfile: rewind: %w", err)
	}
	p.current = nil
	return nil
}

// Next advances to the next frame. It returns false at the end of the
// sequence or on a corrupt frame.
func (p *Player) Next() bool {
	frame, err := readFrame(p.file)
	if err != nil {
		if err != io.EOF {
			p.current = nil
		}
		return false
	}
	p.current = frame
	return true
}

// Current returns the frame under the cursor, or nil before the first Next.
func (p *Player) Current() *Frame { return p.current }

// Close releases the underlying file.
func (p *Player) Close() error { return p.file.Close() }

func readFrame(f *os.File) (*Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	payload := binary.LittleEndian.Uint32(lenBuf[:])
	if payload < 16 {
		return nil, fmt.Errorf("seqfile: corrupt frame, payload %d bytes", payload)
	}

	buf := make([]byte, payload)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("seqfile: truncated frame: %w", err)
	}

	width := int(binary.LittleEndian.Uint16(buf[0:]))
	height := int(binary.LittleEndian.Uint16(buf[2:]))
	timestampNs := int64(binary.LittleEndian.Uint64(buf[4:]))

	want := 12 + width*height*2
	if int(payload) != want {
		return nil, fmt.Errorf("seqfile: corrupt frame, payload %d bytes for %dx%d", payload, width, height)
	}

	signal := make([]uint16, width*height)
	for i := range signal {
		signal[i] = binary.LittleEndian.Uint16(buf[12+i*2:])
	}

	return &Frame{
		width:       width,
		height:      height,
		timestampNs: timestampNs,
		signal:      signal,
	}, nil
}

// Frame is a single recorded radiometric frame. It implements
// thermalcapture.ThermalImage so recorded frames flow through the same
// processing paths as live ones. Measurements and camera information are
// not preserved in the file.
type Frame struct {
	width, height int
	timestampNs   int64
	signal        []uint16
}

func (f *Frame) Width() int       { return f.width }
func (f *Frame) Height() int      { return f.height }
func (f *Frame) Signal() []uint16 { return f.signal }

// TimestampNs returns the capture time recorded with the frame.
func (f *Frame) TimestampNs() int64 { return f.timestampNs }

// Statistics computes signal statistics over the recorded frame.
func (f *Frame) Statistics() (thermalcapture.ImageStatistics, bool) {
	if len(f.signal) == 0 {
		return thermalcapture.ImageStatistics{}, false
	}

	var stats thermalcapture.ImageStatistics
	minV, maxV := f.signal[0], f.signal[0]
	var sum float64
	for i, v := range f.signal {
		if v < minV {
			minV = v
			stats.ColdSpot = image.Point{X: i % f.width, Y: i / f.width}
		}
		if v > maxV {
			maxV = v
			stats.HotSpot = image.Point{X: i % f.width, Y: i / f.width}
		}
		sum += float64(v)
	}
	stats.Min = thermalcapture.ThermalValue(float64(minV) / 100.0)
	stats.Max = thermalcapture.ThermalValue(float64(maxV) / 100.0)
	stats.Average = thermalcapture.ThermalValue(sum / float64(len(f.signal)) / 100.0)
	return stats, true
}

// Measurements is not preserved in sequence files.
func (f *Frame) Measurements() (thermalcapture.Measurements, bool) {
	return nil, false
}

// CameraInformation is not preserved in sequence files.
func (f *Frame) CameraInformation() (thermalcapture.CameraInformation, bool) {
	return thermalcapture.CameraInformation{}, false
}
