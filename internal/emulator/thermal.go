package emulator

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	thermalcapture "github.com/e7canasta/thermal-capture"
)

// Signal values are centikelvin: kelvin * 100 stored as mono16, the common
// radiometric encoding.
const (
	baseSignal  = 29500 // 295.00 K ambient
	waveSignal  = 600
	blobSignal  = 1800
	signalScale = 100.0
)

// synthesize generates the radiometric frame for one sequence number. The
// field is deterministic in (x, y, seq): a slow wave plus a hot blob that
// wanders across the image.
func (c *Camera) synthesize(seq uint64, spots *spotSet) *thermalImage {
	w, h := c.cfg.Width, c.cfg.Height
	signal := make([]uint16, w*h)

	blobX := float64(int(seq*3) % w)
	blobY := float64(h) / 2
	blobR := float64(minInt(w, h)) / 6

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(baseSignal)
			v += waveSignal * math.Sin(2*math.Pi*(float64(x)+float64(seq)*2)/float64(w))
			v += waveSignal / 2 * math.Cos(2*math.Pi*float64(y)/float64(h))

			dx, dy := float64(x)-blobX, float64(y)-blobY
			if d2 := dx*dx + dy*dy; d2 < blobR*blobR*4 {
				v += blobSignal * math.Exp(-d2/(blobR*blobR))
			}
			signal[y*w+x] = uint16(v)
		}
	}

	return &thermalImage{
		width:  w,
		height: h,
		seq:    seq,
		signal: signal,
		spots:  spots,
		info: thermalcapture.CameraInformation{
			ModelName:      "ThermoSim 320",
			SerialNumber:   c.cfg.DeviceID,
			Lens:           "FOL18",
			ProgramVersion: "1.0.0",
			RangeMin:       253.15,
			RangeMax:       623.15,
		},
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// thermalImage implements thermalcapture.ThermalImage over a synthesized
// signal buffer.
type thermalImage struct {
	width, height int
	seq           uint64
	signal        []uint16
	spots         *spotSet
	info          thermalcapture.CameraInformation
}

func (t *thermalImage) Width() int       { return t.width }
func (t *thermalImage) Height() int      { return t.height }
func (t *thermalImage) Signal() []uint16 { return t.signal }

func (t *thermalImage) Statistics() (thermalcapture.ImageStatistics, bool) {
	if len(t.signal) == 0 {
		return thermalcapture.ImageStatistics{}, false
	}

	minV, maxV := t.signal[0], t.signal[0]
	minIdx, maxIdx := 0, 0
	var sum uint64
	for i, v := range t.signal {
		sum += uint64(v)
		if v < minV {
			minV, minIdx = v, i
		}
		if v > maxV {
			maxV, maxIdx = v, i
		}
	}

	return thermalcapture.ImageStatistics{
		Min:      thermalcapture.ThermalValue(float64(minV) / signalScale),
		Max:      thermalcapture.ThermalValue(float64(maxV) / signalScale),
		Average:  thermalcapture.ThermalValue(float64(sum) / float64(len(t.signal)) / signalScale),
		ColdSpot: image.Point{X: minIdx % t.width, Y: minIdx / t.width},
		HotSpot:  image.Point{X: maxIdx % t.width, Y: maxIdx / t.width},
	}, true
}

func (t *thermalImage) Measurements() (thermalcapture.Measurements, bool) {
	if t.spots == nil {
		return nil, false
	}
	return &measurements{set: t.spots, img: t}, true
}

func (t *thermalImage) CameraInformation() (thermalcapture.CameraInformation, bool) {
	return t.info, true
}

func (t *thermalImage) valueAt(x, y int) (thermalcapture.ThermalValue, bool) {
	if x < 0 || y < 0 || x >= t.width || y >= t.height {
		return 0, false
	}
	return thermalcapture.ThermalValue(float64(t.signal[y*t.width+x]) / signalScale), true
}

// spotSet holds spot positions across frames; values are re-read from
// whichever image the set is bound to, the way spots on a live stream keep
// reporting fresh temperatures.
type spotSet struct {
	mu    sync.Mutex
	spots []thermalcapture.Spot
}

// measurements binds a spot set to one image.
type measurements struct {
	set *spotSet
	img *thermalImage
}

func (m *measurements) Spots() []thermalcapture.Spot {
	m.set.mu.Lock()
	defer m.set.mu.Unlock()

	out := make([]thermalcapture.Spot, 0, len(m.set.spots))
	for _, sp := range m.set.spots {
		if v, ok := m.img.valueAt(sp.X, sp.Y); ok {
			sp.Value = v
		}
		out = append(out, sp)
	}
	return out
}

func (m *measurements) AddSpot(x, y int) (thermalcapture.Spot, error) {
	if x < 0 || y < 0 || x >= m.img.width || y >= m.img.height {
		return thermalcapture.Spot{}, fmt.Errorf("emulator: spot %d,%d outside %dx%d image",
			x, y, m.img.width, m.img.height)
	}

	m.set.mu.Lock()
	defer m.set.mu.Unlock()

	sp := thermalcapture.Spot{ID: len(m.set.spots), X: x, Y: y}
	if v, ok := m.img.valueAt(x, y); ok {
		sp.Value = v
	}
	m.set.spots = append(m.set.spots, sp)
	return sp, nil
}

// ThermalRenderer renders the latest frame of a thermal stream and exposes
// the underlying radiometric image. It implements thermalcapture.Renderer
// and thermalcapture.ThermalAccessor.
type ThermalRenderer struct {
	src   *stream
	spots *spotSet

	mu  sync.Mutex
	img *thermalcapture.Image
	cur *thermalImage
}

// NewThermalRenderer creates a renderer for a thermal stream obtained from
// an emulated camera.
func NewThermalRenderer(s thermalcapture.Stream) (*ThermalRenderer, error) {
	src, ok := s.(*stream)
	if !ok {
		return nil, fmt.Errorf("emulator: renderer requires an emulator stream, got %T", s)
	}
	if !src.thermal {
		return nil, fmt.Errorf("emulator: stream is not thermal")
	}
	return &ThermalRenderer{src: src, spots: &spotSet{}}, nil
}

// Update implements thermalcapture.Renderer.
func (r *ThermalRenderer) Update() error {
	seq := r.src.CurrentSeq()
	if seq == 0 {
		// No frame received yet; Image stays unavailable (warm-up).
		return nil
	}

	ti := r.src.cam.synthesize(seq, r.spots)

	r.mu.Lock()
	r.cur = ti
	r.img = renderGrayscale(ti)
	r.mu.Unlock()
	return nil
}

// Image implements thermalcapture.Renderer.
func (r *ThermalRenderer) Image() (*thermalcapture.Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.img, r.img != nil
}

// WithThermalImage implements thermalcapture.ThermalAccessor.
func (r *ThermalRenderer) WithThermalImage(fn func(thermalcapture.ThermalImage)) {
	r.mu.Lock()
	cur := r.cur
	r.mu.Unlock()
	if cur == nil {
		fn(nil)
		return
	}
	fn(cur)
}

// ColorizedRenderer renders the camera-side colorized stream. It implements
// thermalcapture.Renderer only: there is no radiometric access on this path.
type ColorizedRenderer struct {
	src *stream

	mu  sync.Mutex
	img *thermalcapture.Image
}

// NewColorizedRenderer creates a renderer for a colorized stream obtained
// from an emulated camera.
func NewColorizedRenderer(s thermalcapture.Stream) (*ColorizedRenderer, error) {
	src, ok := s.(*stream)
	if !ok {
		return nil, fmt.Errorf("emulator: renderer requires an emulator stream, got %T", s)
	}
	if src.thermal {
		return nil, fmt.Errorf("emulator: stream is not colorized")
	}
	return &ColorizedRenderer{src: src}, nil
}

// Update implements thermalcapture.Renderer.
func (r *ColorizedRenderer) Update() error {
	seq := r.src.CurrentSeq()
	if seq == 0 {
		return nil
	}
	ti := r.src.cam.synthesize(seq, nil)

	r.mu.Lock()
	r.img = renderGrayscale(ti)
	r.mu.Unlock()
	return nil
}

// Image implements thermalcapture.Renderer.
func (r *ColorizedRenderer) Image() (*thermalcapture.Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.img, r.img != nil
}

// renderGrayscale maps the signal range linearly onto an RGB grayscale ramp.
func renderGrayscale(ti *thermalImage) *thermalcapture.Image {
	minV, maxV := ti.signal[0], ti.signal[0]
	for _, v := range ti.signal {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	span := float64(maxV - minV)
	if span == 0 {
		span = 1
	}

	pixels := make([]byte, len(ti.signal)*3)
	for i, v := range ti.signal {
		g := byte(float64(v-minV) / span * 255)
		pixels[i*3] = g
		pixels[i*3+1] = g
		pixels[i*3+2] = g
	}

	return &thermalcapture.Image{
		Seq:       ti.seq,
		Timestamp: time.Now(),
		Width:     ti.width,
		Height:    ti.height,
		Pixels:    pixels,
	}
}
