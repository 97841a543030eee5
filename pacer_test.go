package thermalcapture

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerDefaults(t *testing.T) {
	p := NewFramePacer(0, false, 0)
	assert.Equal(t, 9.0, p.FrameRate())
	assert.Equal(t, 30, p.LogInterval())
	assert.False(t, p.Logging())
}

func TestPacerSetters(t *testing.T) {
	p := NewFramePacer(9, false, 0)

	p.SetFrameRate(25)
	assert.Equal(t, 25.0, p.FrameRate())
	p.SetFrameRate(-1)
	assert.Equal(t, 25.0, p.FrameRate(), "non-positive rates are ignored")

	p.SetLogInterval(100)
	assert.Equal(t, 100, p.LogInterval())
	p.SetLogInterval(0)
	assert.Equal(t, 100, p.LogInterval(), "non-positive intervals are ignored")

	p.SetLogging(true)
	assert.True(t, p.Logging())
}

func TestSleepPacesLowerBound(t *testing.T) {
	// K frames at rate f must take at least K/f of wall clock.
	const frames = 5
	const fps = 100.0

	p := NewFramePacer(fps, false, 0)
	start := time.Now()
	for i := 0; i < frames; i++ {
		p.FrameSync(SyncSleep)
	}
	elapsed := time.Since(start)

	minimum := time.Duration(float64(frames) / fps * float64(time.Second))
	assert.GreaterOrEqual(t, elapsed, minimum)
}

func TestSpinPacesLowerBound(t *testing.T) {
	const frames = 3
	const fps = 200.0

	p := NewFramePacer(fps, false, 0)
	start := time.Now()
	for i := 0; i < frames; i++ {
		p.FrameSync(SyncSpin)
	}
	elapsed := time.Since(start)

	minimum := time.Duration(float64(frames) / fps * float64(time.Second))
	assert.GreaterOrEqual(t, elapsed, minimum)
}

func TestManualDoesNotWait(t *testing.T) {
	mock := clock.NewMock()
	p := NewFramePacer(10, false, 0)
	p.clk = mock
	p.Reset()

	p.FrameSync(SyncManual)
	assert.Equal(t, mock.Now(), p.lastSync, "manual sync records now without advancing the clock")
	assert.Equal(t, 100*time.Millisecond, p.RemainingFrameTime())
}

func TestSleepWaitsOutTheFrameSlot(t *testing.T) {
	mock := clock.NewMock()
	p := NewFramePacer(10, false, 0)
	p.clk = mock
	p.Reset()
	start := mock.Now()

	done := make(chan struct{})
	go func() {
		p.FrameSync(SyncSleep)
		close(done)
	}()

	for {
		select {
		case <-done:
			advanced := mock.Now().Sub(start)
			assert.GreaterOrEqual(t, advanced, 100*time.Millisecond)
			assert.LessOrEqual(t, advanced, 200*time.Millisecond)
			return
		default:
			mock.Add(10 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestUsedAndRemainingFrameTime(t *testing.T) {
	mock := clock.NewMock()
	p := NewFramePacer(10, false, 0)
	p.clk = mock
	p.Reset()

	p.FrameSync(SyncManual)

	mock.Add(30 * time.Millisecond)
	assert.Equal(t, 30*time.Millisecond, p.UsedFrameTime())
	assert.Equal(t, 70*time.Millisecond, p.RemainingFrameTime())

	// Overrun: remaining clamps at zero, used keeps counting.
	mock.Add(200 * time.Millisecond)
	assert.Equal(t, 230*time.Millisecond, p.UsedFrameTime())
	assert.Equal(t, time.Duration(0), p.RemainingFrameTime())
}

func TestResetClearsTiming(t *testing.T) {
	mock := clock.NewMock()
	p := NewFramePacer(10, false, 0)
	p.clk = mock
	p.Reset()

	mock.Add(500 * time.Millisecond)
	p.Reset()
	assert.Equal(t, time.Duration(0), p.UsedFrameTime())
	assert.Equal(t, 100*time.Millisecond, p.RemainingFrameTime())
}

func TestSetFrameRateChangesSlotLength(t *testing.T) {
	mock := clock.NewMock()
	p := NewFramePacer(10, false, 0)
	p.clk = mock
	p.Reset()

	p.SetFrameRate(50)
	assert.Equal(t, 20*time.Millisecond, p.RemainingFrameTime())
}

// recordingHandler counts slog records by message, for asserting on the
// pacer's cosmetic rate log.
type recordingHandler struct {
	mu     sync.Mutex
	counts map[string]int
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[r.Message]++
	return nil
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) count(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[msg]
}

func TestPacerLogsAtInterval(t *testing.T) {
	handler := &recordingHandler{counts: make(map[string]int)}
	prev := slog.Default()
	slog.SetDefault(slog.New(handler))
	defer slog.SetDefault(prev)

	mock := clock.NewMock()
	p := NewFramePacer(10, true, 3)
	p.clk = mock
	p.Reset()

	for i := 0; i < 9; i++ {
		mock.Add(100 * time.Millisecond)
		p.FrameSync(SyncManual)
	}
	require.Equal(t, 3, handler.count("pacer: frame rate"))

	p.SetLogging(false)
	for i := 0; i < 9; i++ {
		p.FrameSync(SyncManual)
	}
	assert.Equal(t, 3, handler.count("pacer: frame rate"), "disabled logging emits nothing")
}
