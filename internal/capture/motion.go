package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// blurSize is the Gaussian kernel applied before differencing.
	blurSize = 21
	// pixelDiffThreshold is the grey-level change that counts a pixel as
	// moved.
	pixelDiffThreshold = 25
)

// MotionDetector compares each frame with the previous one and reports
// the percentage of pixels that changed.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector reports motion when more than threshold percent of the
// pixels change between frames.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect returns whether frame differs from the previous frame and the
// percentage of changed pixels. The first frame only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurSize, Y: blurSize}, 0, 0, gocv.BorderDefault)

	// A resolution change invalidates the baseline.
	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, pixelDiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)
	return changed > m.threshold, changed
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the OpenCV buffers.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold ignores non-positive values.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Threshold returns the current threshold percentage.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// Gate switches between an idle and an active frame rate. Motion makes it
// active immediately; it returns to idle after IdleTimeout without motion.
// Not safe for concurrent use; the pipeline owns it.
type Gate struct {
	IdleFPS     int
	ActiveFPS   int
	IdleTimeout time.Duration

	active     bool
	lastMotion time.Time
}

// NewGate creates an idle gate.
func NewGate(idleFPS, activeFPS int, idleTimeout time.Duration) *Gate {
	if idleFPS <= 0 {
		idleFPS = 1
	}
	if activeFPS < idleFPS {
		activeFPS = idleFPS
	}
	return &Gate{IdleFPS: idleFPS, ActiveFPS: activeFPS, IdleTimeout: idleTimeout}
}

// Observe records whether the frame at now had motion. It reports whether
// the gate is active and whether that changed with this frame.
func (g *Gate) Observe(motion bool, now time.Time) (active, changed bool) {
	if motion {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return true, true
		}
		return true, false
	}

	if g.active && now.Sub(g.lastMotion) > g.IdleTimeout {
		g.active = false
		return false, true
	}
	return g.active, false
}

// Active reports the current mode.
func (g *Gate) Active() bool {
	return g.active
}

// FPS is the frame rate for the current mode.
func (g *Gate) FPS() int {
	if g.active {
		return g.ActiveFPS
	}
	return g.IdleFPS
}

// Interval is the frame period for the current mode.
func (g *Gate) Interval() time.Duration {
	return time.Second / time.Duration(g.FPS())
}

// Force sets the mode directly, e.g. when motion gating is disabled.
func (g *Gate) Force(active bool, now time.Time) {
	g.active = active
	if active {
		g.lastMotion = now
	}
}
