package app

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/detector"
	"github.com/ayusman/handcursor/internal/gesture"
	"github.com/ayusman/handcursor/internal/input"
)

// streamLinger is how long frames keep being encoded for the preview
// stream after the last request.
const streamLinger = 2 * time.Second

// runPipeline is the detection loop. It reads one frame per tick:
//  1. idle mode runs at motion.idle_fps and only looks for motion
//  2. motion switches to the camera frame rate and runs hand detection
//  3. detected hands are tracked, classified and dispatched
//  4. after motion.idle_timeout without motion it drops back to idle
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.frameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}
			if a.tick(time.Now()) {
				ticker.Reset(a.frameInterval())
			}
		}
	}
}

func (a *App) frameInterval() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gate.Interval()
}

// tick processes one camera frame and reports whether the frame rate
// changed.
func (a *App) tick(now time.Time) bool {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.log.Debug().Err(err).Msg("frame read failed")
		return false
	}
	defer frame.Close()

	a.encodePreview(frame, now)

	motion, percent := a.motion.Detect(frame)

	a.mu.Lock()
	gated := a.cfg.Motion.Threshold > 0
	active, changed := true, false
	if gated {
		active, changed = a.gate.Observe(motion, now)
	}
	fps := a.gate.FPS()
	a.mu.Unlock()

	if changed {
		a.camera.SetFPS(fps)
		a.log.Debug().Bool("active", active).Int("fps", fps).Float64("motion", percent).Msg("frame rate switched")
	}

	if !active {
		return changed
	}

	hands, err := a.detector.Detect(frame)
	if err != nil {
		a.log.Warn().Err(err).Msg("hand detection failed")
		return changed
	}

	a.ProcessHands(hands, now.UnixMilli())
	return changed
}

// ProcessHands runs one set of detected hands through tracking and
// classification and dispatches the resulting intents.
func (a *App) ProcessHands(hands []detector.HandLandmarks, timestamp int64) (gesture.Result, gesture.Snapshot) {
	frame := a.tracker.Track(hands, timestamp)
	res, snap, _ := a.ProcessFrame(frame)
	return res, snap
}

// ProcessFrame classifies one tracked frame, injects the intents when
// control is enabled, records the frame and publishes the snapshot. Frames
// are processed one at a time. The boolean is false when the frame has no
// bodies; buttons held by bodies that left are still released.
func (a *App) ProcessFrame(frame body.Frame) (gesture.Result, gesture.Snapshot, bool) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()

	res, snap, ok := a.session.Process(frame)

	if em := a.activeEmitter(); em != nil {
		if err := input.Dispatch(em, res); err != nil {
			a.log.Warn().Err(err).Msg("pointer injection failed")
		}
	}

	if a.recorder != nil {
		if err := a.recorder.Write(frame); err != nil {
			a.log.Warn().Err(err).Msg("recording failed")
		}
	}

	a.frames++
	a.last = snap
	a.publish(snap)

	return res, snap, ok
}

// activeEmitter returns where intents go, or nil when control is off.
func (a *App) activeEmitter() input.Emitter {
	a.mu.RLock()
	defer a.mu.RUnlock()
	switch {
	case !a.cfg.Control.Enabled:
		return nil
	case a.cfg.Control.DryRun:
		return a.dryRun
	default:
		return a.emitter
	}
}

// releaseHeld drops all gesture state and lifts any button still down on
// em. frameMu must be held.
func (a *App) releaseHeld(em input.Emitter) {
	res := a.session.ReleaseAll()
	if em == nil || len(res.Released) == 0 {
		return
	}
	if err := input.Dispatch(em, res); err != nil {
		a.log.Warn().Err(err).Msg("button release failed")
		return
	}
	a.log.Debug().Int("buttons", len(res.Released)).Msg("released held buttons")
}

// LatestJPEG returns the most recent camera frame as JPEG. Calling it keeps
// the pipeline encoding frames for a short while.
func (a *App) LatestJPEG() ([]byte, bool) {
	a.jpegMu.Lock()
	defer a.jpegMu.Unlock()
	a.jpegRequested = time.Now()
	return a.jpeg, a.jpeg != nil
}

func (a *App) encodePreview(frame *gocv.Mat, now time.Time) {
	a.jpegMu.Lock()
	wanted := now.Sub(a.jpegRequested) < streamLinger
	a.jpegMu.Unlock()
	if !wanted || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		a.log.Debug().Err(err).Msg("preview encode failed")
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.jpegMu.Lock()
	a.jpeg = data
	a.jpegMu.Unlock()
}
