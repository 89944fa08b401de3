// Package app wires the camera pipeline together: capture, hand detection,
// tracking, gesture classification and pointer injection.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/capture"
	"github.com/ayusman/handcursor/internal/config"
	"github.com/ayusman/handcursor/internal/detector"
	"github.com/ayusman/handcursor/internal/gesture"
	"github.com/ayusman/handcursor/internal/input"
	"github.com/ayusman/handcursor/internal/logger"
	"github.com/ayusman/handcursor/internal/pose"
	"github.com/ayusman/handcursor/internal/recording"
	"github.com/ayusman/handcursor/internal/store"
	"github.com/ayusman/handcursor/internal/tracking"
)

// Fallback screen size when the display cannot be queried.
const (
	fallbackScreenWidth  = 1920
	fallbackScreenHeight = 1080
)

// Options holds the collaborators of an App. Only Config is required; nil
// collaborators are created from it.
type Options struct {
	Config   config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	// Emitter injects pointer events. Defaults to the OS emitter, or a
	// logging emitter on builds without one.
	Emitter input.Emitter
}

// Status is a point-in-time view of the application.
type Status struct {
	Running        bool             `json:"running"`
	Enabled        bool             `json:"enabled"`
	ControlEnabled bool             `json:"control_enabled"`
	DryRun         bool             `json:"dry_run"`
	MotionActive   bool             `json:"motion_active"`
	FPS            int              `json:"fps"`
	ScreenWidth    int              `json:"screen_width"`
	ScreenHeight   int              `json:"screen_height"`
	Zoom           float64          `json:"zoom"`
	Mirror         bool             `json:"mirror"`
	Templates      int              `json:"templates"`
	Frames         uint64           `json:"frames"`
	Recording      string           `json:"recording,omitempty"`
	Snapshot       gesture.Snapshot `json:"snapshot"`
}

// App is the hand-driven pointer controller.
type App struct {
	mu      sync.RWMutex
	cfg     config.Config
	enabled bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	store    *store.Store
	camera   capture.Camera
	motion   *capture.MotionDetector
	gate     *capture.Gate
	detector detector.Detector
	matcher  *pose.Matcher
	tracker  *tracking.Tracker
	session  *gesture.Session
	emitter  input.Emitter
	dryRun   input.Emitter

	screenWidth  int
	screenHeight int

	// frameMu serializes frame processing. Lock it before mu when both
	// are needed.
	frameMu  sync.Mutex
	frames   uint64
	last     gesture.Snapshot
	recorder *recording.Writer

	subMu  sync.RWMutex
	subs   map[int]func(gesture.Snapshot)
	nextID int

	jpegMu        sync.Mutex
	jpeg          []byte
	jpegRequested time.Time

	log *zerolog.Logger
}

// New creates an App. Settings stored in the database override the
// corresponding values of opts.Config. Detection starts disabled.
func New(opts Options) (*App, error) {
	log := logger.WithComponent("pipeline")
	cfg := opts.Config

	if opts.Store != nil {
		stored, err := opts.Store.Settings().All()
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		for key, value := range stored {
			if err := cfg.Set(key, value); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("ignoring stored setting")
			}
		}
	}

	a := &App{
		cfg:     cfg,
		store:   opts.Store,
		camera:  opts.Camera,
		motion:  capture.NewMotionDetector(cfg.Motion.Threshold),
		gate:    capture.NewGate(cfg.Motion.IdleFPS, cfg.Camera.FPS, time.Duration(cfg.Motion.IdleTimeoutMs)*time.Millisecond),
		matcher: pose.NewDefaultMatcher(cfg.Pose.Tolerance),
		dryRun:  input.NewLogEmitter(),
		subs:    make(map[int]func(gesture.Snapshot)),
		log:     log,
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Options{
			Device: cfg.Camera.Device,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.Camera.FPS,
		})
	}

	a.detector = opts.Detector
	if a.detector == nil {
		dc := detector.Config{
			MaxHands:        cfg.Detector.MaxHands,
			MinConfidence:   cfg.Detector.MinConfidence,
			MinTrackingConf: cfg.Detector.MinTrackingConfidence,
			ScriptPath:      cfg.Detector.ScriptPath,
		}
		if mp, err := detector.NewMediaPipeDetector(dc); err == nil {
			a.detector = mp
			log.Info().Msg("using MediaPipe hand detection")
		} else {
			log.Warn().Err(err).Msg("MediaPipe not available, using mock detector")
			a.detector = detector.NewMockDetector()
		}
	}

	a.emitter = opts.Emitter
	if a.emitter == nil {
		robot, err := input.NewRobot()
		if err != nil {
			log.Warn().Err(err).Msg("pointer injection unavailable, logging intents instead")
			a.emitter = a.dryRun
		} else {
			a.emitter = robot
		}
	}

	a.screenWidth, a.screenHeight = cfg.Pointer.ScreenWidth, cfg.Pointer.ScreenHeight
	if a.screenWidth == 0 || a.screenHeight == 0 {
		w, h, err := input.ScreenSize()
		if err != nil || w <= 0 || h <= 0 {
			log.Warn().Err(err).Msg("cannot query screen size, assuming 1920x1080")
			w, h = fallbackScreenWidth, fallbackScreenHeight
		}
		a.screenWidth, a.screenHeight = w, h
	}

	mapper := cfg.Pointer.Mapper(a.screenWidth, a.screenHeight)
	if err := mapper.Validate(); err != nil {
		return nil, err
	}

	a.tracker = tracking.NewTracker(a.matcher, cfg.Tracking.Mirror)
	a.session = gesture.NewSession(gesture.NewClassifier(mapper, tracking.NewColorProjector()))

	if err := a.ReloadPoses(); err != nil {
		return nil, err
	}

	log.Info().
		Int("screen_width", a.screenWidth).
		Int("screen_height", a.screenHeight).
		Float64("zoom", cfg.Pointer.Zoom).
		Bool("control", cfg.Control.Enabled).
		Msg("pipeline configured")

	return a, nil
}

// Config returns the configuration currently in effect.
func (a *App) Config() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// SetEnabled enables or disables hand detection. Disabling releases any
// button a gesture still holds.
func (a *App) SetEnabled(enabled bool) {
	a.frameMu.Lock()
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
	if !enabled {
		a.releaseHeld(a.activeEmitter())
	}
	a.frameMu.Unlock()
	a.log.Info().Bool("enabled", enabled).Msg("detection toggled")
}

// IsEnabled reports whether hand detection is enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetControlEnabled turns pointer injection on or off. Gestures are still
// classified and published while control is off.
func (a *App) SetControlEnabled(enabled bool) {
	a.switchControl(func() {
		a.cfg.Control.Enabled = enabled
	})
	a.log.Info().Bool("control", enabled).Msg("control toggled")
}

// switchControl applies update under mu. When the update changes where
// intents go, buttons held on the previous emitter are released first so
// none stays down.
func (a *App) switchControl(update func()) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()

	before := a.activeEmitter()
	a.mu.Lock()
	update()
	a.mu.Unlock()

	if before != nil && before != a.activeEmitter() {
		a.releaseHeld(before)
	}
}

// ControlEnabled reports whether gestures move the real pointer.
func (a *App) ControlEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Control.Enabled
}

// Settings returns the runtime settings by key.
func (a *App) Settings() map[string]string {
	cfg := a.Config()
	out := make(map[string]string, len(config.RuntimeKeys))
	for _, key := range config.RuntimeKeys {
		if v, err := cfg.Get(key); err == nil {
			out[key] = v
		}
	}
	return out
}

// ApplySettings validates and applies runtime settings. Either all values
// are applied or none.
func (a *App) ApplySettings(values map[string]string) error {
	cfg := a.Config()
	for key, value := range values {
		if err := cfg.Set(key, value); err != nil {
			return err
		}
	}
	a.ApplyConfig(cfg)
	return nil
}

// ApplyConfig takes over the live-changeable parts of cfg: zoom, control,
// dry-run, mirror, pose tolerance and motion threshold.
func (a *App) ApplyConfig(cfg config.Config) {
	mapper := cfg.Pointer.Mapper(a.screenWidth, a.screenHeight)
	if err := mapper.Validate(); err != nil {
		a.log.Warn().Err(err).Msg("ignoring invalid pointer settings")
		return
	}

	a.switchControl(func() {
		cfg.Pointer.ScreenWidth, cfg.Pointer.ScreenHeight = a.cfg.Pointer.ScreenWidth, a.cfg.Pointer.ScreenHeight
		a.cfg.Pointer = cfg.Pointer
		a.cfg.Control = cfg.Control
		a.cfg.Tracking = cfg.Tracking
		a.cfg.Pose = cfg.Pose
		a.cfg.Motion.Threshold = cfg.Motion.Threshold
	})

	a.session.SetMapper(mapper)
	a.tracker.SetMirror(cfg.Tracking.Mirror)
	a.matcher.SetTolerance(cfg.Pose.Tolerance)
	a.motion.SetThreshold(cfg.Motion.Threshold)

	a.log.Debug().
		Float64("zoom", cfg.Pointer.Zoom).
		Bool("control", cfg.Control.Enabled).
		Bool("dry_run", cfg.Control.DryRun).
		Bool("mirror", cfg.Tracking.Mirror).
		Msg("settings applied")
}

// ReloadPoses replaces the trained pose templates with the enabled, trained
// poses from the store.
func (a *App) ReloadPoses() error {
	if a.store == nil {
		return nil
	}

	poses, err := a.store.Poses().List()
	if err != nil {
		return fmt.Errorf("list poses: %w", err)
	}

	templates := make([]*pose.Template, 0, len(poses))
	for _, p := range poses {
		if !p.Enabled || !p.Trained {
			continue
		}
		landmarks, err := a.store.Poses().GetLandmarks(p.ID)
		if err != nil {
			a.log.Warn().Err(err).Str("pose", p.Name).Msg("failed to load landmarks")
			continue
		}
		if len(landmarks) != detector.NumLandmarks {
			continue
		}
		templates = append(templates, &pose.Template{
			ID:        p.ID,
			Name:      p.Name,
			State:     body.ParseHandState(p.State),
			Landmarks: storeLandmarksToDetector(landmarks),
		})
	}

	a.matcher.ReplaceTrained(templates)
	a.log.Info().Int("trained", len(templates)).Msg("loaded poses from database")
	return nil
}

// storeLandmarksToDetector converts stored landmarks to points.
func storeLandmarksToDetector(landmarks []store.Landmark) []detector.Point3D {
	points := make([]detector.Point3D, len(landmarks))
	for _, l := range landmarks {
		if l.Index >= 0 && l.Index < len(points) {
			points[l.Index] = detector.Point3D{X: l.X, Y: l.Y, Z: l.Z}
		}
	}
	return points
}

// Subscribe registers fn to receive every processed snapshot. fn is called
// from the pipeline goroutine and must not block. The returned function
// unregisters it.
func (a *App) Subscribe(fn func(gesture.Snapshot)) func() {
	a.subMu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.subMu.Unlock()

	return func() {
		a.subMu.Lock()
		delete(a.subs, id)
		a.subMu.Unlock()
	}
}

func (a *App) publish(s gesture.Snapshot) {
	a.subMu.RLock()
	defer a.subMu.RUnlock()
	for _, fn := range a.subs {
		fn(s)
	}
}

// Snapshot returns the outcome of the most recent frame.
func (a *App) Snapshot() gesture.Snapshot {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	return a.last
}

// Status returns the current application status.
func (a *App) Status() Status {
	a.mu.RLock()
	st := Status{
		Running:        a.stopCh != nil,
		Enabled:        a.enabled,
		ControlEnabled: a.cfg.Control.Enabled,
		DryRun:         a.cfg.Control.DryRun,
		MotionActive:   a.gate.Active(),
		FPS:            a.gate.FPS(),
		ScreenWidth:    a.screenWidth,
		ScreenHeight:   a.screenHeight,
		Zoom:           a.cfg.Pointer.Zoom,
		Mirror:         a.cfg.Tracking.Mirror,
	}
	a.mu.RUnlock()

	st.Templates = len(a.matcher.Templates())

	a.frameMu.Lock()
	st.Frames = a.frames
	st.Snapshot = a.last
	if a.recorder != nil {
		st.Recording = a.cfg.Record.Path
	}
	a.frameMu.Unlock()

	return st
}

// Start opens the camera and begins the detection pipeline. Frames are
// recorded when record.path is set.
func (a *App) Start() error {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	if path := a.cfg.Record.Path; path != "" {
		w, err := recording.Create(path)
		if err != nil {
			a.camera.Close()
			return err
		}
		a.recorder = w
		a.log.Info().Str("path", path).Msg("recording frames")
	}

	if a.cfg.Motion.Threshold <= 0 {
		a.gate.Force(true, time.Now())
	}
	a.camera.SetFPS(a.gate.FPS())

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.log.Info().Msg("detection pipeline started")
	return nil
}

// Stop halts the pipeline and releases the camera, the detector and the
// recording. It waits for the frame in flight to finish.
func (a *App) Stop() error {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return nil
	}
	close(stopCh)
	<-doneCh

	a.frameMu.Lock()
	a.releaseHeld(a.activeEmitter())
	a.frameMu.Unlock()

	var errs []error
	if err := a.camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	a.motion.Close()
	if err := a.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}

	a.frameMu.Lock()
	if a.recorder != nil {
		a.log.Info().Int("frames", a.recorder.Frames()).Msg("recording closed")
		if err := a.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close recording: %w", err))
		}
		a.recorder = nil
	}
	a.frameMu.Unlock()

	a.log.Info().Msg("detection pipeline stopped")
	return errors.Join(errs...)
}
