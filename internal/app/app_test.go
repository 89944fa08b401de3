package app

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/capture"
	"github.com/ayusman/handcursor/internal/config"
	"github.com/ayusman/handcursor/internal/detector"
	"github.com/ayusman/handcursor/internal/gesture"
	"github.com/ayusman/handcursor/internal/input"
	"github.com/ayusman/handcursor/internal/pose"
	"github.com/ayusman/handcursor/internal/store"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.DataDir = ""
	cfg.Pointer.ScreenWidth = 1920
	cfg.Pointer.ScreenHeight = 1080
	cfg.Control.Enabled = true
	return cfg
}

// leftHand mirrors a right-hand preset about its wrist.
func leftHand(h detector.HandLandmarks) detector.HandLandmarks {
	wrist := h.Points[detector.Wrist].X
	for i := range h.Points {
		h.Points[i].X = 2*wrist - h.Points[i].X
	}
	return detector.WithHandedness(h, "Left")
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestApp(t *testing.T, cfg config.Config, s *store.Store) (*App, *input.Recorder) {
	t.Helper()
	rec := input.NewRecorder()
	a, err := New(Options{
		Config:   cfg,
		Store:    s,
		Camera:   capture.NewMockCamera(nil, false),
		Detector: detector.NewMockDetector(),
		Emitter:  rec,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, rec
}

func TestApp_ProcessHands_PressAndRelease(t *testing.T) {
	a, rec := newTestApp(t, testConfig(), nil)

	res, snap := a.ProcessHands([]detector.HandLandmarks{detector.FistLandmarks()}, 1)
	if res.Action.Kind != gesture.PressLeft {
		t.Errorf("expected press-left, got %s", res.Action.Kind)
	}
	if snap.Right.State != "Closed" || !snap.Right.Active {
		t.Errorf("expected active closed right hand, got %+v", snap.Right)
	}
	if snap.Left.State != "Not tracked" {
		t.Errorf("expected untracked left hand, got %s", snap.Left.State)
	}

	a.ProcessHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()}, 2)

	if got, want := rec.Ops(), []string{"left_down", "left_up"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected ops %v, got %v", want, got)
	}

	events := rec.Events()
	if len(events) == 0 || events[0].Op != "move" {
		t.Fatalf("expected a move before the press, got %v", events)
	}
	if events[0].X <= 0 || events[0].Y <= 0 {
		t.Errorf("expected on-screen move, got (%d, %d)", events[0].X, events[0].Y)
	}

	if a.Status().Frames != 2 {
		t.Errorf("expected 2 frames, got %d", a.Status().Frames)
	}
}

func TestApp_ProcessHands_NoHands(t *testing.T) {
	a, rec := newTestApp(t, testConfig(), nil)

	res, snap := a.ProcessHands(nil, 5)
	if len(res.Intents()) != 0 {
		t.Errorf("expected no intents, got %v", res.Intents())
	}
	if snap.Bodies != 0 || snap.Timestamp != 5 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if len(rec.Events()) != 0 {
		t.Errorf("expected no events, got %v", rec.Events())
	}
}

func TestApp_ControlDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Control.Enabled = false
	a, rec := newTestApp(t, cfg, nil)

	res, snap := a.ProcessHands([]detector.HandLandmarks{detector.FistLandmarks()}, 1)
	if res.Action.Kind != gesture.PressLeft {
		t.Errorf("gestures should still be classified, got %s", res.Action.Kind)
	}
	if len(snap.Intents) != 2 {
		t.Errorf("expected move and press in snapshot, got %v", snap.Intents)
	}
	if len(rec.Events()) != 0 {
		t.Errorf("expected no injected events, got %v", rec.Events())
	}

	a.SetControlEnabled(true)
	a.ProcessHands([]detector.HandLandmarks{detector.FistLandmarks()}, 2)
	if got := rec.Ops(); !reflect.DeepEqual(got, []string{"left_down"}) {
		t.Errorf("expected left_down after enabling control, got %v", got)
	}
}

func TestApp_DryRun(t *testing.T) {
	cfg := testConfig()
	cfg.Control.DryRun = true
	a, rec := newTestApp(t, cfg, nil)

	a.ProcessHands([]detector.HandLandmarks{detector.FistLandmarks()}, 1)
	if len(rec.Events()) != 0 {
		t.Errorf("dry run should not reach the emitter, got %v", rec.Events())
	}
}

func TestApp_LostHandsReleaseButton(t *testing.T) {
	a, rec := newTestApp(t, testConfig(), nil)

	a.ProcessHands([]detector.HandLandmarks{detector.FistLandmarks()}, 1)
	res, snap := a.ProcessHands(nil, 2)

	if got, want := rec.Ops(), []string{"left_down", "left_up"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected ops %v, got %v", want, got)
	}
	if len(res.Released) != 1 || len(snap.Intents) != 1 {
		t.Errorf("expected the release in result and snapshot, got %v / %v", res.Released, snap.Intents)
	}

	// the re-acquired hand starts fresh
	a.ProcessHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()}, 3)
	if got := rec.Ops(); len(got) != 2 {
		t.Errorf("expected no further button events, got %v", got)
	}
}

func TestApp_SwitchingOutputReleasesButton(t *testing.T) {
	tests := []struct {
		name   string
		toggle func(a *App) error
	}{
		{
			name: "control off",
			toggle: func(a *App) error {
				a.SetControlEnabled(false)
				return nil
			},
		},
		{
			name: "dry run on",
			toggle: func(a *App) error {
				return a.ApplySettings(map[string]string{"control.dry_run": "true"})
			},
		},
		{
			name: "detection off",
			toggle: func(a *App) error {
				a.SetEnabled(false)
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, rec := newTestApp(t, testConfig(), nil)
			a.SetEnabled(true)

			a.ProcessHands([]detector.HandLandmarks{detector.FistLandmarks()}, 1)
			if err := tt.toggle(a); err != nil {
				t.Fatalf("toggle error = %v", err)
			}

			if got, want := rec.Ops(), []string{"left_down", "left_up"}; !reflect.DeepEqual(got, want) {
				t.Errorf("expected ops %v, got %v", want, got)
			}
		})
	}
}

func TestApp_SettingsKeepHeldButton(t *testing.T) {
	a, rec := newTestApp(t, testConfig(), nil)

	a.ProcessHands([]detector.HandLandmarks{detector.FistLandmarks()}, 1)
	if err := a.ApplySettings(map[string]string{"pointer.zoom": "1.5"}); err != nil {
		t.Fatalf("ApplySettings() error = %v", err)
	}
	a.ProcessHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()}, 2)

	if got, want := rec.Ops(), []string{"left_down", "left_up"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected ops %v, got %v", want, got)
	}
}

func TestApp_Scroll(t *testing.T) {
	a, rec := newTestApp(t, testConfig(), nil)

	hands := func(spread float64) []detector.HandLandmarks {
		return []detector.HandLandmarks{
			leftHand(detector.MoveTo(detector.FistLandmarks(), 0.5-spread, 0.6)),
			detector.MoveTo(detector.FistLandmarks(), 0.5+spread, 0.6),
		}
	}

	a.ProcessHands(hands(0.1), 1)
	a.ProcessHands(hands(0.2), 2)

	var scrolls []input.Event
	for _, e := range rec.Events() {
		if e.Op == "scroll" {
			scrolls = append(scrolls, e)
		}
	}
	if len(scrolls) != 1 {
		t.Fatalf("expected one non-zero scroll, got %v", rec.Events())
	}
	if scrolls[0].Delta == 0 {
		t.Error("expected a non-zero scroll delta")
	}
}

func TestApp_Subscribe(t *testing.T) {
	a, _ := newTestApp(t, testConfig(), nil)

	var got []gesture.Snapshot
	cancel := a.Subscribe(func(s gesture.Snapshot) {
		got = append(got, s)
	})

	a.ProcessHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()}, 10)
	cancel()
	a.ProcessHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()}, 11)

	if len(got) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(got))
	}
	if got[0].Timestamp != 10 || got[0].Right.State != "Open" {
		t.Errorf("unexpected snapshot %+v", got[0])
	}
	if a.Snapshot().Timestamp != 11 {
		t.Errorf("expected latest snapshot at 11, got %d", a.Snapshot().Timestamp)
	}
}

func TestApp_ApplySettings(t *testing.T) {
	a, _ := newTestApp(t, testConfig(), nil)

	t.Run("valid", func(t *testing.T) {
		err := a.ApplySettings(map[string]string{
			"pointer.zoom":    "3",
			"tracking.mirror": "false",
		})
		if err != nil {
			t.Fatalf("ApplySettings() error = %v", err)
		}
		settings := a.Settings()
		if settings["pointer.zoom"] != "3" || settings["tracking.mirror"] != "false" {
			t.Errorf("settings not applied: %v", settings)
		}
		if a.Status().Zoom != 3 {
			t.Errorf("expected zoom 3, got %v", a.Status().Zoom)
		}
	})

	t.Run("invalid leaves everything unchanged", func(t *testing.T) {
		err := a.ApplySettings(map[string]string{
			"pointer.zoom":   "4",
			"pose.tolerance": "-1",
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if a.Settings()["pointer.zoom"] != "3" {
			t.Errorf("zoom should be unchanged, got %s", a.Settings()["pointer.zoom"])
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if err := a.ApplySettings(map[string]string{"camera.fps": "60"}); err == nil {
			t.Error("expected error for non-runtime key")
		}
	})
}

func TestApp_StoredSettingsOverrideConfig(t *testing.T) {
	s := newTestStore(t)
	s.Settings().Set("control.enabled", "false")
	s.Settings().Set("pointer.zoom", "1.5")
	s.Settings().Set("pose.tolerance", "nonsense")

	a, _ := newTestApp(t, testConfig(), s)

	if a.ControlEnabled() {
		t.Error("stored control.enabled=false should win over config")
	}
	if a.Config().Pointer.Zoom != 1.5 {
		t.Errorf("expected zoom 1.5, got %v", a.Config().Pointer.Zoom)
	}
	if a.Config().Pose.Tolerance != pose.DefaultTolerance {
		t.Errorf("invalid stored tolerance should be ignored, got %v", a.Config().Pose.Tolerance)
	}
}

func TestApp_ReloadPoses(t *testing.T) {
	s := newTestStore(t)
	a, rec := newTestApp(t, testConfig(), s)

	builtin := a.Status().Templates

	// Train thumbs-up as a lasso, which the built-in templates read as a fist.
	thumbs := detector.ThumbsUpLandmarks()
	canonical := pose.Canonical(&thumbs)
	landmarks := make([]store.Landmark, len(canonical))
	for i, p := range canonical {
		landmarks[i] = store.Landmark{Index: i, X: p.X, Y: p.Y, Z: p.Z}
	}

	s.Poses().Create(&store.Pose{ID: "thumbs", Name: "thumbs up", State: "Lasso", Enabled: true})
	s.Poses().SetLandmarks("thumbs", landmarks)
	s.Poses().Create(&store.Pose{ID: "off", Name: "disabled", State: "Open", Enabled: false})
	s.Poses().SetLandmarks("off", landmarks)
	s.Poses().Create(&store.Pose{ID: "untrained", Name: "untrained", State: "Open", Enabled: true})

	if err := a.ReloadPoses(); err != nil {
		t.Fatalf("ReloadPoses() error = %v", err)
	}
	if got := a.Status().Templates; got != builtin+1 {
		t.Errorf("expected %d templates, got %d", builtin+1, got)
	}

	_, snap := a.ProcessHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()}, 1)
	if snap.Right.State != body.Lasso.String() {
		t.Errorf("expected trained pose to win, got %s", snap.Right.State)
	}
	if got := rec.Ops(); !reflect.DeepEqual(got, []string{"right_click"}) {
		t.Errorf("expected right_click, got %v", got)
	}

	s.Poses().Delete("thumbs")
	a.ReloadPoses()
	if got := a.Status().Templates; got != builtin {
		t.Errorf("expected trained template removed, got %d templates", got)
	}
}

func TestApp_ProcessFrame_Replay(t *testing.T) {
	a, rec := newTestApp(t, testConfig(), nil)

	frame := body.Frame{
		Timestamp: 1,
		Bodies: []body.Body{{
			TrackingID: 7,
			Left:       body.HandSample{State: body.NotTracked, Side: body.Left},
			Right: body.HandSample{
				Position: detector.Point3D{X: 0.5, Y: 0.5, Z: 0.5},
				State:    body.Lasso,
				Side:     body.Right,
			},
		}},
	}

	res, snap, ok := a.ProcessFrame(frame)
	if !ok {
		t.Fatal("expected frame with a body to be processed")
	}
	if res.Action.Kind != gesture.ClickRight {
		t.Errorf("expected click-right, got %s", res.Action.Kind)
	}
	if snap.TrackingID != 7 {
		t.Errorf("expected tracking id 7, got %d", snap.TrackingID)
	}
	if got := rec.Ops(); !reflect.DeepEqual(got, []string{"right_click"}) {
		t.Errorf("expected right_click, got %v", got)
	}
}

func TestApp_EnabledToggle(t *testing.T) {
	a, _ := newTestApp(t, testConfig(), nil)

	if a.IsEnabled() {
		t.Error("detection should start disabled")
	}
	a.SetEnabled(true)
	if !a.IsEnabled() || !a.Status().Enabled {
		t.Error("detection should be enabled")
	}
}
