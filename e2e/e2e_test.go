package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handcursor/internal/app"
	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/capture"
	"github.com/ayusman/handcursor/internal/config"
	"github.com/ayusman/handcursor/internal/detector"
	"github.com/ayusman/handcursor/internal/gesture"
	"github.com/ayusman/handcursor/internal/input"
	"github.com/ayusman/handcursor/internal/pose"
	"github.com/ayusman/handcursor/internal/recording"
	"github.com/ayusman/handcursor/internal/server"
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

func newApp(t *testing.T, s *store.Store) (*app.App, *input.Recorder) {
	t.Helper()
	rec := input.NewRecorder()
	a, err := app.New(app.Options{
		Config:   testConfig(),
		Store:    s,
		Camera:   capture.NewMockCamera(nil, false),
		Detector: detector.NewMockDetector(),
		Emitter:  rec,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	return a, rec
}

func TestE2E_ReplayRecordings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tests := []struct {
		name string
		ops  []string
	}{
		{"click", []string{"left_down", "left_down", "left_up"}},
		{"right_click", []string{"right_click", "right_up"}},
		{"scroll", []string{"scroll", "scroll"}},
		{"idle", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := loadRecording(t, tt.name)

			a, rec := newApp(t, nil)
			for _, f := range frames {
				a.ProcessFrame(f)
			}

			if got := rec.Ops(); !reflect.DeepEqual(got, tt.ops) {
				t.Errorf("ops = %v, want %v", got, tt.ops)
			}
			if got := a.Status().Frames; got != uint64(len(frames)) {
				t.Errorf("frames = %d, want %d", got, len(frames))
			}
		})
	}
}

func TestE2E_ScrollDirection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	frames := loadRecording(t, "scroll")

	a, rec := newApp(t, nil)
	for _, f := range frames {
		a.ProcessFrame(f)
	}

	for _, e := range rec.Events() {
		if e.Op == "scroll" && e.Delta <= 0 {
			t.Errorf("hands moving apart should scroll by a positive delta, got %d", e.Delta)
		}
	}
}

// loadRecording reads testdata/recordings/<name>.jsonl.
func loadRecording(t *testing.T, name string) []body.Frame {
	t.Helper()
	r, err := recording.Open(filepath.Join("..", "testdata", "recordings", name+".jsonl"))
	if err != nil {
		t.Fatalf("open recording %s: %v", name, err)
	}
	defer r.Close()

	var frames []body.Frame
	if err := r.Each(func(f body.Frame) error {
		frames = append(frames, f)
		return nil
	}); err != nil {
		t.Fatalf("read recording %s: %v", name, err)
	}
	if len(frames) == 0 {
		t.Fatalf("recording %s is empty", name)
	}
	return frames
}

func TestE2E_LiveView(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	a, _ := newApp(t, nil)
	srv := server.New(server.Config{Controller: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/bodies"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for viewers(t, ts) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	frames := loadRecording(t, "click")
	a.ProcessFrame(frames[1])

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snap gesture.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if snap.Bodies != 1 || snap.Right.State != "Closed" || !snap.Right.Active {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if len(snap.Intents) != 2 || snap.Intents[1].Kind != gesture.PressLeft {
		t.Errorf("expected move and press-left, got %v", snap.Intents)
	}

	resp, err := ts.Client().Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	defer resp.Body.Close()

	var status app.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Frames != 1 || status.Snapshot.TrackingID != 1 {
		t.Errorf("unexpected status %+v", status)
	}
}

func viewers(t *testing.T, ts *httptest.Server) int {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("health error = %v", err)
	}
	defer resp.Body.Close()
	var health struct {
		Viewers int `json:"viewers"`
	}
	json.NewDecoder(resp.Body).Decode(&health)
	return health.Viewers
}

func TestE2E_TrainPoseThenClick(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	a, rec := newApp(t, s)
	srv := server.New(server.Config{Store: s, Controller: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()
	post := func(path string, body any) *http.Response {
		t.Helper()
		data, _ := json.Marshal(body)
		resp, err := client.Post(ts.URL+path, "application/json", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("POST %s error = %v", path, err)
		}
		return resp
	}

	// untrained, a thumbs-up reads as a fist
	res, _ := a.ProcessHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()}, 1)
	if res.Action.Kind != gesture.PressLeft {
		t.Fatalf("expected press-left before training, got %s", res.Action.Kind)
	}
	a.ProcessHands(nil, 2)
	rec.Reset()

	resp := post("/api/poses", map[string]any{"name": "thumbs", "state": "Lasso"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	var samples []json.RawMessage
	for i := 0; i < 3; i++ {
		raw, err := pose.NewSample(detector.ThumbsUpLandmarks(), int64(i))
		if err != nil {
			t.Fatalf("NewSample() error = %v", err)
		}
		samples = append(samples, raw)
	}
	resp = post("/api/poses/"+created.ID+"/samples", map[string]any{"samples": samples})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("samples status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	resp.Body.Close()

	resp = post("/api/poses/"+created.ID+"/train", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("train status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	a.ProcessHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()}, 3)
	a.ProcessHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()}, 4)

	if got, want := rec.Ops(), []string{"right_click", "right_up"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}
