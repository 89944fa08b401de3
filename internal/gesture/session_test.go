package gesture

import (
	"sync"
	"testing"

	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/detector"
	"github.com/ayusman/handcursor/internal/pointer"
)

func trackedBody(id uint64, depth float64, left, right body.HandSample) body.Body {
	return body.Body{
		TrackingID: id,
		Head:       detector.Point3D{Z: depth},
		Left:       left,
		Right:      right,
	}
}

func TestSession_NearestBodyDrives(t *testing.T) {
	s := NewSession(identityClassifier())

	far := trackedBody(1, 3.0, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Closed, 100, 100))
	near := trackedBody(2, 1.0, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Lasso, 200, 200))

	res, snap, ok := s.Process(body.Frame{Timestamp: 10, Bodies: []body.Body{far, near}})
	if !ok {
		t.Fatal("expected frame to be processed")
	}
	if res.Action.Kind != ClickRight {
		t.Errorf("expected ClickRight from nearest body, got %v", res.Action.Kind)
	}
	if snap.TrackingID != 2 {
		t.Errorf("expected snapshot for body 2, got %d", snap.TrackingID)
	}
	if snap.Bodies != 2 {
		t.Errorf("expected 2 bodies, got %d", snap.Bodies)
	}

	st, ok := s.State(2)
	if !ok || st.LastButton != ButtonRightDown {
		t.Errorf("expected RightDown for body 2, got %+v (ok=%v)", st, ok)
	}

	st, ok = s.State(1)
	if !ok || st != (State{}) {
		t.Errorf("expected untouched state for body 1, got %+v (ok=%v)", st, ok)
	}
}

func TestSession_StatesIsolatedPerBody(t *testing.T) {
	s := NewSession(identityClassifier())
	a := trackedBody(1, 1.0, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Closed, 10, 10))

	s.Process(body.Frame{Bodies: []body.Body{a}})

	// body 2 comes closer and opens its hand: nothing was pressed for it
	b := trackedBody(2, 0.5, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Open, 10, 10))
	res, _, _ := s.Process(body.Frame{Bodies: []body.Body{a, b}})
	if res.Action.Kind != NoOp {
		t.Errorf("expected NoOp for body 2, got %v", res.Action.Kind)
	}

	st, _ := s.State(1)
	if st.LastButton != ButtonLeftDown {
		t.Errorf("expected body 1 to keep LeftDown, got %v", st.LastButton)
	}
}

func TestSession_DiscardsLostBodies(t *testing.T) {
	s := NewSession(identityClassifier())
	a := trackedBody(1, 1.0, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Closed, 10, 10))

	s.Process(body.Frame{Bodies: []body.Body{a}})
	if s.Tracked() != 1 {
		t.Fatalf("expected 1 tracked body, got %d", s.Tracked())
	}

	res, snap, ok := s.Process(body.Frame{Timestamp: 5})
	if ok {
		t.Error("expected empty frame to report false")
	}
	if s.Tracked() != 0 {
		t.Errorf("expected state discarded, got %d", s.Tracked())
	}
	if len(res.Released) != 1 || res.Released[0].Kind != ReleaseLeft {
		t.Errorf("expected release-left for the lost body, got %v", res.Released)
	}
	if len(snap.Intents) != 1 || snap.Intents[0].Kind != ReleaseLeft {
		t.Errorf("expected snapshot to carry the release, got %v", snap.Intents)
	}

	// re-acquired body starts fresh: Open does not release
	a.Right.State = body.Open
	res, _, _ = s.Process(body.Frame{Bodies: []body.Body{a}})
	if res.Action.Kind != NoOp {
		t.Errorf("expected NoOp after reacquire, got %v", res.Action.Kind)
	}
}

func TestSession_LostBodyReleasedOnce(t *testing.T) {
	s := NewSession(identityClassifier())
	lost := trackedBody(1, 2.0, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Lasso, 10, 10))
	other := trackedBody(2, 1.0, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Open, 10, 10))

	s.Process(body.Frame{Bodies: []body.Body{lost}})

	res, _, ok := s.Process(body.Frame{Bodies: []body.Body{other}})
	if !ok {
		t.Fatal("expected frame to be processed")
	}
	if len(res.Released) != 1 || res.Released[0].Kind != ReleaseRight {
		t.Errorf("expected release-right for body 1, got %v", res.Released)
	}
	if got := res.Intents(); len(got) != 2 || got[0].Kind != ReleaseRight || got[1].Kind != Move {
		t.Errorf("expected release before move, got %v", got)
	}

	res, _, _ = s.Process(body.Frame{Bodies: []body.Body{other}})
	if len(res.Released) != 0 {
		t.Errorf("expected no further releases, got %v", res.Released)
	}
}

func TestSession_ReleaseAll(t *testing.T) {
	s := NewSession(identityClassifier())
	a := trackedBody(9, 1.0, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Closed, 10, 10))
	b := trackedBody(4, 2.0, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Open, 10, 10))
	s.Process(body.Frame{Bodies: []body.Body{a, b}})

	res := s.ReleaseAll()
	if len(res.Released) != 1 || res.Released[0].Kind != ReleaseLeft {
		t.Errorf("expected one release-left, got %v", res.Released)
	}
	if s.Tracked() != 0 {
		t.Errorf("expected no state after ReleaseAll, got %d", s.Tracked())
	}
	if res := s.ReleaseAll(); len(res.Released) != 0 {
		t.Errorf("expected nothing left to release, got %v", res.Released)
	}
}

func TestSession_Snapshot(t *testing.T) {
	s := NewSession(identityClassifier())
	b := trackedBody(3, 1.0, hand(body.Left, body.Closed, 100.4, 200.9), hand(body.Right, body.Closed, 300.2, 250.5))

	_, snap, _ := s.Process(body.Frame{Timestamp: 99, Bodies: []body.Body{b}})

	if snap.Left.State != "Closed" || snap.Right.State != "Closed" {
		t.Errorf("unexpected states %q/%q", snap.Left.State, snap.Right.State)
	}
	if snap.Left.Position != (pointer.Pixel{X: 100, Y: 200}) {
		t.Errorf("unexpected left position %+v", snap.Left.Position)
	}
	if snap.Distance != (pointer.Pixel{X: 199, Y: 49}) {
		t.Errorf("unexpected distance %+v", snap.Distance)
	}
	if !snap.Wheel {
		t.Error("expected wheel when both hands closed")
	}
	if !snap.Right.Active || snap.Left.Active {
		t.Error("expected right hand active")
	}
	if len(snap.Intents) != 2 || snap.Intents[1].Kind != ScrollBy {
		t.Errorf("expected move + scroll intents, got %v", snap.Intents)
	}
	if snap.Timestamp != 99 {
		t.Errorf("expected timestamp 99, got %d", snap.Timestamp)
	}
}

func TestSession_SetMapper(t *testing.T) {
	s := NewSession(identityClassifier())
	m := pointer.NewMapper(1280, 720)
	s.SetMapper(m)

	if got := s.Mapper(); got != m {
		t.Errorf("expected mapper %+v, got %+v", m, got)
	}
}

func TestSession_ConcurrentProcess(t *testing.T) {
	s := NewSession(identityClassifier())
	b := trackedBody(1, 1.0, hand(body.Left, body.Open, 0, 0), hand(body.Right, body.Lasso, 10, 10))

	var wg sync.WaitGroup
	clicks := make(chan struct{}, 100)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, _ := s.Process(body.Frame{Bodies: []body.Body{b}})
			if res.Action.Kind == ClickRight {
				clicks <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(clicks)

	n := 0
	for range clicks {
		n++
	}
	if n != 1 {
		t.Errorf("expected a single ClickRight across concurrent frames, got %d", n)
	}
}
