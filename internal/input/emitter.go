// Package input injects pointer events into the operating system.
package input

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayusman/handcursor/internal/gesture"
	"github.com/ayusman/handcursor/internal/logger"
)

// ErrUnsupported is returned by emitters that cannot inject input on this
// build or platform.
var ErrUnsupported = errors.New("pointer injection unsupported")

// Emitter performs pointer operations. Coordinates are absolute screen
// pixels.
type Emitter interface {
	Move(x, y int) error
	LeftDown() error
	LeftUp() error
	RightUp() error
	RightClick() error
	Scroll(delta int) error
}

// Dispatch sends the intents of one classification pass to e: releases for
// dropped bodies first, then the move, then the action. Scroll deltas are
// rounded and zero scrolls are skipped. Every failure is returned.
func Dispatch(e Emitter, r gesture.Result) error {
	var errs []error

	for _, in := range r.Released {
		errs = append(errs, action(e, in))
	}

	if r.Move.Kind == gesture.Move {
		if err := e.Move(r.Move.Point.X, r.Move.Point.Y); err != nil {
			errs = append(errs, fmt.Errorf("move: %w", err))
		}
	}

	errs = append(errs, action(e, r.Action))
	return errors.Join(errs...)
}

func action(e Emitter, in gesture.Intent) error {
	var err error
	switch in.Kind {
	case gesture.PressLeft:
		err = e.LeftDown()
	case gesture.ReleaseLeft:
		err = e.LeftUp()
	case gesture.ReleaseRight:
		err = e.RightUp()
	case gesture.ClickRight:
		err = e.RightClick()
	case gesture.ScrollBy:
		if delta := roundDelta(in.Delta); delta != 0 {
			err = e.Scroll(delta)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", in.Kind, err)
	}
	return nil
}

func roundDelta(d float64) int {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return int(math.Round(d))
}

// LogEmitter logs every operation instead of performing it.
type LogEmitter struct {
	log *zerolog.Logger
}

// NewLogEmitter creates a dry-run emitter.
func NewLogEmitter() *LogEmitter {
	return &LogEmitter{log: logger.WithComponent("input")}
}

func (l *LogEmitter) Move(x, y int) error {
	l.log.Trace().Int("x", x).Int("y", y).Msg("move")
	return nil
}

func (l *LogEmitter) LeftDown() error {
	l.log.Info().Msg("left down")
	return nil
}

func (l *LogEmitter) LeftUp() error {
	l.log.Info().Msg("left up")
	return nil
}

func (l *LogEmitter) RightUp() error {
	l.log.Info().Msg("right up")
	return nil
}

func (l *LogEmitter) RightClick() error {
	l.log.Info().Msg("right click")
	return nil
}

func (l *LogEmitter) Scroll(delta int) error {
	l.log.Info().Int("delta", delta).Msg("scroll")
	return nil
}

// Event is one operation captured by a Recorder.
type Event struct {
	Op    string `json:"op"`
	X     int    `json:"x,omitempty"`
	Y     int    `json:"y,omitempty"`
	Delta int    `json:"delta,omitempty"`
}

// Recorder keeps every operation in memory. It optionally fails each call
// with a configured error.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetError makes every subsequent call return err.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Events returns a copy of the recorded operations.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Ops returns the recorded operation names, moves excluded.
func (r *Recorder) Ops() []string {
	var ops []string
	for _, e := range r.Events() {
		if e.Op != "move" {
			ops = append(ops, e.Op)
		}
	}
	return ops
}

// Reset clears the recorded operations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *Recorder) record(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Move(x, y int) error    { return r.record(Event{Op: "move", X: x, Y: y}) }
func (r *Recorder) LeftDown() error        { return r.record(Event{Op: "left_down"}) }
func (r *Recorder) LeftUp() error          { return r.record(Event{Op: "left_up"}) }
func (r *Recorder) RightUp() error         { return r.record(Event{Op: "right_up"}) }
func (r *Recorder) RightClick() error      { return r.record(Event{Op: "right_click"}) }
func (r *Recorder) Scroll(delta int) error { return r.record(Event{Op: "scroll", Delta: delta}) }
