//go:build cgo

package input

import (
	"github.com/go-vgo/robotgo"
)

// Robot drives the real cursor through robotgo.
type Robot struct{}

// NewRobot returns the OS pointer emitter.
func NewRobot() (*Robot, error) {
	return &Robot{}, nil
}

func (r *Robot) Move(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (r *Robot) LeftDown() error {
	return robotgo.Toggle("left")
}

func (r *Robot) LeftUp() error {
	return robotgo.Toggle("left", "up")
}

func (r *Robot) RightUp() error {
	return robotgo.Toggle("right", "up")
}

func (r *Robot) RightClick() error {
	robotgo.Click("right")
	return nil
}

// Scroll turns the vertical wheel; positive deltas scroll up.
func (r *Robot) Scroll(delta int) error {
	robotgo.Scroll(0, delta)
	return nil
}

// ScreenSize reports the primary display resolution.
func ScreenSize() (width, height int, err error) {
	width, height = robotgo.GetScreenSize()
	if width <= 0 || height <= 0 {
		return 0, 0, ErrUnsupported
	}
	return width, height, nil
}
