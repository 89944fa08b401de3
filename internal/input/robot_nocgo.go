//go:build !cgo

package input

// Robot is unavailable without cgo; every call returns ErrUnsupported.
type Robot struct{}

// NewRobot reports that OS pointer injection needs a cgo build.
func NewRobot() (*Robot, error) {
	return nil, ErrUnsupported
}

func (r *Robot) Move(x, y int) error    { return ErrUnsupported }
func (r *Robot) LeftDown() error        { return ErrUnsupported }
func (r *Robot) LeftUp() error          { return ErrUnsupported }
func (r *Robot) RightUp() error         { return ErrUnsupported }
func (r *Robot) RightClick() error      { return ErrUnsupported }
func (r *Robot) Scroll(delta int) error { return ErrUnsupported }

// ScreenSize cannot query the display without cgo.
func ScreenSize() (width, height int, err error) {
	return 0, 0, ErrUnsupported
}
