// Package capture reads frames from a camera through OpenCV and decides
// when the camera may idle.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrCameraNotOpen is returned when reading from a closed camera.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEmptyFrame is returned when the device delivers no image.
	ErrEmptyFrame = errors.New("captured frame is empty")
	// ErrNoFrames is returned by a mock camera that has run out of frames.
	ErrNoFrames = errors.New("no more frames")
)

// Options configures a camera device.
type Options struct {
	Device int
	Width  int
	Height int
	FPS    int
}

// DefaultOptions opens the first camera at 640x480, 30 FPS.
func DefaultOptions() Options {
	return Options{Device: 0, Width: 640, Height: 480, FPS: 30}
}

// Camera is a source of frames. Frames returned by ReadFrame belong to the
// caller, who must Close them.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// Resolution is the frame size the device actually delivers once open,
	// or the requested size before that.
	Resolution() (width, height int)
}

type cameraImpl struct {
	opts    Options
	capture *gocv.VideoCapture
	mu      sync.Mutex
	width   int
	height  int
}

// NewCamera creates a camera for opts. The device is opened by Open.
func NewCamera(opts Options) Camera {
	d := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = d.Width, d.Height
	}
	if opts.FPS <= 0 {
		opts.FPS = d.FPS
	}
	return &cameraImpl{opts: opts, width: opts.Width, height: opts.Height}
}

func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.opts.Device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.opts.Device, err)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.opts.FPS))

	// Devices silently fall back to the nearest mode they support.
	if w := int(vc.Get(gocv.VideoCaptureFrameWidth)); w > 0 {
		c.width = w
	}
	if h := int(vc.Get(gocv.VideoCaptureFrameHeight)); h > 0 {
		c.height = h
	}

	c.capture = vc
	return nil
}

func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}
	return &mat, nil
}

// SetFPS ignores non-positive values.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts.FPS = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.FPS
}

func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}

func (c *cameraImpl) Resolution() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}
