package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamInterval paces the preview at about 15 FPS.
const streamInterval = 66 * time.Millisecond

// FrameSource provides the latest camera frame as JPEG.
type FrameSource interface {
	LatestJPEG() ([]byte, bool)
}

// StreamHandler serves the camera preview as MJPEG.
type StreamHandler struct {
	source   FrameSource
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler reading from source.
func NewStreamHandler(source FrameSource) *StreamHandler {
	return &StreamHandler{source: source, interval: streamInterval}
}

// ServeHTTP streams frames until the client disconnects. Frames are only
// sent when they change.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last []byte
	for {
		data, ok := h.source.LatestJPEG()
		if ok && !sameFrame(data, last) {
			if err := writePart(w, data); err != nil {
				return
			}
			last = data
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// sameFrame compares by identity; the pipeline never reuses buffers.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
