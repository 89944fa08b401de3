// Package recording stores tracked frames as JSON lines, optionally
// zstd-compressed, so sessions can be replayed through the classifier.
package recording

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/ayusman/handcursor/internal/body"
)

const (
	PlainExt      = ".jsonl"
	CompressedExt = ".jsonl.zst"
)

// ErrUnknownFormat is returned for paths that end in neither .jsonl nor
// .jsonl.zst.
var ErrUnknownFormat = errors.New("unknown recording format")

// Compressed reports whether path names a zstd recording, or
// ErrUnknownFormat.
func Compressed(path string) (bool, error) {
	switch {
	case strings.HasSuffix(path, CompressedExt):
		return true, nil
	case strings.HasSuffix(path, PlainExt):
		return false, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
}

// Writer appends frames to a recording. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	file    io.Closer
	encoder *zstd.Encoder
	enc     *json.Encoder
	frames  int
}

// Create starts a new recording at path, truncating any existing file.
func Create(path string) (*Writer, error) {
	compressed, err := Compressed(path)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create recording dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	w, err := NewWriter(f, compressed)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter writes a recording to w. Close does not close w.
func NewWriter(w io.Writer, compressed bool) (*Writer, error) {
	rw := &Writer{}
	if compressed {
		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		rw.encoder = encoder
		w = encoder
	}
	rw.enc = json.NewEncoder(w)
	return rw, nil
}

// Write appends one frame.
func (w *Writer) Write(frame body.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return os.ErrClosed
	}
	if err := w.enc.Encode(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	w.frames++
	return nil
}

// Frames returns how many frames have been written.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close flushes compression and closes the file opened by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return nil
	}
	w.enc = nil

	var errs []error
	if w.encoder != nil {
		if err := w.encoder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("finalize compression: %w", err))
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close recording: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Reader iterates the frames of a recording.
type Reader struct {
	file    io.Closer
	decoder *zstd.Decoder
	dec     *json.Decoder
}

// Open opens the recording at path.
func Open(path string) (*Reader, error) {
	compressed, err := Compressed(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	r, err := NewReader(f, compressed)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewReader reads a recording from r. Close does not close r.
func NewReader(r io.Reader, compressed bool) (*Reader, error) {
	rr := &Reader{}
	if compressed {
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		rr.decoder = decoder
		r = decoder
	}
	rr.dec = json.NewDecoder(r)
	return rr, nil
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (body.Frame, error) {
	var frame body.Frame
	if err := r.dec.Decode(&frame); err != nil {
		if errors.Is(err, io.EOF) {
			return body.Frame{}, io.EOF
		}
		return body.Frame{}, fmt.Errorf("read frame: %w", err)
	}
	return frame, nil
}

// Each calls fn for every remaining frame, stopping at the first error.
func (r *Reader) Each(fn func(body.Frame) error) error {
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}

// Close releases the decoder and the file opened by Open.
func (r *Reader) Close() error {
	if r.decoder != nil {
		r.decoder.Close()
		r.decoder = nil
	}
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
