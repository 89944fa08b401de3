package detector

import "gocv.io/x/gocv"

// Detector finds hands in a camera frame.
type Detector interface {
	// Detect returns the hands found in frame, or an empty slice.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds hand detection settings.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int `json:"max_hands"`

	// MinConfidence is the minimum detection confidence (0.0-1.0).
	MinConfidence float64 `json:"min_detection_confidence"`

	// MinTrackingConf is the minimum tracking confidence (0.0-1.0).
	MinTrackingConf float64 `json:"min_tracking_confidence"`

	// ScriptPath overrides the location of mediapipe_service.py.
	ScriptPath string `json:"-"`
}

// DefaultConfig returns the settings used when none are configured.
// Two hands are needed for the scroll gesture.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
