package pose

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/handcursor/internal/detector"
)

// ErrNoSamples is returned when training is attempted without samples.
var ErrNoSamples = errors.New("no samples provided")

// Sample is one recorded hand pose as captured from the detector.
type Sample struct {
	Landmarks  []detector.Point3D `json:"landmarks"`
	Handedness string             `json:"handedness"`
	Timestamp  int64              `json:"timestamp"`
}

// Train averages recorded samples into canonical template landmarks.
// Samples are normalized individually first so hands recorded at different
// distances and positions contribute equally.
func Train(samples []json.RawMessage) ([]detector.Point3D, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	sum := make([]detector.Point3D, detector.NumLandmarks)
	for i, raw := range samples {
		var s Sample
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("parse sample %d: %w", i, err)
		}
		if len(s.Landmarks) != detector.NumLandmarks {
			return nil, fmt.Errorf("sample %d has %d landmarks, expected %d", i, len(s.Landmarks), detector.NumLandmarks)
		}

		hand := detector.HandLandmarks{Handedness: s.Handedness}
		copy(hand.Points[:], s.Landmarks)

		for j, p := range Canonical(&hand) {
			sum[j].X += p.X
			sum[j].Y += p.Y
			sum[j].Z += p.Z
		}
	}

	n := float64(len(samples))
	for i := range sum {
		sum[i] = sum[i].Scale(1 / n)
	}
	return sum, nil
}

// NewSample encodes detected landmarks as a training sample.
func NewSample(hand detector.HandLandmarks, timestamp int64) (json.RawMessage, error) {
	data, err := json.Marshal(Sample{
		Landmarks:  hand.Points[:],
		Handedness: hand.Handedness,
		Timestamp:  timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("encode sample: %w", err)
	}
	return data, nil
}
