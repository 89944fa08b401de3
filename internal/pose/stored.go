package pose

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/handcursor/internal/store"
)

// TrainStored trains the pose with the given ID from its recorded samples
// and saves the template. It returns the number of samples used.
func TrainStored(s *store.Store, poseID string) (int, error) {
	if _, err := s.Poses().GetByID(poseID); err != nil {
		return 0, err
	}

	samples, err := s.Samples().GetByPoseID(poseID)
	if err != nil {
		return 0, fmt.Errorf("load samples: %w", err)
	}

	raw := make([]json.RawMessage, len(samples))
	for i, sample := range samples {
		raw[i] = sample.Data
	}

	points, err := Train(raw)
	if err != nil {
		return 0, err
	}

	landmarks := make([]store.Landmark, len(points))
	for i, p := range points {
		landmarks[i] = store.Landmark{Index: i, X: p.X, Y: p.Y, Z: p.Z}
	}
	if err := s.Poses().SetLandmarks(poseID, landmarks); err != nil {
		return 0, fmt.Errorf("save template: %w", err)
	}
	return len(samples), nil
}
