package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sample is one recorded hand pose kept for training.
type Sample struct {
	ID          int64           `json:"id"`
	PoseID      string          `json:"pose_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SampleRepository stores recorded samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create appends samples to a pose in one transaction and updates the
// pose's sample count. Returns ErrNotFound for an unknown pose.
func (r *SampleRepository) Create(poseID string, samples []json.RawMessage) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		var next int
		err := tx.QueryRow(`SELECT samples FROM poses WHERE id = ?`, poseID).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`INSERT INTO pose_samples (pose_id, sample_index, data) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, data := range samples {
			if _, err := stmt.Exec(poseID, next+i, string(data)); err != nil {
				return fmt.Errorf("insert sample %d: %w", next+i, err)
			}
		}

		_, err = tx.Exec(`UPDATE poses SET samples = ?, updated_at = ? WHERE id = ?`,
			next+len(samples), time.Now(), poseID)
		return err
	})
}

// GetByPoseID returns the samples of a pose in recording order.
func (r *SampleRepository) GetByPoseID(poseID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, pose_id, sample_index, data, created_at
		 FROM pose_samples
		 WHERE pose_id = ?
		 ORDER BY sample_index`,
		poseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.PoseID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// DeleteByPoseID removes every sample of a pose and resets its count.
func (r *SampleRepository) DeleteByPoseID(poseID string) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM pose_samples WHERE pose_id = ?`, poseID); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE poses SET samples = 0, updated_at = ? WHERE id = ?`, time.Now(), poseID)
		return err
	})
}
