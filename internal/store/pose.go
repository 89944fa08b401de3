package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Pose is a user-trained hand shape mapped to a hand state.
type Pose struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"` // "Open", "Closed" or "Lasso"
	Enabled   bool      `json:"enabled"`
	Samples   int       `json:"samples"`
	Trained   bool      `json:"trained"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Landmark is one point of a trained template.
type Landmark struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// PoseRepository provides CRUD operations for poses.
type PoseRepository struct {
	db *sql.DB
}

// Poses returns the pose repository for this store.
func (s *Store) Poses() *PoseRepository {
	return &PoseRepository{db: s.db}
}

const poseColumns = `p.id, p.name, p.state, p.enabled, p.samples, p.created_at, p.updated_at,
	EXISTS(SELECT 1 FROM pose_landmarks l WHERE l.pose_id = p.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanPose(row scanner) (*Pose, error) {
	p := &Pose{}
	var enabled, trained int
	if err := row.Scan(&p.ID, &p.Name, &p.State, &enabled, &p.Samples, &p.CreatedAt, &p.UpdatedAt, &trained); err != nil {
		return nil, err
	}
	p.Enabled = enabled != 0
	p.Trained = trained != 0
	return p, nil
}

// Create inserts a new pose.
func (r *PoseRepository) Create(p *Pose) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO poses (id, name, state, enabled, samples, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.State, boolInt(p.Enabled), p.Samples, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create pose: %w", err)
	}
	return nil
}

// GetByID retrieves a pose by its ID.
func (r *PoseRepository) GetByID(id string) (*Pose, error) {
	p, err := scanPose(r.db.QueryRow(`SELECT `+poseColumns+` FROM poses p WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetByName retrieves a pose by its name.
func (r *PoseRepository) GetByName(name string) (*Pose, error) {
	p, err := scanPose(r.db.QueryRow(`SELECT `+poseColumns+` FROM poses p WHERE p.name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns all poses, newest first.
func (r *PoseRepository) List() ([]*Pose, error) {
	rows, err := r.db.Query(`SELECT ` + poseColumns + ` FROM poses p ORDER BY p.created_at DESC, p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var poses []*Pose
	for rows.Next() {
		p, err := scanPose(rows)
		if err != nil {
			return nil, err
		}
		poses = append(poses, p)
	}
	return poses, rows.Err()
}

// Update saves name, state and enabled of an existing pose.
func (r *PoseRepository) Update(p *Pose) error {
	p.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE poses SET name = ?, state = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.State, boolInt(p.Enabled), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update pose: %w", err)
	}
	return expectOne(result)
}

// Delete removes a pose with its landmarks and samples.
func (r *PoseRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM poses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// SetLandmarks replaces the trained template of a pose.
func (r *PoseRepository) SetLandmarks(poseID string, landmarks []Landmark) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`UPDATE poses SET updated_at = ? WHERE id = ?`, time.Now(), poseID)
		if err != nil {
			return err
		}
		if err := expectOne(result); err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM pose_landmarks WHERE pose_id = ?`, poseID); err != nil {
			return err
		}

		stmt, err := tx.Prepare(`INSERT INTO pose_landmarks (pose_id, landmark_index, x, y, z) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, l := range landmarks {
			if _, err := stmt.Exec(poseID, l.Index, l.X, l.Y, l.Z); err != nil {
				return fmt.Errorf("insert landmark %d: %w", l.Index, err)
			}
		}
		return nil
	})
}

// GetLandmarks returns the trained template of a pose, ordered by index.
// An untrained pose has no landmarks.
func (r *PoseRepository) GetLandmarks(poseID string) ([]Landmark, error) {
	rows, err := r.db.Query(
		`SELECT landmark_index, x, y, z FROM pose_landmarks WHERE pose_id = ? ORDER BY landmark_index`,
		poseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var landmarks []Landmark
	for rows.Next() {
		var l Landmark
		if err := rows.Scan(&l.Index, &l.X, &l.Y, &l.Z); err != nil {
			return nil, err
		}
		landmarks = append(landmarks, l)
	}
	return landmarks, rows.Err()
}

func expectOne(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
