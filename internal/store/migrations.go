package store

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order. PRAGMA user_version holds the number
// already applied; append new steps, never edit old ones.
var migrations = []string{
	// 1: poses. state is the hand state a pose stands for.
	`CREATE TABLE poses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		state TEXT NOT NULL CHECK(state IN ('Open', 'Closed', 'Lasso')),
		enabled INTEGER NOT NULL DEFAULT 1,
		samples INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// 2: trained templates, one row per landmark.
	`CREATE TABLE pose_landmarks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pose_id TEXT NOT NULL REFERENCES poses(id) ON DELETE CASCADE,
		landmark_index INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		UNIQUE(pose_id, landmark_index)
	)`,
	`CREATE INDEX idx_pose_landmarks_pose_id ON pose_landmarks(pose_id)`,

	// 4: raw samples kept for retraining.
	`CREATE TABLE pose_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pose_id TEXT NOT NULL REFERENCES poses(id) ON DELETE CASCADE,
		sample_index INTEGER NOT NULL,
		data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX idx_pose_samples_pose_id ON pose_samples(pose_id)`,

	// 6: runtime settings overriding the config file.
	`CREATE TABLE settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

// SchemaVersion returns the number of migrations applied to the database.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// migrate applies the migrations the database has not seen, each in its
// own transaction together with the version bump.
func (s *Store) migrate() error {
	version, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		err := withTx(s.db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(migrations[i]); err != nil {
				return err
			}
			_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
