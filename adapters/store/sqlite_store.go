// Package store persists enrollments and verification records. SQLite is
// the production backend; the memory store backs tests.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/layer-3/presence/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id        TEXT PRIMARY KEY,
	wallet_address TEXT NOT NULL,
	face_hash      TEXT NOT NULL,
	voice_hash     TEXT NOT NULL,
	voice_template BLOB NOT NULL,
	created_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS verification_logs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           TEXT NOT NULL,
	face_liveness     BOOLEAN NOT NULL,
	voice_match       BOOLEAN NOT NULL,
	lip_sync          BOOLEAN NOT NULL,
	overall_result    BOOLEAN NOT NULL,
	hash_value        TEXT NOT NULL DEFAULT '',
	signature         TEXT NOT NULL DEFAULT '',
	verification_time TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_logs_user ON verification_logs (user_id, verification_time);
`

// SQLiteStore is the SQLite implementation of the Store interface.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveEnrollment implements ports.Store. Re-enrolling replaces the
// existing templates.
func (s *SQLiteStore) SaveEnrollment(ctx context.Context, enr core.Enrollment) error {
	voiceTemplate, err := json.Marshal(enr.VoicePrint)
	if err != nil {
		return fmt.Errorf("failed to encode voice template: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users
			(user_id, wallet_address, face_hash, voice_hash, voice_template, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		enr.UserID, enr.WalletAddress, enr.FaceHash, enr.VoiceHash, voiceTemplate, enr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}
	return nil
}

// Enrollment implements ports.Store.
func (s *SQLiteStore) Enrollment(ctx context.Context, userID string) (core.Enrollment, error) {
	var enr core.Enrollment
	var voiceTemplate []byte

	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, wallet_address, face_hash, voice_hash, voice_template, created_at
		FROM users WHERE user_id = ?`, userID)
	err := row.Scan(&enr.UserID, &enr.WalletAddress, &enr.FaceHash, &enr.VoiceHash, &voiceTemplate, &enr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Enrollment{}, core.ErrNotEnrolled
	}
	if err != nil {
		return core.Enrollment{}, fmt.Errorf("failed to load enrollment: %w", err)
	}

	if err := json.Unmarshal(voiceTemplate, &enr.VoicePrint); err != nil {
		return core.Enrollment{}, fmt.Errorf("failed to decode voice template: %w", err)
	}
	return enr, nil
}

// LogVerification implements ports.Store.
func (s *SQLiteStore) LogVerification(ctx context.Context, rec core.VerificationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_logs
			(user_id, face_liveness, voice_match, lip_sync, overall_result, hash_value, signature, verification_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.FaceLiveness, rec.VoiceMatch, rec.LipSync,
		rec.OverallResult, rec.HashValue, rec.Signature, rec.VerificationTime)
	if err != nil {
		return fmt.Errorf("failed to log verification: %w", err)
	}
	return nil
}

// History implements ports.Store.
func (s *SQLiteStore) History(ctx context.Context, userID string) ([]core.VerificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, face_liveness, voice_match, lip_sync, overall_result, hash_value, signature, verification_time
		FROM verification_logs
		WHERE user_id = ?
		ORDER BY verification_time DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []core.VerificationRecord
	for rows.Next() {
		var rec core.VerificationRecord
		if err := rows.Scan(&rec.UserID, &rec.FaceLiveness, &rec.VoiceMatch, &rec.LipSync,
			&rec.OverallResult, &rec.HashValue, &rec.Signature, &rec.VerificationTime); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return records, nil
}
