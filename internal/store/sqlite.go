// Package store persists analysis inputs (genetic profile, medication
// list, latest valid vitals sample) keyed by user. Payloads round-trip
// as JSON documents, so every backend behaves like a simple key-value
// store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pgx-med-guard-server/internal/domain"
)

// SQLiteStore implements domain.Store using SQLite. It is the default
// backend for single-node deployments.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a SQLite-backed store, creating the database
// file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_documents (
		user_id TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, doc_type)
	);

	CREATE INDEX IF NOT EXISTS idx_user_documents_updated ON user_documents(updated_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Document type keys shared by all backends.
const (
	docProfile     = "genetic_profile"
	docMedications = "medications"
	docVitals      = "vitals"
)

func (s *SQLiteStore) put(ctx context.Context, userID, docType string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", docType, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_documents (user_id, doc_type, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, doc_type) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, userID, docType, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", docType, err)
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, userID, docType string, out interface{}) error {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM user_documents WHERE user_id = ? AND doc_type = ?",
		userID, docType,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", docType, err)
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", docType, err)
	}
	return nil
}

// SaveProfile stores the user's genetic profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, userID string, profile *domain.GeneticProfile) error {
	return s.put(ctx, userID, docProfile, profile)
}

// GetProfile loads the user's genetic profile.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*domain.GeneticProfile, error) {
	var profile domain.GeneticProfile
	if err := s.get(ctx, userID, docProfile, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveMedications stores the user's full medication list.
func (s *SQLiteStore) SaveMedications(ctx context.Context, userID string, meds []domain.Medication) error {
	return s.put(ctx, userID, docMedications, meds)
}

// GetMedications loads the user's medication list.
func (s *SQLiteStore) GetMedications(ctx context.Context, userID string) ([]domain.Medication, error) {
	var meds []domain.Medication
	if err := s.get(ctx, userID, docMedications, &meds); err != nil {
		return nil, err
	}
	return meds, nil
}

// SaveVitals stores the user's latest valid vitals sample.
func (s *SQLiteStore) SaveVitals(ctx context.Context, userID string, sample domain.VitalsSample) error {
	return s.put(ctx, userID, docVitals, sample)
}

// GetVitals loads the user's latest stored vitals sample.
func (s *SQLiteStore) GetVitals(ctx context.Context, userID string) (*domain.VitalsSample, error) {
	var sample domain.VitalsSample
	if err := s.get(ctx, userID, docVitals, &sample); err != nil {
		return nil, err
	}
	return &sample, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
