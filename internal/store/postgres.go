package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/pgx-med-guard-server/internal/domain"
)

// PostgresStore implements domain.Store using PostgreSQL for
// multi-instance deployments.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed store from a
// connection URL and verifies connectivity. The schema is owned by
// the migration runner, not the store.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection. Primarily for
// tests.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) put(ctx context.Context, userID, docType string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", docType, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_documents (user_id, doc_type, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, doc_type) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, userID, docType, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", docType, err)
	}
	return nil
}

func (s *PostgresStore) get(ctx context.Context, userID, docType string, out interface{}) error {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM user_documents WHERE user_id = $1 AND doc_type = $2",
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
func (s *PostgresStore) SaveProfile(ctx context.Context, userID string, profile *domain.GeneticProfile) error {
	return s.put(ctx, userID, docProfile, profile)
}

// GetProfile loads the user's genetic profile.
func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*domain.GeneticProfile, error) {
	var profile domain.GeneticProfile
	if err := s.get(ctx, userID, docProfile, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveMedications stores the user's full medication list.
func (s *PostgresStore) SaveMedications(ctx context.Context, userID string, meds []domain.Medication) error {
	return s.put(ctx, userID, docMedications, meds)
}

// GetMedications loads the user's medication list.
func (s *PostgresStore) GetMedications(ctx context.Context, userID string) ([]domain.Medication, error) {
	var meds []domain.Medication
	if err := s.get(ctx, userID, docMedications, &meds); err != nil {
		return nil, err
	}
	return meds, nil
}

// SaveVitals stores the user's latest valid vitals sample.
func (s *PostgresStore) SaveVitals(ctx context.Context, userID string, sample domain.VitalsSample) error {
	return s.put(ctx, userID, docVitals, sample)
}

// GetVitals loads the user's latest stored vitals sample.
func (s *PostgresStore) GetVitals(ctx context.Context, userID string) (*domain.VitalsSample, error) {
	var sample domain.VitalsSample
	if err := s.get(ctx, userID, docVitals, &sample); err != nil {
		return nil, err
	}
	return &sample, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
