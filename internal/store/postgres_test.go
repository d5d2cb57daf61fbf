package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-med-guard-server/internal/domain"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresStoreFromDB(db), mock
}

func TestPostgresStore_SaveProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO user_documents").
		WithArgs("user-1", docProfile, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	profile := &domain.GeneticProfile{
		Genotypes: map[string]string{domain.GeneCYP2D6: "CT"},
	}
	err := s.SaveProfile(context.Background(), "user-1", profile)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	payload, err := json.Marshal(&domain.GeneticProfile{
		Genotypes: map[string]string{domain.GeneCYP2C19: "AA"},
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM user_documents").
		WithArgs("user-1", docProfile).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(string(payload)))

	profile, err := s.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "AA", profile.Genotype(domain.GeneCYP2C19))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProfileNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT payload FROM user_documents").
		WithArgs("nobody", docProfile).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err := s.GetProfile(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_GetMedicationsQueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT payload FROM user_documents").
		WithArgs("user-1", docMedications).
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetMedications(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}

func TestPostgresStore_GetVitalsCorruptPayload(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT payload FROM user_documents").
		WithArgs("user-1", docVitals).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow("{not json"))

	_, err := s.GetVitals(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}
