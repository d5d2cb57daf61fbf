package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pgx-med-guard-server/internal/domain"
)

// RedisStore implements domain.Store on Redis. Documents are JSON
// values under per-user keys; an optional TTL expires stale data.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
// A zero ttl keeps documents indefinitely.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{redis: client, ttl: ttl}, nil
}

func (s *RedisStore) key(userID, docType string) string {
	return fmt.Sprintf("medguard:%s:%s", docType, userID)
}

func (s *RedisStore) put(ctx context.Context, userID, docType string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", docType, err)
	}

	if err := s.redis.Set(ctx, s.key(userID, docType), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", docType, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, userID, docType string, out interface{}) error {
	val, err := s.redis.Get(ctx, s.key(userID, docType)).Result()
	if err == redis.Nil {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", docType, err)
	}

	if err := json.Unmarshal([]byte(val), out); err != nil {
		// Remove corrupted entry so the next write starts clean
		s.redis.Del(ctx, s.key(userID, docType))
		return fmt.Errorf("failed to decode %s: %w", docType, err)
	}
	return nil
}

// SaveProfile stores the user's genetic profile.
func (s *RedisStore) SaveProfile(ctx context.Context, userID string, profile *domain.GeneticProfile) error {
	return s.put(ctx, userID, docProfile, profile)
}

// GetProfile loads the user's genetic profile.
func (s *RedisStore) GetProfile(ctx context.Context, userID string) (*domain.GeneticProfile, error) {
	var profile domain.GeneticProfile
	if err := s.get(ctx, userID, docProfile, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveMedications stores the user's full medication list.
func (s *RedisStore) SaveMedications(ctx context.Context, userID string, meds []domain.Medication) error {
	return s.put(ctx, userID, docMedications, meds)
}

// GetMedications loads the user's medication list.
func (s *RedisStore) GetMedications(ctx context.Context, userID string) ([]domain.Medication, error) {
	var meds []domain.Medication
	if err := s.get(ctx, userID, docMedications, &meds); err != nil {
		return nil, err
	}
	return meds, nil
}

// SaveVitals stores the user's latest valid vitals sample.
func (s *RedisStore) SaveVitals(ctx context.Context, userID string, sample domain.VitalsSample) error {
	return s.put(ctx, userID, docVitals, sample)
}

// GetVitals loads the user's latest stored vitals sample.
func (s *RedisStore) GetVitals(ctx context.Context, userID string) (*domain.VitalsSample, error) {
	var sample domain.VitalsSample
	if err := s.get(ctx, userID, docVitals, &sample); err != nil {
		return nil, err
	}
	return &sample, nil
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}
