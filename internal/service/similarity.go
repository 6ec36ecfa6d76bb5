package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SimilarityStore serves per-student behavioral-similarity profiles. The
// external metrics pipeline writes them; the peer selector only reads. A
// missing profile is not an error, the similarity filter is simply skipped.
type SimilarityStore interface {
	Profile(ctx context.Context, courseID, studentID string) (map[string]float64, bool, error)
}

type redisSimilarityStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisSimilarityStore builds a similarity store backed by Redis.
func NewRedisSimilarityStore(client *redis.Client, logger zerolog.Logger) SimilarityStore {
	return &redisSimilarityStore{
		client: client,
		logger: logger.With().Str("component", "similarity_store").Logger(),
	}
}

func similarityKey(courseID, studentID string) string {
	return fmt.Sprintf("similarity:%s:%s", courseID, studentID)
}

func (s *redisSimilarityStore) Profile(ctx context.Context, courseID, studentID string) (map[string]float64, bool, error) {
	payload, err := s.client.Get(ctx, similarityKey(courseID, studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	scores := make(map[string]float64)
	if err := json.Unmarshal([]byte(payload), &scores); err != nil {
		s.logger.Warn().Err(err).Str("student_id", studentID).Msg("invalid similarity profile payload")
		return nil, false, nil
	}

	return scores, true, nil
}

type nopSimilarityStore struct{}

// NewNopSimilarityStore returns a store that never has a profile, used when
// no Redis backend is configured.
func NewNopSimilarityStore() SimilarityStore {
	return nopSimilarityStore{}
}

func (nopSimilarityStore) Profile(context.Context, string, string) (map[string]float64, bool, error) {
	return nil, false, nil
}
