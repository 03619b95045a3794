package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

const defaultUpdateRetries = 5

// RedisStore keeps each session as one JSON value with a TTL. Updates use
// WATCH so two processes never interleave a read-modify-write.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	maxRetries int
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		prefix:     "tabular_import:session:",
		ttl:        ttl,
		maxRetries: defaultUpdateRetries,
	}
}

func (s *RedisStore) Create(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}
	ok, err := s.client.SetNX(ctx, s.key(session.ID), data, s.ttl).Result()
	if err != nil {
		return errors.Wrap(err, "redis setnx")
	}
	if !ok {
		return ErrSessionExists
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "redis get")
	}
	return decodeSession(data)
}

// Update retries when another writer touched the key between GET and EXEC.
// Errors returned by fn are passed through untouched.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	key := s.key(id)
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var updated *domain.Session
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return domain.ErrSessionNotFound
				}
				return errors.Wrap(err, "redis get")
			}
			session, err := decodeSession(data)
			if err != nil {
				return err
			}
			if err := fn(session); err != nil {
				return err
			}
			out, err := json.Marshal(session)
			if err != nil {
				return errors.Wrap(err, "marshal session")
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, s.ttl)
				return nil
			})
			if err != nil {
				return err
			}
			updated = session
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, errors.Errorf("update session %s: too many concurrent writers", id)
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func decodeSession(data []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "unmarshal session")
	}
	return &session, nil
}
