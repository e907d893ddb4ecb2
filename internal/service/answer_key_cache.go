package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

const answerKeyTTL = 24 * time.Hour

// ErrStaleAnswerKeys reports a Set whose keys were loaded before the
// latest invalidation.
var ErrStaleAnswerKeys = errors.New("answer keys changed while loading")

// RedisAnswerKeyCache stores an exam's answer keys as one Redis hash,
// field = question id, value = JSON {k, p}.
type RedisAnswerKeyCache struct {
	rdb *redis.Client
}

// NewRedisAnswerKeyCache creates a new RedisAnswerKeyCache.
func NewRedisAnswerKeyCache(rdb *redis.Client) *RedisAnswerKeyCache {
	return &RedisAnswerKeyCache{rdb: rdb}
}

// Get returns the cached keys. ok is false on a miss.
func (c *RedisAnswerKeyCache) Get(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]model.AnswerKey, bool, error) {
	raw, err := c.rdb.HGetAll(ctx, config.CacheKey.ExamAnswerKey(examID.String())).Result()
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}

	keys := make(map[uuid.UUID]model.AnswerKey, len(raw))
	for field, val := range raw {
		qid, err := uuid.Parse(field)
		if err != nil {
			return nil, false, fmt.Errorf("parse cached question id: %w", err)
		}
		var k model.AnswerKey
		if err := json.Unmarshal([]byte(val), &k); err != nil {
			return nil, false, fmt.Errorf("decode cached answer key: %w", err)
		}
		keys[qid] = k
	}
	return keys, true, nil
}

// Generation returns the exam's invalidation counter. A missing counter
// is generation zero.
func (c *RedisAnswerKeyCache) Generation(ctx context.Context, examID uuid.UUID) (int64, error) {
	gen, err := c.rdb.Get(ctx, config.CacheKey.ExamAnswerKeyGen(examID.String())).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set replaces the cached keys atomically, provided the generation is
// still gen. The generation key is watched so an Invalidate landing
// between the check and the write aborts the transaction.
func (c *RedisAnswerKeyCache) Set(ctx context.Context, examID uuid.UUID, gen int64, keys map[uuid.UUID]model.AnswerKey) error {
	key := config.CacheKey.ExamAnswerKey(examID.String())
	genKey := config.CacheKey.ExamAnswerKeyGen(examID.String())

	fields := make(map[string]interface{}, len(keys))
	for qid, k := range keys {
		raw, err := json.Marshal(k)
		if err != nil {
			return err
		}
		fields[qid.String()] = raw
	}

	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return ErrStaleAnswerKeys
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, fields)
			pipe.Expire(ctx, key, answerKeyTTL)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStaleAnswerKeys
	}
	return err
}

// Invalidate drops the cached keys of an exam and bumps its generation.
func (c *RedisAnswerKeyCache) Invalidate(ctx context.Context, examID uuid.UUID) error {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, config.CacheKey.ExamAnswerKeyGen(examID.String()))
	pipe.Del(ctx, config.CacheKey.ExamAnswerKey(examID.String()))
	_, err := pipe.Exec(ctx)
	return err
}
