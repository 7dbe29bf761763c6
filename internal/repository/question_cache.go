package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// QCMSource loads a full question set from the system of record.
type QCMSource interface {
	GetQCM(ctx context.Context, id uuid.UUID) (*model.QCM, error)
}

// QCMCache serves question sets from Redis, falling back to the source on a miss.
// Question sets are immutable once referenced by a session, so entries only expire.
type QCMCache struct {
	source QCMSource
	rdb    *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewQCMCache creates a new QCMCache.
func NewQCMCache(source QCMSource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *QCMCache {
	return &QCMCache{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		log:    log.With().Str("component", "qcm_cache").Logger(),
	}
}

// GetPayload returns the student-facing question set.
func (c *QCMCache) GetPayload(ctx context.Context, id uuid.UUID) (*model.QCMPayload, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.QCMPayloadKey(id.String())).Bytes()
	if err == nil {
		var p model.QCMPayload
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		c.log.Warn().Str("qcm_id", id.String()).Msg("Corrupt cached payload, reloading")
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Msg("Redis read failed, using database")
	}

	q, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return q.Payload(), nil
}

// GetAnswerKey returns the correct choice index per question.
func (c *QCMCache) GetAnswerKey(ctx context.Context, id uuid.UUID) (map[uuid.UUID]int, error) {
	fields, err := c.rdb.HGetAll(ctx, config.CacheKey.QCMAnswerKey(id.String())).Result()
	if err == nil && len(fields) > 0 {
		if key, ok := decodeAnswerKey(fields); ok {
			return key, nil
		}
		c.log.Warn().Str("qcm_id", id.String()).Msg("Corrupt cached answer key, reloading")
	} else if err != nil {
		c.log.Warn().Err(err).Msg("Redis read failed, using database")
	}

	q, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return q.AnswerKey(), nil
}

// load reads the set from the source and repopulates both cache entries.
// A set without questions is not cached so it is re-read once authored.
func (c *QCMCache) load(ctx context.Context, id uuid.UUID) (*model.QCM, error) {
	q, err := c.source.GetQCM(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(q.Questions) == 0 {
		return q, nil
	}

	payload, err := json.Marshal(q.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	answerKey := q.AnswerKey()
	fields := make(map[string]interface{}, len(answerKey))
	for qid, idx := range answerKey {
		fields[qid.String()] = idx
	}

	keyName := config.CacheKey.QCMAnswerKey(id.String())
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.QCMPayloadKey(id.String()), payload, c.ttl)
	pipe.Del(ctx, keyName)
	pipe.HSet(ctx, keyName, fields)
	pipe.Expire(ctx, keyName, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn().Err(err).Str("qcm_id", id.String()).Msg("Failed to cache question set")
	}

	return q, nil
}

func decodeAnswerKey(fields map[string]string) (map[uuid.UUID]int, bool) {
	key := make(map[uuid.UUID]int, len(fields))
	for k, v := range fields {
		qid, err := uuid.Parse(k)
		if err != nil {
			return nil, false
		}
		idx, err := strconv.Atoi(v)
		if err != nil {
			return nil, false
		}
		key[qid] = idx
	}
	return key, true
}
