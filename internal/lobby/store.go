// Package lobby keeps a Redis view of the arena: games waiting for an opponent and a
// short-lived archive of finished results.
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-arena/internal/repository"
	"github.com/park285/cheese-arena/internal/session"
)

const (
	ttlWaiting   = 2 * time.Hour
	ttlResult    = 24 * time.Hour
	recentLimit  = 100
	keyPrefix    = "arena:"
	keyLobbySet  = keyPrefix + "lobby"
	keyResultLog = keyPrefix + "results"
)

type Store struct {
	rdb *redis.Client
}

var _ repository.Reader = (*Store)(nil)

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Open connects to redisURL ("redis://" or "rediss://" for TLS) and pings it.
func Open(ctx context.Context, redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for lobby store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStore(rdb), nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func keyGame(id string) string   { return keyPrefix + "game:" + strings.TrimSpace(id) }
func keyResult(id string) string { return keyPrefix + "result:" + strings.TrimSpace(id) }

// AddWaiting stores w and lists it in the lobby index.
func (s *Store) AddWaiting(ctx context.Context, w session.Waiting) error {
	if strings.TrimSpace(w.ID) == "" {
		return session.ErrInvalidArgs
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyGame(w.ID), raw, ttlWaiting)
	pipe.SAdd(ctx, keyLobbySet, w.ID)
	pipe.Expire(ctx, keyLobbySet, ttlWaiting)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lobby add %s: %w", w.ID, err)
	}
	return nil
}

// RemoveWaiting drops a game from the lobby. Unknown ids are not an error.
func (s *Store) RemoveWaiting(ctx context.Context, gameID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.SRem(ctx, keyLobbySet, gameID)
	pipe.Del(ctx, keyGame(gameID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lobby remove %s: %w", gameID, err)
	}
	return nil
}

// ListWaiting returns waiting games oldest first. Index entries whose metadata has
// expired are pruned on the way.
func (s *Store) ListWaiting(ctx context.Context) ([]session.Waiting, error) {
	ids, err := s.rdb.SMembers(ctx, keyLobbySet).Result()
	if err != nil {
		return nil, fmt.Errorf("lobby list: %w", err)
	}
	out := make([]session.Waiting, 0, len(ids))
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, keyGame(id)).Bytes()
		if err == redis.Nil {
			_ = s.rdb.SRem(ctx, keyLobbySet, id).Err()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lobby load %s: %w", id, err)
		}
		var w session.Waiting
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("lobby decode %s: %w", id, err)
		}
		out = append(out, w)
	}
	sortWaiting(out)
	return out, nil
}

// SaveResult archives a finished game for ttlResult and keeps the newest
// recentLimit ids in a list.
func (s *Store) SaveResult(ctx context.Context, sum *session.Summary) error {
	if sum == nil || strings.TrimSpace(sum.GameID) == "" {
		return nil
	}
	raw, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyResult(sum.GameID), raw, ttlResult)
	pipe.LPush(ctx, keyResultLog, sum.GameID)
	pipe.LTrim(ctx, keyResultLog, 0, recentLimit-1)
	pipe.Expire(ctx, keyResultLog, ttlResult)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("archive result %s: %w", sum.GameID, err)
	}
	return nil
}

// Get loads an archived result. Unknown or expired ids give repository.ErrNotFound.
func (s *Store) Get(ctx context.Context, gameID string) (*session.Summary, error) {
	raw, err := s.rdb.Get(ctx, keyResult(gameID)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sum session.Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// Recent returns up to limit archived results, newest first. Ids whose result
// already expired are skipped.
func (s *Store) Recent(ctx context.Context, limit int) ([]*session.Summary, error) {
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}
	ids, err := s.rdb.LRange(ctx, keyResultLog, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	out := make([]*session.Summary, 0, len(ids))
	for _, id := range ids {
		sum, err := s.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}

func sortWaiting(list []session.Waiting) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
