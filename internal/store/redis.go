package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kapu/werewolf-arena-go/internal/domain"
)

// Store persists match snapshots and tool idempotency records in
// Redis. Snapshots are whole-state JSON documents keyed by match id;
// a live-set index supports listing without key scans.
type Store struct {
	rdb            *redis.Client
	snapshotTTL    time.Duration
	idempotencyTTL time.Duration
}

func New(redisURL string, snapshotTTL, idempotencyTTL time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for snapshot store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, snapshotTTL: snapshotTTL, idempotencyTTL: idempotencyTTL}, nil
}

// NewWithClient wraps an existing client. Tests hand in a miniredis
// backed client here.
func NewWithClient(rdb *redis.Client, snapshotTTL, idempotencyTTL time.Duration) *Store {
	return &Store{rdb: rdb, snapshotTTL: snapshotTTL, idempotencyTTL: idempotencyTTL}
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) keySnapshot(matchID string) string { return "wolf:match:" + strings.TrimSpace(matchID) }
func (s *Store) keyLive() string                   { return "wolf:match:live" }
func (s *Store) keyIdem(caller, key string) string {
	return "wolf:idem:" + strings.TrimSpace(caller) + ":" + strings.TrimSpace(key)
}

// SaveSnapshot writes the full match document and keeps the live-set
// index in step with the match phase.
func (s *Store) SaveSnapshot(ctx context.Context, m *domain.Match) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keySnapshot(m.ID), raw, s.snapshotTTL).Err(); err != nil {
		return err
	}
	if m.Phase == domain.PhaseEnded {
		return s.rdb.SRem(ctx, s.keyLive(), m.ID).Err()
	}
	return s.rdb.SAdd(ctx, s.keyLive(), m.ID).Err()
}

// LoadSnapshot returns the stored match or (nil, nil) when absent.
func (s *Store) LoadSnapshot(ctx context.Context, matchID string) (*domain.Match, error) {
	raw, err := s.rdb.Get(ctx, s.keySnapshot(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m domain.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) LiveMatchIDs(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyLive()).Result()
}

// PutIdempotency stores a finished response under the caller's key.
// The first writer wins; a concurrent duplicate reports false.
func (s *Store) PutIdempotency(ctx context.Context, caller, key string, response []byte) (bool, error) {
	return s.rdb.SetNX(ctx, s.keyIdem(caller, key), response, s.idempotencyTTL).Result()
}

// GetIdempotency returns the stored response bytes or (nil, nil) when
// the key has never completed.
func (s *Store) GetIdempotency(ctx context.Context, caller, key string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, s.keyIdem(caller, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
