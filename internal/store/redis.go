package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps one hash per streamer with the dotted state keys as fields
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to addr and verifies the connection with PING
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	slog.Info("state store connected", "backend", "redis", "addr", addr)
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) key(streamer string) string {
	return s.prefix + streamer
}

// Load reads the streamer hash
func (s *RedisStore) Load(ctx context.Context, streamer string) (State, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(streamer)).Result()
	if err != nil {
		return State{}, fmt.Errorf("failed to read state hash: %w", err)
	}
	if len(fields) == 0 {
		return State{}, ErrNotFound
	}
	return stateFromFields(fields), nil
}

// Save writes every present field in one MULTI/EXEC transaction
func (s *RedisStore) Save(ctx context.Context, streamer string, st State) error {
	values := fieldsFromState(st)
	if len(values) == 0 {
		return nil
	}

	key := s.key(streamer)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write state hash: %w", err)
	}

	slog.Debug("state saved", "backend", "redis", "key", key)
	return nil
}

// Close releases the connection pool
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// fieldsFromState flattens st into string hash fields
func fieldsFromState(st State) map[string]interface{} {
	values := make(map[string]interface{})
	if st.DeckMsg != nil {
		values[KeyDeckMsg] = *st.DeckMsg
	}
	if st.InternalState != nil {
		values[KeyInternalState] = strconv.FormatUint(uint64(*st.InternalState), 10)
	}
	if st.Wins != nil {
		values[KeyWins] = strconv.Itoa(*st.Wins)
	}
	if st.Losses != nil {
		values[KeyLosses] = strconv.Itoa(*st.Losses)
	}
	if st.EncodedDeck != nil {
		values[KeyDeck] = *st.EncodedDeck
	}
	return values
}
