// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEventStore is an [EventStore] backed by a Redis sorted set per
// stream (score = event index), so that Streamable HTTP resumability
// survives a server restart and works across a pool of replicas — a
// deployment shape [MemoryEventStore] cannot cover.
//
// Streams are retained indefinitely unless TTL is set; callers running a
// long-lived deployment should set TTL to bound storage growth. Once a
// stream's TTL has elapsed its events are gone and Replay yields nothing
// for it; this store never yields [ErrReplayWindowExceeded].
type RedisEventStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisEventStoreOptions configures a [RedisEventStore].
type RedisEventStoreOptions struct {
	// KeyPrefix namespaces this store's keys within a shared Redis
	// instance. Defaults to "mcp:events:".
	KeyPrefix string
	// TTL, if positive, is applied to each stream's sorted set on every
	// Append, bounding how long a disconnected client can still resume.
	TTL time.Duration
}

// NewRedisEventStore returns a RedisEventStore using rdb. A nil opts is
// equivalent to &RedisEventStoreOptions{}.
func NewRedisEventStore(rdb redis.UniversalClient, opts *RedisEventStoreOptions) *RedisEventStore {
	s := &RedisEventStore{rdb: rdb, prefix: "mcp:events:"}
	if opts != nil {
		if opts.KeyPrefix != "" {
			s.prefix = opts.KeyPrefix
		}
		s.ttl = opts.TTL
	}
	return s
}

func (s *RedisEventStore) key(stream string) string {
	return s.prefix + stream
}

func (s *RedisEventStore) Append(ctx context.Context, stream string, msg JSONRPCMessage) (string, error) {
	data, err := marshalEvent(msg)
	if err != nil {
		return "", fmt.Errorf("encoding event: %w", err)
	}
	key := s.key(stream)
	idx, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("reserving event index: %w", err)
	}
	member := redis.Z{Score: float64(idx), Member: data}
	if err := s.rdb.ZAdd(ctx, key, member).Err(); err != nil {
		return "", fmt.Errorf("appending event: %w", err)
	}
	if s.ttl > 0 {
		if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
			return "", fmt.Errorf("setting stream TTL: %w", err)
		}
	}
	return strconv.FormatInt(idx, 10), nil
}

func (s *RedisEventStore) Replay(ctx context.Context, stream string, afterEventID string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		after := int64(-1)
		if afterEventID != "" {
			v, err := strconv.ParseInt(afterEventID, 10, 64)
			if err != nil {
				yield(Event{}, fmt.Errorf("malformed event id %q", afterEventID))
				return
			}
			after = v
		}

		key := s.key(stream)
		// A TTL-expired or never-created stream looks the same as "nothing
		// recorded yet" to ZCard; only report a replay-window gap when we
		// know events existed before the requested cursor but were evicted,
		// which Redis's TTL-based eviction can't distinguish from "unknown
		// stream". Callers relying on gap detection should prefer a
		// positive TTL long enough that this ambiguity doesn't matter, or
		// use MemoryEventStore's precise ring accounting instead.
		members, err := s.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: strconv.FormatInt(after+1, 10),
			Max: "+inf",
		}).Result()
		if err != nil {
			yield(Event{}, fmt.Errorf("querying replay range: %w", err))
			return
		}

		for i, data := range members {
			msg, err := unmarshalEvent([]byte(data))
			if err != nil {
				yield(Event{}, fmt.Errorf("decoding event: %w", err))
				return
			}
			if !yield(Event{ID: strconv.FormatInt(after+1+int64(i), 10), Message: msg}, nil) {
				return
			}
		}
	}
}
