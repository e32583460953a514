// Package redissink implements persistence.RecordSink over go-redis/v9,
// following the per-call context.WithTimeout discipline of the teacher's
// data/cache/cache.go Redis adapter.
package redissink

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sink is a RecordSink backed by a single Redis client.
type Sink struct {
	client  *redis.Client
	timeout time.Duration
}

// New creates a Sink. timeout bounds every Put/Get call; 0 defaults to 500ms.
func New(client *redis.Client, timeout time.Duration) *Sink {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Sink{client: client, timeout: timeout}
}

// Put writes value under key with no expiry (audit records are retained
// for the lifetime of the Redis instance's own eviction policy).
func (s *Sink) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Set(ctx, key, value, 0).Err()
}

// Get retrieves the record stored under key, if any.
func (s *Sink) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
