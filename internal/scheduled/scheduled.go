// Package scheduled implements the scheduled-set: the probabilistic
// (Bloom-backed) record of URLs already routed for crawling. A second,
// non-default backend generalizes an exact-membership Redis check into the
// same interface.
package scheduled

import (
	"context"
	"io"

	"github.com/go-redis/redis/v8"

	"github.com/connoryin/crawler/internal/bloom"
	"github.com/connoryin/crawler/internal/urlmodel"
)

// Set is the scheduled-set contract: a positive Contains answer means "do
// not enqueue again." False positives are acceptable; false negatives are
// not, once Inserted.
type Set interface {
	Contains(u urlmodel.URL) bool
	Insert(u urlmodel.URL)
}

// BloomSet is the default, checkpoint-round-tripping backend.
type BloomSet struct {
	filter *bloom.Filter
}

// NewBloomSet sizes a BloomSet from the expected crawl size and the
// crawler's fixed false-positive rate (1e-3, per
// original_source/include/crawler/crawler.h's _filterFalsePositiveRate).
func NewBloomSet(expectedSize int) *BloomSet {
	const falsePositiveRate = 1e-3
	return &BloomSet{filter: bloom.New(expectedSize, falsePositiveRate)}
}

func (s *BloomSet) Contains(u urlmodel.URL) bool { return s.filter.Contains(u.String()) }
func (s *BloomSet) Insert(u urlmodel.URL)        { s.filter.Insert(u.String()) }

// Clear resets the filter. The crawler does not call it: a cold start
// without a checkpoint begins from the empty filter NewBloomSet builds.
func (s *BloomSet) Clear() { s.filter.Clear() }

// WriteTo/ReadFrom expose the underlying filter's checkpoint stream.
func (s *BloomSet) WriteTo(w io.Writer) (int64, error) { return s.filter.WriteTo(w) }
func (s *BloomSet) ReadFrom(r io.Reader) (int64, error) { return s.filter.ReadFrom(r) }

// RedisSet is the optional exact-membership backend: Exists/Set instead
// of a Bloom filter. It is not part of the checkpoint snapshot — its
// state lives in Redis, not the crawler's own files.
type RedisSet struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisSet dials addr and returns a RedisSet. It uses DB 0 and no
// password.
func NewRedisSet(addr string) (*RedisSet, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisSet{client: client, ctx: ctx}, nil
}

// Contains reports whether u has already been marked scheduled.
func (s *RedisSet) Contains(u urlmodel.URL) bool {
	n, err := s.client.Exists(s.ctx, u.String()).Result()
	return err == nil && n == 1
}

// Insert marks u as scheduled with no expiry, mirroring CheckAndMark's
// Set(ctx, u, "", 0) call.
func (s *RedisSet) Insert(u urlmodel.URL) {
	s.client.Set(s.ctx, u.String(), "", 0)
}

// Close releases the underlying Redis connection.
func (s *RedisSet) Close() error { return s.client.Close() }
