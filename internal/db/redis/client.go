// Package redis stores questions as hashes indexed by RediSearch (Redis 8+)
// or valkey-search.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/pastq/internal/db"
	"github.com/kailas-cloud/pastq/internal/domain"
)

// Compile-time checks.
var (
	_ db.Store   = (*Store)(nil)
	_ db.KVStore = (*Store)(nil)
)

// Dialect selects the search module the server runs.
type Dialect string

const (
	// DialectRedis is Redis 8+ with the bundled query engine.
	DialectRedis Dialect = "redis"
	// DialectValkey is Valkey with valkey-search, which needs a KNN clause in every FT.SEARCH.
	DialectValkey Dialect = "valkey"
)

// Config holds connection parameters for a Redis or Valkey store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Dialect  Dialect
	// KeyPrefix namespaces document keys and index names. Defaults to domain.KeyPrefix.
	KeyPrefix string
}

// Store implements db.Store via rueidis.
type Store struct {
	client  rueidis.Client
	dialect Dialect
	prefix  string
}

// NewStore creates a store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	switch cfg.Dialect {
	case "":
		cfg.Dialect = DialectRedis
	case DialectRedis, DialectValkey:
	default:
		return nil, fmt.Errorf("unknown dialect %q", cfg.Dialect)
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newStore(client, cfg.Dialect, cfg.KeyPrefix), nil
}

func newStore(client rueidis.Client, dialect Dialect, prefix string) *Store {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Store{client: client, dialect: dialect, prefix: prefix}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.b().Ping().Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return wrapErr("PING", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// indexName is the FT index of a collection: "pastq:<collection>:idx".
func (s *Store) indexName(collection string) string {
	return s.prefix + collection + ":idx"
}

// docPrefix is the key prefix of a collection's hashes: "pastq:<collection>:".
func (s *Store) docPrefix(collection string) string {
	return s.prefix + collection + ":"
}

func (s *Store) docKey(collection, id string) string {
	return s.docPrefix(collection) + id
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// wrapErr keeps server replies and context errors as-is and marks
// everything else as a connection failure.
func wrapErr(op string, err error) error {
	if _, ok := rueidis.IsRedisErr(err); ok || db.IsContextError(err) {
		return &db.Error{Op: op, Err: err}
	}
	return db.ConnectionError(op, err)
}

// isUnknownIndex matches the "index missing" replies of both search modules.
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") ||
		isRedisErr(err, "no such index") ||
		isRedisErr(err, "not found")
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

func containsIgnoreCase(s, substr string) bool {
	ls := len(s)
	lsub := len(substr)
	if lsub > ls {
		return false
	}
	for i := 0; i <= ls-lsub; i++ {
		match := true
		for j := 0; j < lsub; j++ {
			sc := s[i+j]
			tc := substr[j]
			if sc >= 'A' && sc <= 'Z' {
				sc += 'a' - 'A'
			}
			if tc >= 'A' && tc <= 'Z' {
				tc += 'a' - 'A'
			}
			if sc != tc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
