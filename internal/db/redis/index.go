package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/pastq/internal/db"
)

// EnsureCollection creates the FT index for a collection. An existing index is kept.
func (s *Store) EnsureCollection(ctx context.Context, def *db.CollectionDefinition) error {
	if !db.IsValidCollectionName(def.Name) {
		return fmt.Errorf("%w %q", db.ErrInvalidCollectionName, def.Name)
	}
	args, err := buildCreateArgs(s.buildIndex(def.Name, def.Dimensions, def.Fields, def.HNSWM, def.HNSWEFConstruct))
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "already exists") {
			return nil
		}
		return wrapErr(db.OpCreateIndex, err)
	}
	return nil
}

// HasCollection checks index existence via FT.INFO.
func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(s.indexName(name)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return false, nil
		}
		return false, wrapErr(db.OpIndexInfo, err)
	}
	return true, nil
}

// ListCollections returns the collections that have an index under the store prefix.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	cmd := s.b().Arbitrary("FT._LIST").Build()
	names, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, wrapErr(db.OpListIndexes, err)
	}
	var out []string
	for _, n := range names {
		if !strings.HasPrefix(n, s.prefix) || !strings.HasSuffix(n, ":idx") {
			continue
		}
		out = append(out, strings.TrimSuffix(strings.TrimPrefix(n, s.prefix), ":idx"))
	}
	return out, nil
}

// DropCollection removes the index and every document of the collection.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	// Never let a drop scan a reserved or nested keyspace.
	if !db.IsValidCollectionName(name) {
		return db.ErrCollectionNotFound
	}
	args := []string{s.indexName(name)}
	if s.dialect == DialectRedis {
		args = append(args, "DD")
	}
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return db.ErrCollectionNotFound
		}
		return wrapErr(db.OpDropIndex, err)
	}
	if s.dialect == DialectRedis {
		return nil
	}

	// valkey-search leaves the hashes behind.
	keys, err := s.scan(ctx, s.docPrefix(name)+"*")
	if err != nil {
		return err
	}
	return s.del(ctx, keys)
}

// collectionErr maps an FT.SEARCH failure, turning a missing index into ErrCollectionNotFound.
func collectionErr(op string, err error) error {
	if isUnknownIndex(err) {
		return errors.Join(db.ErrCollectionNotFound, &db.Error{Op: op, Err: err})
	}
	return wrapErr(op, err)
}
