package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/pastq/internal/db"
)

// Insert stores records as hashes in a single DoMulti round-trip.
// Records with an existing ID are overwritten.
func (s *Store) Insert(ctx context.Context, collection string, records []db.Record) error {
	if len(records) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(records))
	keys := make([]string, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.ID == "" {
			return fmt.Errorf("record %d: id is required", i)
		}
		fields, err := hashFields(r)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		key := s.docKey(collection, r.ID)
		cmd := s.b().Hset().Key(key).FieldValue()
		for k, v := range fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds = append(cmds, cmd.Build())
		keys = append(keys, key)
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return wrapErr(db.OpHSet, fmt.Errorf("key %s: %w", keys[i], err))
		}
	}
	return nil
}

// Delete removes records by ID. Missing IDs are ignored.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}
	return s.del(ctx, keys)
}

func (s *Store) del(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	cmd := s.b().Del().Key(keys...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return wrapErr(db.OpDel, err)
	}
	return nil
}

// scan iterates keys matching a pattern.
func (s *Store) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, wrapErr(db.OpScan, err)
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// hashFields flattens a record into hash fields: the reserved text, vector
// and metadata blob plus one tag-encoded field per scalar or list metadata value.
func hashFields(r *db.Record) (map[string]string, error) {
	blob, err := db.EncodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{
		fieldText:     r.Text,
		fieldMetadata: string(blob),
	}
	if len(r.Vector) > 0 {
		fields[fieldVector] = vectorToBytes(r.Vector)
	}
	for k, v := range r.Metadata {
		if strings.HasPrefix(k, "__") {
			continue
		}
		if tag, ok := tagValue(v); ok {
			fields[k] = tag
		}
	}
	return fields, nil
}

// tagValue renders a metadata value as a TAG field; lists join with ",".
func tagValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := tagValue(e); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), len(parts) > 0
	case []int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ","), len(parts) > 0
	case []string:
		return strings.Join(x, ","), len(x) > 0
	default:
		return "", false
	}
}
