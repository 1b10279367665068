package redis

import (
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/pastq/internal/db"
	"github.com/kailas-cloud/pastq/internal/domain/search/filter"
)

// SupportsFilterQuery reports whether FT.SEARCH works without a KNN clause.
// valkey-search requires one.
func (s *Store) SupportsFilterQuery() bool {
	return s.dialect == DialectRedis
}

// QueryByFilter returns up to q.Limit records matching the filter in index order.
func (s *Store) QueryByFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if !s.SupportsFilterQuery() {
		return nil, db.ErrFilterQueryNotSupported
	}
	if q.Limit <= 0 {
		return &db.SearchResult{}, nil
	}

	query := buildFilter(q.Filter)
	if query == "" {
		query = "*"
	}

	args := []string{s.indexName(q.Collection), query}
	args = appendReturn(args, false)
	args = append(args, "LIMIT", "0", strconv.Itoa(q.Limit), "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, collectionErr(db.OpSearch, err)
	}
	return s.parseResult(raw, q.Collection)
}

// QueryBySimilarity runs a KNN search with the filter applied before ranking.
func (s *Store) QueryBySimilarity(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return &db.SearchResult{}, nil
	}

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", q.K, fieldVector)
	queryStr := "*=>" + knnPart
	if f := buildFilter(q.Filter); f != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", f, knnPart)
	}

	args := []string{s.indexName(q.Collection), queryStr}
	args = appendReturn(args, q.IncludeVector, fieldScore)
	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, collectionErr(db.OpSearch, err)
	}
	res, err := s.parseResult(raw, q.Collection)
	if err != nil {
		return nil, err
	}
	// Reply order is not guaranteed without SORTBY, which valkey-search rejects.
	slices.SortStableFunc(res.Entries, func(a, b db.SearchEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return res, nil
}

func appendReturn(args []string, withVector bool, extra ...string) []string {
	fields := []string{fieldText, fieldMetadata}
	if withVector {
		fields = append(fields, fieldVector)
	}
	fields = append(fields, extra...)
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

// --- Result parsing ---

func (s *Store) parseResult(raw []rueidis.RedisMessage, collection string) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	prefix := s.docPrefix(collection)
	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		entry, err := toEntry(strings.TrimPrefix(key, prefix), parseFieldPairs(fields))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func toEntry(id string, fields map[string]string) (db.SearchEntry, error) {
	meta, err := db.DecodeMetadata([]byte(fields[fieldMetadata]))
	if err != nil {
		return db.SearchEntry{}, err
	}
	entry := db.SearchEntry{ID: id, Text: fields[fieldText], Metadata: meta}
	if v, ok := fields[fieldVector]; ok {
		entry.Vector = bytesToVector(v)
	}
	if scoreStr, ok := fields[fieldScore]; ok {
		if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
			entry.Score = max(0, 1.0-d) // cosine distance → similarity, clamped to [0,1]
		}
	}
	return entry, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates a filter.Expression into an FT.SEARCH query string.
// Clauses are intersected; an in-list becomes a tag union.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(expr.Conditions()))
	for _, c := range expr.Conditions() {
		parts = append(parts, buildTagFilter(c))
	}
	return strings.Join(parts, " ")
}

func buildTagFilter(c filter.Condition) string {
	values := make([]string, len(c.Values()))
	for i, v := range c.Values() {
		values[i] = tagEscaper.Replace(v.String())
	}
	return fmt.Sprintf("@%s:{%s}", c.Key(), strings.Join(values, " | "))
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"|", "\\|",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(s string) []float32 {
	b := []byte(s)
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
