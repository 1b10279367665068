package milvus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/kailas-cloud/pastq/internal/db"
	"github.com/kailas-cloud/pastq/internal/domain/search/filter"
)

// matchAll selects every row; Milvus rejects an empty expression without a limit.
const matchAll = `id != ""`

// EnsureCollection creates, indexes and loads the collection when absent.
func (s *Store) EnsureCollection(ctx context.Context, def *db.CollectionDefinition) error {
	// Milvus names also reject '-'.
	if !db.IsValidCollectionName(def.Name) || strings.ContainsRune(def.Name, '-') {
		return fmt.Errorf("%w %q", db.ErrInvalidCollectionName, def.Name)
	}
	exists, err := s.client.HasCollection(ctx, def.Name)
	if err != nil {
		return wrapErr(db.OpHasCollection, err)
	}
	if !exists {
		if err := s.client.CreateCollection(ctx, buildSchema(def)); err != nil {
			return wrapErr(db.OpCreateCollection, err)
		}
		idx, err := entity.NewIndexIvfFlat(entity.L2, s.nlist)
		if err != nil {
			return fmt.Errorf("index params: %w", err)
		}
		if err := s.client.CreateIndex(ctx, def.Name, colVector, idx); err != nil {
			return wrapErr("CreateIndex", err)
		}
	}
	if err := s.client.LoadCollection(ctx, def.Name); err != nil {
		return wrapErr("LoadCollection", err)
	}
	return nil
}

func buildSchema(def *db.CollectionDefinition) *entity.Schema {
	return entity.NewSchema().
		WithName(def.Name).
		WithDescription("Past exam questions").
		WithField(entity.NewField().WithName(colID).WithDataType(entity.FieldTypeVarChar).
			WithIsPrimaryKey(true).WithMaxLength(100)).
		WithField(entity.NewField().WithName(colVector).WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(def.Dimensions))).
		WithField(entity.NewField().WithName(colMetadata).WithDataType(entity.FieldTypeJSON)).
		WithField(entity.NewField().WithName(colText).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535))
}

// HasCollection reports whether the collection exists.
func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	ok, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return false, wrapErr(db.OpHasCollection, err)
	}
	return ok, nil
}

// ListCollections returns every collection in the database.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, wrapErr(db.OpListCollections, err)
	}
	slices.Sort(names)
	return names, nil
}

// DropCollection removes a collection.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if err := s.requireCollection(ctx, name); err != nil {
		return err
	}
	if err := s.client.DropCollection(ctx, name); err != nil {
		return wrapErr(db.OpDropCollection, err)
	}
	return nil
}

// Insert upserts records and flushes so they are immediately searchable.
func (s *Store) Insert(ctx context.Context, collection string, records []db.Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	texts := make([]string, len(records))
	metas := make([][]byte, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record %d: id is required", i)
		}
		blob, err := db.EncodeMetadata(r.Metadata)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		ids[i], texts[i], metas[i], vectors[i] = r.ID, r.Text, blob, r.Vector
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("record %s: inconsistent vector dimension", ids[i])
		}
	}

	err := s.client.Upsert(ctx, collection,
		entity.NewColumnVarChar(colID, ids),
		entity.NewColumnFloatVector(colVector, dim, vectors),
		entity.NewColumnJSONBytes(colMetadata, metas),
		entity.NewColumnVarChar(colText, texts),
	)
	if err != nil {
		return wrapErr(db.OpInsert, err)
	}
	if err := s.client.Flush(ctx, collection); err != nil {
		return wrapErr("Flush", err)
	}
	return nil
}

// Delete removes records by ID.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	vals := make([]filter.Value, len(ids))
	for i, id := range ids {
		vals[i] = filter.String(id)
	}
	cond, err := filter.NewIn(colID, vals)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, collection, cond.String()); err != nil {
		return wrapErr(db.OpDelete, err)
	}
	return nil
}

// SupportsFilterQuery returns true: Milvus queries scalar expressions without a vector.
func (s *Store) SupportsFilterQuery() bool { return true }

// QueryByFilter returns up to q.Limit matching rows.
func (s *Store) QueryByFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if q.Limit <= 0 {
		return &db.SearchResult{}, nil
	}
	if err := s.requireCollection(ctx, q.Collection); err != nil {
		return nil, err
	}
	rs, err := s.client.Query(ctx, q.Collection, buildExpr(q.Filter),
		[]string{colID, colText, colMetadata}, int64(q.Limit))
	if err != nil {
		return nil, wrapErr(db.OpQuery, err)
	}

	ids, err := varchars(rs.GetColumn(colID))
	if err != nil {
		return nil, err
	}
	texts, err := varchars(rs.GetColumn(colText))
	if err != nil {
		return nil, err
	}
	metas, err := jsonBlobs(rs.GetColumn(colMetadata))
	if err != nil {
		return nil, err
	}

	entries := make([]db.SearchEntry, 0, len(ids))
	for i := range ids {
		e, err := newEntry(ids[i], at(texts, i), at(metas, i), 0)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// QueryBySimilarity runs an L2 vector search with the filter as a boolean expression.
// Scores are 1/(1+distance).
func (s *Store) QueryBySimilarity(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return &db.SearchResult{}, nil
	}
	if err := s.requireCollection(ctx, q.Collection); err != nil {
		return nil, err
	}
	sp, err := entity.NewIndexIvfFlatSearchParam(s.nprobe)
	if err != nil {
		return nil, fmt.Errorf("search params: %w", err)
	}

	expr := ""
	if !q.Filter.IsEmpty() {
		expr = buildExpr(q.Filter)
	}
	results, err := s.client.Search(ctx, q.Collection, expr,
		[]string{colText, colMetadata}, q.Vector, q.K, sp)
	if err != nil {
		return nil, wrapErr(db.OpKNN, err)
	}

	var entries []db.SearchEntry
	for _, r := range results {
		if r.Err != nil {
			return nil, wrapErr(db.OpKNN, r.Err)
		}
		ids, err := varchars(r.IDs)
		if err != nil {
			return nil, err
		}
		texts, err := varchars(r.Fields.GetColumn(colText))
		if err != nil {
			return nil, err
		}
		metas, err := jsonBlobs(r.Fields.GetColumn(colMetadata))
		if err != nil {
			return nil, err
		}
		for i := 0; i < r.ResultCount && i < len(ids); i++ {
			var dist float64
			if i < len(r.Scores) {
				dist = float64(r.Scores[i])
			}
			e, err := newEntry(ids[i], at(texts, i), at(metas, i), 1/(1+max(0, dist)))
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func (s *Store) requireCollection(ctx context.Context, name string) error {
	ok, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return wrapErr(db.OpHasCollection, err)
	}
	if !ok {
		return db.ErrCollectionNotFound
	}
	return nil
}

// buildExpr renders a filter over the JSON metadata column.
// In-lists match a scalar member or any element of a list-valued field.
func buildExpr(expr filter.Expression) string {
	if expr.IsEmpty() {
		return matchAll
	}
	parts := make([]string, 0, len(expr.Conditions()))
	for _, c := range expr.Conditions() {
		field := fmt.Sprintf("%s[%s]", colMetadata, strconv.Quote(c.Key()))
		if c.Op() == filter.OpEqual {
			parts = append(parts, field+" == "+c.Values()[0].Literal())
			continue
		}
		lits := make([]string, len(c.Values()))
		for i, v := range c.Values() {
			lits[i] = v.Literal()
		}
		list := "[" + strings.Join(lits, ", ") + "]"
		parts = append(parts, fmt.Sprintf("(%s in %s or json_contains_any(%s, %s))", field, list, field, list))
	}
	return strings.Join(parts, " and ")
}

func newEntry(id, text string, meta []byte, score float64) (db.SearchEntry, error) {
	m, err := db.DecodeMetadata(meta)
	if err != nil {
		return db.SearchEntry{}, fmt.Errorf("row %s: %w", id, err)
	}
	return db.SearchEntry{ID: id, Score: score, Text: text, Metadata: m}, nil
}

var errColumnType = errors.New("milvus: unexpected column type")

func varchars(col entity.Column) ([]string, error) {
	if col == nil {
		return nil, nil
	}
	c, ok := col.(*entity.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", errColumnType, col.Name(), col)
	}
	return c.Data(), nil
}

func jsonBlobs(col entity.Column) ([][]byte, error) {
	if col == nil {
		return nil, nil
	}
	c, ok := col.(*entity.ColumnJSONBytes)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", errColumnType, col.Name(), col)
	}
	return c.Data(), nil
}

func at[T any](s []T, i int) T {
	var zero T
	if i < len(s) {
		return s[i]
	}
	return zero
}
