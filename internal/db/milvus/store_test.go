package milvus

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/kailas-cloud/pastq/internal/db"
	"github.com/kailas-cloud/pastq/internal/domain/search/filter"
)

// --- Mocks ---

type fakeClient struct {
	collections map[string]bool
	created     *entity.Schema
	indexed     string
	loaded      []string
	upserted    []entity.Column
	flushed     bool
	deleteExpr  string
	queryExpr   string
	queryLimit  int64
	searchExpr  string
	searchTopK  int
	queryRes    client.ResultSet
	searchRes   []client.SearchResult
	err         error
}

func newFake(collections ...string) *fakeClient {
	f := &fakeClient{collections: map[string]bool{}}
	for _, c := range collections {
		f.collections[c] = true
	}
	return f
}

func (f *fakeClient) HasCollection(_ context.Context, name string) (bool, error) {
	return f.collections[name], f.err
}

func (f *fakeClient) CreateCollection(_ context.Context, schema *entity.Schema) error {
	f.created = schema
	f.collections[schema.CollectionName] = true
	return nil
}

func (f *fakeClient) CreateIndex(_ context.Context, _, field string, _ entity.Index) error {
	f.indexed = field
	return nil
}

func (f *fakeClient) LoadCollection(_ context.Context, name string) error {
	f.loaded = append(f.loaded, name)
	return nil
}

func (f *fakeClient) ListCollections(context.Context) ([]string, error) {
	var out []string
	for c := range f.collections {
		out = append(out, c)
	}
	return out, f.err
}

func (f *fakeClient) DropCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	return nil
}

func (f *fakeClient) Upsert(_ context.Context, _ string, columns ...entity.Column) error {
	f.upserted = columns
	return f.err
}

func (f *fakeClient) Flush(context.Context, string) error {
	f.flushed = true
	return nil
}

func (f *fakeClient) Delete(_ context.Context, _, expr string) error {
	f.deleteExpr = expr
	return nil
}

func (f *fakeClient) Query(_ context.Context, _, expr string, _ []string, limit int64) (client.ResultSet, error) {
	f.queryExpr, f.queryLimit = expr, limit
	return f.queryRes, f.err
}

func (f *fakeClient) Search(
	_ context.Context, _, expr string, _ []string, _ []float32, topK int, _ entity.SearchParam,
) ([]client.SearchResult, error) {
	f.searchExpr, f.searchTopK = expr, topK
	return f.searchRes, f.err
}

func (f *fakeClient) Close() error { return nil }

// --- Tests ---

func TestEnsureCollection_CreatesIndexesAndLoads(t *testing.T) {
	f := newFake()
	s := newStore(f, 0, 0)

	err := s.EnsureCollection(context.Background(), &db.CollectionDefinition{Name: "c_past_questions", Dimensions: 384})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.created == nil || f.created.CollectionName != "c_past_questions" {
		t.Fatalf("schema not created: %+v", f.created)
	}
	if len(f.created.Fields) != 4 {
		t.Errorf("expected 4 fields, got %d", len(f.created.Fields))
	}
	if f.indexed != colVector {
		t.Errorf("indexed field = %q", f.indexed)
	}
	if len(f.loaded) != 1 {
		t.Errorf("expected load, got %v", f.loaded)
	}
}

func TestEnsureCollection_ExistingOnlyLoads(t *testing.T) {
	f := newFake("cs")
	s := newStore(f, 0, 0)

	if err := s.EnsureCollection(context.Background(), &db.CollectionDefinition{Name: "cs", Dimensions: 8}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.created != nil {
		t.Error("existing collection must not be recreated")
	}
	if len(f.loaded) != 1 {
		t.Errorf("expected load, got %v", f.loaded)
	}
}

func TestEnsureCollection_InvalidName(t *testing.T) {
	s := newStore(newFake(), 0, 0)
	for _, name := range []string{"a:b", "a-b", "cache"} {
		err := s.EnsureCollection(context.Background(), &db.CollectionDefinition{Name: name})
		if !errors.Is(err, db.ErrInvalidCollectionName) {
			t.Errorf("%q: expected ErrInvalidCollectionName, got %v", name, err)
		}
	}
}

func TestInsert_Upserts(t *testing.T) {
	f := newFake("cs")
	s := newStore(f, 0, 0)

	err := s.Insert(context.Background(), "cs", []db.Record{
		{ID: "q1", Text: "Define pointer.", Vector: []float32{1, 0}, Metadata: map[string]any{"unit": int64(3)}},
		{ID: "q2", Text: "Explain loops.", Vector: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.upserted) != 4 || !f.flushed {
		t.Fatalf("upserted=%d flushed=%v", len(f.upserted), f.flushed)
	}
	ids := f.upserted[0].(*entity.ColumnVarChar).Data()
	if ids[0] != "q1" || ids[1] != "q2" {
		t.Errorf("ids = %v", ids)
	}
	metas := f.upserted[2].(*entity.ColumnJSONBytes).Data()
	if string(metas[0]) != `{"unit":3}` || string(metas[1]) != `{}` {
		t.Errorf("metadata = %s / %s", metas[0], metas[1])
	}
}

func TestInsert_DimensionMismatch(t *testing.T) {
	s := newStore(newFake("cs"), 0, 0)
	err := s.Insert(context.Background(), "cs", []db.Record{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{1}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestInsert_ConnectionError(t *testing.T) {
	f := newFake("cs")
	f.err = errors.New("rpc error: code = Unavailable")
	s := newStore(f, 0, 0)

	err := s.Insert(context.Background(), "cs", []db.Record{{ID: "a", Vector: []float32{1}}})
	if !errors.Is(err, db.ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
}

func TestDelete_Expression(t *testing.T) {
	f := newFake("cs")
	s := newStore(f, 0, 0)

	if err := s.Delete(context.Background(), "cs", []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.deleteExpr != "id in ['a', 'b']" {
		t.Errorf("expr = %q", f.deleteExpr)
	}
}

func TestDropCollection_NotFound(t *testing.T) {
	s := newStore(newFake(), 0, 0)
	if err := s.DropCollection(context.Background(), "cs"); !errors.Is(err, db.ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestQueryByFilter(t *testing.T) {
	f := newFake("cs")
	f.queryRes = client.ResultSet{
		entity.NewColumnVarChar(colID, []string{"q1"}),
		entity.NewColumnVarChar(colText, []string{"Define pointer."}),
		entity.NewColumnJSONBytes(colMetadata, [][]byte{[]byte(`{"year_bs":[2079],"marks":5}`)}),
	}
	s := newStore(f, 0, 0)

	cond, _ := filter.NewEqual("type", filter.String("theory"))
	expr, _ := filter.NewExpression(cond)
	res, err := s.QueryByFilter(context.Background(), &db.FilterQuery{Collection: "cs", Filter: expr, Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.queryExpr != `metadata["type"] == 'theory'` || f.queryLimit != 3 {
		t.Errorf("query expr=%q limit=%d", f.queryExpr, f.queryLimit)
	}
	if len(res.Entries) != 1 || res.Entries[0].Text != "Define pointer." {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if res.Entries[0].Metadata["marks"] != int64(5) {
		t.Errorf("marks = %#v", res.Entries[0].Metadata["marks"])
	}
}

func TestQueryByFilter_MatchAll(t *testing.T) {
	f := newFake("cs")
	s := newStore(f, 0, 0)
	if _, err := s.QueryByFilter(context.Background(), &db.FilterQuery{Collection: "cs", Limit: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.queryExpr != matchAll {
		t.Errorf("expr = %q", f.queryExpr)
	}
}

func TestQueryByFilter_MissingCollection(t *testing.T) {
	s := newStore(newFake(), 0, 0)
	_, err := s.QueryByFilter(context.Background(), &db.FilterQuery{Collection: "cs", Limit: 3})
	if !errors.Is(err, db.ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestQueryBySimilarity_Scores(t *testing.T) {
	f := newFake("cs")
	f.searchRes = []client.SearchResult{{
		ResultCount: 2,
		IDs:         entity.NewColumnVarChar(colID, []string{"near", "far"}),
		Fields: client.ResultSet{
			entity.NewColumnVarChar(colText, []string{"n", "f"}),
			entity.NewColumnJSONBytes(colMetadata, [][]byte{[]byte(`{}`), []byte(`{}`)}),
		},
		Scores: []float32{0, 1},
	}}
	s := newStore(f, 0, 0)

	cond, _ := filter.NewIn("year_bs", []filter.Value{filter.Int(2075), filter.Int(2076)})
	expr, _ := filter.NewExpression(cond)
	res, err := s.QueryBySimilarity(context.Background(), &db.KNNQuery{
		Collection: "cs", Filter: expr, Vector: []float32{1, 0}, K: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantExpr := `(metadata["year_bs"] in [2075, 2076] or json_contains_any(metadata["year_bs"], [2075, 2076]))`
	if f.searchExpr != wantExpr {
		t.Errorf("expr = %q, want %q", f.searchExpr, wantExpr)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Entries))
	}
	if res.Entries[0].Score != 1 || res.Entries[1].Score != 0.5 {
		t.Errorf("scores = %v, %v", res.Entries[0].Score, res.Entries[1].Score)
	}
}

func TestQueryBySimilarity_NoFilterNoExpr(t *testing.T) {
	f := newFake("cs")
	s := newStore(f, 0, 0)
	if _, err := s.QueryBySimilarity(context.Background(), &db.KNNQuery{Collection: "cs", Vector: []float32{1}, K: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.searchExpr != "" || f.searchTopK != 3 {
		t.Errorf("expr=%q topK=%d", f.searchExpr, f.searchTopK)
	}
}

func TestPing_ContextError(t *testing.T) {
	f := newFake()
	f.err = context.DeadlineExceeded
	s := newStore(f, 0, 0)
	err := s.Ping(context.Background())
	if errors.Is(err, db.ErrConnection) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v", err)
	}
}
