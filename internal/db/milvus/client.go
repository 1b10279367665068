// Package milvus stores questions in Milvus collections with a JSON metadata column.
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/kailas-cloud/pastq/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Column names of every question collection.
const (
	colID       = "id"
	colVector   = "vector"
	colMetadata = "metadata"
	colText     = "text"
)

// Config holds connection parameters for a Milvus store.
type Config struct {
	Address  string
	Username string
	Password string
	DBName   string
	// NList is the IVF_FLAT cluster count; NProbe the clusters visited per search.
	NList  int
	NProbe int
}

// milvusClient is the subset of the SDK the store calls.
type milvusClient interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema) error
	CreateIndex(ctx context.Context, name, field string, idx entity.Index) error
	LoadCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	DropCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, name string, columns ...entity.Column) error
	Flush(ctx context.Context, name string) error
	Delete(ctx context.Context, name, expr string) error
	Query(ctx context.Context, name, expr string, fields []string, limit int64) (client.ResultSet, error)
	Search(ctx context.Context, name, expr string, fields []string, vec []float32, topK int, sp entity.SearchParam) ([]client.SearchResult, error)
	Close() error
}

// Store implements db.Store on Milvus.
type Store struct {
	client milvusClient
	nlist  int
	nprobe int
}

// NewStore connects to Milvus.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, db.ConnectionError("connect", err)
	}
	return newStore(&sdkClient{c: c}, cfg.NList, cfg.NProbe), nil
}

func newStore(c milvusClient, nlist, nprobe int) *Store {
	if nlist <= 0 {
		nlist = 1024
	}
	if nprobe <= 0 {
		nprobe = 10
	}
	return &Store{client: c, nlist: nlist, nprobe: nprobe}
}

// Ping lists collections as a liveness probe.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.ListCollections(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// WaitForReady polls Ping until Milvus responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for milvus: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close disconnects the client.
func (s *Store) Close() {
	_ = s.client.Close()
}

// wrapErr keeps context errors visible and reports the rest as connection failures,
// since the SDK does not type its gRPC errors.
func wrapErr(op string, err error) error {
	if db.IsContextError(err) {
		return &db.Error{Op: op, Err: err}
	}
	return db.ConnectionError(op, err)
}

// sdkClient adapts client.Client to milvusClient.
type sdkClient struct {
	c client.Client
}

func (a *sdkClient) HasCollection(ctx context.Context, name string) (bool, error) {
	return a.c.HasCollection(ctx, name)
}

func (a *sdkClient) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	return a.c.CreateCollection(ctx, schema, 1)
}

func (a *sdkClient) CreateIndex(ctx context.Context, name, field string, idx entity.Index) error {
	return a.c.CreateIndex(ctx, name, field, idx, false)
}

func (a *sdkClient) LoadCollection(ctx context.Context, name string) error {
	return a.c.LoadCollection(ctx, name, false)
}

func (a *sdkClient) ListCollections(ctx context.Context) ([]string, error) {
	cols, err := a.c.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

func (a *sdkClient) DropCollection(ctx context.Context, name string) error {
	return a.c.DropCollection(ctx, name)
}

func (a *sdkClient) Upsert(ctx context.Context, name string, columns ...entity.Column) error {
	_, err := a.c.Upsert(ctx, name, "", columns...)
	return err
}

func (a *sdkClient) Flush(ctx context.Context, name string) error {
	return a.c.Flush(ctx, name, false)
}

func (a *sdkClient) Delete(ctx context.Context, name, expr string) error {
	return a.c.Delete(ctx, name, "", expr)
}

func (a *sdkClient) Query(
	ctx context.Context, name, expr string, fields []string, limit int64,
) (client.ResultSet, error) {
	return a.c.Query(ctx, name, nil, expr, fields, client.WithLimit(limit))
}

func (a *sdkClient) Search(
	ctx context.Context, name, expr string, fields []string, vec []float32, topK int, sp entity.SearchParam,
) ([]client.SearchResult, error) {
	return a.c.Search(ctx, name, nil, expr, fields,
		[]entity.Vector{entity.FloatVector(vec)}, colVector, entity.L2, topK, sp)
}

func (a *sdkClient) Close() error {
	return a.c.Close()
}
