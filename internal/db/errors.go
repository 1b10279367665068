package db

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	ErrKeyNotFound             = errors.New("db: key not found")
	ErrCollectionNotFound      = errors.New("db: collection not found")
	ErrCollectionExists        = errors.New("db: collection already exists")
	ErrInvalidCollectionName   = errors.New("db: invalid collection name")
	ErrConnection              = errors.New("db: connection failure")
	ErrFilterQueryNotSupported = errors.New("db: filter query without vector not supported")
)

// Op constants name the failing operation for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpListIndexes = "FT._LIST"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpHSet        = "HSET"
	OpScan        = "SCAN"
	OpGet         = "GET"
	OpSet         = "SET"

	OpCreateCollection = "CreateCollection"
	OpDropCollection   = "DropCollection"
	OpHasCollection    = "HasCollection"
	OpListCollections  = "ListCollections"
	OpInsert           = "Insert"
	OpDelete           = "Delete"
	OpQuery            = "Query"
	OpKNN              = "Search"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// ConnectionError marks err as a transport-level failure that may succeed on retry.
func ConnectionError(op string, err error) error {
	return &Error{Op: op, Err: errors.Join(ErrConnection, err)}
}

// IsContextError reports whether err comes from a cancelled or expired context.
func IsContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
