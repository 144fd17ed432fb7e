package resultstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("result not found")

// ResultStorage persists validated PoC results keyed by composite request
// id, retaining them per block height until pruned.
type ResultStorage interface {
	Store(ctx context.Context, requestId string, blockHeight int64, result []byte) error
	Retrieve(ctx context.Context, requestId string) ([]byte, error)
	Prune(ctx context.Context, beforeHeight int64) error
	Close() error
}
