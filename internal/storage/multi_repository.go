package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MultiConfig is the minimal configuration needed to create a multi-table repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - BatchSize <= 0 lets the backend pick its own rows-per-statement.
type MultiConfig struct {
	Kind      string
	DSN       string
	BatchSize int
}

// MultiRepository is the store handle shared by every pipeline stage.
//
// It is a single connection-scoped resource: the runner opens it once, passes
// it explicitly to each stage, and closes it exactly once.
type MultiRepository interface {
	// Close releases backend resources. Callers treat Close as "call once".
	Close()

	// ApplySchema executes a DDL script. The backend splits it into statements
	// (or batches) per its dialect and runs them in order.
	ApplySchema(ctx context.Context, script string) error

	// EnsureTables creates the given tables if they do not exist.
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// Begin opens a load transaction.
	Begin(ctx context.Context) (LoadTx, error)

	// CountRows returns SELECT COUNT(*) for table.
	CountRows(ctx context.Context, table string) (int64, error)

	// CountOrphans counts rows of child whose column has no match in parent.column.
	CountOrphans(ctx context.Context, child, parent, column string) (int64, error)

	// GroupCounts returns COUNT(*) per distinct value of column, ordered by value.
	GroupCounts(ctx context.Context, table, column string) ([]GroupCount, error)
}

// LoadTx is a write transaction used by the loader. Rollback after Commit is a
// no-op from the caller's point of view (the error is ignored).
type LoadTx interface {
	DeleteAll(ctx context.Context, table string) (int64, error)
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	CountRows(ctx context.Context, table string) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// GroupCount is one bucket of a GROUP BY count. Value is the raw driver value
// (nil for SQL NULL).
type GroupCount struct {
	Value any
	Count int64
}

type multiFactory func(ctx context.Context, cfg MultiConfig) (MultiRepository, error)

var (
	multiMu        sync.RWMutex
	multiFactories = map[string]multiFactory{}
)

// RegisterMulti registers a multi-table backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call RegisterMulti from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func RegisterMulti(kind string, f multiFactory) {
	multiMu.Lock()
	defer multiMu.Unlock()

	if kind == "" {
		panic("storage: RegisterMulti called with empty kind")
	}
	if f == nil {
		panic("storage: RegisterMulti called with nil factory")
	}
	if _, exists := multiFactories[kind]; exists {
		panic(fmt.Sprintf("storage: multi factory already registered for kind=%q", kind))
	}

	multiFactories[kind] = f
}

// NewMulti constructs a MultiRepository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns (including
//     connectivity failures, since factories ping before returning).
func NewMulti(ctx context.Context, cfg MultiConfig) (MultiRepository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing multi.Kind")
	}

	multiMu.RLock()
	f := multiFactories[cfg.Kind]
	multiMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported multi storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	multiMu.RLock()
	defer multiMu.RUnlock()

	out := make([]string, 0, len(multiFactories))
	for k := range multiFactories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
