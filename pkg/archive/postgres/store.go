package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/voxalign/pkg/archive"
	"github.com/MrWong99/voxalign/pkg/provider/embeddings"
)

// Compile-time interface check.
var _ archive.Store = (*Store)(nil)

// DefaultEmbeddingDimensions sizes the embedding column when no embeddings
// provider is configured. The column is then created but never populated.
const DefaultEmbeddingDimensions = 1536

// Store is the PostgreSQL-backed transcript archive. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider // nil disables semantic indexing
	dims     int
}

// Option configures a Store during construction.
type Option func(*Store)

// WithEmbeddings enables semantic indexing: every saved turn is embedded with
// p and [Store.SearchSemantic] becomes available. The embedding column is
// sized to p.Dimensions().
func WithEmbeddings(p embeddings.Provider) Option {
	return func(s *Store) {
		s.embedder = p
		s.dims = p.Dimensions()
	}
}

// WithEmbeddingDimensions overrides the embedding column dimension. Only
// useful without [WithEmbeddings], e.g. to match a schema created by an
// earlier deployment.
func WithEmbeddingDimensions(n int) Option {
	return func(s *Store) { s.dims = n }
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn,
// registers pgvector types on every connection, and runs [Migrate] to ensure
// all required tables and extensions exist.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{dims: DefaultEmbeddingDimensions}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres archive: ping: %w", err)
	}

	if err := Migrate(ctx, pool, s.dims); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres archive: migrate: %w", err)
	}

	s.pool = pool
	return s, nil
}

// Ping verifies the database connection is alive. Intended for readiness
// checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
