package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/store"
)

// PostgresSearchCacheStore implements the store.SearchCacheStore
// interface using a PostgreSQL database as the storage backend. Entries
// are written once and never updated; TTL-based eviction runs outside
// this process.
type PostgresSearchCacheStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSearchCacheStore creates a new PostgreSQL implementation of
// the SearchCacheStore interface.
func NewPostgresSearchCacheStore(db store.DBTX, logger *slog.Logger) *PostgresSearchCacheStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSearchCacheStore{
		db:     db,
		logger: logger.With(slog.String("component", "search_cache_store")),
	}
}

// Ensure PostgresSearchCacheStore implements store.SearchCacheStore interface
var _ store.SearchCacheStore = (*PostgresSearchCacheStore)(nil)

// Lookup implements store.SearchCacheStore.Lookup.
func (s *PostgresSearchCacheStore) Lookup(ctx context.Context, fingerprint string) (*store.CacheEntry, error) {
	query := `
		SELECT fingerprint, source, query, result, created_at
		FROM resource_search_cache
		WHERE fingerprint = $1
	`

	var entry store.CacheEntry
	var result []byte
	err := s.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&entry.Fingerprint,
		&entry.Source,
		&entry.Query,
		&result,
		&entry.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, MapError(err)
	}

	entry.Result = result
	return &entry, nil
}

// Store implements store.SearchCacheStore.Store.
// ON CONFLICT DO NOTHING makes concurrent same-key writes idempotent: the
// first writer wins, and by fingerprint construction the competing values
// are equivalent.
func (s *PostgresSearchCacheStore) Store(ctx context.Context, entry *store.CacheEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if entry.Fingerprint == "" {
		return fmt.Errorf("%w: cache entry fingerprint cannot be empty", store.ErrInvalidEntity)
	}

	query := `
		INSERT INTO resource_search_cache (fingerprint, source, query, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.Fingerprint,
		entry.Source,
		entry.Query,
		entry.Result,
		entry.CreatedAt,
	)
	if err != nil {
		log.Error("failed to store cache entry",
			"fingerprint", entry.Fingerprint,
			"source", entry.Source,
			"error", err)
		return MapError(err)
	}

	return nil
}
