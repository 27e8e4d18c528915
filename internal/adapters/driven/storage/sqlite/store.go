package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ragcore/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// DatabaseFileName is the database file created under the data directory.
const DatabaseFileName = "ragcore.db"

// timeLayout is how timestamps are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

// Store is a unified SQLite-based storage that provides the embedding cache,
// response cache and document registry through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.ragcore/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragcore", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFileName)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EmbeddingCache returns an EmbeddingCache backed by this store.
func (s *Store) EmbeddingCache() driven.EmbeddingCache {
	return &embeddingCache{store: s}
}

// ResponseCache returns a ResponseCache backed by this store.
func (s *Store) ResponseCache() driven.ResponseCache {
	return &responseCache{store: s}
}

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// applyMigration runs one migration and records its version in a single transaction.
func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(content); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("getting schema version: %w", err)
	}
	return version, nil
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	// table is one of the fixed names below, never user input.
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) truncate(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	return nil
}

// ==================== Embedding Cache ====================

// embeddingCache implements driven.EmbeddingCache.
type embeddingCache struct {
	store *Store
}

var _ driven.EmbeddingCache = (*embeddingCache)(nil)

// Get retrieves a cached vector.
func (c *embeddingCache) Get(ctx context.Context, key string) ([]float32, error) {
	var dims int
	var blob []byte
	row := c.store.db.QueryRowContext(ctx,
		"SELECT dimensions, vector FROM embedding_cache WHERE key = ?", key)
	if err := row.Scan(&dims, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}

	if len(blob)%4 != 0 || len(blob)/4 != dims || dims == 0 {
		return nil, fmt.Errorf("%w: embedding %s has %d bytes for %d dimensions",
			domain.ErrCacheCorrupted, key, len(blob), dims)
	}
	return bytesToFloat32Slice(blob), nil
}

// Put stores a vector. An existing entry for key is overwritten.
func (c *embeddingCache) Put(ctx context.Context, key string, vector []float32) error {
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (key, dimensions, vector, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			dimensions = excluded.dimensions,
			vector = excluded.vector
	`, key, len(vector), float32SliceToBytes(vector), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("saving embedding: %w", err)
	}
	return nil
}

// Len returns the number of cached vectors.
func (c *embeddingCache) Len(ctx context.Context) (int, error) {
	return c.store.count(ctx, "embedding_cache")
}

// Clear removes every cached vector.
func (c *embeddingCache) Clear(ctx context.Context) error {
	return c.store.truncate(ctx, "embedding_cache")
}

// ==================== Response Cache ====================

// responseCache implements driven.ResponseCache.
type responseCache struct {
	store *Store
}

var _ driven.ResponseCache = (*responseCache)(nil)

// Get retrieves a cached response.
func (c *responseCache) Get(ctx context.Context, key string) (*domain.QueryResponse, error) {
	var payload string
	row := c.store.db.QueryRowContext(ctx, "SELECT payload FROM response_cache WHERE key = ?", key)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("scanning response: %w", err)
	}

	var resp domain.QueryResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("%w: response %s: %w", domain.ErrCacheCorrupted, key, err)
	}
	return &resp, nil
}

// Put stores a response.
func (c *responseCache) Put(ctx context.Context, key string, resp *domain.QueryResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshalling response: %w", err)
	}

	_, err = c.store.db.ExecContext(ctx, `
		INSERT INTO response_cache (key, query, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			query = excluded.query,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, key, resp.Metadata.Query, string(payload), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("saving response: %w", err)
	}
	return nil
}

// Len returns the number of cached responses.
func (c *responseCache) Len(ctx context.Context) (int, error) {
	return c.store.count(ctx, "response_cache")
}

// Clear removes every cached response.
func (c *responseCache) Clear(ctx context.Context) error {
	return c.store.truncate(ctx, "response_cache")
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document record.
func (s *documentStore) SaveDocument(ctx context.Context, rec *domain.DocumentRecord) error {
	if rec.SourceFile == "" {
		return fmt.Errorf("%w: document record needs a source file", domain.ErrInvalidInput)
	}
	ingestedAt := rec.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (source_file, file_hash, chunk_type, chunk_count, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_file) DO UPDATE SET
			file_hash = excluded.file_hash,
			chunk_type = excluded.chunk_type,
			chunk_count = excluded.chunk_count,
			ingested_at = excluded.ingested_at
	`, rec.SourceFile, rec.FileHash, string(rec.ChunkType), rec.ChunkCount,
		ingestedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document record by source file.
func (s *documentStore) GetDocument(ctx context.Context, sourceFile string) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT source_file, file_hash, chunk_type, chunk_count, ingested_at
		FROM documents WHERE source_file = ?
	`, sourceFile)

	rec, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListDocuments returns every record ordered by source file.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.DocumentRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source_file, file_hash, chunk_type, chunk_count, ingested_at
		FROM documents ORDER BY source_file
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var records []domain.DocumentRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return records, nil
}

// DeleteDocument removes a document record.
func (s *documentStore) DeleteDocument(ctx context.Context, sourceFile string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE source_file = ?", sourceFile)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// Clear removes every document record.
func (s *documentStore) Clear(ctx context.Context) error {
	return s.store.truncate(ctx, "documents")
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a single document row.
func scanDocument(row rowScanner) (*domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	var chunkType, ingestedAt string
	if err := row.Scan(&rec.SourceFile, &rec.FileHash, &chunkType, &rec.ChunkCount, &ingestedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	rec.ChunkType = domain.ChunkType(chunkType)

	t, err := time.Parse(timeLayout, ingestedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing ingested_at for %s: %w", rec.SourceFile, err)
	}
	rec.IngestedAt = t
	return &rec, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
