package store

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/internal/types"
)

const collectionsTable = "redagent_collections"

const defaultEfSearch = 100

type PgVectorConfig struct {
	ConnString string
	// EfSearch is the hnsw candidate list size per search. It is raised to
	// the search limit when smaller.
	EfSearch int
}

// PgVectorBackend stores each collection as a table with a vector column.
// Collection metadata lives in redagent_collections.
type PgVectorBackend struct {
	config PgVectorConfig
	pool   *pgxpool.Pool

	mu      sync.RWMutex
	metrics map[string]types.Metric
}

var _ types.Backend = (*PgVectorBackend)(nil)

func NewPgVectorBackend(ctx context.Context, config PgVectorConfig) (*PgVectorBackend, error) {
	if config.EfSearch <= 0 {
		config.EfSearch = defaultEfSearch
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := &PgVectorBackend{
		config:  config,
		pool:    pool,
		metrics: make(map[string]types.Metric),
	}
	if err := b.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PgVectorBackend) initialize(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	_, err := b.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+collectionsTable+` (
			name TEXT PRIMARY KEY,
			vector_size INTEGER NOT NULL,
			metric TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create collections table: %w", err)
	}
	return nil
}

func (b *PgVectorBackend) ListCollections(ctx context.Context) ([]types.CollectionInfo, error) {
	rows, err := b.pool.Query(ctx, "SELECT name, vector_size, metric FROM "+collectionsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var infos []types.CollectionInfo
	for rows.Next() {
		var info types.CollectionInfo
		var metric string
		if err := rows.Scan(&info.Name, &info.VectorSize, &metric); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		info.Metric = types.Metric(metric)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (b *PgVectorBackend) CreateCollection(ctx context.Context, info types.CollectionInfo) error {
	table := tableName(info.Name)
	opclass := "vector_cosine_ops"
	if info.Metric == types.MetricDot {
		opclass = "vector_ip_ops"
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			text TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			embedding vector(%d)
		)`, table, info.VectorSize)
	if _, err := tx.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := indexDDL(info.Name, table, opclass)
	if _, err := tx.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO "+collectionsTable+" (name, vector_size, metric) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING",
		info.Name, info.VectorSize, string(info.Metric))
	if err != nil {
		return fmt.Errorf("failed to record collection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	b.mu.Lock()
	b.metrics[info.Name] = info.Metric
	b.mu.Unlock()
	return nil
}

func (b *PgVectorBackend) Upsert(ctx context.Context, collection string, points []models.Point) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, text, fingerprint, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			fingerprint = EXCLUDED.fingerprint,
			embedding = EXCLUDED.embedding`,
		tableName(collection))

	for _, p := range points {
		_, err := tx.Exec(ctx, stmt, int64(p.ID), sanitizeUTF8(p.Text), p.Fingerprint, pgvector.NewVector(p.Vector))
		if err != nil {
			return fmt.Errorf("failed to insert point %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (b *PgVectorBackend) Search(ctx context.Context, collection string, vector []float32, limit int) ([]models.SearchResult, error) {
	metric, err := b.metric(ctx, collection)
	if err != nil {
		return nil, err
	}

	// <=> is cosine distance, <#> is the negated inner product.
	op, score := "<=>", "1 - (embedding <=> $1)"
	if metric == types.MetricDot {
		op, score = "<#>", "(embedding <#> $1) * -1"
	}
	query := fmt.Sprintf(`
		SELECT id, text, %s AS score
		FROM %s
		ORDER BY embedding %s $1
		LIMIT $2`,
		score, tableName(collection), op)

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// hnsw returns at most ef_search rows per scan.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch(b.config.EfSearch, limit))); err != nil {
		return nil, fmt.Errorf("failed to set ef_search: %w", err)
	}

	rows, err := tx.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ID, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return results, nil
}

// indexDDL builds the vector index for a collection table. hnsw needs no
// training data, so it is accurate even when created on an empty table.
func indexDDL(collection, table, opclass string) string {
	return fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING hnsw (embedding %s)`,
		pgx.Identifier{collection + "_embedding_idx"}.Sanitize(), table, opclass)
}

// maxEfSearch is the largest hnsw.ef_search Postgres accepts.
const maxEfSearch = 1000

func efSearch(configured, limit int) int {
	return min(max(configured, limit), maxEfSearch)
}

func (b *PgVectorBackend) Scroll(ctx context.Context, collection string) ([]models.Chunk, error) {
	rows, err := b.pool.Query(ctx, "SELECT id, text, fingerprint FROM "+tableName(collection)+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var id int64
		var c models.Chunk
		if err := rows.Scan(&id, &c.Text, &c.Fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		c.ID = uint64(id)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (b *PgVectorBackend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	return nil
}

func (b *PgVectorBackend) metric(ctx context.Context, collection string) (types.Metric, error) {
	b.mu.RLock()
	m, ok := b.metrics[collection]
	b.mu.RUnlock()
	if ok {
		return m, nil
	}

	var metric string
	err := b.pool.QueryRow(ctx, "SELECT metric FROM "+collectionsTable+" WHERE name = $1", collection).Scan(&metric)
	if err != nil {
		return "", fmt.Errorf("failed to look up collection %q: %w", collection, err)
	}
	b.mu.Lock()
	b.metrics[collection] = types.Metric(metric)
	b.mu.Unlock()
	return types.Metric(metric), nil
}

func tableName(collection string) string {
	return pgx.Identifier{collection}.Sanitize()
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
