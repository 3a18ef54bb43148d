package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	TableName = tableName
	IndexDDL  = indexDDL
	EfSearch  = efSearch
)

func (b *PgVectorBackend) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return b.pool.Exec(ctx, sql, args...)
}
