package cartstore

import (
	"context"
	"errors"

	"dronefood-storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("cartstore")}
}

func (r *postgresRepo) Get(ctx context.Context, scope, key string) (string, error) {
	const q = `
SELECT value::text
FROM cart_store
WHERE scope = $1 AND key = $2
`
	var value string
	if err := r.pool.QueryRow(ctx, q, scope, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		r.logger.Error("get failed", zap.String("scope", scope), zap.String("key", key), zap.Error(err))
		return "", err
	}
	return value, nil
}

func (r *postgresRepo) Put(ctx context.Context, scope, key, value string) error {
	const q = `
INSERT INTO cart_store (scope, key, value, updated_at)
VALUES ($1, $2, $3::text::jsonb, now())
ON CONFLICT (scope, key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = EXCLUDED.updated_at
`
	if _, err := r.pool.Exec(ctx, q, scope, key, value); err != nil {
		r.logger.Error("put failed", zap.String("scope", scope), zap.String("key", key), zap.Error(err))
		return err
	}
	r.logger.Debug("put", zap.String("scope", scope), zap.String("key", key), zap.Int("bytes", len(value)))
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, scope, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_store WHERE scope = $1 AND key = $2`, scope, key); err != nil {
		r.logger.Error("delete failed", zap.String("scope", scope), zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}
