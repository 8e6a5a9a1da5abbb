package storage

import (
	"context"
	"fmt"
	"log/slog"
	"newsfeed/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresFeedStore хранит источники лент в таблице feed_sources.
type PostgresFeedStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresFeedStore(pool *pgxpool.Pool, log *slog.Logger) *PostgresFeedStore {
	log = log.With(slog.String("component", "storage"))
	log.Info("Initializing Postgres feed storage")
	return &PostgresFeedStore{
		pool: pool,
		log:  log,
	}
}

func (db *PostgresFeedStore) Close() {
	db.log.Info("Closing database connection pool")
	db.pool.Close()
}

// ListFeeds возвращает источники в порядке position, затем name.
func (db *PostgresFeedStore) ListFeeds(ctx context.Context) ([]domain.FeedSource, error) {
	const op = "storage.postgres.ListFeeds"
	log := db.log.With(slog.String("op", op))
	query := `
	SELECT name, url
	FROM feed_sources
	ORDER BY position, name;
	`
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		log.Error("Database query failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()
	feeds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.FeedSource, error) {
		var feed domain.FeedSource
		err := row.Scan(&feed.Name, &feed.URL)
		return feed, err
	})
	if err != nil {
		log.Error("Failed to collect rows", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	log.Debug("Successfully retrieved feed sources", slog.Int("count", len(feeds)))
	return feeds, nil
}

// UpsertFeeds сохраняет источники, обновляя URL и позицию существующих по имени.
// Позиция источника - его индекс в feeds.
func (db *PostgresFeedStore) UpsertFeeds(ctx context.Context, feeds []domain.FeedSource) (n int, err error) {
	const op = "storage.postgres.UpsertFeeds"
	if len(feeds) == 0 {
		return 0, nil
	}
	log := db.log.With(slog.String("op", op))
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		log.Error("Failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(context.Background()); rollbackErr != nil {
				log.Error("Failed to rollback transaction", slog.Any("error", rollbackErr))
			}
		}
	}()
	batch := &pgx.Batch{}
	query := `
	INSERT INTO feed_sources (name, url, position)
	VALUES ($1, $2, $3)
	ON CONFLICT (name) DO UPDATE SET url = EXCLUDED.url, position = EXCLUDED.position;
	`
	for i, feed := range feeds {
		batch.Queue(query, feed.Name, feed.URL, i)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Error("Failed to execute batch", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to execute batch: %w", op, err)
	}
	if err = tx.Commit(ctx); err != nil {
		log.Error("Failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	log.Info("Feed sources saved", slog.Int("count", len(feeds)))
	return len(feeds), nil
}
