package resultstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"poc-router/logging"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS validated_results (
    request_id TEXT PRIMARY KEY,
    block_height INTEGER NOT NULL,
    result BLOB NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_validated_results_height ON validated_results(block_height);
`

type SqliteStorage struct {
	db *sql.DB
}

func NewSqliteStorage(ctx context.Context, dbPath string) (*SqliteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logging.Info("Sqlite result storage initialized", logging.ResultStore, "path", dbPath)
	return &SqliteStorage{db: db}, nil
}

func (s *SqliteStorage) Store(ctx context.Context, requestId string, blockHeight int64, result []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO validated_results (request_id, block_height, result) VALUES (?, ?, ?)
		 ON CONFLICT(request_id) DO UPDATE SET block_height = excluded.block_height, result = excluded.result`,
		requestId, blockHeight, result)
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *SqliteStorage) Retrieve(ctx context.Context, requestId string) ([]byte, error) {
	var result []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM validated_results WHERE request_id = ?`, requestId).Scan(&result)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve result: %w", err)
	}
	return result, nil
}

func (s *SqliteStorage) Prune(ctx context.Context, beforeHeight int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM validated_results WHERE block_height < ?`, beforeHeight)
	if err != nil {
		return fmt.Errorf("prune results: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logging.Info("Pruned validated results", logging.ResultStore,
			"before_height", beforeHeight, "removed", n)
	}
	return nil
}

func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

var _ ResultStorage = (*SqliteStorage)(nil)
