package resultstore

import (
	"context"

	"poc-router/logging"
)

// NewResultStorage picks the storage backend from configuration. A
// configured db path selects sqlite; otherwise results go to flat files.
// A sqlite that fails to open falls back to files rather than aborting
// startup.
func NewResultStorage(ctx context.Context, dbPath, fileBaseDir string) ResultStorage {
	if dbPath == "" {
		logging.Info("No result db path configured, using file storage", logging.ResultStore,
			"dir", fileBaseDir)
		return NewFileStorage(fileBaseDir)
	}

	store, err := NewSqliteStorage(ctx, dbPath)
	if err != nil {
		logging.Warn("Sqlite result storage unavailable, falling back to files", logging.ResultStore,
			"path", dbPath, "error", err.Error())
		return NewFileStorage(fileBaseDir)
	}
	return store
}
