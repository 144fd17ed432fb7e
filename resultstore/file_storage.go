package resultstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type storedResult struct {
	BlockHeight int64  `json:"block_height"`
	Result      []byte `json:"result"`
}

// FileStorage keeps one JSON file per request id under baseDir. Request ids
// are hex-encoded in filenames since composite ids contain ':'.
type FileStorage struct {
	baseDir string
}

func NewFileStorage(baseDir string) *FileStorage {
	return &FileStorage{baseDir: baseDir}
}

func requestIdToFilename(requestId string) string {
	return hex.EncodeToString([]byte(requestId)) + ".json"
}

// Atomic write: temp file + rename
func (f *FileStorage) Store(ctx context.Context, requestId string, blockHeight int64, result []byte) error {
	if err := os.MkdirAll(f.baseDir, 0755); err != nil {
		return fmt.Errorf("create base dir: %w", err)
	}

	data, err := json.Marshal(storedResult{BlockHeight: blockHeight, Result: result})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	targetPath := filepath.Join(f.baseDir, requestIdToFilename(requestId))
	tempPath := targetPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename to target: %w", err)
	}
	return nil
}

func (f *FileStorage) Retrieve(ctx context.Context, requestId string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.baseDir, requestIdToFilename(requestId)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	var stored storedResult
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return stored.Result, nil
}

func (f *FileStorage) Prune(ctx context.Context, beforeHeight int64) error {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read base dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(f.baseDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var stored storedResult
		if err := json.Unmarshal(data, &stored); err != nil {
			continue
		}
		if stored.BlockHeight < beforeHeight {
			os.Remove(path)
		}
	}
	return nil
}

func (f *FileStorage) Close() error {
	return nil
}

var _ ResultStorage = (*FileStorage)(nil)
