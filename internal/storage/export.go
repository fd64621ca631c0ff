package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Export returns the stored record of one user.
func Export(ctx context.Context, store Store, userID string) (Record, error) {
	turns, err := store.Get(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	return Record{UserID: strings.TrimSpace(userID), Turns: turns, UpdatedAt: nowUTC()}, nil
}

// Import replaces the stored history of rec.UserID with rec.Turns.
func Import(ctx context.Context, store Store, rec Record) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return fmt.Errorf("record user id is empty")
	}
	return store.Put(ctx, rec.UserID, rec.Turns)
}

// ExportFile 将用户历史写入 JSON 文件
// ExportFile writes the history of a user to a JSON file
func ExportFile(ctx context.Context, store Store, userID, path string) error {
	rec, err := Export(ctx, store, userID)
	if err != nil {
		return err
	}
	return writeJSONFile(path, rec)
}

// ImportFile 从 JSON 文件导入历史；userID 非空时覆盖文件中的用户
// ImportFile imports a history from a JSON file; a non-empty userID overrides the one in the file
func ImportFile(ctx context.Context, store Store, path, userID string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("read %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(userID) != "" {
		rec.UserID = strings.TrimSpace(userID)
	}
	if err := Import(ctx, store, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
