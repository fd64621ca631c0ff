package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// MigrateFromJSON 将 JSON 文件后端的历史迁移到 SQLite；已存在的用户跳过
// MigrateFromJSON copies histories from the JSON file backend into SQLite, skipping users already present
func MigrateFromJSON(ctx context.Context, jsonDir string, store *SQLiteStore, warn io.Writer) (int, error) {
	jsonDir = strings.TrimSpace(jsonDir)
	if jsonDir == "" {
		return 0, nil
	}
	if _, err := os.Stat(jsonDir); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat json dir: %w", err)
	}
	if warn == nil {
		warn = io.Discard
	}

	files := &FileStore{baseDir: jsonDir, historiesDir: jsonDir + string(os.PathSeparator) + "histories"}
	infos, err := files.List(ctx)
	if err != nil {
		return 0, err
	}

	migrated := 0
	for _, info := range infos {
		// 检查是否已存在 / Check if already migrated
		if _, err := store.Get(ctx, info.UserID); err == nil {
			continue
		}
		turns, err := files.Get(ctx, info.UserID)
		if err != nil {
			fmt.Fprintf(warn, "skip migrate %s: %v\n", info.UserID, err)
			continue
		}
		if err := store.Put(ctx, info.UserID, turns); err != nil {
			fmt.Fprintf(warn, "migrate history %s failed: %v\n", info.UserID, err)
			continue
		}
		migrated++
	}
	return migrated, nil
}
