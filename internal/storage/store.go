package storage

import (
	"context"
	"errors"

	"companion/internal/chat"
)

var (
	// ErrNotFound 用户没有历史记录
	// ErrNotFound means no record exists for the user
	ErrNotFound = errors.New("history not found")

	// ErrCorrupt 存储的历史无法解析
	// ErrCorrupt means the stored history could not be decoded
	ErrCorrupt = errors.New("stored history is corrupt")
)

// Store 持久化接口，支持多后端 (SQLite / JSON 文件)
// Store is the persistence interface supporting multiple backends
type Store interface {
	// Init 建表，可在每次启动时安全调用
	// Init sets up the schema; safe to call on every start
	Init(ctx context.Context) error

	// Get 读取用户的完整历史，不存在返回 ErrNotFound
	// Get loads the full history of a user, ErrNotFound when absent
	Get(ctx context.Context, userID string) ([]chat.Turn, error)

	// Put 整体覆盖写入 (upsert)
	// Put replaces the whole history of a user (upsert)
	Put(ctx context.Context, userID string, turns []chat.Turn) error

	// List 列出所有已存储的用户
	// List returns every stored user record summary
	List(ctx context.Context) ([]RecordInfo, error)

	// 生命周期 / Lifecycle
	Close() error
}
