package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"companion/internal/chat"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
//
// The table layout matches the user_chats table of earlier releases, so an
// existing rafiq_memory.db can be opened directly.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.Init(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_chats (
		user_id      TEXT PRIMARY KEY,
		chat_history TEXT
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create user_chats: %w", err)
	}

	// 旧库没有 updated_at 列 / Older databases lack updated_at
	has, err := s.hasColumn(ctx, "user_chats", "updated_at")
	if err != nil {
		return err
	}
	if !has {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE user_chats ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add updated_at column: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			typ       string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("scan table info: %w", err)
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) ([]chat.Turn, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is empty")
	}

	var history sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT chat_history FROM user_chats WHERE user_id=?`, userID).Scan(&history)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load history: %w", err)
	}
	return decodeTurns(history.String)
}

func (s *SQLiteStore) Put(ctx context.Context, userID string, turns []chat.Turn) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is empty")
	}
	data, err := encodeTurns(turns)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_chats (user_id, chat_history, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			chat_history = excluded.chat_history,
			updated_at   = excluded.updated_at`,
		userID, data, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]RecordInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id,
			CASE WHEN json_valid(chat_history) THEN json_array_length(chat_history) ELSE 0 END,
			updated_at
		FROM user_chats ORDER BY updated_at DESC, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list histories: %w", err)
	}
	defer rows.Close()

	var infos []RecordInfo
	for rows.Next() {
		var info RecordInfo
		if err := rows.Scan(&info.UserID, &info.Turns, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// --- Helpers ---

func encodeTurns(turns []chat.Turn) (string, error) {
	if turns == nil {
		turns = []chat.Turn{}
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	return string(data), nil
}

func decodeTurns(data string) ([]chat.Turn, error) {
	if strings.TrimSpace(data) == "" {
		return []chat.Turn{}, nil
	}
	var turns []chat.Turn
	if err := json.Unmarshal([]byte(data), &turns); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if turns == nil {
		turns = []chat.Turn{}
	}
	return turns, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
