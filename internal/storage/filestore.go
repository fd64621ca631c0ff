package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"companion/internal/chat"
)

// FileStore JSON 文件后端：每个用户一个 <dir>/histories/<user>.json
// FileStore is the JSON file backend: one <dir>/histories/<user>.json per user
type FileStore struct {
	baseDir      string
	historiesDir string
	mu           sync.Mutex
}

// NewFileStore 创建 JSON 文件存储
// NewFileStore creates a JSON file store rooted at baseDir
func NewFileStore(baseDir string) (*FileStore, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return nil, fmt.Errorf("storage base dir is empty")
	}
	s := &FileStore{
		baseDir:      baseDir,
		historiesDir: filepath.Join(baseDir, "histories"),
	}
	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Init(_ context.Context) error {
	for _, dir := range []string{s.baseDir, s.historiesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, userID string) ([]chat.Turn, error) {
	path, err := s.recordPath(userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if rec.Turns == nil {
		rec.Turns = []chat.Turn{}
	}
	return rec.Turns, nil
}

func (s *FileStore) Put(_ context.Context, userID string, turns []chat.Turn) error {
	path, err := s.recordPath(userID)
	if err != nil {
		return err
	}
	if turns == nil {
		turns = []chat.Turn{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(path, Record{
		UserID:    strings.TrimSpace(userID),
		Turns:     turns,
		UpdatedAt: nowUTC(),
	})
}

func (s *FileStore) List(_ context.Context) ([]RecordInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.historiesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read histories dir: %w", err)
	}
	var infos []RecordInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var rec Record
		if err := readJSONFile(filepath.Join(s.historiesDir, e.Name()), &rec); err != nil {
			continue
		}
		infos = append(infos, RecordInfo{UserID: rec.UserID, Turns: len(rec.Turns), UpdatedAt: rec.UpdatedAt})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].UpdatedAt == infos[j].UpdatedAt {
			return infos[i].UserID < infos[j].UserID
		}
		return infos[i].UpdatedAt > infos[j].UpdatedAt
	})
	return infos, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) recordPath(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user id is empty")
	}
	// 用户 ID 是不透明的，转义后作为文件名 / User ids are opaque; escape them for file names
	return filepath.Join(s.historiesDir, url.PathEscape(userID)+".json"), nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
