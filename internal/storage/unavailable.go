package storage

import (
	"context"
	"errors"
	"fmt"

	"companion/internal/chat"
)

// ErrUnavailable 存储后端无法打开
var ErrUnavailable = errors.New("store unavailable")

// UnavailableStore stands in when the configured backend cannot be opened.
// Every user starts fresh and every write fails with ErrUnavailable.
type UnavailableStore struct {
	cause error
}

func NewUnavailableStore(cause error) *UnavailableStore {
	return &UnavailableStore{cause: cause}
}

func (s *UnavailableStore) Init(context.Context) error { return nil }

func (s *UnavailableStore) Get(context.Context, string) ([]chat.Turn, error) {
	return nil, ErrNotFound
}

func (s *UnavailableStore) Put(context.Context, string, []chat.Turn) error {
	return s.err()
}

func (s *UnavailableStore) List(context.Context) ([]RecordInfo, error) {
	return nil, s.err()
}

func (s *UnavailableStore) Close() error { return nil }

func (s *UnavailableStore) err() error {
	if s.cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, s.cause)
}
