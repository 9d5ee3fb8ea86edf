// Package session persists the per-user chat session record.
//
// Stores do no locking across requests: two interactions for the same user
// may race and the last Save wins.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/ggonzalez94/lpman/internal/dialog"
)

// UserSession is the record kept for one user.
type UserSession struct {
	OwnerAddress string       `json:"ownerAddress,omitempty"`
	Dialog       dialog.State `json:"dialog,omitempty"`
}

// Store loads and saves sessions. Load of an unknown key returns an empty
// session, never a not-found error.
type Store interface {
	Load(ctx context.Context, key string) (UserSession, error)
	Save(ctx context.Context, key string, s UserSession) error
	Close() error
}

// Key builds the session key for a sender in a chat.
func Key(userID, chatID int64) string {
	return strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(chatID, 10)
}

func encode(s UserSession) ([]byte, error) {
	buf, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return buf, nil
}

func decode(buf []byte) (UserSession, error) {
	var s UserSession
	if len(buf) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(buf, &s); err != nil {
		return UserSession{}, fmt.Errorf("decode session: %w", err)
	}
	if !s.Dialog.Known() {
		s.Dialog = dialog.Idle
	}
	return s, nil
}

// Memory is a process-local Store.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Load(_ context.Context, key string) (UserSession, error) {
	m.mu.Lock()
	buf := m.data[key]
	m.mu.Unlock()
	return decode(buf)
}

func (m *Memory) Save(_ context.Context, key string, s UserSession) error {
	buf, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = buf
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
