// Package rendertest provides an in-memory render.Launcher for tests.
package rendertest

import (
	"context"
	"errors"
	"sync"

	"github.com/ggonzalez94/lpman/internal/render"
)

// ErrClosed is returned by calls on a released Session.
var ErrClosed = errors.New("rendertest: session closed")

// Page maps a selector to the texts it yields.
type Page map[string][]string

// Launcher hands out Sessions serving Page. When Block is set, Navigate
// waits until the context ends or the session is closed.
type Launcher struct {
	Page        Page
	Block       bool
	NavigateErr error
	LaunchErr   error

	mu       sync.Mutex
	sessions []*Session
}

func (l *Launcher) Launch(ctx context.Context, opts render.Options) (render.Session, error) {
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	s := &Session{launcher: l, Opts: opts, closed: make(chan struct{})}
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

// Sessions returns every session launched so far.
func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Session(nil), l.sessions...)
}

type Session struct {
	launcher *Launcher
	Opts     render.Options

	mu      sync.Mutex
	visited []string
	once    sync.Once
	closed  chan struct{}
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.visited = append(s.visited, url)
	s.mu.Unlock()
	if s.launcher.Block {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return context.Canceled
		}
	}
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	return s.launcher.NavigateErr
}

func (s *Session) QueryText(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-s.closed:
		return nil, ErrClosed
	default:
	}
	return append([]string(nil), s.launcher.Page[selector]...), nil
}

func (s *Session) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// Closed is closed once the session has been released.
func (s *Session) Closed() <-chan struct{} { return s.closed }

func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}
