package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ggonzalez94/lpman/internal/dialog"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx, Key(1, 2))
	if err != nil {
		t.Fatalf("Load missing failed: %v", err)
	}
	if empty != (UserSession{}) {
		t.Fatalf("expected empty session, got %+v", empty)
	}

	want := UserSession{OwnerAddress: "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984", Dialog: dialog.AwaitingAddress}
	if err := store.Save(ctx, Key(1, 2), want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load(ctx, Key(1, 2))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	want.Dialog = dialog.Idle
	if err := store.Save(ctx, Key(1, 2), want); err != nil {
		t.Fatalf("Save update failed: %v", err)
	}
	got, _ = store.Load(ctx, Key(1, 2))
	if got != want {
		t.Fatalf("expected overwrite, got %+v", got)
	}

	other, _ := store.Load(ctx, Key(1, 3))
	if other.OwnerAddress != "" {
		t.Fatalf("sessions must be keyed per chat, got %+v", other)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	tmp := t.TempDir()
	store, err := OpenSQLite(filepath.Join(tmp, "sessions.db"), filepath.Join(tmp, "sessions.lock"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	tmp := t.TempDir()
	dbPath, lockPath := filepath.Join(tmp, "sessions.db"), filepath.Join(tmp, "sessions.lock")
	store, err := OpenSQLite(dbPath, lockPath)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := store.Save(context.Background(), "7:7", UserSession{OwnerAddress: "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	_ = store.Close()

	reopened, err := OpenSQLite(dbPath, lockPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Load(context.Background(), "7:7")
	if err != nil || got.OwnerAddress != "1BoatSLRHtKNngkdXEeobR76b53LETtpyT" {
		t.Fatalf("expected persisted session, got %+v err=%v", got, err)
	}
}

func TestSQLiteConcurrentSaves(t *testing.T) {
	tmp := t.TempDir()
	dbPath, lockPath := filepath.Join(tmp, "sessions.db"), filepath.Join(tmp, "sessions.lock")

	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			store, err := OpenSQLite(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", id, err)
				return
			}
			defer store.Close()
			for i := 0; i < 20; i++ {
				key := fmt.Sprintf("%d:%d", id, i)
				if err := store.Save(context.Background(), key, UserSession{OwnerAddress: key}); err != nil {
					errCh <- fmt.Errorf("worker %d save %d: %w", id, i, err)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}

func TestDecodeUnknownDialogFallsBackToIdle(t *testing.T) {
	s, err := decode([]byte(`{"ownerAddress":"x","dialog":"ENTER_ADDRESS"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if s.Dialog != dialog.Idle || s.OwnerAddress != "x" {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("LPMAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LPMAN_TEST_REDIS_ADDR not set")
	}
	store, err := OpenRedis(context.Background(), RedisOptions{Addr: addr, Prefix: fmt.Sprintf("lpman-test-%s:", t.Name())})
	if err != nil {
		t.Fatalf("OpenRedis failed: %v", err)
	}
	defer store.Close()
	if err := store.client.Del(context.Background(), store.prefix+Key(1, 2), store.prefix+Key(1, 3)).Err(); err != nil {
		t.Fatalf("reset keys: %v", err)
	}
	exerciseStore(t, store)
}

func TestSQLiteDSNSetsBusyTimeoutBeforeWAL(t *testing.T) {
	dsn := sqliteDSN("/tmp/sessions.db")
	busy := strings.Index(dsn, "busy_timeout(5000)")
	wal := strings.Index(dsn, "journal_mode(WAL)")
	if busy < 0 || wal < 0 || busy > wal {
		t.Fatalf("expected busy_timeout before journal_mode in %q", dsn)
	}
}

func TestSQLiteConnectionsShareBusyTimeout(t *testing.T) {
	tmp := t.TempDir()
	store, err := OpenSQLite(filepath.Join(tmp, "sessions.db"), filepath.Join(tmp, "sessions.lock"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()
	store.db.SetMaxIdleConns(0)

	for i := 0; i < 3; i++ {
		var timeout int
		if err := store.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("read busy_timeout: %v", err)
		}
		if timeout != 5000 {
			t.Fatalf("connection %d: expected busy_timeout 5000, got %d", i, timeout)
		}
	}
}
