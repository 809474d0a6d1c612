package subscriber

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"maitred/internal/domain"
)

// memStore is an in-memory SubscriberStore.
type memStore struct {
	mu     sync.Mutex
	subs   map[string]*domain.Subscriber
	addErr error
}

func newMemStore() *memStore {
	return &memStore{subs: make(map[string]*domain.Subscriber)}
}

func (m *memStore) Add(_ context.Context, sub *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	if _, ok := m.subs[sub.Email]; ok {
		return domain.ErrDuplicate
	}
	m.subs[sub.Email] = sub
	return nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[email]; ok {
		return sub, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) List(context.Context) ([]*domain.Subscriber, error) { return nil, nil }
func (m *memStore) Close() error                                       { return nil }

// stubRemote records forwards and optionally fails.
type stubRemote struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *stubRemote) SubmitEmail(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *stubRemote) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestCompositeStoresAndForwards(t *testing.T) {
	store := newMemStore()
	remote := &stubRemote{}
	p := NewCompositePersister(store, remote, "chat-drawer", slog.Default())

	if err := p.SubmitEmail(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("SubmitEmail: %v", err)
	}
	if _, err := store.GetByEmail(context.Background(), "user@example.com"); err != nil {
		t.Error("local record should exist")
	}
	if remote.Calls() != 1 {
		t.Errorf("remote calls = %d, want 1", remote.Calls())
	}
}

func TestCompositeDuplicateIsSuccess(t *testing.T) {
	store := newMemStore()
	remote := &stubRemote{}
	p := NewCompositePersister(store, remote, "chat-drawer", slog.Default())

	ctx := context.Background()
	if err := p.SubmitEmail(ctx, "user@example.com"); err != nil {
		t.Fatal(err)
	}
	if err := p.SubmitEmail(ctx, "user@example.com"); err != nil {
		t.Errorf("repeat submission should succeed, got %v", err)
	}
	if remote.Calls() != 2 {
		t.Errorf("remote should still be forwarded on duplicates, got %d calls", remote.Calls())
	}
}

func TestCompositeStoreFailureIsFatal(t *testing.T) {
	store := newMemStore()
	store.addErr = errors.New("disk full")
	remote := &stubRemote{}
	p := NewCompositePersister(store, remote, "chat-drawer", slog.Default())

	if err := p.SubmitEmail(context.Background(), "user@example.com"); err == nil {
		t.Fatal("store failure must fail the submission")
	}
	if remote.Calls() != 0 {
		t.Error("remote must not be reached when the local record fails")
	}
}

func TestCompositeRemoteFailureIsNotFatal(t *testing.T) {
	store := newMemStore()
	remote := &stubRemote{err: errors.New("service down")}
	p := NewCompositePersister(store, remote, "chat-drawer", slog.Default())

	if err := p.SubmitEmail(context.Background(), "user@example.com"); err != nil {
		t.Errorf("remote failure should be logged, not returned: %v", err)
	}
}

func TestCompositeNilRemote(t *testing.T) {
	store := newMemStore()
	p := NewCompositePersister(store, nil, "chat-drawer", slog.Default())

	if err := p.SubmitEmail(context.Background(), "user@example.com"); err != nil {
		t.Errorf("local-only capture should work: %v", err)
	}
}
