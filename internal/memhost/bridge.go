package memhost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dgallion1/notegest/internal/notebook"
	"github.com/dgallion1/notegest/internal/remote"
)

// Bridge hands out independent host sessions over one notebook. Each session
// owns its own active-page slot, so concurrent exports never share a cursor.
type Bridge struct {
	nb  *notebook.Notebook
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Host
}

func NewBridge(nb *notebook.Notebook, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{nb: nb, log: log, sessions: make(map[string]*Host)}
}

// Open starts a session and returns its id.
func (b *Bridge) Open() string {
	id := uuid.NewString()
	h := New(b.nb, b.log.With("session", id))
	b.mu.Lock()
	b.sessions[id] = h
	b.mu.Unlock()
	return id
}

// NewSession opens a session and returns it as a remote.Host.
func (b *Bridge) NewSession(ctx context.Context) (remote.Host, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	id := b.Open()
	return b.Session(id), id, nil
}

// Session returns the host for id, or nil.
func (b *Bridge) Session(id string) *Host {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[id]
}

// Sync serves req on the session it names.
func (b *Bridge) Sync(ctx context.Context, id string, req *remote.SyncRequest) (*remote.SyncResponse, error) {
	h := b.Session(id)
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return h.Sync(ctx, req)
}

// CloseSession forgets session id.
func (b *Bridge) CloseSession(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	delete(b.sessions, id)
	return nil
}

// Sessions returns the number of open sessions.
func (b *Bridge) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
