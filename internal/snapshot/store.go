package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"

	"github.com/igefined/b3-pulse/internal/domain"
)

var Module = fx.Module("snapshot",
	fx.Provide(NewStore),
)

// Snapshot is the complete result of one refresh cycle. It is never mutated
// after being published; readers must treat Quotes as read-only.
type Snapshot struct {
	Version uint64
	TakenAt time.Time
	Quotes  map[string]domain.Quote
}

func (s *Snapshot) Get(symbol string) (domain.Quote, bool) {
	q, ok := s.Quotes[symbol]
	return q, ok
}

func (s *Snapshot) Len() int {
	return len(s.Quotes)
}

type ConnectionState struct {
	Connected  bool
	IndexAlias string
}

// Store owns the shared snapshot and connection state. Both are replaced
// wholesale so readers see either the previous or the next value.
type Store struct {
	snap    atomic.Pointer[Snapshot]
	conn    atomic.Pointer[ConnectionState]
	version atomic.Uint64

	mu        sync.Mutex
	listeners []func(ConnectionState)
}

func NewStore() *Store {
	s := &Store{}
	s.snap.Store(&Snapshot{Quotes: map[string]domain.Quote{}})
	s.conn.Store(&ConnectionState{})
	return s
}

func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Replace publishes quotes as the next snapshot. The map must not be written
// by the caller afterwards.
func (s *Store) Replace(quotes map[string]domain.Quote) *Snapshot {
	if quotes == nil {
		quotes = map[string]domain.Quote{}
	}

	next := &Snapshot{
		Version: s.version.Add(1),
		TakenAt: time.Now(),
		Quotes:  quotes,
	}
	s.snap.Store(next)

	return next
}

func (s *Store) Connection() ConnectionState {
	return *s.conn.Load()
}

func (s *Store) SetConnection(state ConnectionState) {
	prev := s.conn.Swap(&state)
	if prev != nil && *prev == state {
		return
	}

	s.mu.Lock()
	listeners := append([]func(ConnectionState){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (s *Store) SetDisconnected() {
	state := s.Connection()
	state.Connected = false
	s.SetConnection(state)
}

// OnConnectionChange registers fn to be called after every connection state change.
func (s *Store) OnConnectionChange(fn func(ConnectionState)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// ResolveIndex maps the IBOV ticker to the alias in use, if one was found.
func (s *Store) ResolveIndex(symbol, indexSymbol string) string {
	if symbol != indexSymbol {
		return symbol
	}
	if alias := s.Connection().IndexAlias; alias != "" {
		return alias
	}
	return symbol
}
