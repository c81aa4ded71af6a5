package document

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Snapshot is what subscribers receive after every dispatched action.
type Snapshot struct {
	Seq        uint64
	Action     string
	DocumentID string
	Status     Status
	Err        error
	State      State
	At         time.Time
}

// Listener observes snapshots. Listeners run while the store is locked and
// must not dispatch.
type Listener func(Snapshot)

// Store owns the editor state and serializes every transition.
type Store struct {
	mu        sync.Mutex
	state     State
	seq       uint64
	now       func() time.Time
	log       zerolog.Logger
	listeners map[uint64]Listener
	nextSubID uint64
}

type StoreOption func(*Store)

// WithClock overrides the time source used to stamp documents.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = log }
}

// WithState starts the store from an existing state instead of an empty one.
func WithState(state State) StoreOption {
	return func(s *Store) { s.state = state }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		state:     NewState(),
		now:       func() time.Time { return time.Now().UTC() },
		log:       zerolog.Nop(),
		listeners: map[uint64]Listener{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch reduces action against the current state, installs the result
// and notifies subscribers in subscription order.
func (s *Store) Dispatch(action Action) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t := Reduce(s.state, action, now)
	s.state = t.State
	s.seq++

	name, docID := "nil", ""
	if action != nil {
		name, docID = action.Name(), action.DocumentID()
	}

	evt := s.log.Debug()
	if t.Status == Rejected {
		evt = s.log.Warn().Err(t.Err)
	}
	evt.Uint64("seq", s.seq).
		Str("action", name).
		Str("document_id", docID).
		Stringer("status", t.Status).
		Msg("action dispatched")

	snap := Snapshot{
		Seq:        s.seq,
		Action:     name,
		DocumentID: docID,
		Status:     t.Status,
		Err:        t.Err,
		State:      t.State,
		At:         now,
	}
	for _, id := range s.subscriberIDs() {
		s.listeners[id](snap)
	}
	return t
}

// State returns the latest state. The value is immutable and safe to keep.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Seq is the number of actions dispatched so far.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) subscriberIDs() []uint64 {
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
