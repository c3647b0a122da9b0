// Package state holds the single source of truth for the user snapshot and the
// reducers that are the only way to change it.
package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"todo-app/internal/model"
)

const saveFailedMessage = "Failed to save changes"

// Persister loads the snapshot at startup and saves it after each update.
// Load never fails: any problem is reported as "no prior user".
type Persister interface {
	Load(ctx context.Context) (*model.User, bool)
	Save(ctx context.Context, user *model.User) error
}

// Listener is called with the new snapshot after every successful update.
type Listener func(user *model.User)

// Options configures a Store. Every field is optional.
type Options struct {
	Persister Persister
	Effects   func(Effect)
	Env       Env
	Reducers  map[Kind]Reducer
	Logger    *log.Logger
	// Strict panics on ErrInvalidIntent instead of returning it.
	Strict      bool
	SaveTimeout time.Duration
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// delivery is a committed snapshot waiting to be handed to listeners.
type delivery struct {
	user    *model.User
	effects []Effect
}

// Store owns the current user snapshot and is its only writer.
// The zero value is ready to use and starts from a default user.
type Store struct {
	mu        sync.Mutex
	current   *model.User
	listeners []listenerEntry
	nextID    uint64
	effects   func(Effect)

	// pending holds committed snapshots in commit order. The caller that
	// set notifying delivers them, including ones committed meanwhile.
	pending   []delivery
	notifying bool

	env         Env
	reducers    map[Kind]Reducer
	logger      *log.Logger
	strict      bool
	persister   Persister
	saveTimeout time.Duration

	saves  chan *model.User
	done   chan struct{}
	closed bool
}

// New builds a store, loading the initial snapshot from opts.Persister.
func New(ctx context.Context, opts Options) *Store {
	s := &Store{
		effects:     opts.Effects,
		env:         opts.Env.withDefaults(),
		reducers:    opts.Reducers,
		logger:      opts.Logger,
		strict:      opts.Strict,
		persister:   opts.Persister,
		saveTimeout: opts.SaveTimeout,
	}
	if s.reducers == nil {
		s.reducers = Reducers()
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.saveTimeout <= 0 {
		s.saveTimeout = 10 * time.Second
	}

	if s.persister != nil {
		if user, ok := s.persister.Load(ctx); ok && user != nil {
			user.Normalize()
			s.current = user
			s.logger.Printf("[info] loaded user id=%s tasks=%d categories=%d", user.ID, len(user.Tasks), len(user.Categories))
		}
		s.saves = make(chan *model.User, 1)
		s.done = make(chan struct{})
		go s.saveLoop()
	}
	if s.current == nil {
		s.current = s.defaultUser()
		s.logger.Printf("[info] starting with default user id=%s", s.current.ID)
	}
	return s
}

// Current returns the latest snapshot. It is never nil and must be treated as read-only.
func (s *Store) Current() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Store) currentLocked() *model.User {
	if s.current == nil {
		s.current = s.defaultUser()
	}
	return s.current
}

func (s *Store) defaultUser() *model.User {
	env := s.env.withDefaults()
	return model.DefaultUser(env.NewID(), env.Now())
}

// Update applies intent to the latest snapshot. On success the new snapshot is
// committed, queued for saving, and delivered to listeners and then to the
// effect handler. Deliveries follow commit order: an update committed while
// another caller is delivering, from a listener or another goroutine, is
// delivered by that caller after the ones before it. On failure the previous
// snapshot is returned unchanged alongside the error.
func (s *Store) Update(intent Intent) (Outcome, error) {
	s.mu.Lock()
	prev := s.currentLocked()

	reducer, err := s.reducerFor(intent)
	if err != nil {
		s.mu.Unlock()
		if s.strict {
			panic(err)
		}
		return Outcome{User: prev}, err
	}

	out, err := reducer(s.env.withDefaults(), prev, intent)
	if err != nil {
		s.mu.Unlock()
		if s.strict && errors.Is(err, ErrInvalidIntent) {
			panic(err)
		}
		return Outcome{User: prev}, err
	}
	if out.User == nil {
		out.User = prev
	}

	s.current = out.User
	s.enqueueSaveLocked(out.User)
	s.pending = append(s.pending, delivery{user: out.User, effects: out.Effects})
	if s.notifying {
		s.mu.Unlock()
		return out, nil
	}
	s.notifying = true
	s.mu.Unlock()

	s.deliver()
	return out, nil
}

// deliver drains pending in order. Listeners and the effect handler run
// without the lock held.
func (s *Store) deliver() {
	drained := false
	defer func() {
		if !drained {
			s.mu.Lock()
			s.notifying = false
			s.mu.Unlock()
		}
	}()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.pending = nil
			s.notifying = false
			s.mu.Unlock()
			drained = true
			return
		}
		d := s.pending[0]
		s.pending[0] = delivery{}
		s.pending = s.pending[1:]
		listeners := s.listeners
		handler := s.effects
		s.mu.Unlock()

		for _, l := range listeners {
			l.fn(d.user)
		}
		if handler != nil {
			for _, e := range d.effects {
				handler(e)
			}
		}
	}
}

func (s *Store) reducerFor(intent Intent) (Reducer, error) {
	if intent == nil {
		return nil, fmt.Errorf("%w: nil intent", ErrInvalidIntent)
	}
	if s.reducers == nil {
		s.reducers = Reducers()
	}
	reducer, ok := s.reducers[intent.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: no reducer for %q", ErrInvalidIntent, intent.Kind())
	}
	return reducer, nil
}

// Subscribe registers l and returns a function that removes it. Removing a
// listener while listeners are being notified is safe.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	next := make([]listenerEntry, len(s.listeners), len(s.listeners)+1)
	copy(next, s.listeners)
	s.listeners = append(next, listenerEntry{id: id, fn: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *Store) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]listenerEntry, 0, len(s.listeners))
	for _, l := range s.listeners {
		if l.id != id {
			next = append(next, l)
		}
	}
	s.listeners = next
}

// SetEffectHandler installs the executor for reducer and store effects.
// The handler may be called from the save goroutine and must be safe for concurrent use.
func (s *Store) SetEffectHandler(fn func(Effect)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects = fn
}

// Close stops accepting saves and waits until the pending one is written.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed || s.saves == nil {
		s.closed = true
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.saves)
	s.mu.Unlock()

	<-s.done
	return nil
}

// enqueueSaveLocked keeps only the newest pending snapshot.
func (s *Store) enqueueSaveLocked(user *model.User) {
	if s.saves == nil || s.closed {
		return
	}
	for {
		select {
		case s.saves <- user:
			return
		default:
		}
		select {
		case <-s.saves:
		default:
		}
	}
}

func (s *Store) saveLoop() {
	defer close(s.done)
	for user := range s.saves {
		ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
		err := s.persister.Save(ctx, user)
		cancel()
		if err == nil {
			continue
		}

		err = fmt.Errorf("%w: %v", ErrPersistence, err)
		s.logger.Printf("save user: %v", err)

		s.mu.Lock()
		handler := s.effects
		s.mu.Unlock()
		if handler != nil {
			handler(notify(saveFailedMessage))
		}
	}
}
