// internal/session/manager.go
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	engine "github.com/sc420/pygame-rl/engine"
	"github.com/sc420/pygame-rl/engine/scenario"
	"github.com/sc420/pygame-rl/engine/trajectory"
	"github.com/sirupsen/logrus"
)

var (
	// ErrTooManySessions is returned by Create when the manager is full.
	ErrTooManySessions = errors.New("session: too many sessions")
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session: not found")
)

// Manager tracks the live sessions of the server.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]*Session
	max         int
	scenarioDir string
	log         *logrus.Logger

	// OnEpisodeEnd is installed on every session the manager creates.
	OnEpisodeEnd func(s *Session, ep trajectory.Episode)
	// Sink receives the writes of every session the manager creates.
	Sink Sink
}

// NewManager returns a manager holding at most max sessions. Scenario names
// resolve to builtins or to YAML files in scenarioDir.
func NewManager(max int, scenarioDir string, log *logrus.Logger) *Manager {
	return &Manager{
		sessions:    make(map[uuid.UUID]*Session),
		max:         max,
		scenarioDir: scenarioDir,
		log:         log,
		Sink:        StoreSink{},
	}
}

// Create builds a session for the named scenario. A nil seed uses the
// scenario's own seed.
func (m *Manager) Create(name string, seed *uint64) (*Session, error) {
	sc, err := scenario.ResolveNamed(name, m.scenarioDir)
	if err != nil {
		return nil, err
	}
	env, err := sc.Build(engine.WithLogger(m.log.WithField("scenario", sc.Name)))
	if err != nil {
		return nil, err
	}
	s := sc.Seed
	if seed != nil {
		s = *seed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) >= m.max {
		return nil, ErrTooManySessions
	}
	sess := New(sc.Name, s, env, m.Sink, m.log)
	sess.OnEpisodeEnd = m.OnEpisodeEnd
	m.sessions[sess.ID] = sess
	m.log.WithFields(logrus.Fields{"session": sess.ID, "scenario": sc.Name, "seed": s}).Info("Session created.")
	return sess, nil
}

// Get returns the live session with the given id.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Close closes and forgets a session.
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Close()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session and waits for their pending writes. Used on
// shutdown, before the cache and database clients are closed.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()
	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Close()
		}()
	}
	wg.Wait()
}
