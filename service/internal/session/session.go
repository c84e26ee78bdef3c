// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	engine "github.com/sc420/pygame-rl/engine"
	"github.com/sc420/pygame-rl/engine/trajectory"
	"github.com/sc420/pygame-rl/service/internal/cache"
	"github.com/sc420/pygame-rl/service/internal/database"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session: closed")

const (
	persistTimeout = 2 * time.Second // bounds each cache or database write
	persistQueue   = 256
)

// Session owns one environment. Reset and Step are serialised by mu, so
// concurrent trainers attached to the same session see a consistent order.
type Session struct {
	ID       uuid.UUID
	Scenario string
	Seed     uint64
	Created  time.Time

	mu       sync.Mutex
	env      *engine.Env
	recorder *trajectory.Recorder
	closed   bool
	log      *logrus.Entry
	sink     Sink
	jobs     chan persistJob
	done     chan struct{}

	// OnStep runs after every recorded tick, outside the session lock.
	OnStep func(s *Session, step trajectory.Step, obs engine.Observation)
	// OnEpisodeEnd runs once per episode that reaches a terminal state.
	OnEpisodeEnd func(s *Session, ep trajectory.Episode)
}

// New wraps env in a session. The environment is seeded with seed. A nil
// sink writes to the shared cache and database clients.
func New(scenario string, seed uint64, env *engine.Env, sink Sink, log logrus.FieldLogger) *Session {
	id := uuid.New()
	env.Seed(seed)
	if sink == nil {
		sink = StoreSink{}
	}
	s := &Session{
		ID:       id,
		Scenario: scenario,
		Seed:     seed,
		Created:  time.Now(),
		env:      env,
		log:      log.WithFields(logrus.Fields{"session": id, "scenario": scenario}),
		sink:     sink,
		jobs:     make(chan persistJob, persistQueue),
		done:     make(chan struct{}),
	}
	go s.persistLoop()
	return s
}

// AgentInfo describes one agent of the session.
type AgentInfo struct {
	ID    int          `json:"id"`
	Group engine.Group `json:"group"`
}

// Info is the externally visible description of a session.
type Info struct {
	ID         uuid.UUID   `json:"id"`
	Scenario   string      `json:"scenario"`
	Seed       uint64      `json:"seed"`
	Agents     []AgentInfo `json:"agents"`
	Controlled []int       `json:"controlled"`
	Episode    int         `json:"episode"`
	TimeStep   int         `json:"time_step"`
	Phase      string      `json:"phase"`
}

// Info returns the current description of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := s.env.Registry()
	agents := make([]AgentInfo, reg.Len())
	for id := range agents {
		agents[id] = AgentInfo{ID: id, Group: reg.Group(id)}
	}
	return Info{
		ID:         s.ID,
		Scenario:   s.Scenario,
		Seed:       s.Seed,
		Agents:     agents,
		Controlled: s.env.Controlled(),
		Episode:    s.env.Episode(),
		TimeStep:   s.env.TimeStep(),
		Phase:      s.env.Phase().String(),
	}
}

// Reset starts a new episode. An unfinished episode in progress is dropped.
func (s *Session) Reset() (engine.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.Observation{}, ErrClosed
	}
	if s.recorder != nil && s.recorder.Len() > 0 && !s.env.IsTerminal() {
		s.log.Debugf("Dropping unfinished episode after %d steps.", s.recorder.Len())
	}
	obs, err := s.env.Reset()
	if err != nil {
		s.recorder = nil
		return obs, err
	}
	rec, err := trajectory.NewRecorder(s.env, s.Scenario, s.Seed, obs)
	if err != nil {
		return obs, err
	}
	s.recorder = rec
	s.log.WithField("episode", s.env.Episode()).Info("Episode reset.")
	s.saveSnapshot(*obs.Next)
	return obs, nil
}

// Step advances the episode by one tick with one action per controlled agent.
func (s *Session) Step(actions []engine.Action) (engine.Observation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return engine.Observation{}, ErrClosed
	}
	if s.recorder == nil {
		s.mu.Unlock()
		return engine.Observation{}, fmt.Errorf("session %s: %w", s.ID, engine.ErrNotReset)
	}
	obs, err := s.env.Step(actions)
	if err != nil {
		s.mu.Unlock()
		return obs, err
	}
	step, err := s.recorder.Record(obs)
	if err != nil {
		s.mu.Unlock()
		return obs, fmt.Errorf("session %s: %w", s.ID, err)
	}
	ep := s.recorder.Episode()
	s.publishStep(ep.ID, step, obs.Next.TimeStep)
	s.saveSnapshot(*obs.Next)
	finished := step.Terminal
	if finished {
		s.storeSummary(ep)
	}
	onStep, onEnd := s.OnStep, s.OnEpisodeEnd
	s.mu.Unlock()

	if onStep != nil {
		onStep(s, step, obs)
	}
	if finished && onEnd != nil {
		onEnd(s, ep)
	}
	return obs, nil
}

// Episode returns what has been recorded of the current episode.
func (s *Session) Episode() (trajectory.Episode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorder == nil {
		return trajectory.Episode{}, false
	}
	return s.recorder.Episode(), true
}

// Snapshot returns the current state of the environment.
func (s *Session) Snapshot() engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.Snapshot()
}

// Close marks the session closed. Further Reset and Step calls fail. It
// returns once every queued write, including the removal of the cached
// session state, has been handed to the sink.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	id := s.ID
	s.enqueue("delete cached session state", func(ctx context.Context, sink Sink) error {
		return sink.DeleteSession(ctx, id)
	})
	close(s.jobs)
	s.mu.Unlock()

	<-s.done
	s.log.Info("Session closed.")
	return nil
}
// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// Sink receives what a session persists. Calls for one session come from a
// single goroutine in the order the session produced them.
type Sink interface {
	PublishStep(ctx context.Context, rec cache.StepRecord) error
	SaveSnapshot(ctx context.Context, sessionID uuid.UUID, snap engine.Snapshot) error
	StoreSummary(ctx context.Context, sessionID uuid.UUID, sum trajectory.Summary) error
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

// StoreSink writes to cache.Rdb and database.DB, skipping whichever is not
// connected.
type StoreSink struct{}

func (StoreSink) PublishStep(ctx context.Context, rec cache.StepRecord) error {
	if cache.Rdb == nil {
		return nil
	}
	return cache.PublishStepRecord(ctx, rec)
}

func (StoreSink) SaveSnapshot(ctx context.Context, sessionID uuid.UUID, snap engine.Snapshot) error {
	if cache.Rdb == nil {
		return nil
	}
	return cache.SaveSnapshot(ctx, sessionID, snap)
}

func (StoreSink) StoreSummary(ctx context.Context, sessionID uuid.UUID, sum trajectory.Summary) error {
	if database.DB == nil {
		return nil
	}
	return database.StoreEpisodeSummary(ctx, sessionID, sum)
}

func (StoreSink) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if cache.Rdb == nil {
		return nil
	}
	return cache.DeleteSession(ctx, sessionID)
}

type persistJob struct {
	what string
	run  func(ctx context.Context, sink Sink) error
}

// persistLoop runs the queued writes one at a time until Close.
func (s *Session) persistLoop() {
	defer close(s.done)
	for job := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := job.run(ctx, s.sink); err != nil {
			s.log.WithError(err).Errorf("Failed to %s.", job.what)
		}
		cancel()
	}
}

// enqueue hands a write to the persistence goroutine. Callers hold mu and
// have checked that the session is open.
func (s *Session) enqueue(what string, run func(ctx context.Context, sink Sink) error) {
	s.jobs <- persistJob{what: what, run: run}
}

func (s *Session) publishStep(episodeID uuid.UUID, step trajectory.Step, timeStep int) {
	rec := cache.StepRecord{
		SessionID: s.ID,
		EpisodeID: episodeID,
		Index:     step.Index,
		TimeStep:  timeStep,
		Actions:   step.Actions,
		Reward:    step.Reward,
		Terminal:  step.Terminal,
		Digest:    step.Digest,
		Timestamp: time.Now().UnixMilli(),
	}
	s.enqueue(fmt.Sprintf("publish step %d", rec.Index), func(ctx context.Context, sink Sink) error {
		return sink.PublishStep(ctx, rec)
	})
}

func (s *Session) saveSnapshot(snap engine.Snapshot) {
	id := s.ID
	snap = snap.Clone()
	s.enqueue("save snapshot", func(ctx context.Context, sink Sink) error {
		return sink.SaveSnapshot(ctx, id, snap)
	})
}

func (s *Session) storeSummary(ep trajectory.Episode) {
	sum := trajectory.Summarize(ep)
	s.log.WithFields(logrus.Fields{
		"episode": ep.ID,
		"length":  sum.Length,
		"reward":  sum.TotalReward,
		"winner":  sum.Winner,
	}).Info("Episode finished.")
	id := s.ID
	s.enqueue("store episode summary", func(ctx context.Context, sink Sink) error {
		return sink.StoreSummary(ctx, id, sum)
	})
}
