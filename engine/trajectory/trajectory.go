// Package trajectory records episodes tick by tick and stores them as
// msgpack streams.
package trajectory

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	engine "github.com/sc420/pygame-rl/engine"
	"github.com/vmihailenco/msgpack/v5"
)

// Step is one recorded tick.
type Step struct {
	Index    int             `json:"index" msgpack:"index"`
	Actions  []engine.Action `json:"actions" msgpack:"actions"`
	Reward   float64         `json:"reward" msgpack:"reward"`
	Terminal bool            `json:"terminal" msgpack:"terminal"`
	Digest   string          `json:"digest" msgpack:"digest"`
}

// Episode is a complete recorded run from reset to the last recorded tick.
type Episode struct {
	ID       uuid.UUID       `json:"id" msgpack:"id"`
	Scenario string          `json:"scenario" msgpack:"scenario"`
	Seed     uint64          `json:"seed" msgpack:"seed"`
	Start    engine.Snapshot `json:"start" msgpack:"start"`
	Steps    []Step          `json:"steps" msgpack:"steps"`
	Final    engine.Snapshot `json:"final" msgpack:"final"`

	// Winner is the scoring team of a finished soccer episode.
	Winner *engine.Group `json:"winner,omitempty" msgpack:"winner,omitempty"`
}

// TotalReward sums the reward of every step.
func (ep *Episode) TotalReward() float64 {
	total := 0.0
	for _, s := range ep.Steps {
		total += s.Reward
	}
	return total
}

// Terminal reports whether the last recorded step ended the episode.
func (ep *Episode) Terminal() bool {
	return len(ep.Steps) > 0 && ep.Steps[len(ep.Steps)-1].Terminal
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

// Recorder accumulates the observations of one episode.
type Recorder struct {
	env *engine.Env
	ep  Episode
}

// NewRecorder starts an episode from the observation returned by Reset.
func NewRecorder(env *engine.Env, scenario string, seed uint64, reset engine.Observation) (*Recorder, error) {
	if reset.Next == nil || reset.Prior != nil {
		return nil, errors.New("trajectory: not a reset observation")
	}
	return &Recorder{
		env: env,
		ep: Episode{
			ID:       uuid.New(),
			Scenario: scenario,
			Seed:     seed,
			Start:    reset.Next.Clone(),
			Final:    reset.Next.Clone(),
		},
	}, nil
}

// Record appends the observation of one tick and returns the stored step.
func (r *Recorder) Record(obs engine.Observation) (Step, error) {
	if obs.Next == nil {
		return Step{}, errors.New("trajectory: observation has no next state")
	}
	if r.ep.Terminal() {
		return Step{}, fmt.Errorf("trajectory: episode %s already terminal", r.ep.ID)
	}
	s := Step{
		Index:    len(r.ep.Steps),
		Actions:  append([]engine.Action(nil), obs.Actions...),
		Reward:   obs.Reward,
		Terminal: obs.Next.Terminal,
		Digest:   obs.Next.Digest(),
	}
	r.ep.Steps = append(r.ep.Steps, s)
	r.ep.Final = obs.Next.Clone()
	if s.Terminal && r.env != nil {
		if g, ok := engine.Winner(r.env.Registry(), r.env.Map()); ok {
			r.ep.Winner = &g
		}
	}
	return s, nil
}

// Episode returns a copy of everything recorded so far.
func (r *Recorder) Episode() Episode {
	ep := r.ep
	ep.Steps = append([]Step(nil), r.ep.Steps...)
	ep.Start = r.ep.Start.Clone()
	ep.Final = r.ep.Final.Clone()
	return ep
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int { return len(r.ep.Steps) }

// ---------------------------------------------------------------------------
// Summaries
// ---------------------------------------------------------------------------

// Summary is the compact per-episode record kept by sinks and batch runs.
type Summary struct {
	EpisodeID   uuid.UUID `json:"episode_id" msgpack:"episode_id"`
	Scenario    string    `json:"scenario" msgpack:"scenario"`
	Seed        uint64    `json:"seed" msgpack:"seed"`
	Length      int       `json:"length" msgpack:"length"`
	TotalReward float64   `json:"total_reward" msgpack:"total_reward"`
	Terminal    bool      `json:"terminal" msgpack:"terminal"`
	Winner      string    `json:"winner,omitempty" msgpack:"winner,omitempty"`
	Captured    int       `json:"captured" msgpack:"captured"`
	FinalDigest string    `json:"final_digest" msgpack:"final_digest"`
}

// Summarize condenses an episode.
func Summarize(ep Episode) Summary {
	s := Summary{
		EpisodeID:   ep.ID,
		Scenario:    ep.Scenario,
		Seed:        ep.Seed,
		Length:      len(ep.Steps),
		TotalReward: ep.TotalReward(),
		Terminal:    ep.Terminal(),
		FinalDigest: ep.Final.Digest(),
	}
	if ep.Winner != nil {
		s.Winner = ep.Winner.String()
	}
	for _, a := range ep.Final.Agents {
		if !a.Available {
			s.Captured++
		}
	}
	return s
}

// ---------------------------------------------------------------------------
// Storage
// ---------------------------------------------------------------------------

// Write encodes episodes back to back as a msgpack stream.
func Write(w io.Writer, episodes ...Episode) error {
	enc := msgpack.NewEncoder(w)
	for i := range episodes {
		if err := enc.Encode(&episodes[i]); err != nil {
			return fmt.Errorf("trajectory: encode episode %s: %w", episodes[i].ID, err)
		}
	}
	return nil
}

// Read decodes every episode in a stream written by Write.
func Read(r io.Reader) ([]Episode, error) {
	dec := msgpack.NewDecoder(r)
	var out []Episode
	for {
		var ep Episode
		err := dec.Decode(&ep)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("trajectory: decode episode %d: %w", len(out), err)
		}
		out = append(out, ep)
	}
}
