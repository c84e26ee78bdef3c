// Package engine implements the grid contest simulation kernel: the agent
// registry, the simultaneous-move conflict resolver and the episode
// controller that ties them to a decision policy.
//
// An Env is single-threaded. Hosts that share one across goroutines must
// serialise Reset and Step themselves.
package engine

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
)

// View is the read-only context handed to a Decider. Deciders must not
// mutate Reg; they may draw from Rand.
type View struct {
	Reg   *Registry
	Map   *GridMap
	Rules *Rules
	Rand  *rand.Rand
}

// Decider picks the next action for an agent that has no external action.
// Returning ActionNone means "no opinion" and the agent stands. An error
// wrapping ErrNoPath is treated the same way; any other error aborts the tick.
type Decider interface {
	Decide(v View, id int) (Action, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(v View, id int) (Action, error)

func (f DeciderFunc) Decide(v View, id int) (Action, error) { return f(v, id) }

// Phase is the lifecycle stage of an Env.
type Phase uint8

const (
	PhaseUnset    Phase = iota // constructed, never reset
	PhaseIdle                  // reset, no step taken yet
	PhaseTicking               // at least one step taken
	PhaseTerminal              // termination fired; Reset required
)

func (p Phase) String() string {
	switch p {
	case PhaseUnset:
		return "unset"
	case PhaseIdle:
		return "idle"
	case PhaseTicking:
		return "ticking"
	case PhaseTerminal:
		return "terminal"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Env is the episode controller.
type Env struct {
	rules    Rules
	gm       *GridMap
	decider  Decider
	reg      *Registry
	resolver *Resolver
	rng      *rand.Rand
	log      logrus.FieldLogger
	overlap  []OverlapRule

	phase    Phase
	timeStep int
	episode  int

	controlled []int // agent ids of controlled slots
	slotOf     []int // agent id -> controlled slot, -1 otherwise
	pending    []Action
	chosen     []Action
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Env) {
		if l != nil {
			e.log = l
		}
	}
}

// WithOverlapRules replaces the variant's default overlap whitelist.
func WithOverlapRules(rules ...OverlapRule) Option {
	return func(e *Env) { e.overlap = rules }
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// DefaultOverlapRules returns the whitelist used by a variant.
func DefaultOverlapRules(v Variant) []OverlapRule {
	switch v {
	case VariantSoccer:
		return []OverlapRule{PossessionExchange()}
	case VariantPredatorPrey:
		return []OverlapRule{CaptureExchange(GroupPredator, GroupPrey)}
	}
	return nil
}

// NewEnv validates rules and builds an environment on gm. A nil decider makes
// every uncontrolled agent stand.
func NewEnv(rules Rules, gm *GridMap, decider Decider, opts ...Option) (*Env, error) {
	if gm == nil {
		return nil, fmt.Errorf("%w: nil map", ErrInvalidMap)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	rules.Groups = append([]GroupSpec(nil), rules.Groups...)
	e := &Env{
		rules:   rules,
		gm:      gm,
		decider: decider,
		log:     discardLogger(),
		overlap: DefaultOverlapRules(rules.Variant),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reg = NewRegistry(rules.Groups)
	e.resolver = NewResolver(gm, rules.maxIterations(), e.log, e.overlap...)
	e.Seed(rules.Seed)

	n := e.reg.Len()
	e.slotOf = make([]int, n)
	for i := range e.slotOf {
		e.slotOf[i] = -1
	}
	members := e.reg.Members(rules.ControlledGroup)
	e.controlled = members[:rules.ControlledCount]
	for slot, id := range e.controlled {
		e.slotOf[id] = slot
	}
	e.pending = make([]Action, n)
	e.chosen = make([]Action, n)
	return e, nil
}

// Seed re-seeds the random source. The next Reset and every draw after it
// follow from seed alone.
func (e *Env) Seed(seed uint64) {
	e.rng = rand.New(rand.NewPCG(seed, seed^0xdeadbeefcafe1234))
}

// Rules returns a copy of the rules.
func (e *Env) Rules() Rules {
	r := e.rules
	r.Groups = append([]GroupSpec(nil), e.rules.Groups...)
	return r
}

// Map returns the map the episode runs on.
func (e *Env) Map() *GridMap { return e.gm }

// Registry exposes the agent table for scenario setup between ticks.
func (e *Env) Registry() *Registry { return e.reg }

// Controlled returns the agent ids that take external actions, in slot order.
func (e *Env) Controlled() []int { return append([]int(nil), e.controlled...) }

// Phase returns the lifecycle stage.
func (e *Env) Phase() Phase { return e.phase }

// TimeStep returns the number of ticks since the last Reset.
func (e *Env) TimeStep() int { return e.timeStep }

// Episode returns how many times Reset has been called.
func (e *Env) Episode() int { return e.episode }

// IsTerminal reports whether the episode has ended.
func (e *Env) IsTerminal() bool { return e.phase == PhaseTerminal }

// Snapshot returns a deep copy of the current state.
func (e *Env) Snapshot() Snapshot {
	return Snapshot{
		TimeStep: e.timeStep,
		Terminal: e.phase == PhaseTerminal,
		Agents:   e.reg.snapshotAgents(),
	}
}

// Reset re-spawns every agent, redraws possession and modes, and clears the
// counters. A placement failure leaves the Env unset.
func (e *Env) Reset() (Observation, error) {
	e.reg.reset()
	e.timeStep = 0
	clear(e.pending)
	if err := placeAgents(e.reg, e.gm, e.rules.MinSpawnSeparation, e.rng); err != nil {
		e.phase = PhaseUnset
		return Observation{}, err
	}
	assignRoles(e.reg, &e.rules, e.rng)
	e.phase = PhaseIdle
	e.episode++

	snap := e.Snapshot()
	e.log.WithFields(logrus.Fields{"episode": e.episode, "agents": e.reg.Len()}).Debug("episode reset")
	return Observation{Next: &snap}, nil
}

// SetPendingAction queues act for agent id on the next tick. It is used when
// the agent has no external action and its frame-skip counter is zero, in
// place of the Decider. Pending actions are cleared after each tick.
func (e *Env) SetPendingAction(id int, act Action) error {
	if id < 0 || id >= e.reg.Len() {
		return fmt.Errorf("%w: %d", ErrAgentID, id)
	}
	if act != ActionNone && !act.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidAction, uint8(act))
	}
	e.pending[id] = act
	return nil
}

// Step runs one tick. actions holds one entry per controlled slot; an
// ActionNone entry lets the Decider choose for that slot.
func (e *Env) Step(actions []Action) (Observation, error) {
	switch e.phase {
	case PhaseUnset:
		return Observation{}, ErrNotReset
	case PhaseTerminal:
		return Observation{}, ErrTerminal
	}
	if len(actions) != len(e.controlled) {
		return Observation{}, fmt.Errorf("%w: got %d, want %d", ErrActionCount, len(actions), len(e.controlled))
	}
	for i, act := range actions {
		if act != ActionNone && !act.Valid() {
			return Observation{}, fmt.Errorf("%w: slot %d has %d", ErrInvalidAction, i, uint8(act))
		}
	}

	prior := e.Snapshot()
	if err := e.gatherActions(actions); err != nil {
		return Observation{}, err
	}

	res, err := e.resolver.Resolve(e.reg, e.chosen, e.rng)
	if err != nil {
		return Observation{}, err
	}
	for id := 0; id < e.reg.Len(); id++ {
		e.reg.SetLastAction(id, e.chosen[id])
		e.reg.IncrementFrameSkip(id, e.rules.FrameSkip)
	}
	e.timeStep++
	clear(e.pending)

	reward := e.reward(res)
	if e.isTerminal() {
		e.phase = PhaseTerminal
	} else {
		e.phase = PhaseTicking
	}

	if len(res.Captured) > 0 || e.phase == PhaseTerminal {
		e.log.WithFields(logrus.Fields{
			"episode":   e.episode,
			"time_step": e.timeStep,
			"captured":  len(res.Captured),
			"reward":    reward,
			"terminal":  e.phase == PhaseTerminal,
		}).Debug("tick")
	}

	next := e.Snapshot()
	taken := make([]Action, len(e.chosen))
	copy(taken, e.chosen)
	return Observation{Prior: &prior, Actions: taken, Reward: reward, Next: &next}, nil
}

// gatherActions fills e.chosen from the pre-tick state. The registry is not
// written until every agent has an action.
func (e *Env) gatherActions(external []Action) error {
	view := View{Reg: e.reg, Map: e.gm, Rules: &e.rules, Rand: e.rng}
	for id := 0; id < e.reg.Len(); id++ {
		a := &e.reg.agents[id]
		if !a.Placed || !a.Available {
			e.chosen[id] = ActionStand
			continue
		}
		if slot := e.slotOf[id]; slot >= 0 && external[slot] != ActionNone {
			e.chosen[id] = external[slot]
			continue
		}
		if a.FrameSkip > 0 {
			e.chosen[id] = a.LastAction
			continue
		}
		if act := e.pending[id]; act != ActionNone {
			e.chosen[id] = act
			continue
		}
		act, err := e.decide(view, id)
		if err != nil {
			return err
		}
		e.chosen[id] = act
	}
	return nil
}

func (e *Env) decide(v View, id int) (Action, error) {
	if e.decider == nil {
		return ActionStand, nil
	}
	act, err := e.decider.Decide(v, id)
	if errors.Is(err, ErrNoPath) {
		e.log.WithField("agent", id).Trace("no path, standing")
		return ActionStand, nil
	}
	if err != nil {
		return ActionNone, fmt.Errorf("agent %d: %w", id, err)
	}
	if act == ActionNone {
		return ActionStand, nil
	}
	if !act.Valid() {
		return ActionNone, fmt.Errorf("%w: decider returned %d for agent %d", ErrInvalidAction, uint8(act), id)
	}
	return act, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (e *Env) checkID(id int) error {
	if id < 0 || id >= e.reg.Len() {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrAgentID, id, e.reg.Len())
	}
	return nil
}

// AgentPosition returns the position of id. The bool is false while unset.
func (e *Env) AgentPosition(id int) (Pos, bool, error) {
	if err := e.checkID(id); err != nil {
		return Pos{}, false, err
	}
	p, ok := e.reg.Position(id)
	return p, ok, nil
}

// AgentFlag returns a flag of id.
func (e *Env) AgentFlag(id int, f Flag) (bool, error) {
	if err := e.checkID(id); err != nil {
		return false, err
	}
	if f != FlagPossession && f != FlagAvailable {
		return false, fmt.Errorf("engine: unknown flag %d", uint8(f))
	}
	return e.reg.Flag(id, f), nil
}

// AgentMode returns the strategy mode of id.
func (e *Env) AgentMode(id int) (Mode, error) {
	if err := e.checkID(id); err != nil {
		return ModeNone, err
	}
	return e.reg.Mode(id), nil
}

// AgentAction returns the action id took on the last tick.
func (e *Env) AgentAction(id int) (Action, error) {
	if err := e.checkID(id); err != nil {
		return ActionNone, err
	}
	return e.reg.LastAction(id), nil
}
