package agent

import (
	"fmt"

	engine "github.com/sc420/pygame-rl/engine"
)

// Policy decides for a single agent.
type Policy func(v engine.View, id int) (engine.Action, error)

// Stand is the policy of agents that never move.
func Stand(engine.View, int) (engine.Action, error) { return engine.ActionStand, nil }

// Dispatcher routes each agent to the policy of its group. It implements
// engine.Decider.
type Dispatcher struct {
	policies map[engine.Group]Policy
}

// NewDispatcher returns the standard routing for rules: soccer teams use the
// steering strategy or the legacy scorer, predators hunt, prey flee and
// obstacles stand.
func NewDispatcher(rules engine.Rules) *Dispatcher {
	team := Policy(Team)
	if rules.TeamPolicy == engine.TeamPolicyLegacy {
		team = Legacy
	}
	return &Dispatcher{policies: map[engine.Group]Policy{
		engine.GroupTeamA:    team,
		engine.GroupTeamB:    team,
		engine.GroupPredator: Hunt,
		engine.GroupPrey:     Flee,
		engine.GroupObstacle: Stand,
	}}
}

// Set overrides the policy of one group.
func (d *Dispatcher) Set(g engine.Group, p Policy) { d.policies[g] = p }

// Decide implements engine.Decider.
func (d *Dispatcher) Decide(v engine.View, id int) (engine.Action, error) {
	g := v.Reg.Group(id)
	p, ok := d.policies[g]
	if !ok {
		return engine.ActionNone, fmt.Errorf("%w: no policy for %s", engine.ErrInvalidGroup, g)
	}
	return p(v, id)
}
