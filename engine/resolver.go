package engine

import (
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
)

// OverlapRule is a permitted-overlap entry: when a collision group matches
// the rule, Apply performs the state exchange. The colliders are reverted
// whether or not a rule matched.
type OverlapRule struct {
	Name string
	Once bool // fires at most once per tick

	// Apply inspects a collision group (ids in ascending order) and, if the
	// rule matches, mutates flags. It returns the ids that were captured and
	// whether the rule matched.
	Apply func(reg *Registry, colliders []int, rng *rand.Rand) (captured []int, ok bool)
}

// PossessionExchange hands the ball to a uniformly chosen non-carrier when a
// collision group holds exactly one carrier. Teammates are eligible.
func PossessionExchange() OverlapRule {
	return OverlapRule{
		Name: "possession",
		Once: true,
		Apply: func(reg *Registry, colliders []int, rng *rand.Rand) ([]int, bool) {
			carrier := -1
			var recipients []int
			for _, id := range colliders {
				if reg.Flag(id, FlagPossession) {
					if carrier >= 0 {
						return nil, false
					}
					carrier = id
					continue
				}
				recipients = append(recipients, id)
			}
			if carrier < 0 || len(recipients) == 0 {
				return nil, false
			}
			to := recipients[rng.IntN(len(recipients))]
			reg.SetFlag(carrier, FlagPossession, false)
			reg.SetFlag(to, FlagPossession, true)
			return nil, true
		},
	}
}

// CaptureExchange marks every capturable agent unavailable when a collision
// group consists only of capturers and capturables, with at least one of each.
func CaptureExchange(capturer, capturable Group) OverlapRule {
	return OverlapRule{
		Name: "capture",
		Apply: func(reg *Registry, colliders []int, _ *rand.Rand) ([]int, bool) {
			hunters := 0
			var caught []int
			for _, id := range colliders {
				switch reg.Group(id) {
				case capturer:
					hunters++
				case capturable:
					caught = append(caught, id)
				default:
					return nil, false
				}
			}
			if hunters == 0 || len(caught) == 0 {
				return nil, false
			}
			for _, id := range caught {
				reg.SetFlag(id, FlagAvailable, false)
			}
			return caught, true
		},
	}
}

// Resolution reports what happened during one Resolve call.
type Resolution struct {
	Iterations int
	Exchanges  int
	Captured   []int
}

// Resolver turns a full action set into committed positions. It owns the
// scratch buffers reused across ticks and is not safe for concurrent use.
type Resolver struct {
	gm      *GridMap
	rules   []OverlapRule
	maxIter int
	log     logrus.FieldLogger

	start    []Pos
	intended []Pos
	cell     []Pos // grouping key of each agent for the current iteration
	active   []bool
	groups   map[Pos][]int
	fired    []bool
	flags    []flagState
}

// NewResolver creates a resolver over gm with the given overlap whitelist.
// maxIter bounds the revert loop.
func NewResolver(gm *GridMap, maxIter int, log logrus.FieldLogger, rules ...OverlapRule) *Resolver {
	if log == nil {
		log = discardLogger()
	}
	return &Resolver{
		gm:      gm,
		rules:   rules,
		maxIter: maxIter,
		log:     log,
		groups:  make(map[Pos][]int),
		fired:   make([]bool, len(rules)),
	}
}

// Resolve applies actions (indexed by agent id, all valid) to reg. Intended
// positions are computed from the pre-tick state; collisions among available
// agents trigger whitelisted exchanges and are reverted until no cell holds
// more than one agent. On success every intended position is committed. On
// ErrNonConvergence flags are restored and positions are left untouched.
func (r *Resolver) Resolve(reg *Registry, actions []Action, rng *rand.Rand) (Resolution, error) {
	n := reg.Len()
	if len(actions) != n {
		return Resolution{}, fmt.Errorf("%w: resolver got %d actions for %d agents", ErrActionCount, len(actions), n)
	}
	r.start = grow(r.start, n)
	r.intended = grow(r.intended, n)
	r.cell = grow(r.cell, n)
	if cap(r.active) < n {
		r.active = make([]bool, n)
	}
	r.active = r.active[:n]
	clear(r.fired)
	r.flags = reg.saveFlags(r.flags)

	for id := 0; id < n; id++ {
		a := reg.at(id)
		r.active[id] = a.Placed
		if !a.Placed {
			continue
		}
		act := actions[id]
		if !act.Valid() {
			return Resolution{}, fmt.Errorf("%w: agent %d has action %d", ErrInvalidAction, id, uint8(act))
		}
		r.start[id] = a.Pos
		next := act.Apply(a.Pos)
		if !r.gm.Walkable(next) {
			next = a.Pos
		}
		r.intended[id] = next
	}

	var res Resolution
	for iter := 0; ; iter++ {
		clear(r.groups)
		for id := 0; id < n; id++ {
			if !r.active[id] || !reg.agents[id].Available {
				continue
			}
			p := r.intended[id]
			r.cell[id] = p
			r.groups[p] = append(r.groups[p], id)
		}

		conflict := false
		for id := 0; id < n; id++ {
			if !r.active[id] || !reg.agents[id].Available {
				continue
			}
			colliders := r.groups[r.cell[id]]
			if len(colliders) < 2 || colliders[0] != id {
				continue
			}
			if !conflict && iter >= r.maxIter {
				reg.restoreFlags(r.flags)
				return Resolution{Iterations: iter}, fmt.Errorf("%w after %d iterations", ErrNonConvergence, iter)
			}
			conflict = true
			r.exchange(reg, colliders, rng, &res)
			for _, c := range colliders {
				r.intended[c] = r.start[c]
			}
		}
		if !conflict {
			res.Iterations = iter
			break
		}
		r.log.WithField("iteration", iter).Trace("resolver reverted colliding moves")
	}

	for id := 0; id < n; id++ {
		if r.active[id] && r.intended[id] != r.start[id] {
			reg.SetPosition(id, r.intended[id])
		}
	}
	return res, nil
}

func (r *Resolver) exchange(reg *Registry, colliders []int, rng *rand.Rand, res *Resolution) {
	for i, rule := range r.rules {
		if rule.Once && r.fired[i] {
			continue
		}
		captured, ok := rule.Apply(reg, colliders, rng)
		if !ok {
			continue
		}
		r.fired[i] = true
		res.Exchanges++
		res.Captured = append(res.Captured, captured...)
		r.log.WithFields(logrus.Fields{"rule": rule.Name, "agents": colliders}).Debug("overlap exchange")
		return
	}
}

func grow(s []Pos, n int) []Pos {
	if cap(s) < n {
		return make([]Pos, n)
	}
	return s[:n]
}
