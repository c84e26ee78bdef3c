package agent

import (
	"fmt"

	engine "github.com/sc420/pygame-rl/engine"
)

// ---------------------------------------------------------------------------
// Predator/prey policies
// ---------------------------------------------------------------------------

// fleeDistances returns, per action, the distance to threat after the prey
// takes it. Moves into unwalkable or occupied cells count as standing.
func fleeDistances(v engine.View, pos, threat engine.Pos) [engine.NumActions]float64 {
	var out [engine.NumActions]float64
	for i, act := range engine.Actions {
		next := act.Apply(pos)
		if next != pos && (!v.Map.Walkable(next) || v.Reg.Occupied(next)) {
			next = pos
		}
		out[i] = dist(next, threat)
	}
	return out
}

func argmax(vals []float64) int {
	best := 0
	for i := 1; i < len(vals); i++ {
		if vals[i] > vals[best] {
			best = i
		}
	}
	return best
}

// Flee scores the escape from every observed predator. For each one, the
// action that ends farthest from it earns ActionWeights[a] / distance.
// Gaussian noise is added to every score before the argmax. A prey that
// observes no predator has no opinion.
func Flee(v engine.View, id int) (engine.Action, error) {
	self := v.Reg.Agent(id)
	if self.Group != engine.GroupPrey {
		return engine.ActionNone, fmt.Errorf("%w: flee policy for %s", engine.ErrInvalidGroup, self.Group)
	}
	var scores [engine.NumActions]float64
	observed := false
	start, end := v.Reg.GroupRange(engine.GroupPredator)
	for pid := start; pid < end; pid++ {
		pred := v.Reg.Agent(pid)
		if !pred.Placed || !pred.Available || !v.Rules.Observes(dist(self.Pos, pred.Pos)) {
			continue
		}
		observed = true
		ds := fleeDistances(v, self.Pos, pred.Pos)
		i := argmax(ds[:])
		if ds[i] > 0 {
			scores[i] += v.Rules.ActionWeights[i] / ds[i]
		}
	}
	if !observed {
		return engine.ActionNone, nil
	}
	for i := range scores {
		scores[i] += v.Rules.NoiseMean + v.Rules.NoiseStdDev*v.Rand.NormFloat64()
	}
	return engine.Actions[argmax(scores[:])], nil
}

// NearestPrey returns the closest available prey within the observation
// radius of id. Ties go to the lowest id.
func NearestPrey(v engine.View, id int) (int, bool) {
	self := v.Reg.Agent(id)
	best, bestD := -1, 0.0
	start, end := v.Reg.GroupRange(engine.GroupPrey)
	for pid := start; pid < end; pid++ {
		prey := v.Reg.Agent(pid)
		if !prey.Placed || !prey.Available {
			continue
		}
		d := dist(self.Pos, prey.Pos)
		if !v.Rules.Observes(d) {
			continue
		}
		if best < 0 || d < bestD {
			best, bestD = pid, d
		}
	}
	return best, best >= 0
}

// Hunt moves a predator one step along the cheapest route to the nearest
// observed prey. Obstacles block the route; other agents do not. It returns
// ActionNone when no prey is observed and an ErrNoPath error when every
// route is blocked.
func Hunt(v engine.View, id int) (engine.Action, error) {
	self := v.Reg.Agent(id)
	if self.Group != engine.GroupPredator {
		return engine.ActionNone, fmt.Errorf("%w: hunt policy for %s", engine.ErrInvalidGroup, self.Group)
	}
	target, ok := NearestPrey(v, id)
	if !ok {
		return engine.ActionNone, nil
	}
	obstacle := func(p engine.Pos) bool {
		owner, ok := v.Reg.Owner(p)
		return ok && v.Reg.Group(owner) == engine.GroupObstacle
	}
	path, err := FindPath(v.Map, obstacle, self.Pos, v.Reg.Agent(target).Pos, v.Rules.SearchCosts)
	if err != nil {
		return engine.ActionNone, err
	}
	return StepAction(path)
}
