// Package agent implements the decision policies for agents that receive no
// external action: heuristic steering and team strategy for soccer, flee
// scoring for prey and weighted grid search for predators.
//
// Every policy reads the pre-tick registry and draws randomness only from
// the View's shared source, so a seeded episode replays exactly.
package agent

import (
	"fmt"
	"math/rand/v2"

	"github.com/paulmach/orb/planar"
	engine "github.com/sc420/pygame-rl/engine"
)

// Steering is the qualitative goal of a steering decision.
type Steering uint8

const (
	SteerApproach  Steering = iota + 1 // get strictly closer
	SteerAvoid                         // get strictly farther
	SteerIntercept                     // get closer, never onto the target cell
)

func (s Steering) String() string {
	switch s {
	case SteerApproach:
		return "approach"
	case SteerAvoid:
		return "avoid"
	case SteerIntercept:
		return "intercept"
	}
	return fmt.Sprintf("Steering(%d)", uint8(s))
}

// dist is the Euclidean distance between two cells.
func dist(a, b engine.Pos) float64 { return planar.Distance(a.Point(), b.Point()) }

// Steer picks the action that best serves mode when moving from src with
// respect to target. Candidates are visited in a random order and a
// candidate only replaces the best so far on a strict improvement, so ties
// go to the first one visited. Moves onto unwalkable cells count as staying
// put. STAND is returned when nothing beats the current distance.
func Steer(src, target engine.Pos, mode Steering, gm *engine.GridMap, rng *rand.Rand) (engine.Action, error) {
	switch mode {
	case SteerApproach, SteerAvoid, SteerIntercept:
	default:
		return engine.ActionNone, fmt.Errorf("agent: unknown steering mode %d", uint8(mode))
	}

	best := engine.ActionStand
	bestDist := dist(src, target)
	for _, i := range rng.Perm(engine.NumActions) {
		act := engine.Actions[i]
		next := act.Apply(src)
		if !gm.Walkable(next) {
			next = src
		}
		d := dist(next, target)
		var better bool
		switch mode {
		case SteerApproach:
			better = d < bestDist
		case SteerAvoid:
			better = d > bestDist
		case SteerIntercept:
			better = d < bestDist && d >= 1
		}
		if better {
			best, bestDist = act, d
		}
	}
	return best, nil
}
