package agent

import (
	"fmt"
	"math"

	engine "github.com/sc420/pygame-rl/engine"
)

// ---------------------------------------------------------------------------
// Soccer strategy table
// ---------------------------------------------------------------------------

type teamKey struct {
	mode     engine.Mode
	carrying bool
}

// teamRule turns the situation of one agent into a steering target.
type teamRule func(v engine.View, self engine.Agent, s teamSituation) (engine.Pos, Steering, bool)

// teamSituation is what every rule needs to know about the opponents.
type teamSituation struct {
	nearest engine.Pos // closest available opponent
	mark    engine.Pos // opposing carrier, or the nearest opponent
}

var teamRules = map[teamKey]teamRule{
	{engine.ModeDefensive, true}:  avoidNearest,
	{engine.ModeDefensive, false}: coverThreatenedGoal,
	{engine.ModeOffensive, true}:  seekOpenGoal,
	{engine.ModeOffensive, false}: interceptMark,
}

// avoidNearest keeps the ball away from the closest opponent.
func avoidNearest(_ engine.View, _ engine.Agent, s teamSituation) (engine.Pos, Steering, bool) {
	return s.nearest, SteerAvoid, true
}

// coverThreatenedGoal moves to the defended goal cell nearest the mark.
func coverThreatenedGoal(v engine.View, self engine.Agent, s teamSituation) (engine.Pos, Steering, bool) {
	goals := v.Map.Goals(self.Group.Opponent())
	i := argDist(goals, s.mark, false)
	if i < 0 {
		return engine.Pos{}, 0, false
	}
	return goals[i], SteerApproach, true
}

// seekOpenGoal heads for the scoring cell farthest from the nearest opponent.
func seekOpenGoal(v engine.View, self engine.Agent, s teamSituation) (engine.Pos, Steering, bool) {
	goals := v.Map.Goals(self.Group)
	i := argDist(goals, s.nearest, true)
	if i < 0 {
		return engine.Pos{}, 0, false
	}
	return goals[i], SteerApproach, true
}

// interceptMark closes in on the mark without stepping onto it.
func interceptMark(_ engine.View, _ engine.Agent, s teamSituation) (engine.Pos, Steering, bool) {
	return s.mark, SteerIntercept, true
}

// argDist returns the index of the cell nearest to (or farthest from) ref.
// Ties go to the earliest cell. It returns -1 for an empty slice.
func argDist(cells []engine.Pos, ref engine.Pos, farthest bool) int {
	best := -1
	bestD := math.Inf(1)
	if farthest {
		bestD = math.Inf(-1)
	}
	for i, c := range cells {
		d := dist(c, ref)
		if (farthest && d > bestD) || (!farthest && d < bestD) {
			best, bestD = i, d
		}
	}
	return best
}

// NearestOpponent returns the closest placed, available agent of the
// opposing team. Ties go to the lowest id.
func NearestOpponent(reg *engine.Registry, id int) (int, bool) {
	self := reg.Agent(id)
	start, end := reg.GroupRange(self.Group.Opponent())
	best, bestD := -1, math.Inf(1)
	for other := start; other < end; other++ {
		a := reg.Agent(other)
		if !a.Placed || !a.Available {
			continue
		}
		if d := dist(self.Pos, a.Pos); d < bestD {
			best, bestD = other, d
		}
	}
	return best, best >= 0
}

// MarkTarget returns the agent id should defend against: the opposing
// carrier when the other team has the ball, otherwise the nearest opponent.
func MarkTarget(reg *engine.Registry, id int) (int, bool) {
	if carrier, ok := reg.Carrier(); ok && reg.Group(carrier) != reg.Group(id) {
		return carrier, true
	}
	return NearestOpponent(reg, id)
}

// Team is the soccer strategy: one rule per (mode, carrying) pair feeding a
// steering decision. It returns ActionNone when no opponent is on the pitch.
func Team(v engine.View, id int) (engine.Action, error) {
	self := v.Reg.Agent(id)
	if !self.Group.IsTeam() {
		return engine.ActionNone, fmt.Errorf("%w: team policy for %s", engine.ErrInvalidGroup, self.Group)
	}
	rule, ok := teamRules[teamKey{self.Mode, self.Possession}]
	if !ok {
		return engine.ActionNone, fmt.Errorf("%w: %s for agent %d", engine.ErrInvalidMode, self.Mode, id)
	}
	nearest, ok := NearestOpponent(v.Reg, id)
	if !ok {
		return engine.ActionNone, nil
	}
	mark, _ := MarkTarget(v.Reg, id)
	s := teamSituation{
		nearest: v.Reg.Agent(nearest).Pos,
		mark:    v.Reg.Agent(mark).Pos,
	}
	target, mode, ok := rule(v, self, s)
	if !ok {
		return engine.ActionNone, nil
	}
	return Steer(self.Pos, target, mode, v.Map, v.Rand)
}
