package agent

import (
	"fmt"
	"math/rand/v2"

	"github.com/paulmach/orb"
	engine "github.com/sc420/pygame-rl/engine"
)

// ---------------------------------------------------------------------------
// Legacy weighted-score soccer AI
// ---------------------------------------------------------------------------

// LegacyWeights are the per-behaviour weights of a DEFENSIVE agent.
// OFFENSIVE agents use 1 - w for each.
type LegacyWeights struct {
	Advance   float64
	Intercept float64
	Avoid     float64
	Defend    float64
}

// NewLegacyWeights derives the weights from a defensiveness in [0,1].
func NewLegacyWeights(defensiveness float64) LegacyWeights {
	return LegacyWeights{
		Advance:   1 - defensiveness,
		Intercept: 1 - defensiveness,
		Avoid:     defensiveness,
		Defend:    defensiveness,
	}
}

func modeWeight(mode engine.Mode, w float64) (float64, error) {
	switch mode {
	case engine.ModeDefensive:
		return w, nil
	case engine.ModeOffensive:
		return 1 - w, nil
	}
	return 0, fmt.Errorf("%w: %s", engine.ErrInvalidMode, mode)
}

type actionScores [engine.NumActions]float64

func (s *actionScores) add(a engine.Action, w float64) { s[a.Index()] += w }

// scoreAdvance pushes a carrier toward its scoring area.
func scoreAdvance(s *actionScores, pos engine.Pos, b orb.Bound, w float64) {
	x, y := float64(pos.X), float64(pos.Y)
	if x < b.Min.X() {
		s.add(engine.ActionEast, w)
	} else if x > b.Max.X() {
		s.add(engine.ActionWest, w)
	}
	if y < b.Min.Y() {
		s.add(engine.ActionSouth, w)
	} else if y > b.Max.Y() {
		s.add(engine.ActionNorth, w)
	}
}

// scoreDefend pulls an agent in front of the goal area it protects. Standing
// in the column just outside the area it slides along the goal mouth.
func scoreDefend(s *actionScores, pos engine.Pos, b orb.Bound, w float64) {
	x, y := float64(pos.X), float64(pos.Y)
	if x == b.Min.X()-1 || x == b.Max.X()+1 {
		switch {
		case y <= b.Min.Y():
			s.add(engine.ActionSouth, w)
		case y >= b.Max.Y():
			s.add(engine.ActionNorth, w)
		default:
			s.add(engine.ActionSouth, w)
			s.add(engine.ActionNorth, w)
		}
		return
	}
	if x < b.Min.X() {
		s.add(engine.ActionEast, w)
	} else {
		s.add(engine.ActionWest, w)
	}
	if y <= b.Min.Y() {
		s.add(engine.ActionSouth, w)
	} else if y >= b.Max.Y() {
		s.add(engine.ActionNorth, w)
	}
}

// scoreIntercept chases the opponent and holds position once adjacent.
func scoreIntercept(s *actionScores, pos, opp engine.Pos, w float64) {
	if adjacent(pos, opp) {
		s.add(engine.ActionStand, w)
		return
	}
	if pos.X < opp.X {
		s.add(engine.ActionEast, w)
	} else if pos.X > opp.X {
		s.add(engine.ActionWest, w)
	}
	if pos.Y < opp.Y {
		s.add(engine.ActionSouth, w)
	} else if pos.Y > opp.Y {
		s.add(engine.ActionNorth, w)
	}
}

// scoreAvoid favours every direction leading away from the opponent.
func scoreAvoid(s *actionScores, pos, opp engine.Pos, w float64) {
	if pos.X <= opp.X {
		s.add(engine.ActionWest, w)
	}
	if pos.X >= opp.X {
		s.add(engine.ActionEast, w)
	}
	if pos.Y <= opp.Y {
		s.add(engine.ActionNorth, w)
	}
	if pos.Y >= opp.Y {
		s.add(engine.ActionSouth, w)
	}
}

func adjacent(a, b engine.Pos) bool {
	d := a.Sub(b)
	dx, dy := abs(d.X), abs(d.Y)
	return dx+dy == 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Legacy scores every action from two behaviours and picks the best. A
// carrier combines advance and avoid; everyone else combines defend and
// intercept. Among tied top scores the previous action is kept when it is
// one of them, otherwise one is drawn at random.
func Legacy(v engine.View, id int) (engine.Action, error) {
	self := v.Reg.Agent(id)
	if !self.Group.IsTeam() {
		return engine.ActionNone, fmt.Errorf("%w: legacy policy for %s", engine.ErrInvalidGroup, self.Group)
	}
	weights := NewLegacyWeights(v.Rules.Defensiveness)
	nearest, ok := NearestOpponent(v.Reg, id)
	if !ok {
		return engine.ActionNone, nil
	}
	opp := v.Reg.Agent(nearest).Pos

	var s actionScores
	if self.Possession {
		wa, err := modeWeight(self.Mode, weights.Advance)
		if err != nil {
			return engine.ActionNone, err
		}
		wv, _ := modeWeight(self.Mode, weights.Avoid)
		if b, ok := v.Map.GoalBounds(self.Group); ok {
			scoreAdvance(&s, self.Pos, b, wa)
		}
		scoreAvoid(&s, self.Pos, opp, wv)
	} else {
		wd, err := modeWeight(self.Mode, weights.Defend)
		if err != nil {
			return engine.ActionNone, err
		}
		wi, _ := modeWeight(self.Mode, weights.Intercept)
		if b, ok := v.Map.GoalBounds(self.Group.Opponent()); ok {
			scoreDefend(&s, self.Pos, b, wd)
		}
		scoreIntercept(&s, self.Pos, opp, wi)
	}
	return pickTop(s, self.LastAction, v.Rand), nil
}

func pickTop(s actionScores, prev engine.Action, rng *rand.Rand) engine.Action {
	top := s[0]
	for _, sc := range s[1:] {
		if sc > top {
			top = sc
		}
	}
	var tied []engine.Action
	for i, sc := range s {
		if sc == top {
			tied = append(tied, engine.Actions[i])
		}
	}
	for _, a := range tied {
		if a == prev {
			return prev
		}
	}
	return tied[rng.IntN(len(tied))]
}
