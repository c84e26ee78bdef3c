package engine

import (
	"fmt"
	"math"
)

// GroupSpec declares how many agents of one group take part.
type GroupSpec struct {
	Group Group `json:"group" yaml:"group"`
	Count int   `json:"count" yaml:"count"`
}

// Rules holds every tunable of an episode.
type Rules struct {
	Variant Variant
	Groups  []GroupSpec // id assignment follows this order

	// The first ControlledCount agents of ControlledGroup take external
	// actions. Every other agent is driven by the Decider.
	ControlledGroup Group
	ControlledCount int

	TimeLimit            int     // episode is terminal once timeStep reaches this
	FrameSkip            int     // AI agents decide every FrameSkip ticks; 1 = every tick
	MaxResolveIterations int     // 0 = agent count + 1
	ObservationRadius    float64 // <= 0 means unlimited
	MinSpawnSeparation   float64 // 0 disables the check

	// Soccer.
	DefensiveProbability float64 // chance an agent is DEFENSIVE after reset
	Defensiveness        float64 // legacy scoring weight for DEFENSIVE agents
	TeamPolicy           TeamPolicy

	// Predator/prey. ActionWeights[i] scales the flee score of Actions[i].
	// SearchCosts are the per-direction edge costs of the predator search,
	// indexed East, North, West, South. The two are tuned separately.
	ActionWeights [NumActions]float64
	NoiseMean     float64
	NoiseStdDev   float64
	SearchCosts   [4]float64

	Seed uint64
}

// DefaultSoccerRules returns the two-a-side soccer configuration.
func DefaultSoccerRules() Rules {
	return Rules{
		Variant: VariantSoccer,
		Groups: []GroupSpec{
			{Group: GroupTeamA, Count: 2},
			{Group: GroupTeamB, Count: 2},
		},
		ControlledGroup:      GroupTeamA,
		ControlledCount:      1,
		TimeLimit:            100,
		FrameSkip:            1,
		DefensiveProbability: 0.5,
		Defensiveness:        0.9,
		TeamPolicy:           TeamPolicySteering,
		ActionWeights:        [NumActions]float64{0.2, 0.3, 0.2, 0.3, 0.0},
		NoiseStdDev:          0.01,
		SearchCosts:          [4]float64{1, 1.5, 1, 1.5},
	}
}

// DefaultPredatorPreyRules returns the 2 predator, 2 prey, 10 obstacle
// configuration on an unlimited observation radius.
func DefaultPredatorPreyRules() Rules {
	return Rules{
		Variant: VariantPredatorPrey,
		Groups: []GroupSpec{
			{Group: GroupPredator, Count: 2},
			{Group: GroupPrey, Count: 2},
			{Group: GroupObstacle, Count: 10},
		},
		ControlledGroup:      GroupPredator,
		ControlledCount:      1,
		TimeLimit:            100,
		FrameSkip:            1,
		DefensiveProbability: 0.5,
		Defensiveness:        0.9,
		ActionWeights:        [NumActions]float64{0.2, 0.3, 0.2, 0.3, 0.0},
		NoiseStdDev:          0.01,
		SearchCosts:          [4]float64{1, 1.5, 1, 1.5},
	}
}

// AgentCount returns the total number of agents.
func (r *Rules) AgentCount() int {
	n := 0
	for _, gs := range r.Groups {
		n += gs.Count
	}
	return n
}

// GroupCount returns the number of agents declared for g.
func (r *Rules) GroupCount(g Group) int {
	n := 0
	for _, gs := range r.Groups {
		if gs.Group == g {
			n += gs.Count
		}
	}
	return n
}

// Observes reports whether a distance lies within the observation radius.
func (r *Rules) Observes(d float64) bool {
	return r.ObservationRadius <= 0 || d <= r.ObservationRadius
}

func (r *Rules) maxIterations() int {
	if r.MaxResolveIterations > 0 {
		return r.MaxResolveIterations
	}
	return r.AgentCount() + 1
}

// Validate checks that the rules describe a runnable episode.
func (r *Rules) Validate() error {
	seen := make(map[Group]bool, len(r.Groups))
	for _, gs := range r.Groups {
		if !gs.Group.Valid() {
			return fmt.Errorf("%w: group %d", ErrInvalidGroup, uint8(gs.Group))
		}
		if seen[gs.Group] {
			return fmt.Errorf("%w: group %s declared twice", ErrInvalidRules, gs.Group)
		}
		seen[gs.Group] = true
		if gs.Count <= 0 {
			return fmt.Errorf("%w: group %s has count %d", ErrInvalidRules, gs.Group, gs.Count)
		}
	}
	switch r.Variant {
	case VariantSoccer:
		if !seen[GroupTeamA] || !seen[GroupTeamB] {
			return fmt.Errorf("%w: soccer needs both %s and %s", ErrInvalidRules, GroupTeamA, GroupTeamB)
		}
		for g := range seen {
			if !g.IsTeam() {
				return fmt.Errorf("%w: group %s not allowed in soccer", ErrInvalidRules, g)
			}
		}
	case VariantPredatorPrey:
		if !seen[GroupPredator] || !seen[GroupPrey] {
			return fmt.Errorf("%w: predator_prey needs %s and %s", ErrInvalidRules, GroupPredator, GroupPrey)
		}
		for g := range seen {
			if g.IsTeam() {
				return fmt.Errorf("%w: group %s not allowed in predator_prey", ErrInvalidRules, g)
			}
		}
	default:
		return fmt.Errorf("%w: unknown variant %d", ErrInvalidRules, uint8(r.Variant))
	}
	if r.ControlledCount < 0 || r.ControlledCount > r.GroupCount(r.ControlledGroup) {
		return fmt.Errorf("%w: %d controlled agents requested, group %s has %d",
			ErrInvalidRules, r.ControlledCount, r.ControlledGroup, r.GroupCount(r.ControlledGroup))
	}
	if r.TimeLimit <= 0 {
		return fmt.Errorf("%w: time limit %d", ErrInvalidRules, r.TimeLimit)
	}
	if r.FrameSkip < 1 {
		return fmt.Errorf("%w: frame skip %d", ErrInvalidRules, r.FrameSkip)
	}
	if r.MaxResolveIterations < 0 {
		return fmt.Errorf("%w: max resolve iterations %d", ErrInvalidRules, r.MaxResolveIterations)
	}
	if r.MinSpawnSeparation < 0 || math.IsNaN(r.MinSpawnSeparation) {
		return fmt.Errorf("%w: spawn separation %v", ErrInvalidRules, r.MinSpawnSeparation)
	}
	if !inUnit(r.DefensiveProbability) || !inUnit(r.Defensiveness) {
		return fmt.Errorf("%w: probabilities must lie in [0,1]", ErrInvalidRules)
	}
	if r.NoiseStdDev < 0 {
		return fmt.Errorf("%w: noise stddev %v", ErrInvalidRules, r.NoiseStdDev)
	}
	for i, c := range r.SearchCosts {
		if c <= 0 || math.IsInf(c, 0) || math.IsNaN(c) {
			return fmt.Errorf("%w: search cost[%d] = %v", ErrInvalidRules, i, c)
		}
	}
	if r.TeamPolicy > TeamPolicyLegacy {
		return fmt.Errorf("%w: team policy %d", ErrInvalidRules, uint8(r.TeamPolicy))
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }
