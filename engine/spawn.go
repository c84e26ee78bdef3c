package engine

import (
	"fmt"
	"math/rand/v2"

	"github.com/paulmach/orb/planar"
)

// ---------------------------------------------------------------------------
// Spawn placement
// ---------------------------------------------------------------------------

// placeAgents gives every agent a position drawn without replacement from its
// group's spawn cells. Occupied cells and cells closer than the minimum
// separation to an already placed agent are skipped.
func placeAgents(reg *Registry, gm *GridMap, minSep float64, rng *rand.Rand) error {
	var buf []Pos
	for id := 0; id < reg.Len(); id++ {
		g := reg.Group(id)
		cells := gm.Spawns(g)
		buf = append(buf[:0], cells...)
		rng.Shuffle(len(buf), func(i, j int) { buf[i], buf[j] = buf[j], buf[i] })

		placed := false
		for _, p := range buf {
			if reg.Occupied(p) || !separated(reg, id, p, minSep) {
				continue
			}
			reg.SetPosition(id, p)
			placed = true
			break
		}
		if !placed {
			return fmt.Errorf("%w: agent %d (%s) among %d spawn cells", ErrPlacement, id, g, len(cells))
		}
	}
	return nil
}

func separated(reg *Registry, id int, p Pos, minSep float64) bool {
	if minSep <= 0 {
		return true
	}
	for other := 0; other < id; other++ {
		q, ok := reg.Position(other)
		if ok && Distance(p, q) < minSep {
			return false
		}
	}
	return true
}

// assignRoles hands the ball to one uniformly chosen team member and draws
// every agent's strategy mode.
func assignRoles(reg *Registry, rules *Rules, rng *rand.Rand) {
	if rules.Variant != VariantSoccer {
		for id := 0; id < reg.Len(); id++ {
			reg.SetMode(id, ModeNone)
		}
		return
	}
	teams := []Group{GroupTeamA, GroupTeamB}
	team := teams[rng.IntN(len(teams))]
	members := reg.Members(team)
	reg.SetCarrier(members[rng.IntN(len(members))])
	for id := 0; id < reg.Len(); id++ {
		if rng.Float64() < rules.DefensiveProbability {
			reg.SetMode(id, ModeDefensive)
		} else {
			reg.SetMode(id, ModeOffensive)
		}
	}
}

// Distance is the Euclidean distance between two cells.
func Distance(a, b Pos) float64 {
	return planar.Distance(a.Point(), b.Point())
}
