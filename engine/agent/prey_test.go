package agent

import (
	"errors"
	"testing"

	engine "github.com/sc420/pygame-rl/engine"
)

// hunting builds a registry of predators, prey and obstacles placed in id
// order.
func hunting(pred, prey, obs int, ps ...engine.Pos) *engine.Registry {
	var specs []engine.GroupSpec
	for _, gs := range []engine.GroupSpec{
		{Group: engine.GroupPredator, Count: pred},
		{Group: engine.GroupPrey, Count: prey},
		{Group: engine.GroupObstacle, Count: obs},
	} {
		if gs.Count > 0 {
			specs = append(specs, gs)
		}
	}
	reg := engine.NewRegistry(specs)
	for id, p := range ps {
		reg.SetPosition(id, p)
	}
	return reg
}

func quietRules() engine.Rules {
	r := engine.DefaultPredatorPreyRules()
	r.NoiseStdDev = 0
	return r
}

// TestFleeRunsAway verifies the prey steps directly away from one predator.
func TestFleeRunsAway(t *testing.T) {
	reg := hunting(1, 1, 0, engine.Pos{X: 3, Y: 2}, engine.Pos{X: 2, Y: 2})
	got, err := Flee(newView(openField(5, 5), reg, quietRules(), 1), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != engine.ActionWest {
		t.Fatalf("Flee = %v, want west", got)
	}
}

// TestFleeIgnoresBlockedEscape verifies an occupied cell does not count as an
// escape.
func TestFleeIgnoresBlockedEscape(t *testing.T) {
	// Wall of obstacles to the west leaves north and south.
	reg := hunting(1, 1, 1,
		engine.Pos{X: 3, Y: 2}, engine.Pos{X: 2, Y: 2}, engine.Pos{X: 1, Y: 2})
	got, err := Flee(newView(openField(5, 5), reg, quietRules(), 1), 1)
	if err != nil {
		t.Fatal(err)
	}
	// North and south tie; argmax keeps the first in action order.
	if got != engine.ActionNorth {
		t.Fatalf("Flee = %v, want north", got)
	}
}

// TestFleeObservationRadius verifies far predators are ignored.
func TestFleeObservationRadius(t *testing.T) {
	reg := hunting(1, 1, 0, engine.Pos{X: 4, Y: 4}, engine.Pos{X: 0, Y: 0})
	rules := quietRules()
	rules.ObservationRadius = 2
	got, err := Flee(newView(openField(5, 5), reg, rules, 1), 1)
	if err != nil || got != engine.ActionNone {
		t.Fatalf("Flee = %v, %v; want none", got, err)
	}
}

// TestFleeWrongGroup verifies the policy only runs for prey.
func TestFleeWrongGroup(t *testing.T) {
	reg := hunting(1, 1, 0, engine.Pos{X: 0, Y: 0}, engine.Pos{X: 1, Y: 1})
	if _, err := Flee(newView(openField(3, 3), reg, quietRules(), 1), 0); !errors.Is(err, engine.ErrInvalidGroup) {
		t.Fatalf("error = %v, want ErrInvalidGroup", err)
	}
}

// TestNearestPrey verifies captured prey are skipped.
func TestNearestPrey(t *testing.T) {
	reg := hunting(1, 2, 0,
		engine.Pos{X: 0, Y: 0}, engine.Pos{X: 1, Y: 0}, engine.Pos{X: 3, Y: 0})
	v := newView(openField(5, 1), reg, quietRules(), 1)
	if id, _ := NearestPrey(v, 0); id != 1 {
		t.Fatalf("NearestPrey = %d, want 1", id)
	}
	reg.SetFlag(1, engine.FlagAvailable, false)
	if id, _ := NearestPrey(v, 0); id != 2 {
		t.Fatalf("NearestPrey after capture = %d, want 2", id)
	}
}

// TestHuntAroundObstacle verifies obstacles block the route and force a
// detour.
func TestHuntAroundObstacle(t *testing.T) {
	reg := hunting(1, 1, 1,
		engine.Pos{X: 0, Y: 0}, engine.Pos{X: 3, Y: 0}, engine.Pos{X: 1, Y: 0})
	got, err := Hunt(newView(openField(5, 3), reg, quietRules(), 1), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != engine.ActionSouth {
		t.Fatalf("Hunt = %v, want south", got)
	}
}

// TestHuntNoPath verifies a predator boxed in by obstacles reports ErrNoPath.
func TestHuntNoPath(t *testing.T) {
	reg := hunting(1, 1, 2,
		engine.Pos{X: 0, Y: 0}, engine.Pos{X: 4, Y: 1},
		engine.Pos{X: 1, Y: 0}, engine.Pos{X: 0, Y: 1})
	_, err := Hunt(newView(openField(5, 2), reg, quietRules(), 1), 0)
	if !errors.Is(err, engine.ErrNoPath) {
		t.Fatalf("error = %v, want ErrNoPath", err)
	}
}

// TestHuntNoPrey verifies a predator with nothing in sight has no opinion.
func TestHuntNoPrey(t *testing.T) {
	reg := hunting(1, 1, 0, engine.Pos{X: 0, Y: 0}, engine.Pos{X: 4, Y: 0})
	reg.SetFlag(1, engine.FlagAvailable, false)
	got, err := Hunt(newView(openField(5, 1), reg, quietRules(), 1), 0)
	if err != nil || got != engine.ActionNone {
		t.Fatalf("Hunt = %v, %v; want none", got, err)
	}
}
