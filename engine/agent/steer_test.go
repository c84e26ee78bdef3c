package agent

import (
	"math/rand/v2"
	"testing"

	engine "github.com/sc420/pygame-rl/engine"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xdeadbeefcafe1234))
}

func openField(w, h int) *engine.GridMap {
	rows := make([]string, h)
	for y := range rows {
		row := make([]byte, w)
		for x := range row {
			row[x] = '.'
		}
		rows[y] = string(row)
	}
	return engine.MustParseLayout(rows)
}

// TestSteerUniqueBest verifies each mode when exactly one action improves.
func TestSteerUniqueBest(t *testing.T) {
	gm := openField(5, 5)
	cases := []struct {
		name        string
		src, target engine.Pos
		mode        Steering
		want        engine.Action
	}{
		{"approach", engine.Pos{X: 0, Y: 0}, engine.Pos{X: 4, Y: 0}, SteerApproach, engine.ActionEast},
		{"avoid", engine.Pos{X: 2, Y: 2}, engine.Pos{X: 3, Y: 2}, SteerAvoid, engine.ActionWest},
		{"intercept", engine.Pos{X: 2, Y: 0}, engine.Pos{X: 0, Y: 0}, SteerIntercept, engine.ActionWest},
		{"intercept adjacent", engine.Pos{X: 1, Y: 0}, engine.Pos{X: 0, Y: 0}, SteerIntercept, engine.ActionStand},
		{"approach reached", engine.Pos{X: 3, Y: 3}, engine.Pos{X: 3, Y: 3}, SteerApproach, engine.ActionStand},
	}
	for _, tc := range cases {
		for seed := uint64(0); seed < 10; seed++ {
			got, err := Steer(tc.src, tc.target, tc.mode, gm, testRand(seed))
			if err != nil {
				t.Fatalf("%s: Steer error: %v", tc.name, err)
			}
			if got != tc.want {
				t.Fatalf("%s seed %d: Steer = %v, want %v", tc.name, seed, got, tc.want)
			}
		}
	}
}

// TestSteerTreatsWallsAsStanding verifies a move into a wall scores as no
// move at all.
func TestSteerTreatsWallsAsStanding(t *testing.T) {
	gm := engine.MustParseLayout([]string{".#."})
	got, err := Steer(engine.Pos{X: 0, Y: 0}, engine.Pos{X: 2, Y: 0}, SteerApproach, gm, testRand(1))
	if err != nil {
		t.Fatal(err)
	}
	if got != engine.ActionStand {
		t.Fatalf("Steer = %v, want stand", got)
	}
}

// TestSteerTieBreakIsRandom verifies both equally good moves get picked.
func TestSteerTieBreakIsRandom(t *testing.T) {
	gm := openField(3, 3)
	seen := map[engine.Action]bool{}
	for seed := uint64(0); seed < 100; seed++ {
		got, err := Steer(engine.Pos{X: 1, Y: 1}, engine.Pos{X: 0, Y: 0}, SteerApproach, gm, testRand(seed))
		if err != nil {
			t.Fatal(err)
		}
		if got != engine.ActionWest && got != engine.ActionNorth {
			t.Fatalf("seed %d: Steer = %v, want west or north", seed, got)
		}
		seen[got] = true
	}
	if len(seen) != 2 {
		t.Fatalf("tie break only produced %v", seen)
	}
}

// TestSteerUnknownMode verifies an invalid mode is an error.
func TestSteerUnknownMode(t *testing.T) {
	if _, err := Steer(engine.Pos{}, engine.Pos{}, Steering(9), openField(2, 2), testRand(1)); err == nil {
		t.Fatal("Steer accepted mode 9")
	}
}
