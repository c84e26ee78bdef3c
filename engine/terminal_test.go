package engine

import "testing"

func soccerPitch(t *testing.T) (*Registry, *GridMap) {
	t.Helper()
	reg := NewRegistry([]GroupSpec{{Group: GroupTeamA, Count: 1}, {Group: GroupTeamB, Count: 1}})
	return reg, MustParseLayout(DefaultSoccerLayout)
}

// TestWinnerNeedsCarrierOnOwnGoal verifies only a carrier on its scoring
// cells wins.
func TestWinnerNeedsCarrierOnOwnGoal(t *testing.T) {
	cases := []struct {
		name    string
		a, b    Pos
		carrier int
		want    Group
		won     bool
	}{
		{"a scores", Pos{X: 8, Y: 2}, Pos{X: 5, Y: 0}, 0, GroupTeamA, true},
		{"b scores", Pos{X: 4, Y: 0}, Pos{X: 0, Y: 3}, 1, GroupTeamB, true},
		{"a on wrong goal", Pos{X: 0, Y: 2}, Pos{X: 5, Y: 0}, 0, 0, false},
		{"non-carrier on goal", Pos{X: 8, Y: 2}, Pos{X: 5, Y: 0}, 1, 0, false},
		{"midfield", Pos{X: 4, Y: 2}, Pos{X: 5, Y: 2}, 0, 0, false},
	}
	for _, tc := range cases {
		reg, gm := soccerPitch(t)
		reg.SetPosition(0, tc.a)
		reg.SetPosition(1, tc.b)
		reg.SetCarrier(tc.carrier)
		got, won := Winner(reg, gm)
		if won != tc.won || (won && got != tc.want) {
			t.Errorf("%s: Winner = %v, %v, want %v, %v", tc.name, got, won, tc.want, tc.won)
		}
	}
}

// TestWinnerWithoutCarrier verifies nobody wins before possession is assigned.
func TestWinnerWithoutCarrier(t *testing.T) {
	reg, gm := soccerPitch(t)
	reg.SetPosition(0, Pos{X: 8, Y: 2})
	if g, won := Winner(reg, gm); won {
		t.Fatalf("Winner = %v with no carrier", g)
	}
}

// TestAnyAvailable verifies the capture terminal condition.
func TestAnyAvailable(t *testing.T) {
	reg := NewRegistry([]GroupSpec{{Group: GroupPredator, Count: 1}, {Group: GroupPrey, Count: 2}})
	if !AnyAvailable(reg, GroupPrey) {
		t.Fatal("fresh prey reported unavailable")
	}
	start, end := reg.GroupRange(GroupPrey)
	reg.SetFlag(start, FlagAvailable, false)
	if !AnyAvailable(reg, GroupPrey) {
		t.Fatal("one prey left, AnyAvailable = false")
	}
	reg.SetFlag(end-1, FlagAvailable, false)
	if AnyAvailable(reg, GroupPrey) {
		t.Fatal("all prey captured, AnyAvailable = true")
	}
	if !AnyAvailable(reg, GroupPredator) {
		t.Fatal("predator reported unavailable")
	}
}

// TestPreyControlledRewardIsNegative verifies the capture reward sign follows
// the controlled group.
func TestPreyControlledRewardIsNegative(t *testing.T) {
	rules := DefaultPredatorPreyRules()
	rules.ControlledGroup = GroupPrey
	env, err := NewEnv(rules, MustParseLayout(DefaultPredatorPreyLayout), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := env.reward(Resolution{Captured: []int{2, 3}}); got != -2 {
		t.Fatalf("reward = %v, want -2", got)
	}
	env.rules.ControlledGroup = GroupPredator
	if got := env.reward(Resolution{Captured: []int{2}}); got != 1 {
		t.Fatalf("reward = %v, want 1", got)
	}
}
