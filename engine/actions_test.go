package engine

import (
	"errors"
	"testing"
)

// TestParseAction verifies both spellings and the unset marker.
func TestParseAction(t *testing.T) {
	cases := []struct {
		in   string
		want Action
	}{
		{"east", ActionEast},
		{"MOVE_NORTH", ActionNorth},
		{" west ", ActionWest},
		{"move_south", ActionSouth},
		{"Stand", ActionStand},
		{"", ActionNone},
	}
	for _, tc := range cases {
		got, err := ParseAction(tc.in)
		if err != nil {
			t.Fatalf("ParseAction(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseAction(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseAction("jump"); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("ParseAction(jump) error = %v, want ErrInvalidAction", err)
	}
}

// TestActionDeltas verifies that north decreases Y and south increases it.
func TestActionDeltas(t *testing.T) {
	origin := Pos{X: 3, Y: 3}
	want := map[Action]Pos{
		ActionEast:  {4, 3},
		ActionNorth: {3, 2},
		ActionWest:  {2, 3},
		ActionSouth: {3, 4},
		ActionStand: {3, 3},
	}
	for act, p := range want {
		if got := act.Apply(origin); got != p {
			t.Errorf("%v.Apply(%v) = %v, want %v", act, origin, got, p)
		}
	}
}

// TestActionIndexOrder verifies the canonical enumeration order.
func TestActionIndexOrder(t *testing.T) {
	for i, act := range Actions {
		if act.Index() != i {
			t.Errorf("%v.Index() = %d, want %d", act, act.Index(), i)
		}
	}
	defer func() {
		if recover() == nil {
			t.Fatal("ActionNone.Index() did not panic")
		}
	}()
	_ = ActionNone.Index()
}

// TestActionFromDelta verifies the inverse mapping and the diagonal error.
func TestActionFromDelta(t *testing.T) {
	for _, act := range []Action{ActionEast, ActionNorth, ActionWest, ActionSouth} {
		got, err := ActionFromDelta(act.Delta())
		if err != nil || got != act {
			t.Errorf("ActionFromDelta(%v) = %v, %v; want %v", act.Delta(), got, err, act)
		}
	}
	for _, d := range []Pos{{1, 1}, {0, 0}, {2, 0}} {
		if _, err := ActionFromDelta(d); !errors.Is(err, ErrDiagonalStep) {
			t.Errorf("ActionFromDelta(%v) error = %v, want ErrDiagonalStep", d, err)
		}
	}
}

// TestActionTextRoundTrip verifies MarshalText and UnmarshalText agree.
func TestActionTextRoundTrip(t *testing.T) {
	for _, act := range append([]Action{ActionNone}, Actions[:]...) {
		b, err := act.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", act, err)
		}
		var got Action
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", b, err)
		}
		if got != act {
			t.Errorf("round trip %v = %v", act, got)
		}
	}
}

// TestParseGroupAndMode verifies tag parsing rejects unknown names.
func TestParseGroupAndMode(t *testing.T) {
	if g, err := ParseGroup("Predator"); err != nil || g != GroupPredator {
		t.Fatalf("ParseGroup(Predator) = %v, %v", g, err)
	}
	if _, err := ParseGroup("referee"); !errors.Is(err, ErrInvalidGroup) {
		t.Fatalf("ParseGroup(referee) error = %v, want ErrInvalidGroup", err)
	}
	if m, err := ParseMode("offensive"); err != nil || m != ModeOffensive {
		t.Fatalf("ParseMode(offensive) = %v, %v", m, err)
	}
	if _, err := ParseMode("berserk"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("ParseMode(berserk) error = %v, want ErrInvalidMode", err)
	}
	if GroupTeamA.Opponent() != GroupTeamB || GroupTeamB.Opponent() != GroupTeamA {
		t.Fatal("team opponents are not symmetric")
	}
}
