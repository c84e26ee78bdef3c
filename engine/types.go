package engine

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// Pos is a grid cell. X grows east, Y grows south.
type Pos struct {
	X int `json:"x" msgpack:"x" yaml:"x"`
	Y int `json:"y" msgpack:"y" yaml:"y"`
}

// Add returns p shifted by d.
func (p Pos) Add(d Pos) Pos { return Pos{X: p.X + d.X, Y: p.Y + d.Y} }

// Sub returns p - q.
func (p Pos) Sub(q Pos) Pos { return Pos{X: p.X - q.X, Y: p.Y - q.Y} }

// Point converts p to a planar point.
func (p Pos) Point() orb.Point { return orb.Point{float64(p.X), float64(p.Y)} }

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

// Group identifies an agent's team or species. It determines which overlap
// rule applies when agents collide and which policy drives the agent.
type Group uint8

const (
	GroupTeamA Group = iota
	GroupTeamB
	GroupPredator
	GroupPrey
	GroupObstacle
	numGroups
)

var groupNames = [numGroups]string{
	GroupTeamA:    "team_a",
	GroupTeamB:    "team_b",
	GroupPredator: "predator",
	GroupPrey:     "prey",
	GroupObstacle: "obstacle",
}

func (g Group) String() string {
	if g < numGroups {
		return groupNames[g]
	}
	return fmt.Sprintf("Group(%d)", uint8(g))
}

// Valid reports whether g is one of the known groups.
func (g Group) Valid() bool { return g < numGroups }

// Opponent returns the opposing team for team groups. Non-team groups are
// returned unchanged.
func (g Group) Opponent() Group {
	switch g {
	case GroupTeamA:
		return GroupTeamB
	case GroupTeamB:
		return GroupTeamA
	}
	return g
}

// IsTeam reports whether g is one of the two soccer sides.
func (g Group) IsTeam() bool { return g == GroupTeamA || g == GroupTeamB }

// ParseGroup converts a group name into a Group.
func ParseGroup(s string) (Group, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for g, name := range groupNames {
		if name == key {
			return Group(g), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidGroup, s)
}

func (g Group) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGroup, uint8(g))
	}
	return []byte(g.String()), nil
}

func (g *Group) UnmarshalText(b []byte) error {
	v, err := ParseGroup(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// ---------------------------------------------------------------------------
// Strategy modes
// ---------------------------------------------------------------------------

// Mode is the strategy label drawn at reset and held for the whole episode.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeDefensive
	ModeOffensive
	numModes
)

var modeNames = [numModes]string{
	ModeNone:      "none",
	ModeDefensive: "defensive",
	ModeOffensive: "offensive",
}

func (m Mode) String() string {
	if m < numModes {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m < numModes }

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == key {
			return Mode(m), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

// Flag names a boolean agent attribute.
type Flag uint8

const (
	FlagPossession Flag = iota
	FlagAvailable
)

func (f Flag) String() string {
	switch f {
	case FlagPossession:
		return "possession"
	case FlagAvailable:
		return "available"
	}
	return fmt.Sprintf("Flag(%d)", uint8(f))
}

// ---------------------------------------------------------------------------
// Variants and policies
// ---------------------------------------------------------------------------

// Variant selects the ruleset family: ball contest or capture.
type Variant uint8

const (
	VariantSoccer Variant = iota
	VariantPredatorPrey
)

func (v Variant) String() string {
	switch v {
	case VariantSoccer:
		return "soccer"
	case VariantPredatorPrey:
		return "predator_prey"
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

// ParseVariant converts a variant name into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "soccer", "":
		return VariantSoccer, nil
	case "predator_prey", "predator-prey":
		return VariantPredatorPrey, nil
	}
	return 0, fmt.Errorf("%w: unknown variant %q", ErrInvalidRules, s)
}

// TeamPolicy selects the decision code used by soccer agents.
type TeamPolicy uint8

const (
	TeamPolicySteering TeamPolicy = iota // mode/possession strategy table
	TeamPolicyLegacy                     // weighted per-action scoring
)

func (p TeamPolicy) String() string {
	switch p {
	case TeamPolicySteering:
		return "steering"
	case TeamPolicyLegacy:
		return "legacy"
	}
	return fmt.Sprintf("TeamPolicy(%d)", uint8(p))
}

// ParseTeamPolicy converts a policy name into a TeamPolicy.
func ParseTeamPolicy(s string) (TeamPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "steering", "":
		return TeamPolicySteering, nil
	case "legacy":
		return TeamPolicyLegacy, nil
	}
	return 0, fmt.Errorf("%w: unknown team policy %q", ErrInvalidRules, s)
}
