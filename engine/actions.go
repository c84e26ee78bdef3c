package engine

import (
	"fmt"
	"strings"
)

// Action is one of the five discrete moves. The zero value ActionNone means
// "no action supplied" and never reaches the resolver.
type Action uint8

const (
	ActionNone Action = iota
	ActionEast
	ActionNorth
	ActionWest
	ActionSouth
	ActionStand
)

// NumActions is the number of real actions (excluding ActionNone).
const NumActions = 5

// Actions lists every real action in canonical order. Policies that score
// actions index their score arrays by position in this slice.
var Actions = [NumActions]Action{ActionEast, ActionNorth, ActionWest, ActionSouth, ActionStand}

var actionDeltas = [...]Pos{
	ActionNone:  {},
	ActionEast:  {X: 1},
	ActionNorth: {Y: -1},
	ActionWest:  {X: -1},
	ActionSouth: {Y: 1},
	ActionStand: {},
}

var actionNames = [...]string{
	ActionNone:  "none",
	ActionEast:  "east",
	ActionNorth: "north",
	ActionWest:  "west",
	ActionSouth: "south",
	ActionStand: "stand",
}

// Valid reports whether a is one of the five real actions.
func (a Action) Valid() bool { return a >= ActionEast && a <= ActionStand }

// Index returns the position of a in Actions. It panics on ActionNone or an
// unknown value.
func (a Action) Index() int {
	if !a.Valid() {
		panic(fmt.Sprintf("engine: Index of invalid action %d", uint8(a)))
	}
	return int(a) - 1
}

// Delta returns the cell offset of a. It panics on unknown values.
func (a Action) Delta() Pos {
	if int(a) >= len(actionDeltas) {
		panic(fmt.Sprintf("engine: Delta of invalid action %d", uint8(a)))
	}
	return actionDeltas[a]
}

// Apply returns the cell reached from p by taking a, ignoring walkability.
func (a Action) Apply(p Pos) Pos { return p.Add(a.Delta()) }

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// ParseAction converts an action name into an Action. Both "east" and
// "move_east" spellings are accepted. The empty string yields ActionNone.
func ParseAction(s string) (Action, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return ActionNone, nil
	}
	key = strings.TrimPrefix(key, "move_")
	for a := ActionEast; a <= ActionStand; a++ {
		if actionNames[a] == key {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// ActionFromDelta returns the directional action whose delta is d. d must be
// one axis-aligned unit step; anything else yields ErrDiagonalStep.
func ActionFromDelta(d Pos) (Action, error) {
	for a := ActionEast; a <= ActionSouth; a++ {
		if actionDeltas[a] == d {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("%w: delta %v", ErrDiagonalStep, d)
}

func (a Action) MarshalText() ([]byte, error) {
	if int(a) >= len(actionNames) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAction, uint8(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	if strings.EqualFold(string(b), "none") {
		*a = ActionNone
		return nil
	}
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
