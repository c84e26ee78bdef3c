package engine

import "errors"

// Invalid input. These indicate an integration bug and are never retried.
var (
	ErrInvalidAction = errors.New("engine: invalid action")
	ErrInvalidGroup  = errors.New("engine: invalid group")
	ErrInvalidMode   = errors.New("engine: invalid mode")
	ErrActionCount   = errors.New("engine: action count mismatch")
	ErrAgentID       = errors.New("engine: agent id out of range")
	ErrInvalidRules  = errors.New("engine: invalid rules")
	ErrInvalidMap    = errors.New("engine: invalid map")
)

// Episode lifecycle.
var (
	ErrNotReset = errors.New("engine: step before reset")
	ErrTerminal = errors.New("engine: step after terminal state")
)

// Fatal kernel conditions.
var (
	ErrPlacement      = errors.New("engine: no free spawn cell")
	ErrNonConvergence = errors.New("engine: conflict resolution did not converge")
	ErrDiagonalStep   = errors.New("engine: path step is not axis-adjacent")
)

// ErrNoPath is recoverable: the searching agent stands still.
var ErrNoPath = errors.New("engine: no path to target")
