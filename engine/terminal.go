package engine

// ---------------------------------------------------------------------------
// Termination
// ---------------------------------------------------------------------------

// Winner returns the team of the first carrier standing on one of its own
// scoring cells. It reports false when nobody has scored.
func Winner(reg *Registry, gm *GridMap) (Group, bool) {
	id, ok := reg.Carrier()
	if !ok {
		return 0, false
	}
	a := reg.at(id)
	if a.Placed && gm.IsGoal(a.Group, a.Pos) {
		return a.Group, true
	}
	return 0, false
}

// AnyAvailable reports whether at least one agent of g is still available.
func AnyAvailable(reg *Registry, g Group) bool {
	start, end := reg.GroupRange(g)
	for id := start; id < end; id++ {
		if reg.agents[id].Available {
			return true
		}
	}
	return false
}

// isTerminal evaluates the termination conditions after a tick.
func (e *Env) isTerminal() bool {
	if e.timeStep >= e.rules.TimeLimit {
		return true
	}
	switch e.rules.Variant {
	case VariantSoccer:
		_, won := Winner(e.reg, e.gm)
		return won
	case VariantPredatorPrey:
		return !AnyAvailable(e.reg, GroupPrey)
	}
	return false
}

// reward scores a tick from the controlled group's point of view.
func (e *Env) reward(res Resolution) float64 {
	switch e.rules.Variant {
	case VariantSoccer:
		winner, won := Winner(e.reg, e.gm)
		if !won {
			return 0
		}
		if winner == e.rules.ControlledGroup {
			return 1
		}
		return -1
	case VariantPredatorPrey:
		r := float64(len(res.Captured))
		if e.rules.ControlledGroup == GroupPrey {
			return -r
		}
		return r
	}
	return 0
}
