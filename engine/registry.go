package engine

import "fmt"

// Agent is the mutable per-agent record. The Registry owns every Agent;
// everything else refers to agents by id.
type Agent struct {
	ID         int    `json:"id" msgpack:"id"`
	Group      Group  `json:"group" msgpack:"group"`
	Pos        Pos    `json:"pos" msgpack:"pos"`
	Placed     bool   `json:"placed" msgpack:"placed"` // false while the position is unset
	Possession bool   `json:"possession" msgpack:"possession"`
	Available  bool   `json:"available" msgpack:"available"`
	Mode       Mode   `json:"mode" msgpack:"mode"`
	LastAction Action `json:"last_action" msgpack:"last_action"`
	FrameSkip  int    `json:"frame_skip" msgpack:"frame_skip"`
}

// Registry holds the agent table and the cell -> agent index derived from it.
// Only placed, available agents appear in the index. Every position or
// availability write keeps the index in step with the table.
//
// Methods panic on an out-of-range id.
type Registry struct {
	agents []Agent
	index  map[Pos]int
	ranges [numGroups][2]int
}

// NewRegistry creates agents group by group in the order given. Ids are dense
// and agents of one group occupy a contiguous id range.
func NewRegistry(groups []GroupSpec) *Registry {
	total := 0
	for _, gs := range groups {
		total += gs.Count
	}
	r := &Registry{
		agents: make([]Agent, 0, total),
		index:  make(map[Pos]int, total),
	}
	for _, gs := range groups {
		start := len(r.agents)
		for i := 0; i < gs.Count; i++ {
			id := len(r.agents)
			r.agents = append(r.agents, Agent{ID: id, Group: gs.Group, Available: true, LastAction: ActionStand})
		}
		r.ranges[gs.Group] = [2]int{start, len(r.agents)}
	}
	return r
}

// Len returns the number of agents.
func (r *Registry) Len() int { return len(r.agents) }

func (r *Registry) at(id int) *Agent {
	if id < 0 || id >= len(r.agents) {
		panic(fmt.Sprintf("engine: agent id %d out of range [0,%d)", id, len(r.agents)))
	}
	return &r.agents[id]
}

// Agent returns a copy of the record for id.
func (r *Registry) Agent(id int) Agent { return *r.at(id) }

// Group returns the group of id.
func (r *Registry) Group(id int) Group { return r.at(id).Group }

// GroupRange returns the half-open id range [start, end) of group g.
func (r *Registry) GroupRange(g Group) (start, end int) {
	if !g.Valid() {
		return 0, 0
	}
	rg := r.ranges[g]
	return rg[0], rg[1]
}

// Members returns the ids of group g in ascending order.
func (r *Registry) Members(g Group) []int {
	start, end := r.GroupRange(g)
	out := make([]int, 0, end-start)
	for id := start; id < end; id++ {
		out = append(out, id)
	}
	return out
}

// Position returns the position of id and whether it is set.
func (r *Registry) Position(id int) (Pos, bool) {
	a := r.at(id)
	return a.Pos, a.Placed
}

// SetPosition moves id to p and updates the index: the old key is dropped if
// it still points at id and the new key is inserted.
func (r *Registry) SetPosition(id int, p Pos) {
	a := r.at(id)
	r.unindex(a)
	a.Pos = p
	a.Placed = true
	r.reindex(a)
}

// ClearPosition marks the position of id as unset and removes it from the
// index.
func (r *Registry) ClearPosition(id int) {
	a := r.at(id)
	r.unindex(a)
	a.Pos = Pos{}
	a.Placed = false
}

func (r *Registry) unindex(a *Agent) {
	if !a.Placed {
		return
	}
	if owner, ok := r.index[a.Pos]; ok && owner == a.ID {
		delete(r.index, a.Pos)
	}
}

func (r *Registry) reindex(a *Agent) {
	if a.Placed && a.Available {
		r.index[a.Pos] = a.ID
	}
}

// Owner returns the available agent standing on p, if any.
func (r *Registry) Owner(p Pos) (int, bool) {
	id, ok := r.index[p]
	return id, ok
}

// Occupied reports whether an available agent stands on p.
func (r *Registry) Occupied(p Pos) bool {
	_, ok := r.index[p]
	return ok
}

// Flag returns the value of flag f for id.
func (r *Registry) Flag(id int, f Flag) bool {
	a := r.at(id)
	switch f {
	case FlagPossession:
		return a.Possession
	case FlagAvailable:
		return a.Available
	}
	panic(fmt.Sprintf("engine: unknown flag %d", uint8(f)))
}

// SetFlag sets flag f for id. Clearing FlagAvailable takes the agent out of
// the index; setting it puts the agent back.
func (r *Registry) SetFlag(id int, f Flag, v bool) {
	a := r.at(id)
	switch f {
	case FlagPossession:
		a.Possession = v
	case FlagAvailable:
		if a.Available == v {
			return
		}
		r.unindex(a)
		a.Available = v
		r.reindex(a)
	default:
		panic(fmt.Sprintf("engine: unknown flag %d", uint8(f)))
	}
}

// Mode returns the strategy mode of id.
func (r *Registry) Mode(id int) Mode { return r.at(id).Mode }

// SetMode sets the strategy mode of id. Unknown modes panic.
func (r *Registry) SetMode(id int, m Mode) {
	if !m.Valid() {
		panic(fmt.Sprintf("engine: unknown mode %d", uint8(m)))
	}
	r.at(id).Mode = m
}

// LastAction returns the action id took on the previous tick.
func (r *Registry) LastAction(id int) Action { return r.at(id).LastAction }

// SetLastAction records the action id took this tick.
func (r *Registry) SetLastAction(id int, act Action) {
	if !act.Valid() {
		panic(fmt.Sprintf("engine: invalid action %d for agent %d", uint8(act), id))
	}
	r.at(id).LastAction = act
}

// FrameSkip returns the frame-skip counter of id.
func (r *Registry) FrameSkip(id int) int { return r.at(id).FrameSkip }

// IncrementFrameSkip advances the frame-skip counter of id modulo modulus.
func (r *Registry) IncrementFrameSkip(id int, modulus int) {
	a := r.at(id)
	if modulus <= 1 {
		a.FrameSkip = 0
		return
	}
	a.FrameSkip = (a.FrameSkip + 1) % modulus
}

// Carrier returns the agent holding the ball, if any.
func (r *Registry) Carrier() (int, bool) {
	for i := range r.agents {
		if r.agents[i].Possession {
			return i, true
		}
	}
	return 0, false
}

// SetCarrier gives the ball to id and takes it from everyone else.
func (r *Registry) SetCarrier(id int) {
	r.at(id)
	for i := range r.agents {
		r.agents[i].Possession = i == id
	}
}

// reset returns every agent to its pre-spawn state.
func (r *Registry) reset() {
	clear(r.index)
	for i := range r.agents {
		g := r.agents[i].Group
		r.agents[i] = Agent{ID: i, Group: g, Available: true, LastAction: ActionStand}
	}
}

// snapshotAgents copies the agent table.
func (r *Registry) snapshotAgents() []Agent {
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

type flagState struct{ possession, available bool }

func (r *Registry) saveFlags(dst []flagState) []flagState {
	dst = dst[:0]
	for i := range r.agents {
		dst = append(dst, flagState{r.agents[i].Possession, r.agents[i].Available})
	}
	return dst
}

func (r *Registry) restoreFlags(src []flagState) {
	for i, fs := range src {
		r.SetFlag(i, FlagPossession, fs.possession)
		r.SetFlag(i, FlagAvailable, fs.available)
	}
}
