package agent

import (
	"container/heap"
	"fmt"
	"math"

	engine "github.com/sc420/pygame-rl/engine"
)

// --- weighted A* over the grid ---

// searchDirs are expanded in this order; SearchCosts use the same indexing.
var searchDirs = [4]engine.Action{engine.ActionEast, engine.ActionNorth, engine.ActionWest, engine.ActionSouth}

type pathNode struct {
	pos    engine.Pos
	g, h   float64
	seq    int // insertion order, last tie-break
	parent *pathNode
	index  int // heap index
}

type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	fi, fj := ol[i].g+ol[i].h, ol[j].g+ol[j].h
	if fi != fj {
		return fi < fj
	}
	if ol[i].h != ol[j].h {
		return ol[i].h < ol[j].h
	}
	return ol[i].seq < ol[j].seq
}
func (ol openList) Swap(i, j int)       { ol[i], ol[j] = ol[j], ol[i]; ol[i].index = i; ol[j].index = j }
func (ol *openList) Push(x interface{}) { n := x.(*pathNode); n.index = len(*ol); *ol = append(*ol, n) }
func (ol *openList) Pop() interface{} {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

// FindPath returns the cheapest 4-connected path from src to dst, both ends
// included. Stepping in direction searchDirs[i] costs costs[i]. blocked
// excludes extra cells on top of the unwalkable ones; src and dst themselves
// are never considered blocked. It returns ErrNoPath when dst is unreachable.
func FindPath(gm *engine.GridMap, blocked func(engine.Pos) bool, src, dst engine.Pos, costs [4]float64) ([]engine.Pos, error) {
	if !gm.Walkable(src) || !gm.Walkable(dst) {
		return nil, fmt.Errorf("%w: %v -> %v", engine.ErrNoPath, src, dst)
	}
	for i, c := range costs {
		if c <= 0 {
			return nil, fmt.Errorf("agent: search cost[%d] = %v must be positive", i, c)
		}
	}
	// Admissible: every step along an axis costs at least the cheaper of the
	// two directions on that axis.
	minH := math.Min(costs[0], costs[2])
	minV := math.Min(costs[1], costs[3])
	heuristic := func(p engine.Pos) float64 {
		d := dst.Sub(p)
		return float64(abs(d.X))*minH + float64(abs(d.Y))*minV
	}
	passable := func(p engine.Pos) bool {
		if p == src || p == dst {
			return gm.Walkable(p)
		}
		return gm.Walkable(p) && (blocked == nil || !blocked(p))
	}

	seq := 0
	start := &pathNode{pos: src, h: heuristic(src)}
	ol := &openList{start}
	heap.Init(ol)

	closed := make(map[engine.Pos]bool)
	best := map[engine.Pos]*pathNode{src: start}

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*pathNode)
		if cur.pos == dst {
			return buildPath(cur), nil
		}
		if closed[cur.pos] {
			continue
		}
		closed[cur.pos] = true

		for i, dir := range searchDirs {
			next := dir.Apply(cur.pos)
			if !passable(next) || closed[next] {
				continue
			}
			g := cur.g + costs[i]
			if prev, ok := best[next]; ok && g >= prev.g {
				continue
			}
			seq++
			node := &pathNode{pos: next, g: g, h: heuristic(next), seq: seq, parent: cur}
			best[next] = node
			heap.Push(ol, node)
		}
	}
	return nil, fmt.Errorf("%w: %v -> %v", engine.ErrNoPath, src, dst)
}

func buildPath(end *pathNode) []engine.Pos {
	var cells []engine.Pos
	for n := end; n != nil; n = n.parent {
		cells = append(cells, n.pos)
	}
	// Reverse
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}

// StepAction converts the first step of path into a directional action. A
// single-cell path means the agent is already there and yields STAND. A first
// step that is not axis-adjacent yields ErrDiagonalStep.
func StepAction(path []engine.Pos) (engine.Action, error) {
	switch len(path) {
	case 0:
		return engine.ActionNone, fmt.Errorf("%w: empty path", engine.ErrNoPath)
	case 1:
		return engine.ActionStand, nil
	}
	return engine.ActionFromDelta(path[1].Sub(path[0]))
}
