package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/paulmach/orb"
)

// GridMap is the static geography of an episode: which cells may be entered,
// where each group scores and where each group spawns. It is immutable once
// built and safe to share between environments.
type GridMap struct {
	width, height int
	walkable      []bool // row-major, width*height
	cells         []Pos  // walkable cells in row-major order
	goals         map[Group][]Pos
	spawns        map[Group][]Pos
}

// NewGridMap builds a map from explicit cell sets. goals[g] lists the cells
// where a carrier from group g scores. Groups absent from spawns spawn
// anywhere walkable. Every goal and spawn cell must be walkable.
func NewGridMap(width, height int, walkable []Pos, goals, spawns map[Group][]Pos) (*GridMap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidMap, width, height)
	}
	m := &GridMap{
		width:    width,
		height:   height,
		walkable: make([]bool, width*height),
		goals:    make(map[Group][]Pos, len(goals)),
		spawns:   make(map[Group][]Pos, len(spawns)),
	}
	for _, p := range walkable {
		if !m.InBounds(p) {
			return nil, fmt.Errorf("%w: walkable cell %v outside %dx%d", ErrInvalidMap, p, width, height)
		}
		m.walkable[p.Y*width+p.X] = true
	}
	for i, ok := range m.walkable {
		if ok {
			m.cells = append(m.cells, Pos{X: i % width, Y: i / width})
		}
	}
	if len(m.cells) == 0 {
		return nil, fmt.Errorf("%w: no walkable cells", ErrInvalidMap)
	}

	copyCells := func(kind string, src map[Group][]Pos, dst map[Group][]Pos) error {
		for g, ps := range src {
			if !g.Valid() {
				return fmt.Errorf("%w: %s for group %d", ErrInvalidGroup, kind, uint8(g))
			}
			out := make([]Pos, 0, len(ps))
			for _, p := range ps {
				if !m.Walkable(p) {
					return fmt.Errorf("%w: %s cell %v for %s is not walkable", ErrInvalidMap, kind, p, g)
				}
				out = append(out, p)
			}
			sortRowMajor(out)
			out = slices.Compact(out)
			dst[g] = out
		}
		return nil
	}
	if err := copyCells("goal", goals, m.goals); err != nil {
		return nil, err
	}
	if err := copyCells("spawn", spawns, m.spawns); err != nil {
		return nil, err
	}
	return m, nil
}

func cmpRowMajor(a, b Pos) int {
	if a.Y != b.Y {
		return a.Y - b.Y
	}
	return a.X - b.X
}

func sortRowMajor(ps []Pos) { slices.SortFunc(ps, cmpRowMajor) }

// Width returns the number of columns.
func (m *GridMap) Width() int { return m.width }

// Height returns the number of rows.
func (m *GridMap) Height() int { return m.height }

// InBounds reports whether p lies inside the map rectangle.
func (m *GridMap) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.width && p.Y < m.height
}

// Walkable reports whether an agent may stand on p.
func (m *GridMap) Walkable(p Pos) bool {
	return m.InBounds(p) && m.walkable[p.Y*m.width+p.X]
}

// WalkableCells returns every walkable cell in row-major order. The returned
// slice is shared and must not be modified.
func (m *GridMap) WalkableCells() []Pos { return m.cells }

// Goals returns the cells where a ball carrier of group g scores, in
// row-major order. The returned slice is shared and must not be modified.
func (m *GridMap) Goals(g Group) []Pos { return m.goals[g] }

// IsGoal reports whether p is a scoring cell for group g.
func (m *GridMap) IsGoal(g Group, p Pos) bool {
	_, ok := slices.BinarySearchFunc(m.goals[g], p, cmpRowMajor)
	return ok
}

// Spawns returns the spawn cells for group g, falling back to every walkable
// cell when the map declares none. The returned slice is shared.
func (m *GridMap) Spawns(g Group) []Pos {
	if ps, ok := m.spawns[g]; ok && len(ps) > 0 {
		return ps
	}
	return m.cells
}

// GoalBounds returns the bounding rectangle of the goal area of group g.
// The second return is false when g has no goal cells.
func (m *GridMap) GoalBounds(g Group) (orb.Bound, bool) {
	ps := m.goals[g]
	if len(ps) == 0 {
		return orb.Bound{}, false
	}
	mp := make(orb.MultiPoint, len(ps))
	for i, p := range ps {
		mp[i] = p.Point()
	}
	return mp.Bound(), true
}

// ---------------------------------------------------------------------------
// Character layouts
// ---------------------------------------------------------------------------

// Layout legend:
//
//	#  blocked
//	.  walkable
//	a  walkable, team A spawn      A  walkable, team A scores here
//	b  walkable, team B spawn      B  walkable, team B scores here
//	p  walkable, predator spawn    q  walkable, prey spawn
//	o  walkable, obstacle spawn
var layoutSpawns = map[rune]Group{
	'a': GroupTeamA,
	'b': GroupTeamB,
	'p': GroupPredator,
	'q': GroupPrey,
	'o': GroupObstacle,
}

var layoutGoals = map[rune]Group{
	'A': GroupTeamA,
	'B': GroupTeamB,
}

// DefaultSoccerLayout is the 9x6 pitch. Team A spawns on the left half and
// scores on the right edge; team B mirrors it.
var DefaultSoccerLayout = []string{
	"#aaa.bbb#",
	"#aaa.bbb#",
	"Baaa.bbbA",
	"Baaa.bbbA",
	"#aaa.bbb#",
	"#aaa.bbb#",
}

// DefaultPredatorPreyLayout is an open 9x9 field.
var DefaultPredatorPreyLayout = []string{
	".........",
	".........",
	".........",
	".........",
	".........",
	".........",
	".........",
	".........",
	".........",
}

// ParseLayout builds a GridMap from rows of layout characters. All rows must
// have the same width.
func ParseLayout(rows []string) (*GridMap, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty layout", ErrInvalidMap)
	}
	width := len([]rune(rows[0]))
	var walkable []Pos
	goals := make(map[Group][]Pos)
	spawns := make(map[Group][]Pos)
	for y, row := range rows {
		runes := []rune(strings.TrimRight(row, "\r"))
		if len(runes) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrInvalidMap, y, len(runes), width)
		}
		for x, c := range runes {
			p := Pos{X: x, Y: y}
			if c == '#' {
				continue
			}
			if g, ok := layoutSpawns[c]; ok {
				spawns[g] = append(spawns[g], p)
			} else if g, ok := layoutGoals[c]; ok {
				goals[g] = append(goals[g], p)
			} else if c != '.' {
				return nil, fmt.Errorf("%w: unknown layout character %q at %v", ErrInvalidMap, c, p)
			}
			walkable = append(walkable, p)
		}
	}
	return NewGridMap(width, len(rows), walkable, goals, spawns)
}

// MustParseLayout is ParseLayout for built-in layouts; it panics on error.
func MustParseLayout(rows []string) *GridMap {
	m, err := ParseLayout(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Render draws the map with agents overlaid, one character per cell. Agents
// are drawn by id modulo 10; unavailable agents are omitted.
func (m *GridMap) Render(s Snapshot) string {
	grid := make([][]byte, m.height)
	for y := range grid {
		grid[y] = make([]byte, m.width)
		for x := range grid[y] {
			p := Pos{X: x, Y: y}
			switch {
			case !m.Walkable(p):
				grid[y][x] = '#'
			case m.IsGoal(GroupTeamA, p):
				grid[y][x] = 'A'
			case m.IsGoal(GroupTeamB, p):
				grid[y][x] = 'B'
			default:
				grid[y][x] = '.'
			}
		}
	}
	for _, a := range s.Agents {
		if !a.Placed || !a.Available || !m.InBounds(a.Pos) {
			continue
		}
		grid[a.Pos.Y][a.Pos.X] = byte('0' + a.ID%10)
	}
	var b strings.Builder
	for _, row := range grid {
		b.Write(row)
		b.WriteByte('\n')
	}
	return b.String()
}
