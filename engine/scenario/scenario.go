// Package scenario loads episode configurations from YAML and builds ready
// environments from them. A handful of scenarios are compiled in.
package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	engine "github.com/sc420/pygame-rl/engine"
	"github.com/sc420/pygame-rl/engine/agent"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// ErrUnknown is returned when a name is neither a builtin nor a readable file.
var ErrUnknown = errors.New("scenario: unknown scenario")

// Scenario is the YAML form of an episode configuration. Unset tuning fields
// keep the variant defaults.
type Scenario struct {
	Name       string             `yaml:"name"`
	Variant    string             `yaml:"variant"`
	Layout     []string           `yaml:"layout"`
	Groups     []engine.GroupSpec `yaml:"groups"`
	Controlled Controlled         `yaml:"controlled"`

	TimeLimit            *int         `yaml:"time_limit"`
	FrameSkip            *int         `yaml:"frame_skip"`
	MaxResolveIterations *int         `yaml:"max_resolve_iterations"`
	ObservationRadius    *float64     `yaml:"observation_radius"`
	MinSpawnSeparation   *float64     `yaml:"min_spawn_separation"`
	DefensiveProbability *float64     `yaml:"defensive_probability"`
	Defensiveness        *float64     `yaml:"defensiveness"`
	TeamPolicy           string       `yaml:"team_policy"`
	ActionWeights        []float64    `yaml:"action_weights"`
	Noise                *Noise       `yaml:"noise"`
	SearchCosts          *SearchCosts `yaml:"search_costs"`
	Seed                 uint64       `yaml:"seed"`
}

// Controlled names the agents that take external actions.
type Controlled struct {
	Group engine.Group `yaml:"group"`
	Count *int         `yaml:"count"`
}

type Noise struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stddev"`
}

// SearchCosts are the per-direction predator search costs.
type SearchCosts struct {
	East  float64 `yaml:"east"`
	North float64 `yaml:"north"`
	West  float64 `yaml:"west"`
	South float64 `yaml:"south"`
}

// Parse decodes a scenario document. Unknown keys are rejected.
func Parse(b []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("scenario: decode: %w", err)
	}
	return &s, nil
}

// Load reads a scenario file.
func Load(file string) (*Scenario, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	return s, nil
}

// Builtin returns one of the compiled-in scenarios.
func Builtin(name string) (*Scenario, error) {
	b, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return Parse(b)
}

// BuiltinNames lists the compiled-in scenarios in sorted order.
func BuiltinNames() []string {
	entries, _ := builtinFS.ReadDir("builtin")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Resolve returns the builtin called ref, or loads ref as a file path. When
// dir is not empty, ref is also looked up as dir/ref.yaml first.
func Resolve(ref, dir string) (*Scenario, error) {
	if s, err := Builtin(ref); err == nil {
		return s, nil
	}
	if dir != "" && !strings.ContainsAny(ref, `/\`) {
		candidate := filepath.Join(dir, ref+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}
	if _, err := os.Stat(ref); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, ref)
	}
	return Load(ref)
}

// ResolveNamed returns the builtin called name, or dir/name.yaml. Unlike
// Resolve it never treats name as a path, so names from untrusted callers
// cannot reach files outside dir.
func ResolveNamed(name, dir string) (*Scenario, error) {
	if s, err := Builtin(name); err == nil {
		return s, nil
	}
	if name == "" || dir == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	candidate := filepath.Join(dir, name+".yaml")
	if _, err := os.Stat(candidate); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return Load(candidate)
}

// ---------------------------------------------------------------------------
// Building
// ---------------------------------------------------------------------------

// Rules converts the scenario into validated kernel rules.
func (s *Scenario) Rules() (engine.Rules, error) {
	variant, err := engine.ParseVariant(s.Variant)
	if err != nil {
		return engine.Rules{}, err
	}
	r := engine.DefaultSoccerRules()
	if variant == engine.VariantPredatorPrey {
		r = engine.DefaultPredatorPreyRules()
	}
	if len(s.Groups) > 0 {
		r.Groups = append([]engine.GroupSpec(nil), s.Groups...)
	}
	if s.Controlled.Count != nil {
		r.ControlledGroup = s.Controlled.Group
		r.ControlledCount = *s.Controlled.Count
	}
	setInt(&r.TimeLimit, s.TimeLimit)
	setInt(&r.FrameSkip, s.FrameSkip)
	setInt(&r.MaxResolveIterations, s.MaxResolveIterations)
	setFloat(&r.ObservationRadius, s.ObservationRadius)
	setFloat(&r.MinSpawnSeparation, s.MinSpawnSeparation)
	setFloat(&r.DefensiveProbability, s.DefensiveProbability)
	setFloat(&r.Defensiveness, s.Defensiveness)
	if s.TeamPolicy != "" {
		if r.TeamPolicy, err = engine.ParseTeamPolicy(s.TeamPolicy); err != nil {
			return engine.Rules{}, err
		}
	}
	if s.ActionWeights != nil {
		if len(s.ActionWeights) != engine.NumActions {
			return engine.Rules{}, fmt.Errorf("%w: %d action weights, want %d",
				engine.ErrInvalidRules, len(s.ActionWeights), engine.NumActions)
		}
		copy(r.ActionWeights[:], s.ActionWeights)
	}
	if s.Noise != nil {
		r.NoiseMean, r.NoiseStdDev = s.Noise.Mean, s.Noise.StdDev
	}
	if c := s.SearchCosts; c != nil {
		r.SearchCosts = [4]float64{c.East, c.North, c.West, c.South}
	}
	r.Seed = s.Seed
	if err := r.Validate(); err != nil {
		return engine.Rules{}, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return r, nil
}

// Map parses the layout, falling back to the variant's default.
func (s *Scenario) Map() (*engine.GridMap, error) {
	rows := s.Layout
	if len(rows) == 0 {
		rows = engine.DefaultSoccerLayout
		if v, _ := engine.ParseVariant(s.Variant); v == engine.VariantPredatorPrey {
			rows = engine.DefaultPredatorPreyLayout
		}
	}
	return engine.ParseLayout(rows)
}

// Build returns an environment driven by the standard agent policies. It
// still needs a Reset before the first Step.
func (s *Scenario) Build(opts ...engine.Option) (*engine.Env, error) {
	rules, err := s.Rules()
	if err != nil {
		return nil, err
	}
	gm, err := s.Map()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return engine.NewEnv(rules, gm, agent.NewDispatcher(rules), opts...)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
