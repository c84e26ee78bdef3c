package agent

import (
	"errors"
	"testing"

	engine "github.com/sc420/pygame-rl/engine"
)

// TestDispatcherRoutes verifies every group reaches its policy.
func TestDispatcherRoutes(t *testing.T) {
	rules := quietRules()
	d := NewDispatcher(rules)
	reg := hunting(1, 1, 1,
		engine.Pos{X: 0, Y: 0}, engine.Pos{X: 2, Y: 0}, engine.Pos{X: 4, Y: 4})
	v := newView(openField(5, 5), reg, rules, 1)

	if act, err := d.Decide(v, 0); err != nil || act != engine.ActionEast {
		t.Fatalf("predator = %v, %v; want east", act, err)
	}
	if act, err := d.Decide(v, 1); err != nil || act != engine.ActionEast {
		t.Fatalf("prey = %v, %v; want east", act, err)
	}
	if act, err := d.Decide(v, 2); err != nil || act != engine.ActionStand {
		t.Fatalf("obstacle = %v, %v; want stand", act, err)
	}

	d.Set(engine.GroupObstacle, func(engine.View, int) (engine.Action, error) { return engine.ActionSouth, nil })
	if act, _ := d.Decide(v, 2); act != engine.ActionSouth {
		t.Fatalf("overridden obstacle = %v, want south", act)
	}

	var empty Dispatcher
	if _, err := empty.Decide(v, 0); !errors.Is(err, engine.ErrInvalidGroup) {
		t.Fatalf("empty dispatcher error = %v, want ErrInvalidGroup", err)
	}
}

// TestDispatcherLegacy verifies the team policy switch.
func TestDispatcherLegacy(t *testing.T) {
	rules := engine.DefaultSoccerRules()
	rules.TeamPolicy = engine.TeamPolicyLegacy
	gm := engine.MustParseLayout(engine.DefaultSoccerLayout)
	reg := soccerRegistry(
		engine.Pos{X: 5, Y: 2}, engine.Pos{X: 1, Y: 5},
		engine.Pos{X: 1, Y: 2}, engine.Pos{X: 1, Y: 0},
	)
	reg.SetCarrier(0)
	reg.SetMode(0, engine.ModeOffensive)
	v := newView(gm, reg, rules, 3)
	want, _ := Legacy(newView(gm, reg, rules, 3), 0)
	got, err := NewDispatcher(rules).Decide(v, 0)
	if err != nil || got != want {
		t.Fatalf("Decide = %v, %v; want %v", got, err, want)
	}
}

func runEpisode(t *testing.T, rules engine.Rules, layout []string, seed uint64) []string {
	t.Helper()
	env, err := engine.NewEnv(rules, engine.MustParseLayout(layout), NewDispatcher(rules))
	if err != nil {
		t.Fatalf("NewEnv: %v", err)
	}
	env.Seed(seed)
	obs, err := env.Reset()
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	digests := []string{obs.Next.Digest()}
	none := make([]engine.Action, len(env.Controlled()))
	for !env.IsTerminal() {
		obs, err = env.Step(none)
		if err != nil {
			t.Fatalf("seed %d t=%d: Step: %v", seed, env.TimeStep(), err)
		}
		digests = append(digests, obs.Next.Digest())
	}
	return digests
}

// TestEpisodesReplay verifies full AI-driven episodes of both variants are
// reproducible from the seed.
func TestEpisodesReplay(t *testing.T) {
	legacy := engine.DefaultSoccerRules()
	legacy.TeamPolicy = engine.TeamPolicyLegacy
	cases := []struct {
		name   string
		rules  engine.Rules
		layout []string
	}{
		{"soccer", engine.DefaultSoccerRules(), engine.DefaultSoccerLayout},
		{"soccer legacy", legacy, engine.DefaultSoccerLayout},
		{"predator prey", engine.DefaultPredatorPreyRules(), engine.DefaultPredatorPreyLayout},
	}
	for _, tc := range cases {
		for seed := uint64(0); seed < 5; seed++ {
			a := runEpisode(t, tc.rules, tc.layout, seed)
			b := runEpisode(t, tc.rules, tc.layout, seed)
			if len(a) != len(b) {
				t.Fatalf("%s seed %d: lengths %d and %d", tc.name, seed, len(a), len(b))
			}
			for i := range a {
				if a[i] != b[i] {
					t.Fatalf("%s seed %d: digest %d differs", tc.name, seed, i)
				}
			}
		}
	}
}
