// Command simrun plays scenarios headless. A single run writes the msgpack
// trajectory; a batch writes a JSON summary.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"

	engine "github.com/sc420/pygame-rl/engine"
	"github.com/sc420/pygame-rl/engine/scenario"
	"github.com/sc420/pygame-rl/engine/trajectory"
	"github.com/sirupsen/logrus"
)

func main() {
	var ref, out, ctrl, level string
	var seed uint64
	var n, workers int
	flag.StringVar(&ref, "scenario", "soccer", "builtin scenario name or YAML file")
	flag.Uint64Var(&seed, "seed", 12345, "seed of the first run")
	flag.IntVar(&n, "n", 1, "number of episodes")
	flag.IntVar(&workers, "workers", 8, "parallel workers for batches")
	flag.StringVar(&out, "out", "", "output file (default trajectory.msgpack or summary.json)")
	flag.StringVar(&ctrl, "controller", "stand", "controlled agent behaviour: stand or random")
	flag.StringVar(&level, "log-level", "warn", "log level")
	flag.Parse()

	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		fatal(err)
	}
	log.SetLevel(lvl)

	sc, err := scenario.Resolve(ref, "")
	if err != nil {
		fatal(err)
	}
	pick, err := newController(ctrl)
	if err != nil {
		fatal(err)
	}

	if n <= 1 {
		if out == "" {
			out = "trajectory.msgpack"
		}
		ep, err := runEpisode(sc, seed, pick, log)
		if err != nil {
			fatal(err)
		}
		f, err := os.Create(out)
		if err != nil {
			fatal(err)
		}
		if err := trajectory.Write(f, ep); err != nil {
			f.Close()
			fatal(err)
		}
		if err := f.Close(); err != nil {
			fatal(err)
		}
		s := trajectory.Summarize(ep)
		fmt.Printf("Single run finished. Steps=%d, Reward=%.1f, Winner=%q -> %s\n", s.Length, s.TotalReward, s.Winner, out)
		return
	}

	if out == "" {
		out = "summary.json"
	}
	sum, err := runBatch(sc, seed, n, workers, pick, log)
	if err != nil {
		fatal(err)
	}
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		fatal(err)
	}
	if err := os.WriteFile(out, b, 0644); err != nil {
		fatal(err)
	}
	fmt.Printf("Batch %d done -> %s\n", n, filepath.Base(out))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "simrun:", err)
	os.Exit(1)
}

// controller picks the external action of one controlled slot.
type controller func(rng *rand.Rand) engine.Action

func newController(name string) (controller, error) {
	switch name {
	case "stand":
		return func(*rand.Rand) engine.Action { return engine.ActionStand }, nil
	case "random":
		return func(rng *rand.Rand) engine.Action { return engine.Actions[rng.IntN(engine.NumActions)] }, nil
	}
	return nil, fmt.Errorf("unknown controller %q", name)
}

// runEpisode plays one episode of sc from reset to its terminal tick.
func runEpisode(sc *scenario.Scenario, seed uint64, pick controller, log logrus.FieldLogger) (trajectory.Episode, error) {
	env, err := sc.Build(engine.WithLogger(log.WithField("seed", seed)))
	if err != nil {
		return trajectory.Episode{}, err
	}
	env.Seed(seed)
	obs, err := env.Reset()
	if err != nil {
		return trajectory.Episode{}, err
	}
	rec, err := trajectory.NewRecorder(env, sc.Name, seed, obs)
	if err != nil {
		return trajectory.Episode{}, err
	}
	rng := rand.New(rand.NewPCG(seed, ^seed))
	actions := make([]engine.Action, len(env.Controlled()))
	for !env.IsTerminal() {
		for i := range actions {
			actions[i] = pick(rng)
		}
		obs, err = env.Step(actions)
		if err != nil {
			return rec.Episode(), err
		}
		if _, err := rec.Record(obs); err != nil {
			return rec.Episode(), err
		}
	}
	return rec.Episode(), nil
}

// batchSummary aggregates a batch of episodes.
type batchSummary struct {
	Scenario   string         `json:"scenario"`
	Episodes   int            `json:"episodes"`
	MeanReward float64        `json:"mean_reward"`
	MeanLength float64        `json:"mean_length"`
	Wins       map[string]int `json:"wins"`
	Captures   int            `json:"captures"`
	Seeds      []uint64       `json:"failed_seeds,omitempty"`
}

// runBatch plays n episodes with seeds seed..seed+n-1 on a worker pool.
func runBatch(sc *scenario.Scenario, seed uint64, n, workers int, pick controller, log logrus.FieldLogger) (batchSummary, error) {
	if workers < 1 {
		workers = 1
	}
	st := batchSummary{Scenario: sc.Name, Wins: map[string]int{}}
	var (
		mu        sync.Mutex
		sumReward float64
		sumLen    int
		firstErr  error
	)
	wg := sync.WaitGroup{}
	jobs := make(chan int, n)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				runSeed := seed + uint64(i)
				ep, err := runEpisode(sc, runSeed, pick, log)
				mu.Lock()
				if err != nil {
					log.WithError(err).WithField("seed", runSeed).Error("Episode failed.")
					st.Seeds = append(st.Seeds, runSeed)
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				s := trajectory.Summarize(ep)
				st.Episodes++
				sumReward += s.TotalReward
				sumLen += s.Length
				st.Captures += s.Captured
				if s.Winner != "" {
					st.Wins[s.Winner]++
				}
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if st.Episodes == 0 {
		return st, fmt.Errorf("no episode finished: %w", firstErr)
	}
	st.MeanReward = sumReward / float64(st.Episodes)
	st.MeanLength = float64(sumLen) / float64(st.Episodes)
	sort.Slice(st.Seeds, func(i, j int) bool { return st.Seeds[i] < st.Seeds[j] })
	return st, nil
}
