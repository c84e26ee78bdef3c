package main

import (
	"io"
	"testing"

	"github.com/sc420/pygame-rl/engine/scenario"
	"github.com/sirupsen/logrus"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// TestRunEpisodeReplays verifies a seed fixes the whole episode.
func TestRunEpisodeReplays(t *testing.T) {
	sc, err := scenario.Builtin("predator_prey")
	if err != nil {
		t.Fatal(err)
	}
	pick, err := newController("random")
	if err != nil {
		t.Fatal(err)
	}
	a, err := runEpisode(sc, 9, pick, quiet())
	if err != nil {
		t.Fatal(err)
	}
	b, err := runEpisode(sc, 9, pick, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if !a.Terminal() {
		t.Fatal("episode did not reach a terminal state")
	}
	if a.Final.Digest() != b.Final.Digest() || len(a.Steps) != len(b.Steps) {
		t.Fatalf("replay diverged: %d vs %d steps", len(a.Steps), len(b.Steps))
	}
}

// TestRunBatch verifies the aggregate counts of a batch.
func TestRunBatch(t *testing.T) {
	sc, err := scenario.Builtin("soccer")
	if err != nil {
		t.Fatal(err)
	}
	pick, _ := newController("stand")
	sum, err := runBatch(sc, 100, 6, 3, pick, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Episodes != 6 {
		t.Fatalf("Episodes = %d, want 6", sum.Episodes)
	}
	wins := 0
	for _, w := range sum.Wins {
		wins += w
	}
	if wins > 6 {
		t.Fatalf("wins = %d over 6 episodes", wins)
	}
	if sum.MeanLength <= 0 || sum.MeanLength > 100 {
		t.Fatalf("MeanLength = %v", sum.MeanLength)
	}
	if sum.Captures != 0 {
		t.Fatalf("Captures = %d in soccer", sum.Captures)
	}
}

// TestNewControllerUnknown verifies controller names are checked.
func TestNewControllerUnknown(t *testing.T) {
	if _, err := newController("greedy"); err == nil {
		t.Fatal("newController accepted an unknown name")
	}
}
