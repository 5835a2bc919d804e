package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestAdapterPositionInference(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := NewAdapter(RoundConfig{QuestionsPerRound: map[RoundType]int{RoundStandard: 6}}, clock)

	first := a.Observe(RoundStandard, promptStart{StartTime: clock.Now()})
	if first != (Position{Index: 1, Total: 6}) {
		t.Fatalf("first question position = %+v, want (1,6)", first)
	}

	clock.Advance(30 * time.Second)
	second := a.Observe(RoundStandard, promptStart{StartTime: clock.Now()})
	if second != (Position{Index: 2, Total: 6}) {
		t.Fatalf("second question position = %+v, want (2,6)", second)
	}
}

func TestAdapterReplayHeuristic(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := NewAdapter(RoundConfig{QuestionsPerRound: map[RoundType]int{RoundStandard: 6}}, clock)

	a.Observe(RoundStandard, promptStart{StartTime: clock.Now()})
	clock.Advance(10 * time.Second)

	// A duplicate delivery carries the original start time, now well behind
	// the clock; the index must not advance.
	pos := a.Observe(RoundStandard, promptStart{StartTime: clock.Now().Add(-10 * time.Second)})
	if pos != (Position{Index: 1, Total: 6}) {
		t.Fatalf("replayed question advanced position to %+v", pos)
	}

	// An explicit recovery marker is honored even with a fresh start time.
	pos = a.Observe(RoundStandard, promptStart{StartTime: clock.Now(), IsRecovery: true})
	if pos != (Position{Index: 1, Total: 6}) {
		t.Fatalf("recovery-flagged question advanced position to %+v", pos)
	}
}

func TestAdapterExplicitPositionWins(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := NewAdapter(RoundConfig{QuestionsPerRound: map[RoundType]int{RoundStandard: 6}}, clock)

	pos := a.Observe(RoundStandard, promptStart{QuestionNumber: 4, TotalQuestions: 8})
	if pos != (Position{Index: 4, Total: 8}) {
		t.Fatalf("explicit position = %+v, want (4,8)", pos)
	}

	// Inference continues from the authoritative index.
	clock.Advance(time.Second)
	pos = a.Observe(RoundStandard, promptStart{StartTime: clock.Now()})
	if pos.Index != 5 {
		t.Fatalf("position after explicit sync = %+v, want index 5", pos)
	}
}

func TestAdapterDefaults(t *testing.T) {
	clock := clockwork.NewFakeClock()

	tests := []struct {
		name      string
		cfg       RoundConfig
		roundType RoundType
		want      Position
	}{
		{
			name:      "unconfigured round type falls back to six",
			cfg:       RoundConfig{},
			roundType: RoundSpeed,
			want:      Position{Index: 1, Total: 6},
		},
		{
			name:      "unknown round type degrades to position unknown",
			cfg:       RoundConfig{},
			roundType: "",
			want:      Position{Index: 1, Total: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.cfg, clock)
			got := a.Observe(tt.roundType, promptStart{StartTime: clock.Now()})
			if got != tt.want {
				t.Fatalf("Observe() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAdapterResetRound(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := NewAdapter(RoundConfig{QuestionsPerRound: map[RoundType]int{RoundStandard: 6}}, clock)

	a.Observe(RoundStandard, promptStart{StartTime: clock.Now()})
	a.Observe(RoundStandard, promptStart{StartTime: clock.Now()})
	a.ResetRound()

	pos := a.Observe(RoundStandard, promptStart{StartTime: clock.Now()})
	if pos.Index != 1 {
		t.Fatalf("position after round reset = %+v, want index 1", pos)
	}
}
