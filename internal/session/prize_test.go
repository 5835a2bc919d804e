package session

import (
	"reflect"
	"testing"

	"github.com/quizfund/hostsync/internal/wire"
)

func TestPrizeCount(t *testing.T) {
	tests := []struct {
		name string
		p    PrizeStructure
		want int
	}{
		{name: "empty falls back to one", p: PrizeStructure{}, want: 1},
		{name: "winner takes all", p: PrizeStructure{FirstPlacePct: 100}, want: 1},
		{name: "two places", p: PrizeStructure{FirstPlacePct: 70, SecondPlacePct: 30}, want: 2},
		{name: "three places", p: PrizeStructure{FirstPlacePct: 50, SecondPlacePct: 30, ThirdPlacePct: 20}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.PrizeCount(); got != tt.want {
				t.Fatalf("PrizeCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrizeTies(t *testing.T) {
	board := []wire.LeaderboardEntry{
		{ID: "A", Score: 10},
		{ID: "B", Score: 10},
		{ID: "C", Score: 8},
	}

	t.Run("tie at first boundary", func(t *testing.T) {
		ties := PrizeTies(board, 1)
		if len(ties) != 1 {
			t.Fatalf("got %d boundaries, want 1", len(ties))
		}
		if ties[0].Rank != 1 || !reflect.DeepEqual(ties[0].PlayerIDs, []string{"A", "B"}) {
			t.Fatalf("boundary = %+v, want rank 1 with [A B]", ties[0])
		}
	})

	t.Run("lone third place is no tie", func(t *testing.T) {
		ties := PrizeTies(board, 3)
		for _, tie := range ties {
			if tie.Rank == 3 {
				t.Fatalf("rank 3 reported as tie: %+v", tie)
			}
		}
		// The shared top score still surfaces once, not per rank.
		if len(ties) != 1 {
			t.Fatalf("got %d boundaries, want 1", len(ties))
		}
	})

	t.Run("boundary past leaderboard end is skipped", func(t *testing.T) {
		ties := PrizeTies(board[:2], 3)
		if len(ties) != 1 || ties[0].Rank != 1 {
			t.Fatalf("ties = %+v, want single rank-1 boundary", ties)
		}
	})

	t.Run("unsorted input is sorted defensively", func(t *testing.T) {
		shuffled := []wire.LeaderboardEntry{
			{ID: "C", Score: 8},
			{ID: "A", Score: 10},
			{ID: "B", Score: 10},
		}
		tie := ActiveTie(shuffled, 1)
		if tie == nil || !reflect.DeepEqual(tie.PlayerIDs, []string{"A", "B"}) {
			t.Fatalf("active tie = %+v, want [A B]", tie)
		}
	})

	t.Run("no tie yields nil", func(t *testing.T) {
		clean := []wire.LeaderboardEntry{
			{ID: "A", Score: 10},
			{ID: "B", Score: 9},
		}
		if tie := ActiveTie(clean, 2); tie != nil {
			t.Fatalf("unexpected tie %+v", tie)
		}
	})
}
