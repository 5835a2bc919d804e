package session

import (
	"sort"

	"github.com/quizfund/hostsync/internal/wire"
)

// PrizeStructure mirrors the room account's prize distribution: up to three
// place percentages. The prize count is the number of configured places.
type PrizeStructure struct {
	FirstPlacePct  int `yaml:"first_place_pct"`
	SecondPlacePct int `yaml:"second_place_pct"`
	ThirdPlacePct  int `yaml:"third_place_pct"`
}

// PrizeCount returns how many leaderboard ranks carry a prize, falling back
// to 1 when the structure is absent or unparseable.
func (p PrizeStructure) PrizeCount() int {
	count := 0
	for _, pct := range []int{p.FirstPlacePct, p.SecondPlacePct, p.ThirdPlacePct} {
		if pct > 0 {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

// TieBoundary is a prize-boundary rank whose score is shared by more than
// one participant.
type TieBoundary struct {
	Rank      int      `json:"rank"`
	Score     int      `json:"score"`
	PlayerIDs []string `json:"player_ids"`
}

// PrizeTies finds every prize-boundary rank k in [1, prizeCount] where the
// k-th ranked score is shared by more than one participant. The entry list
// is sorted defensively (score-descending, stable) before boundaries are
// computed; boundaries past the end of the leaderboard are skipped.
func PrizeTies(entries []wire.LeaderboardEntry, prizeCount int) []TieBoundary {
	if len(entries) == 0 || prizeCount < 1 {
		return nil
	}

	sorted := append([]wire.LeaderboardEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	var boundaries []TieBoundary
	seen := make(map[int]bool) // scores already reported as a tie group
	for k := 1; k <= prizeCount && k <= len(sorted); k++ {
		score := sorted[k-1].Score
		if seen[score] {
			continue
		}
		var tied []string
		for _, e := range sorted {
			if e.Score == score {
				tied = append(tied, e.ID)
			}
		}
		if len(tied) > 1 {
			boundaries = append(boundaries, TieBoundary{Rank: k, Score: score, PlayerIDs: tied})
			seen[score] = true
		}
	}
	return boundaries
}

// ActiveTie surfaces the first (highest) boundary's tied group, the one the
// host is asked to resolve next.
func ActiveTie(entries []wire.LeaderboardEntry, prizeCount int) *TieBoundary {
	boundaries := PrizeTies(entries, prizeCount)
	if len(boundaries) == 0 {
		return nil
	}
	return &boundaries[0]
}
