package session

import (
	"time"

	"github.com/quizfund/hostsync/internal/wire"
)

// ActivityItem is one entry of the rolling host-console activity feed. Items
// decay: the periodic sweep removes them activityTTL after creation.
type ActivityItem struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	PlayerID  string    `json:"player_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	activityTTL   = 12 * time.Second
	sweepInterval = 5 * time.Second
)

// State is the full live view of a quiz session as seen by the host console.
// It is owned by exactly one writer, the Controller's run loop; readers get
// copies via Controller.Snapshot.
//
// Invariants: at most one of Prompt/Review is non-nil; at most one of the
// round and overall leaderboards is "showing"; Tiebreak is non-nil only
// while Room.Phase == PhaseTiebreaker.
type State struct {
	Room    RoomState
	Players []wire.Player

	// lastApplied is the most recent room notification accepted by
	// applyRoomState, kept separately from Room because interrupt events
	// (tiebreak onset) force the live phase without a room notification.
	lastApplied RoomState

	Prompt *Prompt
	Review *Review

	Leaderboard         []wire.LeaderboardEntry // session-scoped
	RoundLeaderboard    []wire.LeaderboardEntry
	ShowingRoundResults bool
	ReviewDone          bool

	// FoundItems tracks hidden-object progress across incremental updates.
	FoundItems []string

	Tiebreak *Tiebreak

	RoundStats map[int]wire.RoundStats
	FinalStats *wire.FinalStats

	Activity []ActivityItem
}

// setPrompt installs the live question, clearing any review. Prompt and
// Review are mutually exclusive.
func (s *State) setPrompt(p *Prompt) {
	s.Prompt = p
	s.Review = nil
}

// setReview installs the disclosure, clearing the live question.
func (s *State) setReview(r *Review) {
	s.Review = r
	s.Prompt = nil
}

// addActivity appends a feed item.
func (s *State) addActivity(item ActivityItem) {
	s.Activity = append(s.Activity, item)
}

// sweepActivity drops expired feed items.
func (s *State) sweepActivity(now time.Time) {
	if len(s.Activity) == 0 {
		return
	}
	kept := s.Activity[:0]
	for _, item := range s.Activity {
		if now.Sub(item.CreatedAt) < activityTTL {
			kept = append(kept, item)
		}
	}
	s.Activity = kept
}

// recordExtraUsage bumps the per-round counter for a strategic extra.
func (s *State) recordExtraUsage(round int, extra string) {
	if s.RoundStats == nil {
		s.RoundStats = make(map[int]wire.RoundStats)
	}
	stats, ok := s.RoundStats[round]
	if !ok {
		stats = wire.RoundStats{RoundNumber: round}
	}
	if stats.ExtrasUsed == nil {
		stats.ExtrasUsed = make(map[string]int)
	}
	stats.ExtrasUsed[extra]++
	s.RoundStats[round] = stats
}

// clone returns a deep-enough copy for read-only consumers. Slices and maps
// are copied; payload pointers are shared but treated as immutable once
// applied.
func (s *State) clone() State {
	out := *s
	out.Players = append([]wire.Player(nil), s.Players...)
	out.Leaderboard = append([]wire.LeaderboardEntry(nil), s.Leaderboard...)
	out.RoundLeaderboard = append([]wire.LeaderboardEntry(nil), s.RoundLeaderboard...)
	out.FoundItems = append([]string(nil), s.FoundItems...)
	out.Activity = append([]ActivityItem(nil), s.Activity...)
	if s.Tiebreak != nil {
		tb := *s.Tiebreak
		tb.Participants = append([]string(nil), s.Tiebreak.Participants...)
		tb.Winners = append([]string(nil), s.Tiebreak.Winners...)
		tb.StillTied = append([]string(nil), s.Tiebreak.StillTied...)
		out.Tiebreak = &tb
	}
	if s.RoundStats != nil {
		out.RoundStats = make(map[int]wire.RoundStats, len(s.RoundStats))
		for k, v := range s.RoundStats {
			out.RoundStats[k] = v
		}
	}
	return out
}
