package session

import "github.com/quizfund/hostsync/internal/wire"

// Phase is the top-level discrete state of a quiz session.
type Phase string

const (
	PhaseWaiting            Phase = "waiting"
	PhaseLaunched           Phase = "launched"
	PhaseAsking             Phase = "asking"
	PhaseReviewing          Phase = "reviewing"
	PhaseLeaderboard        Phase = "leaderboard"
	PhaseTiebreaker         Phase = "tiebreaker"
	PhaseComplete           Phase = "complete"
	PhaseDistributingPrizes Phase = "distributing_prizes"
)

// Terminal reports whether the engine has nothing further to drive. Prize
// distribution runs as an external collaborator after complete.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseDistributingPrizes
}

// RoundType identifies one of the structurally distinct question formats.
type RoundType string

const (
	RoundStandard     RoundType = "standard"
	RoundSpeed        RoundType = "speed_round"
	RoundHiddenObject RoundType = "hidden_object"
	RoundOrderImage   RoundType = "order_image"
)

// RoomState is the observable top-level session snapshot. It is a flat
// comparable struct so change detection is a single == comparison; it is
// replaced wholesale on every applied update, never partially mutated.
type RoomState struct {
	CurrentRound         int       `json:"current_round"`
	TotalRounds          int       `json:"total_rounds"`
	RoundType            RoundType `json:"round_type"`
	Phase                Phase     `json:"phase"`
	QuestionsThisRound   int       `json:"questions_this_round,omitempty"`
	TotalPlayers         int       `json:"total_players,omitempty"`
	CurrentReviewIndex   int       `json:"current_review_index,omitempty"`
	TotalReviewQuestions int       `json:"total_review_questions,omitempty"`
}

// roomStateFromWire converts the wire payload into the comparable snapshot.
func roomStateFromWire(p *wire.RoomStatePayload) RoomState {
	return RoomState{
		CurrentRound:         p.CurrentRound,
		TotalRounds:          p.TotalRounds,
		RoundType:            RoundType(p.RoundTypeName),
		Phase:                Phase(p.Phase),
		QuestionsThisRound:   p.QuestionsThisRound,
		TotalPlayers:         p.TotalPlayers,
		CurrentReviewIndex:   p.CurrentReviewIndex,
		TotalReviewQuestions: p.TotalReviewQuestions,
	}
}

// applyRoomState applies an authoritative room snapshot if it differs from
// the last-applied one. Redundant notifications are a no-op so derived state
// (round-results visibility, review-complete flag, a live tiebreaker) is
// never cleared by a duplicate delivery. The comparison baseline is the
// last-applied notification, not the live room: interrupt events mutate the
// live phase in place, and that must not make an exact duplicate look new.
// Returns whether observable state changed.
func (s *State) applyRoomState(next RoomState) bool {
	if next == s.lastApplied {
		return false
	}

	prev := s.Room
	s.lastApplied = next
	s.Room = next

	if prev.Phase == PhaseLeaderboard && next.Phase != PhaseLeaderboard {
		s.ShowingRoundResults = false
		s.RoundLeaderboard = nil
	}
	if prev.Phase == PhaseReviewing && next.Phase != PhaseReviewing {
		s.ReviewDone = false
	}
	// Tiebreaker sub-state lives only inside the tiebreaker phase.
	if next.Phase != PhaseTiebreaker {
		s.Tiebreak = nil
	}
	return true
}
