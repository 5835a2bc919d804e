package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizfund/hostsync/internal/wire"
)

// RejoinDebounce delays the rejoin request after a connectivity change to
// let the transport settle.
const RejoinDebounce = 100 * time.Millisecond

// rejoinGuard serializes the recovery handshake: at most one rejoin may be
// pending per connection identity, a new connection identity requires a new
// rejoin even for the same room, and a failed acknowledgment releases the
// guard so the next connectivity change can retry.
type rejoinGuard struct {
	clock clockwork.Clock

	mu     sync.Mutex
	connID string // identity the current guard was taken for
	taken  bool
	timer  clockwork.Timer
}

func newRejoinGuard(clock clockwork.Clock) *rejoinGuard {
	return &rejoinGuard{clock: clock}
}

// schedule arms the debounced rejoin for a connection identity. It is a
// no-op when the guard is already taken for the same identity; a different
// identity cancels any in-flight debounce and re-arms. fire runs on the
// clock's timer goroutine once the debounce elapses.
func (g *rejoinGuard) schedule(connID string, fire func(connID string)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.taken && g.connID == connID {
		log.Debug().Str("conn_id", connID).Msg("rejoin already pending for this connection, skipping")
		return
	}

	g.cancelLocked()
	g.connID = connID
	g.taken = true
	g.timer = g.clock.AfterFunc(RejoinDebounce, func() {
		fire(connID)
	})
	log.Debug().Str("conn_id", connID).Dur("debounce", RejoinDebounce).Msg("rejoin scheduled")
}

// release frees the guard for the given identity, typically after an
// acknowledgment with ok:false. Releases for stale identities are ignored.
func (g *rejoinGuard) release(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.connID != connID {
		return
	}
	g.taken = false
}

// cancel drops any pending debounce and frees the guard, used when the
// connection drops or the controller shuts down.
func (g *rejoinGuard) cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelLocked()
	g.taken = false
	g.connID = ""
}

func (g *rejoinGuard) cancelLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// hydrate rebuilds the entire session state from a recovery snapshot in one
// atomic pass, in fixed order: room basics, in-flight prompt/review by round
// type, per-round-type auxiliary state, statistics, tiebreaker. Each step
// replaces state wholesale, so applying the same snapshot twice observably
// equals applying it once.
func (s *State) hydrate(snap *wire.RecoverySnapshot, adapter *Adapter, countdown *Countdown) {
	// 1. Room basics and roster. The snapshot's room is also the duplicate
	// baseline: a re-broadcast of the same notification after recovery must
	// be a no-op.
	s.Room = roomStateFromWire(&snap.Room)
	s.lastApplied = s.Room
	s.Players = append([]wire.Player(nil), snap.Players...)

	// 2. In-flight question or review, keyed by round type.
	s.Prompt = nil
	s.Review = nil
	countdown.Disarm()
	switch {
	case snap.Question != nil:
		q := snap.Question
		adapter.SyncIndex(q.QuestionNumber)
		pos := adapter.Observe(s.Room.RoundType, promptStart{
			StartTime:      q.QuestionStartTime,
			QuestionNumber: q.QuestionNumber,
			TotalQuestions: q.TotalQuestions,
			IsRecovery:     true,
		})
		deadline := q.QuestionStartTime.Add(time.Duration(q.TimeLimitSec) * time.Second)
		s.setPrompt(&Prompt{Kind: s.Room.RoundType, Question: q, Position: pos, Deadline: deadline})
		countdown.Arm(deadline)
	case snap.Review != nil:
		s.setReview(&Review{Kind: s.Room.RoundType, Question: snap.Review})
	case snap.HiddenObject != nil:
		h := snap.HiddenObject
		s.setPrompt(&Prompt{Kind: RoundHiddenObject, HiddenObject: h, Position: UnknownPosition()})
		countdown.ArmRemaining(time.Duration(h.RemainingSec) * time.Second)
	case snap.HiddenObjectReview != nil:
		s.setReview(&Review{Kind: RoundHiddenObject, HiddenObject: snap.HiddenObjectReview})
	case snap.OrderImageQuestion != nil:
		q := snap.OrderImageQuestion
		adapter.SyncIndex(q.QuestionNumber)
		pos := adapter.Observe(RoundOrderImage, promptStart{
			StartTime:      q.QuestionStartTime,
			QuestionNumber: q.QuestionNumber,
			TotalQuestions: q.TotalQuestions,
			IsRecovery:     true,
		})
		deadline := q.QuestionStartTime.Add(time.Duration(q.TimeLimitSec) * time.Second)
		s.setPrompt(&Prompt{Kind: RoundOrderImage, OrderImage: q, Position: pos, Deadline: deadline})
		countdown.Arm(deadline)
	case snap.OrderImageReview != nil:
		s.setReview(&Review{Kind: RoundOrderImage, OrderImage: snap.OrderImageReview})
	}

	// 3. Per-round-type auxiliary state.
	if snap.HiddenObject != nil {
		s.FoundItems = append([]string(nil), snap.HiddenObject.FoundIDs...)
	} else {
		s.FoundItems = nil
	}
	s.Leaderboard = append([]wire.LeaderboardEntry(nil), snap.Leaderboard...)
	s.RoundLeaderboard = append([]wire.LeaderboardEntry(nil), snap.RoundLeaderboard...)
	s.ShowingRoundResults = snap.ShowingRoundResults
	s.ReviewDone = snap.ReviewDone

	// 4. Final and round statistics.
	s.FinalStats = snap.FinalStats
	if snap.RoundStats != nil {
		s.RoundStats = make(map[int]wire.RoundStats, len(snap.RoundStats))
		for k, v := range snap.RoundStats {
			s.RoundStats[k] = v
		}
	} else {
		s.RoundStats = nil
	}

	// 5. Tiebreaker sub-state takes precedence for the phase: a non-empty
	// tiebreaker forces the session into the tiebreaker phase regardless of
	// what the room snapshot carried.
	s.Tiebreak = tiebreakFromSnapshot(snap.Tiebreak)
	if s.Tiebreak != nil {
		s.Room.Phase = PhaseTiebreaker
		if s.Tiebreak.Question != nil {
			q := s.Tiebreak.Question
			countdown.Arm(q.QuestionStartTime.Add(time.Duration(q.TimeLimitSec) * time.Second))
		}
	}
}
