package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizfund/hostsync/internal/transport"
	"github.com/quizfund/hostsync/internal/wire"
)

// Config holds controller configuration.
type Config struct {
	RoomID   string
	Identity string
	Role     string
	Rounds   RoundConfig
	Prizes   PrizeStructure
}

// rejoinResult funnels a finished recovery handshake back into the run loop
// so all state mutation stays on one goroutine.
type rejoinResult struct {
	connID string
	ack    wire.RejoinAck
	err    error
}

// Controller is the top-level orchestrator: it owns the session state,
// applies inbound server events in arrival order, drives the recovery
// protocol on every connectivity change, and exposes command emitters plus
// derived read-only views to the presentation layer.
//
// All mutation happens on the Run goroutine. Commands are fire-and-forget
// publishes that mutate nothing locally; the server broadcasts the resulting
// state change back over the event channel.
type Controller struct {
	cfg   Config
	bus   transport.Bus
	clock clockwork.Clock

	adapter   *Adapter
	countdown *Countdown
	guard     *rejoinGuard

	rejoinCh chan rejoinResult

	// mu guards state and timeLeft. The run loop is the only writer; the
	// presentation layer reads through the view methods.
	mu       sync.RWMutex
	state    State
	timeLeft time.Duration

	// extrasSeen dedups penalty/restoration announcements: the same deltas
	// recur across the round, overall and final leaderboard views.
	extrasSeen map[string]bool
}

// NewController creates a controller for one room.
func NewController(cfg Config, bus transport.Bus, clock clockwork.Clock) *Controller {
	if cfg.Role == "" {
		cfg.Role = "host"
	}
	c := &Controller{
		cfg:        cfg,
		bus:        bus,
		clock:      clock,
		adapter:    NewAdapter(cfg.Rounds, clock),
		countdown:  NewCountdown(clock),
		guard:      newRejoinGuard(clock),
		rejoinCh:   make(chan rejoinResult, 4),
		extrasSeen: make(map[string]bool),
	}
	c.state.Room = RoomState{Phase: PhaseWaiting}
	return c
}

// Run processes events until the context is cancelled. It is the single
// writer of session state.
func (c *Controller) Run(ctx context.Context) error {
	log.Info().Str("room_id", c.cfg.RoomID).Msg("session controller started")

	tick := c.clock.NewTicker(TickInterval)
	defer tick.Stop()
	sweep := c.clock.NewTicker(sweepInterval)
	defer sweep.Stop()
	defer c.guard.cancel()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("room_id", c.cfg.RoomID).Msg("session controller shutting down")
			return nil

		case conn, ok := <-c.bus.ConnStates():
			if !ok {
				return nil
			}
			c.handleConnState(ctx, conn)

		case event, ok := <-c.bus.Events():
			if !ok {
				return nil
			}
			c.handleEvent(&event)

		case result := <-c.rejoinCh:
			c.handleRejoinResult(result)

		case <-tick.Chan():
			remaining, expired := c.countdown.Remaining()
			c.mu.Lock()
			c.timeLeft = remaining
			c.mu.Unlock()
			if expired {
				log.Debug().Str("room_id", c.cfg.RoomID).Msg("question time up")
			}

		case <-sweep.Chan():
			c.mu.Lock()
			c.state.sweepActivity(c.clock.Now())
			c.mu.Unlock()
		}
	}
}

// handleConnState reacts to transport connectivity transitions. Every fresh
// connection identity schedules a debounced rejoin; a drop cancels any
// pending one.
func (c *Controller) handleConnState(ctx context.Context, conn transport.ConnState) {
	if !conn.Connected {
		log.Warn().Str("room_id", c.cfg.RoomID).Msg("room channel disconnected")
		c.guard.cancel()
		return
	}

	c.guard.schedule(conn.ConnID, func(connID string) {
		c.issueRejoin(ctx, connID)
	})
}

// issueRejoin performs the recovery handshake off the run loop and funnels
// the acknowledgment back in.
func (c *Controller) issueRejoin(ctx context.Context, connID string) {
	req := wire.RejoinRequest{RoomID: c.cfg.RoomID, Identity: c.cfg.Identity, Role: c.cfg.Role}
	var ack wire.RejoinAck
	err := c.bus.Request(ctx, wire.RejoinSubject(c.cfg.RoomID), req, &ack)

	select {
	case c.rejoinCh <- rejoinResult{connID: connID, ack: ack, err: err}:
	case <-ctx.Done():
	}
}

// handleRejoinResult applies a recovery snapshot, or releases the join guard
// so a later connectivity change can retry. No partial hydration is applied
// from a failed acknowledgment.
func (c *Controller) handleRejoinResult(result rejoinResult) {
	if result.err != nil {
		log.Warn().Err(result.err).Str("room_id", c.cfg.RoomID).Msg("rejoin request failed")
		c.guard.release(result.connID)
		return
	}
	if !result.ack.OK {
		log.Warn().Str("room_id", c.cfg.RoomID).Msg("rejoin rejected by server")
		c.guard.release(result.connID)
		return
	}
	if result.ack.Snap == nil {
		log.Warn().Str("room_id", c.cfg.RoomID).Msg("rejoin acknowledged without snapshot")
		c.guard.release(result.connID)
		return
	}

	c.mu.Lock()
	c.state.hydrate(result.ack.Snap, c.adapter, c.countdown)
	c.mu.Unlock()

	log.Info().
		Str("room_id", c.cfg.RoomID).
		Str("phase", string(c.state.Room.Phase)).
		Int("round", c.state.Room.CurrentRound).
		Msg("session state hydrated from recovery snapshot")
}

// handleEvent folds one server notification into the session state.
func (c *Controller) handleEvent(event *wire.Event) {
	payload, err := wire.ParsePayload(event)
	if err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Msg("malformed event payload, skipping")
		return
	}
	if payload == nil {
		log.Debug().Str("type", string(event.Type)).Msg("unknown event type, skipping")
		return
	}

	// Every server timestamp is a drift observation.
	c.countdown.SyncServerTime(event.Timestamp)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch p := payload.(type) {
	case *wire.RoomStatePayload:
		c.applyRoom(p)

	case *wire.QuestionPayload:
		c.applyQuestion(p)

	case *wire.ReviewPayload:
		c.state.setReview(&Review{Kind: c.questionKind(), Question: p})
		c.countdown.Disarm()

	case *wire.LeaderboardPayload:
		c.applyLeaderboard(event.Type, p)

	case *wire.ReviewCompletePayload:
		c.state.ReviewDone = true

	case *wire.HiddenObjectStartPayload:
		c.state.setPrompt(&Prompt{Kind: RoundHiddenObject, HiddenObject: p, Position: UnknownPosition()})
		c.state.FoundItems = append([]string(nil), p.FoundIDs...)
		c.countdown.ArmRemaining(time.Duration(p.RemainingSec) * time.Second)

	case *wire.HiddenObjectReviewPayload:
		c.state.setReview(&Review{Kind: RoundHiddenObject, HiddenObject: p})
		c.state.FoundItems = append([]string(nil), p.FoundIDs...)
		c.countdown.Disarm()

	case *wire.OrderImageQuestionPayload:
		pos := c.adapter.Observe(RoundOrderImage, promptStart{
			StartTime:      p.QuestionStartTime,
			QuestionNumber: p.QuestionNumber,
			TotalQuestions: p.TotalQuestions,
			IsRecovery:     p.IsRecovery,
		})
		deadline := p.QuestionStartTime.Add(time.Duration(p.TimeLimitSec) * time.Second)
		c.state.setPrompt(&Prompt{Kind: RoundOrderImage, OrderImage: p, Position: pos, Deadline: deadline})
		c.countdown.Arm(deadline)

	case *wire.OrderImageReviewPayload:
		c.state.setReview(&Review{Kind: RoundOrderImage, OrderImage: p})
		c.countdown.Disarm()

	case *wire.RoundTimeRemainingPayload:
		c.countdown.ArmRemaining(time.Duration(p.RemainingSec) * time.Second)

	case *wire.TiebreakStartPayload:
		// Tie onset is an out-of-band interrupt: the phase is forced into
		// tiebreaker regardless of where the session was.
		c.state.Tiebreak = newTiebreak(p.Participants)
		c.state.Room.Phase = PhaseTiebreaker
		c.addActivity("tiebreak", fmt.Sprintf("tiebreaker started with %d players", len(p.Participants)), "")

	case *wire.TiebreakQuestionPayload:
		if c.state.Tiebreak == nil {
			c.state.Tiebreak = newTiebreak(nil)
		}
		c.state.Room.Phase = PhaseTiebreaker
		c.state.Tiebreak.applyQuestion(p)
		c.countdown.Arm(p.QuestionStartTime.Add(time.Duration(p.TimeLimitSec) * time.Second))

	case *wire.TiebreakReviewPayload:
		if c.state.Tiebreak != nil {
			c.state.Tiebreak.applyReview(p)
			c.countdown.Disarm()
		}

	case *wire.TiebreakTieAgainPayload:
		if c.state.Tiebreak != nil {
			c.state.Tiebreak.applyTieAgain(p)
		}

	case *wire.TiebreakResultPayload:
		if c.state.Tiebreak != nil {
			c.state.Tiebreak.applyResult(p)
			c.countdown.Disarm()
		}

	case *wire.PlayerListPayload:
		c.applyRoster(p)
	}
}

// applyRoom runs the change-detection contract for room_state notifications.
func (c *Controller) applyRoom(p *wire.RoomStatePayload) {
	prevRound := c.state.Room.CurrentRound
	next := roomStateFromWire(p)
	if !c.state.applyRoomState(next) {
		log.Debug().Str("room_id", c.cfg.RoomID).Msg("redundant room state, ignoring")
		return
	}
	if next.CurrentRound != prevRound {
		c.adapter.ResetRound()
	}
	log.Info().
		Str("room_id", c.cfg.RoomID).
		Str("phase", string(next.Phase)).
		Int("round", next.CurrentRound).
		Str("round_type", string(next.RoundType)).
		Msg("room state applied")
}

func (c *Controller) applyQuestion(p *wire.QuestionPayload) {
	kind := c.questionKind()
	pos := c.adapter.Observe(kind, promptStart{
		StartTime:      p.QuestionStartTime,
		QuestionNumber: p.QuestionNumber,
		TotalQuestions: p.TotalQuestions,
		IsRecovery:     p.IsRecovery,
	})
	deadline := p.QuestionStartTime.Add(time.Duration(p.TimeLimitSec) * time.Second)
	c.state.setPrompt(&Prompt{Kind: kind, Question: p, Position: pos, Deadline: deadline})
	c.countdown.Arm(deadline)
}

// questionKind maps the current round type onto the prompt slot used by the
// generic question/review events. Speed rounds share the standard payload
// shape.
func (c *Controller) questionKind() RoundType {
	if c.state.Room.RoundType == RoundSpeed {
		return RoundSpeed
	}
	return RoundStandard
}

func (c *Controller) applyLeaderboard(eventType wire.EventType, p *wire.LeaderboardPayload) {
	switch eventType {
	case wire.EventRoundLeaderboard:
		c.state.RoundLeaderboard = p.Entries
		c.state.ShowingRoundResults = true
	default:
		c.state.Leaderboard = p.Entries
		c.state.ShowingRoundResults = false
	}

	// Penalty/restoration deltas are worth a feed item and a stats bump,
	// but only once: the same entries recur across leaderboard views.
	for _, entry := range p.Entries {
		if entry.Penalty > 0 {
			c.recordExtra("penalty", entry, entry.Penalty,
				fmt.Sprintf("%s lost %d points", entry.Name, entry.Penalty))
		}
		if entry.Restoration > 0 {
			c.recordExtra("restoration", entry, entry.Restoration,
				fmt.Sprintf("%s recovered %d points", entry.Name, entry.Restoration))
		}
	}
}

func (c *Controller) recordExtra(kind string, entry wire.LeaderboardEntry, delta int, message string) {
	key := fmt.Sprintf("%d|%s|%s|%d", c.state.Room.CurrentRound, entry.ID, kind, delta)
	if c.extrasSeen[key] {
		return
	}
	c.extrasSeen[key] = true
	c.state.recordExtraUsage(c.state.Room.CurrentRound, kind)
	c.addActivity(kind, message, entry.ID)
}

func (c *Controller) applyRoster(p *wire.PlayerListPayload) {
	known := make(map[string]bool, len(c.state.Players))
	for _, player := range c.state.Players {
		known[player.ID] = true
	}
	for _, player := range p.Players {
		if !known[player.ID] {
			c.addActivity("join", fmt.Sprintf("%s joined", player.Name), player.ID)
		}
	}
	c.state.Players = p.Players
	c.state.Room.TotalPlayers = len(p.Players)
}

func (c *Controller) addActivity(kind, message, playerID string) {
	c.state.addActivity(ActivityItem{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		PlayerID:  playerID,
		CreatedAt: c.clock.Now(),
	})
}

// --- Command emitters -----------------------------------------------------

// send publishes a host command. Commands never mutate local state; the
// server remains the single source of truth.
func (c *Controller) send(ctx context.Context, cmd wire.Command) error {
	payload := wire.CommandPayload{RoomID: c.cfg.RoomID}
	if err := c.bus.Publish(ctx, wire.CommandSubject(c.cfg.RoomID, cmd), payload); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	log.Debug().Str("room_id", c.cfg.RoomID).Str("command", string(cmd)).Msg("command sent")
	return nil
}

// StartRound asks the server to begin the next round.
func (c *Controller) StartRound(ctx context.Context) error {
	return c.send(ctx, wire.CmdStartRound)
}

// NextReview advances the post-round review by one question.
func (c *Controller) NextReview(ctx context.Context) error {
	return c.send(ctx, wire.CmdNextReview)
}

// ShowRoundResults reveals the round-scoped leaderboard.
func (c *Controller) ShowRoundResults(ctx context.Context) error {
	return c.send(ctx, wire.CmdShowRoundResults)
}

// ContinueToOverallLeaderboard switches to the session-scoped leaderboard.
func (c *Controller) ContinueToOverallLeaderboard(ctx context.Context) error {
	return c.send(ctx, wire.CmdContinueToOverallLeaderboard)
}

// NextRoundOrEnd advances to the next round or ends the session.
func (c *Controller) NextRoundOrEnd(ctx context.Context) error {
	return c.send(ctx, wire.CmdNextRoundOrEnd)
}

// EndQuizCleanup tears the session down on the server.
func (c *Controller) EndQuizCleanup(ctx context.Context) error {
	return c.send(ctx, wire.CmdEndQuizCleanup)
}

// --- Derived read-only views ----------------------------------------------

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// TimeRemaining returns the smoothed countdown value from the last tick.
func (c *Controller) TimeRemaining() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeLeft
}

// RoomID returns the controlled room's identifier.
func (c *Controller) RoomID() string { return c.cfg.RoomID }

// ActiveRoundType returns the current round type.
func (c *Controller) ActiveRoundType() RoundType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Room.RoundType
}

// IsLastQuestion reports whether the live question is the round's last. The
// degraded unknown position reports false: without round configuration there
// is no basis to call any question the last one.
func (c *Controller) IsLastQuestion() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Prompt == nil {
		return false
	}
	pos := c.state.Prompt.Position
	if pos == UnknownPosition() {
		return false
	}
	return pos.Total >= 1 && pos.Index >= pos.Total
}

// PrizeTie surfaces the first prize-boundary tie on the session leaderboard,
// or nil when no tie needs resolving.
func (c *Controller) PrizeTie() *TieBoundary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ActiveTie(c.state.Leaderboard, c.cfg.Prizes.PrizeCount())
}
