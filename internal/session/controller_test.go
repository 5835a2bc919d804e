package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizfund/hostsync/internal/transport"
	"github.com/quizfund/hostsync/internal/wire"
)

// fakeBus captures publishes and serves canned rejoin acknowledgments.
type fakeBus struct {
	events chan wire.Event
	states chan transport.ConnState

	mu        sync.Mutex
	published []string
	requests  []string
	ack       wire.RejoinAck
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		events: make(chan wire.Event, 16),
		states: make(chan transport.ConnState, 4),
	}
}

func (f *fakeBus) Events() <-chan wire.Event              { return f.events }
func (f *fakeBus) ConnStates() <-chan transport.ConnState { return f.states }
func (f *fakeBus) Close() error                           { return nil }

func (f *fakeBus) Publish(ctx context.Context, subject string, v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, subject)
	return nil
}

func (f *fakeBus) Request(ctx context.Context, subject string, v interface{}, out interface{}) error {
	f.mu.Lock()
	f.requests = append(f.requests, subject)
	ack := f.ack
	f.mu.Unlock()
	data, err := json.Marshal(ack)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeBus) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func testController(bus transport.Bus, clock clockwork.Clock) *Controller {
	return NewController(Config{
		RoomID:   "room-1",
		Identity: "host-1",
		Rounds:   RoundConfig{QuestionsPerRound: map[RoundType]int{RoundStandard: 6}},
		Prizes:   PrizeStructure{FirstPlacePct: 100},
	}, bus, clock)
}

func event(t *testing.T, eventType wire.EventType, payload interface{}, ts time.Time) *wire.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", eventType, err)
	}
	return &wire.Event{ID: "ev", RoomID: "room-1", Type: eventType, Timestamp: ts, Data: data}
}

func TestQuestionAndReviewAreMutuallyExclusive(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := testController(newFakeBus(), clock)

	c.handleEvent(event(t, wire.EventRoomState, &wire.RoomStatePayload{
		CurrentRound: 1, TotalRounds: 3, RoundTypeName: string(RoundStandard), Phase: string(PhaseAsking),
	}, clock.Now()))

	c.handleEvent(event(t, wire.EventQuestion, &wire.QuestionPayload{
		ID: "q1", Text: "?", TimeLimitSec: 30, QuestionStartTime: clock.Now(),
	}, clock.Now()))
	if c.state.Prompt == nil || c.state.Review != nil {
		t.Fatalf("after question: prompt=%v review=%v", c.state.Prompt, c.state.Review)
	}

	c.handleEvent(event(t, wire.EventHostReviewQuestion, &wire.ReviewPayload{
		QuestionID: "q1", CorrectAnswer: "42",
	}, clock.Now()))
	if c.state.Review == nil || c.state.Prompt != nil {
		t.Fatalf("after review: prompt=%v review=%v", c.state.Prompt, c.state.Review)
	}

	c.handleEvent(event(t, wire.EventQuestion, &wire.QuestionPayload{
		ID: "q2", Text: "?", TimeLimitSec: 30, QuestionStartTime: clock.Now(),
	}, clock.Now()))
	if c.state.Prompt == nil || c.state.Review != nil {
		t.Fatal("next question did not supersede review")
	}
	if c.state.Prompt.Position.Index != 2 {
		t.Fatalf("second question position = %+v", c.state.Prompt.Position)
	}
}

func TestRedundantRoomStatePreservesDerivedState(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := testController(newFakeBus(), clock)

	board := &wire.RoomStatePayload{
		CurrentRound: 1, TotalRounds: 3, RoundTypeName: string(RoundStandard), Phase: string(PhaseLeaderboard),
	}
	c.handleEvent(event(t, wire.EventRoomState, board, clock.Now()))
	c.handleEvent(event(t, wire.EventRoundLeaderboard, &wire.LeaderboardPayload{
		Entries: []wire.LeaderboardEntry{{ID: "A", Name: "Ada", Score: 5}},
	}, clock.Now()))

	if !c.state.ShowingRoundResults {
		t.Fatal("round leaderboard did not set round-results visibility")
	}

	// Same room state again: must be a no-op, not a reset.
	c.handleEvent(event(t, wire.EventRoomState, board, clock.Now()))
	if !c.state.ShowingRoundResults || c.state.RoundLeaderboard == nil {
		t.Fatal("redundant room state cleared round-results visibility")
	}
}

func TestTiebreakStartOverridesPhase(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := testController(newFakeBus(), clock)

	c.handleEvent(event(t, wire.EventRoomState, &wire.RoomStatePayload{
		CurrentRound: 3, TotalRounds: 3, RoundTypeName: string(RoundStandard), Phase: string(PhaseLeaderboard),
	}, clock.Now()))

	c.handleEvent(event(t, wire.EventTiebreakStart, &wire.TiebreakStartPayload{
		Participants: []string{"A", "B"},
	}, clock.Now()))

	if c.state.Room.Phase != PhaseTiebreaker {
		t.Fatalf("phase = %s, want tiebreaker interrupt", c.state.Room.Phase)
	}
	if c.state.Tiebreak == nil || len(c.state.Tiebreak.Participants) != 2 {
		t.Fatalf("tiebreak state = %+v", c.state.Tiebreak)
	}

	// Server returning to leaderboard clears the sub-state.
	c.handleEvent(event(t, wire.EventRoomState, &wire.RoomStatePayload{
		CurrentRound: 3, TotalRounds: 3, RoundTypeName: string(RoundStandard), Phase: string(PhaseLeaderboard),
		TotalPlayers: 2,
	}, clock.Now()))
	if c.state.Tiebreak != nil {
		t.Fatal("tiebreak state survived return to leaderboard")
	}
}

func TestDuplicateRoomStatePreservesTiebreaker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := testController(newFakeBus(), clock)

	board := &wire.RoomStatePayload{
		CurrentRound: 3, TotalRounds: 3, RoundTypeName: string(RoundStandard), Phase: string(PhaseLeaderboard),
	}
	c.handleEvent(event(t, wire.EventRoomState, board, clock.Now()))
	c.handleEvent(event(t, wire.EventTiebreakStart, &wire.TiebreakStartPayload{
		Participants: []string{"A", "B"},
	}, clock.Now()))

	// An exact duplicate of the pre-tiebreak notification must stay a
	// no-op even though the interrupt changed the live phase.
	c.handleEvent(event(t, wire.EventRoomState, board, clock.Now()))

	if c.state.Room.Phase != PhaseTiebreaker {
		t.Fatalf("phase = %s, duplicate room state overrode tiebreaker interrupt", c.state.Room.Phase)
	}
	if c.state.Tiebreak == nil {
		t.Fatal("duplicate room state destroyed live tiebreaker")
	}
}

func TestCommandsPublishWithoutLocalMutation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := newFakeBus()
	c := testController(bus, clock)
	ctx := context.Background()

	before := c.Snapshot()

	commands := []struct {
		name string
		call func(context.Context) error
		cmd  wire.Command
	}{
		{"start round", c.StartRound, wire.CmdStartRound},
		{"next review", c.NextReview, wire.CmdNextReview},
		{"show round results", c.ShowRoundResults, wire.CmdShowRoundResults},
		{"overall leaderboard", c.ContinueToOverallLeaderboard, wire.CmdContinueToOverallLeaderboard},
		{"next round or end", c.NextRoundOrEnd, wire.CmdNextRoundOrEnd},
		{"end quiz cleanup", c.EndQuizCleanup, wire.CmdEndQuizCleanup},
	}
	for _, tc := range commands {
		if err := tc.call(ctx); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
	}

	if len(bus.published) != len(commands) {
		t.Fatalf("published %d commands, want %d", len(bus.published), len(commands))
	}
	for i, tc := range commands {
		want := wire.CommandSubject("room-1", tc.cmd)
		if bus.published[i] != want {
			t.Fatalf("command %d published to %s, want %s", i, bus.published[i], want)
		}
	}

	after := c.Snapshot()
	if before.Room != after.Room {
		t.Fatal("command emission mutated local room state")
	}
}

func TestRosterUpdateFeedsActivity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := testController(newFakeBus(), clock)

	c.handleEvent(event(t, wire.EventPlayerListUpdated, &wire.PlayerListPayload{
		Players: []wire.Player{{ID: "A", Name: "Ada", Connected: true}},
	}, clock.Now()))
	c.handleEvent(event(t, wire.EventPlayerListUpdated, &wire.PlayerListPayload{
		Players: []wire.Player{
			{ID: "A", Name: "Ada", Connected: true},
			{ID: "B", Name: "Bea", Connected: true},
		},
	}, clock.Now()))

	if len(c.state.Players) != 2 || c.state.Room.TotalPlayers != 2 {
		t.Fatalf("roster not applied: %+v", c.state.Players)
	}

	joins := 0
	for _, item := range c.state.Activity {
		if item.Kind == "join" {
			joins++
		}
	}
	if joins != 2 {
		t.Fatalf("activity items for joins = %d, want 2", joins)
	}
}

func TestExtrasRecordedOncePerDelta(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := testController(newFakeBus(), clock)

	c.handleEvent(event(t, wire.EventRoomState, &wire.RoomStatePayload{
		CurrentRound: 2, TotalRounds: 3, RoundTypeName: string(RoundStandard), Phase: string(PhaseLeaderboard),
	}, clock.Now()))

	// The same penalty shows up on the round view and again on the overall
	// view; it must count and announce once.
	entries := []wire.LeaderboardEntry{{ID: "A", Name: "Ada", Score: 5, Penalty: 3}}
	c.handleEvent(event(t, wire.EventRoundLeaderboard, &wire.LeaderboardPayload{Entries: entries}, clock.Now()))
	c.handleEvent(event(t, wire.EventLeaderboard, &wire.LeaderboardPayload{Entries: entries}, clock.Now()))

	if got := c.state.RoundStats[2].ExtrasUsed["penalty"]; got != 1 {
		t.Fatalf("penalty counted %d times, want 1", got)
	}
	feed := 0
	for _, item := range c.state.Activity {
		if item.Kind == "penalty" {
			feed++
		}
	}
	if feed != 1 {
		t.Fatalf("penalty feed items = %d, want 1", feed)
	}
}

func TestActivityDecay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := &State{}

	s.addActivity(ActivityItem{ID: "old", CreatedAt: clock.Now()})
	clock.Advance(activityTTL / 2)
	s.addActivity(ActivityItem{ID: "fresh", CreatedAt: clock.Now()})
	clock.Advance(activityTTL/2 + time.Second)

	s.sweepActivity(clock.Now())
	if len(s.Activity) != 1 || s.Activity[0].ID != "fresh" {
		t.Fatalf("sweep kept %+v, want only fresh item", s.Activity)
	}
}

func TestIsLastQuestion(t *testing.T) {
	clock := clockwork.NewFakeClock()

	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{name: "mid round", pos: Position{Index: 3, Total: 6}, want: false},
		{name: "final question", pos: Position{Index: 6, Total: 6}, want: true},
		{name: "unknown position is never last", pos: UnknownPosition(), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testController(newFakeBus(), clock)
			c.state.setPrompt(&Prompt{Kind: RoundStandard, Position: tt.pos})
			if got := c.IsLastQuestion(); got != tt.want {
				t.Fatalf("IsLastQuestion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunHydratesOnConnect(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := newFakeBus()
	bus.ack = wire.RejoinAck{OK: true, Snap: sampleSnapshot(clock.Now())}
	c := testController(bus, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	bus.states <- transport.ConnState{ConnID: "conn-1", Connected: true}

	// Let the run loop pick up the transition, then fire the debounce.
	deadline := time.After(2 * time.Second)
	for {
		clock.Advance(RejoinDebounce)
		if c.Snapshot().Room.CurrentRound == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("controller never hydrated from rejoin snapshot")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if reqs := bus.requestLog(); len(reqs) == 0 || reqs[0] != wire.RejoinSubject("room-1") {
		t.Fatalf("rejoin requests = %v", reqs)
	}

	cancel()
	<-done
}
