package wire

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParsePayloadRouting(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		data      string
		check     func(*testing.T, interface{})
	}{
		{
			name:      "room state",
			eventType: EventRoomState,
			data:      `{"current_round":2,"total_rounds":5,"round_type_name":"speed_round","phase":"asking"}`,
			check: func(t *testing.T, v interface{}) {
				p, ok := v.(*RoomStatePayload)
				if !ok || p.CurrentRound != 2 || p.RoundTypeName != "speed_round" {
					t.Fatalf("parsed %#v", v)
				}
			},
		},
		{
			name:      "tiebreak review with still tied",
			eventType: EventTiebreakReview,
			data:      `{"correct_answer":42,"player_answers":{"A":40,"B":44},"still_tied":["A","B"]}`,
			check: func(t *testing.T, v interface{}) {
				p, ok := v.(*TiebreakReviewPayload)
				if !ok || p.CorrectAnswer != 42 || len(p.StillTied) != 2 {
					t.Fatalf("parsed %#v", v)
				}
			},
		},
		{
			name:      "round time remaining",
			eventType: EventRoundTimeRemaining,
			data:      `{"remaining":17}`,
			check: func(t *testing.T, v interface{}) {
				p, ok := v.(*RoundTimeRemainingPayload)
				if !ok || p.RemainingSec != 17 {
					t.Fatalf("parsed %#v", v)
				}
			},
		},
		{
			name:      "hidden object start",
			eventType: EventHiddenObjectStart,
			data:      `{"id":"h1","items":[{"id":"cat","x":1,"y":2,"width":3,"height":4}],"remaining_sec":30}`,
			check: func(t *testing.T, v interface{}) {
				p, ok := v.(*HiddenObjectStartPayload)
				if !ok || len(p.Items) != 1 || p.Items[0].ID != "cat" {
					t.Fatalf("parsed %#v", v)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &Event{
				ID:        "ev1",
				RoomID:    "room-1",
				Type:      tt.eventType,
				Timestamp: time.Now(),
				Data:      json.RawMessage(tt.data),
			}
			payload, err := ParsePayload(event)
			if err != nil {
				t.Fatalf("ParsePayload: %v", err)
			}
			tt.check(t, payload)
		})
	}
}

func TestParsePayloadUnknownType(t *testing.T) {
	event := &Event{Type: "made_up", Data: json.RawMessage(`{}`)}
	payload, err := ParsePayload(event)
	if err != nil || payload != nil {
		t.Fatalf("unknown type should yield (nil, nil), got (%v, %v)", payload, err)
	}
}

func TestParsePayloadMalformed(t *testing.T) {
	event := &Event{Type: EventRoomState, Data: json.RawMessage(`{"current_round":"not a number"}`)}
	if _, err := ParsePayload(event); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestSubjects(t *testing.T) {
	if got := EventsSubject("r1"); got != "quiz.room.r1.events" {
		t.Fatalf("EventsSubject = %q", got)
	}
	if got := CommandSubject("r1", CmdStartRound); got != "quiz.room.r1.cmd.start_round" {
		t.Fatalf("CommandSubject = %q", got)
	}
	if got := RejoinSubject("r1"); got != "quiz.room.r1.rejoin" {
		t.Fatalf("RejoinSubject = %q", got)
	}
}
