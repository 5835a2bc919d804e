package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the envelope for every server notification on the room channel.
type Event struct {
	ID        string          `json:"id"`        // Event UUID
	RoomID    string          `json:"room_id"`   // Room identifier
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Server-side creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of room event
type EventType string

const (
	EventRoomState            EventType = "room_state"
	EventQuestion             EventType = "question"
	EventHostReviewQuestion   EventType = "host_review_question"
	EventRoundLeaderboard     EventType = "round_leaderboard"
	EventLeaderboard          EventType = "leaderboard"
	EventHostFinalLeaderboard EventType = "host_final_leaderboard"
	EventReviewComplete       EventType = "review_complete"
	EventHiddenObjectStart    EventType = "hidden_object_start"
	EventHiddenObjectReview   EventType = "hidden_object_review"
	EventOrderImageQuestion   EventType = "order_image_question"
	EventHostOrderImageReview EventType = "host_order_image_review"
	EventRoundTimeRemaining   EventType = "round_time_remaining"
	EventTiebreakStart        EventType = "tiebreak:start"
	EventTiebreakQuestion     EventType = "tiebreak:question"
	EventTiebreakResult       EventType = "tiebreak:result"
	EventTiebreakReview       EventType = "tiebreak:review"
	EventTiebreakTieAgain     EventType = "tiebreak:tie_again"
	EventPlayerListUpdated    EventType = "player_list_updated"
)

// ParsePayload parses event data into the appropriate payload struct.
// Unknown event types yield (nil, nil) so callers can skip them without
// treating the message as an error.
func ParsePayload(event *Event) (interface{}, error) {
	var payload interface{}

	switch event.Type {
	case EventRoomState:
		payload = &RoomStatePayload{}
	case EventQuestion:
		payload = &QuestionPayload{}
	case EventHostReviewQuestion:
		payload = &ReviewPayload{}
	case EventRoundLeaderboard, EventLeaderboard, EventHostFinalLeaderboard:
		payload = &LeaderboardPayload{}
	case EventReviewComplete:
		payload = &ReviewCompletePayload{}
	case EventHiddenObjectStart:
		payload = &HiddenObjectStartPayload{}
	case EventHiddenObjectReview:
		payload = &HiddenObjectReviewPayload{}
	case EventOrderImageQuestion:
		payload = &OrderImageQuestionPayload{}
	case EventHostOrderImageReview:
		payload = &OrderImageReviewPayload{}
	case EventRoundTimeRemaining:
		payload = &RoundTimeRemainingPayload{}
	case EventTiebreakStart:
		payload = &TiebreakStartPayload{}
	case EventTiebreakQuestion:
		payload = &TiebreakQuestionPayload{}
	case EventTiebreakResult:
		payload = &TiebreakResultPayload{}
	case EventTiebreakReview:
		payload = &TiebreakReviewPayload{}
	case EventTiebreakTieAgain:
		payload = &TiebreakTieAgainPayload{}
	case EventPlayerListUpdated:
		payload = &PlayerListPayload{}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", event.Type, err)
	}
	return payload, nil
}
