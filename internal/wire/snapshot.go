package wire

// RejoinRequest is sent on (re)connection to re-enter a room as its host.
type RejoinRequest struct {
	RoomID   string `json:"room_id"`
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// RejoinAck acknowledges a rejoin. Snap is present only when OK is true.
type RejoinAck struct {
	OK   bool              `json:"ok"`
	Snap *RecoverySnapshot `json:"snap,omitempty"`
}

// TiebreakSnapshot is the tiebreaker sub-state inside a recovery snapshot.
type TiebreakSnapshot struct {
	Participants   []string                 `json:"participants"`
	Question       *TiebreakQuestionPayload `json:"question,omitempty"`
	Winners        []string                 `json:"winners,omitempty"`
	PlayerAnswers  map[string]float64       `json:"player_answers,omitempty"`
	CorrectAnswer  *float64                 `json:"correct_answer,omitempty"`
	ShowReview     bool                     `json:"show_review"`
	StillTied      []string                 `json:"still_tied,omitempty"`
	QuestionNumber int                      `json:"question_number"`
}

// RecoverySnapshot is the complete point-in-time state bundle returned on
// rejoin. It is the single source of truth during reconnection: live state is
// overwritten from it wholesale, never merged field-by-field.
type RecoverySnapshot struct {
	Room    RoomStatePayload `json:"room"`
	Players []Player         `json:"players"`

	// In-flight prompt or review, keyed by round type. At most one of the
	// prompt/review pairs is populated.
	Question           *QuestionPayload           `json:"question,omitempty"`
	Review             *ReviewPayload             `json:"review,omitempty"`
	HiddenObject       *HiddenObjectStartPayload  `json:"hidden_object,omitempty"`
	HiddenObjectReview *HiddenObjectReviewPayload `json:"hidden_object_review,omitempty"`
	OrderImageQuestion *OrderImageQuestionPayload `json:"order_image_question,omitempty"`
	OrderImageReview   *OrderImageReviewPayload   `json:"order_image_review,omitempty"`

	Leaderboard         []LeaderboardEntry `json:"leaderboard,omitempty"`
	RoundLeaderboard    []LeaderboardEntry `json:"round_leaderboard,omitempty"`
	ShowingRoundResults bool               `json:"showing_round_results"`
	ReviewDone          bool               `json:"review_done"`

	RoundStats map[int]RoundStats `json:"round_stats,omitempty"`
	FinalStats *FinalStats        `json:"final_stats,omitempty"`

	Tiebreak *TiebreakSnapshot `json:"tiebreak,omitempty"`
}
