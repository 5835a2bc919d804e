package wire

import "time"

// RoomStatePayload is the authoritative top-level session snapshot broadcast
// by the server on every observable room change.
type RoomStatePayload struct {
	CurrentRound         int    `json:"current_round"`
	TotalRounds          int    `json:"total_rounds"`
	RoundTypeName        string `json:"round_type_name"`
	Phase                string `json:"phase"`
	QuestionsThisRound   int    `json:"questions_this_round,omitempty"`
	TotalPlayers         int    `json:"total_players,omitempty"`
	CurrentReviewIndex   int    `json:"current_review_index,omitempty"`
	TotalReviewQuestions int    `json:"total_review_questions,omitempty"`
}

// QuestionPayload is the live prompt for standard and speed rounds.
type QuestionPayload struct {
	ID                string    `json:"id"`
	Text              string    `json:"text"`
	Options           []string  `json:"options,omitempty"`
	TimeLimitSec      int       `json:"time_limit_sec"`
	QuestionStartTime time.Time `json:"question_start_time"`
	QuestionNumber    int       `json:"question_number,omitempty"`
	TotalQuestions    int       `json:"total_questions,omitempty"`
	Difficulty        string    `json:"difficulty,omitempty"`
	Category          string    `json:"category,omitempty"`
	// IsRecovery marks a replayed prompt delivered as part of a reconnect,
	// letting clients skip position-inference heuristics.
	IsRecovery bool `json:"is_recovery,omitempty"`
}

// AnswerStatistics aggregates how the room answered a question.
type AnswerStatistics struct {
	Correct    int     `json:"correct"`
	Incorrect  int     `json:"incorrect"`
	NoAnswer   int     `json:"no_answer"`
	Skipped    int     `json:"skipped"`
	CorrectPct float64 `json:"correct_pct,omitempty"`
}

// ReviewPayload is the post-answer disclosure for a standard or speed question.
type ReviewPayload struct {
	QuestionID    string            `json:"question_id"`
	Text          string            `json:"text"`
	CorrectAnswer string            `json:"correct_answer"`
	OwnAnswer     string            `json:"own_answer,omitempty"`
	Statistics    *AnswerStatistics `json:"statistics,omitempty"`
}

// LeaderboardEntry is one ranked participant row.
type LeaderboardEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	Penalty     int    `json:"penalty,omitempty"`
	Restoration int    `json:"restoration,omitempty"`
}

// LeaderboardPayload carries a score-descending entry list. The same shape is
// used for round, overall and final leaderboards.
type LeaderboardPayload struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// ReviewCompletePayload signals no further review steps this round.
type ReviewCompletePayload struct {
	RoundNumber    int `json:"round_number"`
	TotalQuestions int `json:"total_questions"`
}

// HiddenItem is one findable region of a hidden-object puzzle.
type HiddenItem struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// HiddenObjectStartPayload starts a hidden-object question.
type HiddenObjectStartPayload struct {
	ID           string       `json:"id"`
	ImageURL     string       `json:"image_url"`
	Items        []HiddenItem `json:"items"`
	FoundIDs     []string     `json:"found_ids,omitempty"`
	RemainingSec int          `json:"remaining_sec"`
	IsRecovery   bool         `json:"is_recovery,omitempty"`
}

// HiddenObjectReviewPayload discloses a finished hidden-object puzzle.
type HiddenObjectReviewPayload struct {
	ID         string            `json:"id"`
	Items      []HiddenItem      `json:"items"`
	FoundIDs   []string          `json:"found_ids"`
	Statistics *AnswerStatistics `json:"statistics,omitempty"`
}

// OrderedImage is one element of an ordered-image prompt.
type OrderedImage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// OrderImageQuestionPayload starts an ordered-image question.
type OrderImageQuestionPayload struct {
	ID                string         `json:"id"`
	Prompt            string         `json:"prompt"`
	Images            []OrderedImage `json:"images"`
	TimeLimitSec      int            `json:"time_limit_sec"`
	QuestionStartTime time.Time      `json:"question_start_time"`
	QuestionNumber    int            `json:"question_number,omitempty"`
	TotalQuestions    int            `json:"total_questions,omitempty"`
	IsRecovery        bool           `json:"is_recovery,omitempty"`
}

// OrderImageReviewPayload discloses the correct ordering.
type OrderImageReviewPayload struct {
	QuestionID     string            `json:"question_id"`
	CorrectOrder   []string          `json:"correct_order"`
	SubmittedOrder []string          `json:"submitted_order,omitempty"`
	Statistics     *AnswerStatistics `json:"statistics,omitempty"`
}

// RoundTimeRemainingPayload carries the server countdown for time-bounded
// round types with no fixed per-question end time.
type RoundTimeRemainingPayload struct {
	RemainingSec int `json:"remaining"`
}

// TiebreakStartPayload signals tie onset with the tied participant set.
type TiebreakStartPayload struct {
	Participants []string `json:"participants"`
}

// TiebreakQuestionPayload is a numeric-answer tiebreaker prompt.
type TiebreakQuestionPayload struct {
	ID                string    `json:"id"`
	Text              string    `json:"text"`
	QuestionNumber    int       `json:"question_number,omitempty"`
	TimeLimitSec      int       `json:"time_limit_sec"`
	QuestionStartTime time.Time `json:"question_start_time"`
}

// TiebreakReviewPayload discloses submitted numeric answers. Exactly one of
// Winners and StillTied is non-empty.
type TiebreakReviewPayload struct {
	CorrectAnswer float64            `json:"correct_answer"`
	PlayerAnswers map[string]float64 `json:"player_answers"`
	Winners       []string           `json:"winners,omitempty"`
	StillTied     []string           `json:"still_tied,omitempty"`
}

// TiebreakResultPayload is the terminal tiebreaker disclosure.
type TiebreakResultPayload struct {
	Winners []string `json:"winners"`
}

// TiebreakTieAgainPayload narrows the tie to the still-tied set.
type TiebreakTieAgainPayload struct {
	StillTied      []string `json:"still_tied"`
	QuestionNumber int      `json:"question_number,omitempty"`
}

// Player is one roster member.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// PlayerListPayload is the full current roster.
type PlayerListPayload struct {
	Players []Player `json:"players"`
}

// RoundStats counts strategic extra usage within one round.
type RoundStats struct {
	RoundNumber int            `json:"round_number"`
	ExtrasUsed  map[string]int `json:"extras_used,omitempty"`
}

// FinalStats summarizes a finished session.
type FinalStats struct {
	TotalQuestions int `json:"total_questions"`
	TotalAnswers   int `json:"total_answers"`
	CorrectAnswers int `json:"correct_answers"`
	TotalPlayers   int `json:"total_players"`
}
