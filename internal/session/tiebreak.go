package session

import "github.com/quizfund/hostsync/internal/wire"

// TiebreakStage is a stage of the nested tie-resolution protocol.
type TiebreakStage string

const (
	TiebreakStart    TiebreakStage = "start"
	TiebreakQuestion TiebreakStage = "question"
	TiebreakReview   TiebreakStage = "review"
	TiebreakTieAgain TiebreakStage = "tie_again"
	TiebreakResult   TiebreakStage = "result"
)

// Tiebreak is the isolated sub-state-machine resolving a prize-boundary
// score tie. Its numeric-answer payload shape is incompatible with the four
// main round types, so it owns its own question/review slots. It exists only
// while the session phase is tiebreaker.
type Tiebreak struct {
	Stage          TiebreakStage                 `json:"stage"`
	Participants   []string                      `json:"participants"`
	Question       *wire.TiebreakQuestionPayload `json:"question,omitempty"`
	Winners        []string                      `json:"winners,omitempty"`
	PlayerAnswers  map[string]float64            `json:"player_answers,omitempty"`
	CorrectAnswer  *float64                      `json:"correct_answer,omitempty"`
	ShowReview     bool                          `json:"show_review"`
	StillTied      []string                      `json:"still_tied,omitempty"`
	QuestionNumber int                           `json:"question_number"` // 1-based, increments each time the tie persists
}

// newTiebreak starts the protocol for the tied participant set.
func newTiebreak(participants []string) *Tiebreak {
	return &Tiebreak{
		Stage:          TiebreakStart,
		Participants:   append([]string(nil), participants...),
		QuestionNumber: 1,
	}
}

// applyQuestion enters the question stage with a fresh numeric prompt.
func (t *Tiebreak) applyQuestion(q *wire.TiebreakQuestionPayload) {
	t.Stage = TiebreakQuestion
	t.Question = q
	t.ShowReview = false
	t.CorrectAnswer = nil
	t.PlayerAnswers = nil
	if q.QuestionNumber >= 1 {
		t.QuestionNumber = q.QuestionNumber
	}
}

// applyReview discloses the numeric answers. Exactly one of Winners and
// StillTied is expected to be non-empty.
func (t *Tiebreak) applyReview(r *wire.TiebreakReviewPayload) {
	t.Stage = TiebreakReview
	t.ShowReview = true
	answer := r.CorrectAnswer
	t.CorrectAnswer = &answer
	t.PlayerAnswers = r.PlayerAnswers
	t.Winners = append([]string(nil), r.Winners...)
	t.StillTied = append([]string(nil), r.StillTied...)
}

// applyTieAgain narrows the participant set to the still-tied players and
// advances the question counter for the next numeric prompt.
func (t *Tiebreak) applyTieAgain(p *wire.TiebreakTieAgainPayload) {
	t.Stage = TiebreakTieAgain
	t.Participants = append([]string(nil), p.StillTied...)
	t.StillTied = append([]string(nil), p.StillTied...)
	t.Question = nil
	t.ShowReview = false
	if p.QuestionNumber >= 1 {
		t.QuestionNumber = p.QuestionNumber
	} else {
		t.QuestionNumber++
	}
}

// applyResult enters the terminal disclosure stage.
func (t *Tiebreak) applyResult(r *wire.TiebreakResultPayload) {
	t.Stage = TiebreakResult
	t.Winners = append([]string(nil), r.Winners...)
	t.StillTied = nil
	t.Question = nil
	t.ShowReview = false
}

// tiebreakFromSnapshot rebuilds the sub-state from a recovery snapshot.
func tiebreakFromSnapshot(snap *wire.TiebreakSnapshot) *Tiebreak {
	if snap == nil {
		return nil
	}
	t := &Tiebreak{
		Participants:   append([]string(nil), snap.Participants...),
		Question:       snap.Question,
		Winners:        append([]string(nil), snap.Winners...),
		PlayerAnswers:  snap.PlayerAnswers,
		CorrectAnswer:  snap.CorrectAnswer,
		ShowReview:     snap.ShowReview,
		StillTied:      append([]string(nil), snap.StillTied...),
		QuestionNumber: snap.QuestionNumber,
	}
	if t.QuestionNumber < 1 {
		t.QuestionNumber = 1
	}
	switch {
	case len(t.Winners) > 0:
		t.Stage = TiebreakResult
	case t.ShowReview:
		t.Stage = TiebreakReview
	case t.Question != nil:
		t.Stage = TiebreakQuestion
	default:
		t.Stage = TiebreakStart
	}
	return t
}
