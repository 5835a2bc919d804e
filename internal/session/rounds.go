package session

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizfund/hostsync/internal/wire"
)

// DefaultQuestionsPerRound is assumed when the active round's question count
// is not configured anywhere.
const DefaultQuestionsPerRound = 6

// DefaultReplayThreshold separates a genuinely new question from a recovery
// replay when the server omits the explicit is_recovery marker: a prompt
// whose authoritative start time is further than this behind "now" while a
// question is already being tracked is treated as a replay.
const DefaultReplayThreshold = 2 * time.Second

// Position is a question's place within its round.
type Position struct {
	Index int `json:"index"` // 1-based
	Total int `json:"total"`
}

// Prompt is the live question, normalized across the four round-type payload
// shapes into a tagged union. Exactly one pointer matching Kind is set.
type Prompt struct {
	Kind         RoundType                       `json:"kind"`
	Question     *wire.QuestionPayload           `json:"question,omitempty"` // standard, speed_round
	HiddenObject *wire.HiddenObjectStartPayload  `json:"hidden_object,omitempty"`
	OrderImage   *wire.OrderImageQuestionPayload `json:"order_image,omitempty"`
	Position     Position                        `json:"position"`
	// Deadline is in server time; zero when the server streams remaining
	// time instead of a fixed end time.
	Deadline time.Time `json:"deadline,omitempty"`
}

// Review is the post-answer disclosure, tagged the same way as Prompt.
type Review struct {
	Kind         RoundType                       `json:"kind"`
	Question     *wire.ReviewPayload             `json:"question,omitempty"`
	HiddenObject *wire.HiddenObjectReviewPayload `json:"hidden_object,omitempty"`
	OrderImage   *wire.OrderImageReviewPayload   `json:"order_image,omitempty"`
}

// RoundConfig parameterizes position inference.
type RoundConfig struct {
	// QuestionsPerRound maps round types to their configured question count.
	QuestionsPerRound map[RoundType]int
	// ReplayThreshold overrides DefaultReplayThreshold when positive.
	ReplayThreshold time.Duration
}

func (c RoundConfig) threshold() time.Duration {
	if c.ReplayThreshold > 0 {
		return c.ReplayThreshold
	}
	return DefaultReplayThreshold
}

// Adapter routes round-type payloads and infers question positions when the
// server does not supply explicit position fields. It keeps a monotonically
// increasing question index per round.
type Adapter struct {
	cfg   RoundConfig
	clock clockwork.Clock
	index int // -1 before the first question of a round
}

// NewAdapter creates an adapter with the given round configuration.
func NewAdapter(cfg RoundConfig, clock clockwork.Clock) *Adapter {
	return &Adapter{cfg: cfg, clock: clock, index: -1}
}

// ResetRound clears the question index at a round boundary.
func (a *Adapter) ResetRound() {
	a.index = -1
}

// SyncIndex aligns the inferred index with an authoritative 1-based question
// number, used when hydrating from a recovery snapshot.
func (a *Adapter) SyncIndex(questionNumber int) {
	if questionNumber >= 1 {
		a.index = questionNumber - 1
	}
}

// promptStart captures the position-relevant fields common to all prompt
// payload shapes.
type promptStart struct {
	StartTime      time.Time
	QuestionNumber int // explicit 1-based position, 0 when absent
	TotalQuestions int
	IsRecovery     bool
}

// Observe registers a prompt arrival and returns its position within the
// round. Explicit positions win; otherwise the index advances unless the
// prompt looks like a recovery replay rather than a new question.
func (a *Adapter) Observe(roundType RoundType, start promptStart) Position {
	// Explicit server position wins over inference.
	if start.QuestionNumber >= 1 {
		a.index = start.QuestionNumber - 1
		total := start.TotalQuestions
		if total < 1 {
			total = a.totalFor(roundType)
		}
		return Position{Index: start.QuestionNumber, Total: total}
	}

	replay := start.IsRecovery
	if !replay && a.index >= 0 && !start.StartTime.IsZero() {
		// A brand-new question starts near "now"; a replayed one carries a
		// start time well in the past.
		if a.clock.Now().Sub(start.StartTime) > a.cfg.threshold() {
			replay = true
		}
	}
	if !replay {
		a.index++
	}
	if a.index < 0 {
		a.index = 0
	}

	// No usable round configuration: degrade to "position unknown" instead
	// of guessing a total.
	if roundType == "" {
		return UnknownPosition()
	}
	return Position{Index: a.index + 1, Total: a.totalFor(roundType)}
}

// totalFor resolves the configured question count for a round type. When the
// configuration is unavailable entirely the position degrades to (1,1) via
// UnknownPosition rather than failing.
func (a *Adapter) totalFor(roundType RoundType) int {
	if n, ok := a.cfg.QuestionsPerRound[roundType]; ok && n >= 1 {
		return n
	}
	return DefaultQuestionsPerRound
}

// UnknownPosition is the degraded position used when no round configuration
// is available at all.
func UnknownPosition() Position {
	return Position{Index: 1, Total: 1}
}
