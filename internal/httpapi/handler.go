// Package httpapi exposes the live session to the host console UI: JSON
// state views plus the host command routes. Commands are relayed straight to
// the session controller's emitters; local state never changes here, the
// server's resulting broadcast does that.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/quizfund/hostsync/internal/session"
	"github.com/quizfund/hostsync/internal/wire"
)

// SessionView is the read-only surface the handler needs from the
// controller.
type SessionView interface {
	RoomID() string
	Snapshot() session.State
	TimeRemaining() time.Duration
	PrizeTie() *session.TieBoundary
	IsLastQuestion() bool
}

// SessionCommands is the host-action surface of the controller.
type SessionCommands interface {
	StartRound(ctx context.Context) error
	NextReview(ctx context.Context) error
	ShowRoundResults(ctx context.Context) error
	ContinueToOverallLeaderboard(ctx context.Context) error
	NextRoundOrEnd(ctx context.Context) error
	EndQuizCleanup(ctx context.Context) error
}

// Handler serves the session state and command endpoints.
type Handler struct {
	view     SessionView
	commands SessionCommands
}

// NewHandler creates a handler over a session view and its command surface.
func NewHandler(view SessionView, commands SessionCommands) *Handler {
	return &Handler{view: view, commands: commands}
}

// stateResponse is the room state document served to the UI.
type stateResponse struct {
	RoomID           string               `json:"room_id"`
	Room             session.RoomState    `json:"room"`
	TimeRemainingSec float64              `json:"time_remaining_sec"`
	IsLastQuestion   bool                 `json:"is_last_question"`
	Prompt           *session.Prompt      `json:"prompt,omitempty"`
	Review           *session.Review      `json:"review,omitempty"`
	PrizeTie         *session.TieBoundary `json:"prize_tie,omitempty"`
	Players          int                  `json:"players"`
	Tiebreak         *session.Tiebreak    `json:"tiebreak,omitempty"`
}

// HandleState handles GET /api/rooms/{id}/state.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.PathValue("id") != h.view.RoomID() {
		http.NotFound(w, r)
		return
	}

	state := h.view.Snapshot()
	resp := stateResponse{
		RoomID:           h.view.RoomID(),
		Room:             state.Room,
		TimeRemainingSec: h.view.TimeRemaining().Seconds(),
		IsLastQuestion:   h.view.IsLastQuestion(),
		Prompt:           state.Prompt,
		Review:           state.Review,
		PrizeTie:         h.view.PrizeTie(),
		Players:          len(state.Players),
		Tiebreak:         state.Tiebreak,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode state response")
	}
}

// HandleActivity handles GET /api/rooms/{id}/activity.
func (h *Handler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.PathValue("id") != h.view.RoomID() {
		http.NotFound(w, r)
		return
	}

	state := h.view.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state.Activity); err != nil {
		log.Error().Err(err).Msg("failed to encode activity response")
	}
}

// HandleCommand handles POST /api/rooms/{id}/commands/{name}, relaying the
// named host action to the controller.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.PathValue("id") != h.view.RoomID() {
		http.NotFound(w, r)
		return
	}

	var send func(context.Context) error
	switch wire.Command(r.PathValue("name")) {
	case wire.CmdStartRound:
		send = h.commands.StartRound
	case wire.CmdNextReview:
		send = h.commands.NextReview
	case wire.CmdShowRoundResults:
		send = h.commands.ShowRoundResults
	case wire.CmdContinueToOverallLeaderboard:
		send = h.commands.ContinueToOverallLeaderboard
	case wire.CmdNextRoundOrEnd:
		send = h.commands.NextRoundOrEnd
	case wire.CmdEndQuizCleanup:
		send = h.commands.EndQuizCleanup
	default:
		http.NotFound(w, r)
		return
	}

	if err := send(r.Context()); err != nil {
		log.Error().Err(err).Str("command", r.PathValue("name")).Msg("failed to relay host command")
		http.Error(w, "command failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Routes returns the CORS-wrapped handler for the state API.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rooms/{id}/state", h.HandleState)
	mux.HandleFunc("/api/rooms/{id}/activity", h.HandleActivity)
	mux.HandleFunc("/api/rooms/{id}/commands/{name}", h.HandleCommand)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}
