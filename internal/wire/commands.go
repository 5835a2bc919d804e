package wire

// Command is a host console action pushed to the authoritative server.
// Commands are fire-and-forget: the resulting state change comes back over
// the event channel, never as a reply.
type Command string

const (
	CmdStartRound                   Command = "start_round"
	CmdNextReview                   Command = "next_review"
	CmdShowRoundResults             Command = "show_round_results"
	CmdContinueToOverallLeaderboard Command = "continue_to_overall_leaderboard"
	CmdNextRoundOrEnd               Command = "next_round_or_end"
	CmdEndQuizCleanup               Command = "end_quiz_cleanup"
)

// CommandPayload is the body of every host command.
type CommandPayload struct {
	RoomID string `json:"room_id"`
}

// Subject names for the room channel. The same logical names are used for
// frame tags on the websocket transport and subjects on NATS.

// EventsSubject is the subject carrying server notifications for a room.
func EventsSubject(roomID string) string {
	return "quiz.room." + roomID + ".events"
}

// CommandSubject is the subject a host command is published to.
func CommandSubject(roomID string, cmd Command) string {
	return "quiz.room." + roomID + ".cmd." + string(cmd)
}

// RejoinSubject is the request/reply subject for the recovery handshake.
func RejoinSubject(roomID string) string {
	return "quiz.room." + roomID + ".rejoin"
}
