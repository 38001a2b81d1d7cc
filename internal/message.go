package internal

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Outbound message types.
const (
	MsgRoomJoined        = "room_joined"
	MsgPlayerList        = "player_list"
	MsgGameStarted       = "game_started"
	MsgRoundStarted      = "round_started"
	MsgHint              = "hint"
	MsgGuessResult       = "guess_result"
	MsgLeaderboardUpdate = "leaderboard_update"
	MsgRoundEnded        = "round_ended"
	MsgGameOver          = "game_over"
	MsgHostDisconnected  = "host_disconnected"
	MsgError             = "error"
)

// Inbound message types.
const (
	MsgStartGame = "start_game"
	MsgGuess     = "guess"
)

// ErrorKind tags error events so clients and tests can branch on kind
// instead of message text.
type ErrorKind string

const (
	ErrKindInvalidRequest      ErrorKind = "invalid_request"
	ErrKindDuplicateSubmission ErrorKind = "duplicate_submission"
	ErrKindHostLoss            ErrorKind = "host_loss"
)

type ErrorData struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

type RoomJoinedData struct {
	PlayerID string           `json:"player_id,omitempty"`
	IsHost   bool             `json:"is_host"`
	State    RoomState        `json:"state"`
	Settings Settings         `json:"settings"`
	Players  []PlayerSnapshot `json:"players"`
}

type PlayerListData struct {
	Players []PlayerSnapshot `json:"players"`
	Message string           `json:"message,omitempty"`
}

type GameStartedData struct {
	TotalRounds     int   `json:"total_rounds"`
	RoundDurationMs int64 `json:"round_duration_ms"`
	PlayerCount     int   `json:"player_count"`
}

type RoundStartedData struct {
	Round          int    `json:"round"`
	TotalRounds    int    `json:"total_rounds"`
	ImageReference string `json:"image_reference"`
	RemainingMs    int64  `json:"remaining_ms"`
	TotalMs        int64  `json:"total_ms"`
	AnswerLength   int    `json:"answer_length"`
	WordCount      int    `json:"word_count"`
}

type HintData struct {
	Kind  HintKind `json:"kind"`
	Value string   `json:"value"`
}

type GuessResultData struct {
	Correct         bool      `json:"correct"`
	AlreadyAnswered bool      `json:"already_answered,omitempty"`
	ErrorKind       ErrorKind `json:"error_kind,omitempty"`
	Points          int       `json:"points,omitempty"`
	TotalScore      int       `json:"total_score,omitempty"`
	Position        int       `json:"position,omitempty"`
	Streak          int       `json:"streak,omitempty"`
	Quality         float64   `json:"quality,omitempty"`
}

type LeaderboardData struct {
	Players       []PlayerSnapshot `json:"players"`
	AnsweredCount int              `json:"answered_count"`
	TotalPlayers  int              `json:"total_players"`
}

type RoundEndedData struct {
	Round          int              `json:"round"`
	TotalRounds    int              `json:"total_rounds"`
	Answer         string           `json:"answer"`
	ImageReference string           `json:"image_reference"`
	Players        []PlayerSnapshot `json:"players"`
	AnsweredCount  int              `json:"answered_count"`
	TotalPlayers   int              `json:"total_players"`
}

type GameOverData struct {
	Players     []PlayerSnapshot `json:"players"`
	Winner      *PlayerSnapshot  `json:"winner,omitempty"`
	TotalRounds int              `json:"total_rounds"`
}
