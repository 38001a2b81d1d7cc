package internal

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultRoundDuration = 30 * time.Second
	DefaultTotalRounds   = 5
	RoundGracePeriod     = 5 * time.Second
	RoomRetention        = 3 * time.Hour
	MaxDisplayNameLen    = 20

	// Hint thresholds as fractions of the round duration.
	FirstLetterHintAt = 0.5
	WordCountHintAt   = 0.75
)

type RoomState string

const (
	StateSetup       RoomState = "setup"
	StateLobby       RoomState = "lobby"
	StatePlaying     RoomState = "playing"
	StateRoundResult RoomState = "round_result"
	StateFinished    RoomState = "finished"
)

type HintKind string

const (
	HintFirstLetter HintKind = "first_letter"
	HintWordCount   HintKind = "word_count"
)

// Settings is the host-tunable room configuration. It is frozen once play
// begins, except TotalRounds which may be clamped down to the asset count
// at game start.
type Settings struct {
	RoundDurationMs int64 `json:"round_duration_ms"`
	TotalRounds     int   `json:"total_rounds"`
}

func (s Settings) RoundDuration() time.Duration {
	return time.Duration(s.RoundDurationMs) * time.Millisecond
}

// Asset pairs an image reference with its correct answer. The answer text
// never leaves the server until the round is over.
type Asset struct {
	Reference  string `json:"reference"`
	AnswerText string `json:"answer_text"`
}

// AnswerRecord is one per-round outcome in a player's history. A record is
// appended either when a guess scores or, for players with no scoring
// guess, when the round closes.
type AnswerRecord struct {
	Round     int     `json:"round"`
	Correct   bool    `json:"correct"`
	Points    int     `json:"points"`
	ElapsedMs int64   `json:"elapsed_ms"`
	Quality   float64 `json:"quality"`
}

// Conn is the engine's seam to the transport layer. Send must never block
// the caller; implementations queue or drop.
type Conn interface {
	Send(msg Message[any])
	Close()
}

type Player struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Score       int            `json:"score"`
	Streak      int            `json:"streak"`
	History     []AnswerRecord `json:"history"`
	JoinedAt    time.Time      `json:"joined_at"`
	Conn        Conn           `json:"-"`
}

// PlayerSnapshot is the broadcast-safe view of a player used in
// leaderboards and player lists.
type PlayerSnapshot struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Streak      int    `json:"streak"`
	Answered    bool   `json:"answered"`
}

func (p *Player) Snapshot(answered bool) PlayerSnapshot {
	return PlayerSnapshot{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Score:       p.Score,
		Streak:      p.Streak,
		Answered:    answered,
	}
}

// ClampDisplayName trims and length-limits a user-supplied name.
func ClampDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "anonymous"
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		runes := []rune(name)
		name = string(runes[:MaxDisplayNameLen])
	}
	return name
}
