package game

import (
	"time"

	"github.com/picguess/picguess-backend/internal"
)

// roundTimers owns the one-shot timers of a single round: two staged hints
// and the terminal close. Firings are posted into the room mailbox, never
// applied directly, so they share the room's ordering discipline with
// guesses and host commands. Each carries the round index it was armed for;
// the room drops firings whose round has already closed.
type roundTimers struct {
	timers []*time.Timer
}

func scheduleRound(round int, total time.Duration, post func(command)) *roundTimers {
	firstLetterAt := time.Duration(float64(total) * internal.FirstLetterHintAt)
	wordCountAt := time.Duration(float64(total) * internal.WordCountHintAt)

	return &roundTimers{timers: []*time.Timer{
		time.AfterFunc(firstLetterAt, func() {
			post(hintElapsedCmd{round: round, kind: internal.HintFirstLetter})
		}),
		time.AfterFunc(wordCountAt, func() {
			post(hintElapsedCmd{round: round, kind: internal.HintWordCount})
		}),
		time.AfterFunc(total, func() {
			post(closeRoundCmd{round: round})
		}),
	}}
}

// cancel stops every timer that has not fired yet. Safe to call more than
// once; already-delivered firings are filtered by round index in the room.
func (rt *roundTimers) cancel() {
	if rt == nil {
		return
	}
	for _, t := range rt.timers {
		t.Stop()
	}
}

// elapsedHints reports which hint thresholds a mid-round joiner has already
// missed, so their view can be reconstructed without waiting for the next
// natural tick.
func elapsedHints(elapsed, total time.Duration) []internal.HintKind {
	kinds := make([]internal.HintKind, 0, 2)
	if elapsed >= time.Duration(float64(total)*internal.FirstLetterHintAt) {
		kinds = append(kinds, internal.HintFirstLetter)
	}
	if elapsed >= time.Duration(float64(total)*internal.WordCountHintAt) {
		kinds = append(kinds, internal.HintWordCount)
	}
	return kinds
}
