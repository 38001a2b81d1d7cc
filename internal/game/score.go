package game

import (
	"math"
	"time"
)

// QualifyingQuality is the threshold at which a guess counts towards
// streaks and position bonuses.
const QualifyingQuality = 0.7

const (
	maxBasePoints = 1000
	minBasePoints = 100
	timeDecaySpan = 900

	streakBonusBig   = 200
	streakBonusSmall = 100
	positionBonus1st = 300
	positionBonus2nd = 150
	positionBonus3rd = 50
)

// ScoreGuess converts a non-zero match quality into a point award and the
// player's updated streak. answeredBefore is how many players in this round
// had already scored when this guess arrived; the 1-indexed finish position
// is answeredBefore+1.
//
// The award is base points decayed linearly over the round, scaled by
// quality, plus streak and position bonuses. Scores are never revised
// downward afterwards, so every input must already be final when called.
func ScoreGuess(quality float64, elapsed, total time.Duration, priorStreak, answeredBefore int) (points, newStreak int) {
	base := float64(maxBasePoints)
	if total > 0 {
		frac := float64(elapsed.Milliseconds()) / float64(total.Milliseconds())
		base = math.Round(maxBasePoints - frac*timeDecaySpan)
	}
	base = math.Min(math.Max(base, minBasePoints), maxBasePoints)

	points = int(math.Round(base * quality))

	newStreak = priorStreak
	if quality >= QualifyingQuality {
		newStreak = priorStreak + 1
	}
	switch {
	case newStreak >= 3:
		points += streakBonusBig
	case newStreak >= 2:
		points += streakBonusSmall
	}

	if quality >= QualifyingQuality {
		switch answeredBefore + 1 {
		case 1:
			points += positionBonus1st
		case 2:
			points += positionBonus2nd
		case 3:
			points += positionBonus3rd
		}
	}

	return points, newStreak
}
