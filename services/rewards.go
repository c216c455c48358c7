package services

import (
	"math"

	"verifast/models"
)

// PassingScore is the minimum quiz score that earns any XP. Below it every
// reward component is zero: no XP for guessing.
const PassingScore = 60.0

// BaselineWPM anchors the speed factor; reading at the baseline with a
// complexity factor of 1.0 neither boosts nor penalizes the base award.
const BaselineWPM = 250.0

// WPMRecordBonus is the flat award for beating the account's speed record.
const WPMRecordBonus = 50

// UnitMode selects what counts as a content unit for the base award.
type UnitMode string

const (
	UnitWords   UnitMode = "words"
	UnitLetters UnitMode = "letters"
)

// streakTiers: consecutive active days → flat bonus (highest tier wins)
var streakTiers = []struct {
	Days  int
	Bonus int64
}{
	{30, 50},
	{14, 25},
	{7, 10},
	{3, 5},
}

// RewardBreakdown itemizes one quiz completion award.
type RewardBreakdown struct {
	Base           int64 `json:"base"`
	PerfectBonus   int64 `json:"perfect_bonus"`
	WPMRecordBonus int64 `json:"wpm_record_bonus"`
	StreakBonus    int64 `json:"streak_bonus"`
	Total          int64 `json:"total"`
}

// RewardCalculator computes the XP award for a quiz completion from reading
// complexity, speed, accuracy and bonuses.
type RewardCalculator struct {
	Units UnitMode
}

func NewRewardCalculator() *RewardCalculator {
	return &RewardCalculator{Units: UnitWords}
}

func (r *RewardCalculator) unitCount(article *models.Article) int64 {
	if r.Units == UnitLetters {
		return int64(article.LetterCount)
	}
	return int64(article.WordCount)
}

// StreakBonusFor returns the tiered flat bonus for an earning streak.
func StreakBonusFor(streakDays int) int64 {
	for _, tier := range streakTiers {
		if streakDays >= tier.Days {
			return tier.Bonus
		}
	}
	return 0
}

// Compute calculates the full reward breakdown for a graded attempt.
//
// The WPM-record check both reads and mutates account.MaxWPM so that
// record-setting stays atomic with the bonus; the caller persists the account
// inside the same transaction that writes the award.
func (r *RewardCalculator) Compute(attempt *models.QuizAttempt, article *models.Article, account *models.Account) RewardBreakdown {
	var b RewardBreakdown
	if attempt.Score < PassingScore {
		return b
	}

	complexityFactor := math.Max(article.ReadingLevel/10.0, 0.5)
	speedFactor := (float64(attempt.WPMUsed) / BaselineWPM) * complexityFactor
	accuracyFactor := attempt.Score / 100.0

	b.Base = int64(math.Round(float64(r.unitCount(article)) * speedFactor * accuracyFactor))
	if b.Base < 1 {
		b.Base = 1
	}

	if attempt.Score >= 100 {
		b.PerfectBonus = int64(math.Round(float64(b.Base) * 0.25))
	}

	if attempt.WPMUsed > account.MaxWPM {
		b.WPMRecordBonus = WPMRecordBonus
		account.MaxWPM = attempt.WPMUsed
	}

	b.StreakBonus = StreakBonusFor(account.EarningStreak)

	b.Total = b.Base + b.PerfectBonus + b.WPMRecordBonus + b.StreakBonus
	return b
}
