package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"verifast/models"

	"gorm.io/gorm"
)

// QuizQuestion is the canonical internal quiz shape. Historical quiz payloads
// come in several under-versioned forms (bare list, object with a "quiz" or
// "questions" key; answer as option index, letter, or option text); they are
// all translated into this form at the ingestion boundary so graders and
// feedback builders never sniff shapes.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

// QuizSubmission is the inbound payload for a quiz grading event.
type QuizSubmission struct {
	AccountID          string
	ArticleID          string
	Answers            json.RawMessage
	WPMUsed            int
	ReadingTimeSeconds int
}

// AnswerFeedback explains one incorrectly answered question for post-quiz
// review.
type AnswerFeedback struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
}

// QuizOutcome classifies a graded attempt
type QuizOutcome string

const (
	OutcomePerfect QuizOutcome = "perfect"
	OutcomePassed  QuizOutcome = "passed"
	OutcomeFailed  QuizOutcome = "failed"
)

// QuizResult is the user-facing result of a submission. A result is always
// returned, even when grading degraded to zero.
type QuizResult struct {
	AttemptID   string           `json:"attempt_id"`
	Outcome     QuizOutcome      `json:"outcome"`
	Score       float64          `json:"score"`
	Breakdown   RewardBreakdown  `json:"breakdown"`
	NewBalance  int64            `json:"new_balance"`
	Message     string           `json:"message"`
	Feedback    []AnswerFeedback `json:"feedback,omitempty"`
	NextArticle *models.Article  `json:"next_article,omitempty"`
}

// NormalizeQuiz translates any historical quiz payload shape into the
// canonical question list. Malformed questions are skipped, not fatal.
func NormalizeQuiz(raw json.RawMessage) ([]QuizQuestion, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty quiz payload")
	}

	var items []map[string]interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		// Not a bare list — look for a wrapped list under known keys
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("unrecognized quiz payload: %w", err)
		}
		inner, ok := wrapper["quiz"]
		if !ok {
			inner, ok = wrapper["questions"]
		}
		if !ok {
			return nil, errors.New("quiz payload has no question list")
		}
		if err := json.Unmarshal(inner, &items); err != nil {
			return nil, fmt.Errorf("unrecognized question list: %w", err)
		}
	}

	questions := make([]QuizQuestion, 0, len(items))
	for _, item := range items {
		if q, ok := normalizeQuestion(item); ok {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, errors.New("quiz payload has no usable questions")
	}
	return questions, nil
}

func normalizeQuestion(item map[string]interface{}) (QuizQuestion, bool) {
	var q QuizQuestion

	text, _ := item["question"].(string)
	if text == "" {
		text, _ = item["text"].(string)
	}
	if strings.TrimSpace(text) == "" {
		return q, false
	}
	q.Question = text

	rawOpts, _ := item["options"].([]interface{})
	for _, o := range rawOpts {
		if s, ok := o.(string); ok {
			q.Options = append(q.Options, s)
		}
	}
	if len(q.Options) < 2 {
		return q, false
	}

	answer, ok := item["correct_answer"]
	if !ok {
		answer, ok = item["answer"]
	}
	if !ok {
		answer, ok = item["correct"]
	}
	if !ok {
		return q, false
	}

	idx := resolveAnswerIndex(answer, q.Options)
	if idx < 0 {
		return q, false
	}
	q.CorrectIndex = idx

	q.Explanation, _ = item["explanation"].(string)
	return q, true
}

// resolveAnswerIndex maps an answer-key value (option index, numeric string,
// letter, or option text) to an option index, or -1 when unresolvable.
func resolveAnswerIndex(answer interface{}, options []string) int {
	switch v := answer.(type) {
	case float64:
		idx := int(v)
		if idx >= 0 && idx < len(options) {
			return idx
		}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return -1
		}
		if n, err := strconv.Atoi(s); err == nil {
			if n >= 0 && n < len(options) {
				return n
			}
			return -1
		}
		// Single letter: A/B/C/...
		if len(s) == 1 {
			if idx := int(strings.ToUpper(s)[0]) - 'A'; idx >= 0 && idx < len(options) {
				return idx
			}
		}
		// Option text match
		for i, opt := range options {
			if strings.EqualFold(strings.TrimSpace(opt), s) {
				return i
			}
		}
	}
	return -1
}

// ParseAnswers resolves the submitted answer list against the canonical
// questions. Each element may be an option index or option text; unmatched
// entries resolve to -1 (counted wrong, never fatal).
func ParseAnswers(raw json.RawMessage, questions []QuizQuestion) []int {
	selected := make([]int, len(questions))
	for i := range selected {
		selected[i] = -1
	}
	if len(raw) == 0 {
		return selected
	}

	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return selected
	}
	for i := range questions {
		if i >= len(items) {
			break
		}
		selected[i] = resolveAnswerIndex(items[i], questions[i].Options)
	}
	return selected
}

// Grade recomputes the score server-side from the canonical questions; a
// client-submitted score is never trusted.
func Grade(questions []QuizQuestion, selected []int) float64 {
	if len(questions) == 0 {
		return 0
	}
	correct := 0
	for i, q := range questions {
		if i < len(selected) && selected[i] == q.CorrectIndex {
			correct++
		}
	}
	return math.Round(float64(correct)/float64(len(questions))*10000) / 100
}

// QuizResultProcessor runs the full grade → reward → persist → feedback
// workflow for one submission.
type QuizResultProcessor struct {
	DB      *gorm.DB
	Tx      *TransactionManager
	Rewards *RewardCalculator
}

func NewQuizResultProcessor(db *gorm.DB, tx *TransactionManager) *QuizResultProcessor {
	return &QuizResultProcessor{DB: db, Tx: tx, Rewards: NewRewardCalculator()}
}

// UpdateEarningStreak advances the consecutive-active-days counter based on
// the previous earn. Same-day activity keeps the streak; a gap resets it.
func UpdateEarningStreak(account *models.Account, now time.Time) {
	if account.LastEarnedAt == nil {
		account.EarningStreak = 1
		return
	}
	last := account.LastEarnedAt
	today := now.Truncate(24 * time.Hour)
	lastDay := last.Truncate(24 * time.Hour)
	switch {
	case lastDay.Equal(today):
		// already counted today
	case today.Sub(lastDay) == 24*time.Hour:
		account.EarningStreak++
	default:
		account.EarningStreak = 1
	}
}

// Process grades a submission and returns a result. Grading errors degrade to
// score 0 (the user always sees a result); reward/ledger errors propagate —
// money must not silently vanish.
func (p *QuizResultProcessor) Process(ctx context.Context, sub QuizSubmission) (*QuizResult, error) {
	var article models.Article
	if err := p.DB.Where("id = ?", sub.ArticleID).First(&article).Error; err != nil {
		return nil, err
	}

	var account models.Account
	if err := p.DB.Where("id = ?", sub.AccountID).First(&account).Error; err != nil {
		return nil, err
	}

	// Grade. Malformed quiz data must not block the user from seeing a result.
	var questions []QuizQuestion
	var selected []int
	score := 0.0
	questions, err := NormalizeQuiz(article.Quiz)
	if err != nil {
		log.Printf("⚠️  quiz normalization failed for article %s: %v — degrading to score 0", article.ID, err)
	} else {
		selected = ParseAnswers(sub.Answers, questions)
		score = Grade(questions, selected)
	}

	passed := score >= PassingScore

	var breakdown RewardBreakdown
	attempt := models.QuizAttempt{
		AccountID:          sub.AccountID,
		ArticleID:          sub.ArticleID,
		Score:              score,
		WPMUsed:            sub.WPMUsed,
		Answers:            sub.Answers,
		QuizSnapshot:       article.Quiz,
		ReadingTimeSeconds: sub.ReadingTimeSeconds,
	}

	// Streak/record updates and the attempt row commit together; the ledger
	// write follows as its own serialized transaction.
	err = p.DB.Transaction(func(tx *gorm.DB) error {
		if passed {
			UpdateEarningStreak(&account, time.Now())
			account.LastSuccessfulWPM = sub.WPMUsed
		}
		breakdown = p.Rewards.Compute(&attempt, &article, &account)
		if err := tx.Save(&account).Error; err != nil {
			return err
		}
		return tx.Create(&attempt).Error
	})
	if err != nil {
		return nil, err
	}

	if breakdown.Total > 0 {
		ref := LedgerRef{QuizAttemptID: &attempt.ID}
		desc := fmt.Sprintf("Quiz on %q: %.0f%% at %d WPM", article.Title, score, sub.WPMUsed)
		if _, err := p.Tx.Earn(ctx, sub.AccountID, breakdown.Total, models.SourceQuizCompletion, desc, ref); err != nil {
			return nil, err
		}
		if err := p.DB.Model(&attempt).Update("xp_awarded", breakdown.Total).Error; err != nil {
			return nil, err
		}
		attempt.XPAwarded = breakdown.Total
	}

	if score >= 100 {
		priv := models.ArticlePrivilege{AccountID: sub.AccountID, ArticleID: sub.ArticleID}
		if err := p.DB.Where("account_id = ? AND article_id = ?", sub.AccountID, sub.ArticleID).
			FirstOrCreate(&priv).Error; err != nil {
			log.Printf("⚠️  failed to grant perfect-score privilege: %v", err)
		}
	}

	result := &QuizResult{
		AttemptID: attempt.ID,
		Score:     score,
		Breakdown: breakdown,
	}
	switch {
	case score >= 100:
		result.Outcome = OutcomePerfect
		result.Message = fmt.Sprintf("Perfect score! You earned %d XP and free commenting on this article.", breakdown.Total)
	case passed:
		result.Outcome = OutcomePassed
		result.Message = fmt.Sprintf("Nice work — %.0f%% earned you %d XP.", score, breakdown.Total)
	default:
		result.Outcome = OutcomeFailed
		result.Message = "Below 60% — give it another read and try again. No XP this time."
	}

	// Feedback only for passing attempts: don't reveal answers to someone
	// who will retry.
	if passed {
		result.Feedback = buildFeedback(questions, selected)
	}

	if next, err := p.recommendNext(sub.AccountID, &article); err == nil {
		result.NextArticle = next
	}

	if snap, err := p.Tx.GetBalance(ctx, sub.AccountID); err == nil {
		result.NewBalance = snap.SpendableXP
	}

	return result, nil
}

func buildFeedback(questions []QuizQuestion, selected []int) []AnswerFeedback {
	var feedback []AnswerFeedback
	for i, q := range questions {
		sel := -1
		if i < len(selected) {
			sel = selected[i]
		}
		if sel == q.CorrectIndex {
			continue
		}
		userAnswer := "(no answer)"
		if sel >= 0 && sel < len(q.Options) {
			userAnswer = q.Options[sel]
		}
		feedback = append(feedback, AnswerFeedback{
			Question:      q.Question,
			UserAnswer:    userAnswer,
			CorrectAnswer: q.Options[q.CorrectIndex],
			Explanation:   q.Explanation,
		})
	}
	return feedback
}

// recommendNext picks the next unread article: prefer one sharing a tag with
// the just-read article, else a random unread one in the same language.
func (p *QuizResultProcessor) recommendNext(accountID string, current *models.Article) (*models.Article, error) {
	var candidates []models.Article
	err := p.DB.
		Where("language = ? AND id <> ? AND quiz_status = ?", current.Language, current.ID, models.QuizStatusReady).
		Where("id NOT IN (?)", p.DB.Model(&models.QuizAttempt{}).
			Select("article_id").Where("account_id = ?", accountID)).
		Order("created_at DESC").
		Limit(50).
		Find(&candidates).Error
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	tagSet := make(map[string]bool, len(current.Tags))
	for _, t := range current.Tags {
		tagSet[strings.ToLower(t)] = true
	}
	for i := range candidates {
		for _, t := range candidates[i].Tags {
			if tagSet[strings.ToLower(t)] {
				return &candidates[i], nil
			}
		}
	}
	return &candidates[0], nil
}
