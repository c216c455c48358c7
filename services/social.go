package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"verifast/models"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// Interaction economy (XP)
const (
	CommentPostCost  = 10
	CommentReplyCost = 5
)

// interactionCosts: tier → requester cost; the author reward is half.
var interactionCosts = map[models.InteractionType]int64{
	models.InteractionBronze: 5,
	models.InteractionSilver: 15,
	models.InteractionGold:   30,
}

var interactionCategory = map[models.InteractionType]models.SourceCategory{
	models.InteractionBronze: models.SourceInteractionBronze,
	models.InteractionSilver: models.SourceInteractionSilver,
	models.InteractionGold:   models.SourceInteractionGold,
}

// SocialInteractionManager runs the comment/interaction economy on top of
// the TransactionManager.
type SocialInteractionManager struct {
	DB        *gorm.DB
	Tx        *TransactionManager
	sanitizer *bluemonday.Policy
}

func NewSocialInteractionManager(db *gorm.DB, tx *TransactionManager) *SocialInteractionManager {
	return &SocialInteractionManager{
		DB:        db,
		Tx:        tx,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// PostComment charges the posting cost (waived by a perfect-score privilege
// on the article) and creates the comment. Replies cost less than top-level
// comments.
func (s *SocialInteractionManager) PostComment(ctx context.Context, accountID, articleID, content string, parentID *string) (*models.Comment, error) {
	content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	if content == "" {
		return nil, errors.New("comment content is empty")
	}

	var cost int64 = CommentPostCost
	category := models.SourceCommentPost
	if parentID != nil {
		cost = CommentReplyCost
		category = models.SourceCommentReply
	}

	var privCount int64
	if err := s.DB.Model(&models.ArticlePrivilege{}).
		Where("account_id = ? AND article_id = ?", accountID, articleID).
		Count(&privCount).Error; err != nil {
		return nil, err
	}
	free := privCount > 0

	comment := models.Comment{
		AccountID:          accountID,
		ArticleID:          articleID,
		ParentID:           parentID,
		Content:            content,
		IsPerfectScoreFree: free,
	}
	if err := s.DB.Create(&comment).Error; err != nil {
		return nil, err
	}

	if !free {
		entry, err := s.Tx.Spend(ctx, accountID, cost,
			category,
			fmt.Sprintf("Comment on article %s", articleID),
			LedgerRef{CommentID: &comment.ID})
		if err != nil {
			// Roll the comment back; the spend was refused
			s.DB.Delete(&comment)
			return nil, err
		}
		if entry != nil {
			comment.XPCost = cost
			if err := s.DB.Model(&comment).Update("xp_cost", cost).Error; err != nil {
				return nil, err
			}
		}
	}

	return &comment, nil
}

// AddInteraction charges the requester and rewards the comment author with
// half the cost. The spend and the author earn are two sequential
// single-account transactions; a crash between them is repaired by
// SettlePendingRewards.
func (s *SocialInteractionManager) AddInteraction(ctx context.Context, accountID, commentID string, kind models.InteractionType) (*models.CommentInteraction, error) {
	cost, ok := interactionCosts[kind]
	if !ok {
		return nil, fmt.Errorf("unknown interaction type %q", kind)
	}

	var comment models.Comment
	if err := s.DB.Where("id = ?", commentID).First(&comment).Error; err != nil {
		return nil, err
	}
	if comment.AccountID == accountID {
		return nil, errors.New("cannot react to your own comment")
	}

	interaction := models.CommentInteraction{
		CommentID:    commentID,
		AccountID:    accountID,
		Type:         kind,
		XPCost:       cost,
		AuthorReward: cost / 2,
	}

	// The interaction row is created in the same transaction as the charge,
	// so a repeat reaction trips the (comment_id, account_id) unique index
	// and rolls the spend back with it.
	if _, err := s.Tx.SpendWith(ctx, accountID, cost,
		interactionCategory[kind],
		fmt.Sprintf("%s reaction on comment %s", kind, commentID),
		LedgerRef{CommentID: &commentID},
		func(tx *gorm.DB, _ *models.LedgerEntry) error {
			return tx.Create(&interaction).Error
		}); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyReacted
		}
		return nil, err
	}

	if err := s.settleReward(ctx, &interaction, comment.AccountID); err != nil {
		// The spend already happened; leave the interaction unsettled for
		// the reconciliation sweep rather than failing the request.
		log.Printf("⚠️  author reward for interaction %s deferred: %v", interaction.ID, err)
	}

	return &interaction, nil
}

func (s *SocialInteractionManager) settleReward(ctx context.Context, interaction *models.CommentInteraction, authorID string) error {
	if interaction.AuthorReward <= 0 {
		interaction.RewardSettled = true
		return s.DB.Model(interaction).Update("reward_settled", true).Error
	}
	_, err := s.Tx.Earn(ctx, authorID, interaction.AuthorReward,
		models.SourceInteractionReward,
		fmt.Sprintf("%s reaction received on comment %s", interaction.Type, interaction.CommentID),
		LedgerRef{CommentID: &interaction.CommentID})
	if err != nil {
		return err
	}
	interaction.RewardSettled = true
	return s.DB.Model(interaction).Update("reward_settled", true).Error
}

// SettlePendingRewards replays author rewards for interactions whose earn
// side never committed (crash between the two transactions). Run periodically
// by the scheduler.
func (s *SocialInteractionManager) SettlePendingRewards(ctx context.Context) (int, error) {
	var pending []models.CommentInteraction
	cutoff := time.Now().Add(-time.Minute)
	err := s.DB.Where("reward_settled = ? AND created_at < ?", false, cutoff).
		Limit(100).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range pending {
		var comment models.Comment
		if err := s.DB.Where("id = ?", pending[i].CommentID).First(&comment).Error; err != nil {
			log.Printf("⚠️  reconciliation: comment %s missing: %v", pending[i].CommentID, err)
			continue
		}
		if err := s.settleReward(ctx, &pending[i], comment.AccountID); err != nil {
			log.Printf("⚠️  reconciliation: interaction %s still unsettled: %v", pending[i].ID, err)
			continue
		}
		settled++
	}
	return settled, nil
}

// ListComments returns an article's comments, oldest first.
func (s *SocialInteractionManager) ListComments(articleID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.DB.Where("article_id = ?", articleID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}
