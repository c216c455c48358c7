package services

import (
	"context"
	"testing"
	"time"

	"verifast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socialFixture(t *testing.T) (*SocialInteractionManager, *TransactionManager, *models.Article) {
	t.Helper()
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	social := NewSocialInteractionManager(db, tm)
	article := &models.Article{
		Title: "Discussed Article", Slug: "discussed", URL: "https://example.com/disc",
		Content: "body", Language: "en", QuizStatus: models.QuizStatusReady,
	}
	require.NoError(t, db.Create(article).Error)
	return social, tm, article
}

func TestPostCommentChargesPoster(t *testing.T) {
	social, tm, article := socialFixture(t)
	account := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	ctx := context.Background()

	comment, err := social.PostComment(ctx, account.ID, article.ID, "Great read!", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(CommentPostCost), comment.XPCost)
	assert.False(t, comment.IsPerfectScoreFree)

	var reloaded models.Account
	require.NoError(t, tm.DB.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(100-CommentPostCost), reloaded.SpendableXP)

	// Replies cost less
	reply, err := social.PostComment(ctx, account.ID, article.ID, "Agreed", &comment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(CommentReplyCost), reply.XPCost)
}

func TestPostCommentFreeWithPerfectScorePrivilege(t *testing.T) {
	social, tm, article := socialFixture(t)
	account := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	require.NoError(t, tm.DB.Create(&models.ArticlePrivilege{
		AccountID: account.ID, ArticleID: article.ID,
	}).Error)

	comment, err := social.PostComment(context.Background(), account.ID, article.ID, "Free speech", nil)
	require.NoError(t, err)
	assert.True(t, comment.IsPerfectScoreFree)
	assert.Zero(t, comment.XPCost)

	var reloaded models.Account
	require.NoError(t, tm.DB.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(100), reloaded.SpendableXP, "privileged comment costs nothing")
}

func TestPostCommentRefusedWhenBroke(t *testing.T) {
	social, tm, article := socialFixture(t)
	account := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 3 })

	_, err := social.PostComment(context.Background(), account.ID, article.ID, "Can't afford this", nil)
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)

	// The provisional comment row is rolled back
	var comments int64
	require.NoError(t, tm.DB.Model(&models.Comment{}).Where("account_id = ?", account.ID).Count(&comments).Error)
	assert.Zero(t, comments)
}

func TestPostCommentSanitizesHTML(t *testing.T) {
	social, tm, article := socialFixture(t)
	account := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })

	comment, err := social.PostComment(context.Background(), account.ID, article.ID,
		`Nice <script>alert("xss")</script> article`, nil)
	require.NoError(t, err)
	assert.NotContains(t, comment.Content, "<script>")

	_, err = social.PostComment(context.Background(), account.ID, article.ID, "<b></b>", nil)
	assert.Error(t, err, "content that sanitizes to nothing is rejected")
}

func TestAddInteractionPaysAuthorHalf(t *testing.T) {
	social, tm, article := socialFixture(t)
	author := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	reactor := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	ctx := context.Background()

	comment, err := social.PostComment(ctx, author.ID, article.ID, "Insightful", nil)
	require.NoError(t, err)

	interaction, err := social.AddInteraction(ctx, reactor.ID, comment.ID, models.InteractionGold)
	require.NoError(t, err)
	assert.Equal(t, int64(30), interaction.XPCost)
	assert.Equal(t, int64(15), interaction.AuthorReward)
	assert.True(t, interaction.RewardSettled)

	var reloadedReactor, reloadedAuthor models.Account
	require.NoError(t, tm.DB.First(&reloadedReactor, "id = ?", reactor.ID).Error)
	require.NoError(t, tm.DB.First(&reloadedAuthor, "id = ?", author.ID).Error)
	assert.Equal(t, int64(70), reloadedReactor.SpendableXP)
	// author: 100 - comment cost 10 + reward 15
	assert.Equal(t, int64(105), reloadedAuthor.SpendableXP)

	var rewardEntry models.LedgerEntry
	require.NoError(t, tm.DB.First(&rewardEntry,
		"account_id = ? AND source_category = ?", author.ID, models.SourceInteractionReward).Error)
	assert.Equal(t, int64(15), rewardEntry.Amount)
}

func TestAddInteractionRejectsSelfAndUnknownType(t *testing.T) {
	social, tm, article := socialFixture(t)
	author := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	ctx := context.Background()

	comment, err := social.PostComment(ctx, author.ID, article.ID, "Self-love", nil)
	require.NoError(t, err)

	_, err = social.AddInteraction(ctx, author.ID, comment.ID, models.InteractionBronze)
	assert.Error(t, err, "reacting to your own comment is refused")

	other := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	_, err = social.AddInteraction(ctx, other.ID, comment.ID, models.InteractionType("platinum"))
	assert.Error(t, err)
}

func TestAddInteractionOncePerComment(t *testing.T) {
	social, tm, article := socialFixture(t)
	author := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	reactor := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	ctx := context.Background()

	comment, err := social.PostComment(ctx, author.ID, article.ID, "One reaction each", nil)
	require.NoError(t, err)

	_, err = social.AddInteraction(ctx, reactor.ID, comment.ID, models.InteractionBronze)
	require.NoError(t, err)

	// A second reaction (double-click or tier upgrade) must not charge again
	_, err = social.AddInteraction(ctx, reactor.ID, comment.ID, models.InteractionGold)
	assert.ErrorIs(t, err, ErrAlreadyReacted)

	var reloaded models.Account
	require.NoError(t, tm.DB.First(&reloaded, "id = ?", reactor.ID).Error)
	assert.Equal(t, int64(95), reloaded.SpendableXP, "only the bronze reaction is charged")

	var interactions []models.CommentInteraction
	require.NoError(t, tm.DB.Where("comment_id = ?", comment.ID).Find(&interactions).Error)
	require.Len(t, interactions, 1)
	assert.Equal(t, models.InteractionBronze, interactions[0].Type)

	// The refused charge left no ledger entry behind
	var spends int64
	require.NoError(t, tm.DB.Model(&models.LedgerEntry{}).
		Where("account_id = ? AND kind = ?", reactor.ID, models.LedgerKindSpend).
		Count(&spends).Error)
	assert.Equal(t, int64(1), spends)
}

func TestAddInteractionRefusedWhenBroke(t *testing.T) {
	social, tm, article := socialFixture(t)
	author := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	reactor := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 3 })
	ctx := context.Background()

	comment, err := social.PostComment(ctx, author.ID, article.ID, "Pricey", nil)
	require.NoError(t, err)

	_, err = social.AddInteraction(ctx, reactor.ID, comment.ID, models.InteractionSilver)
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)

	var count int64
	require.NoError(t, tm.DB.Model(&models.CommentInteraction{}).
		Where("comment_id = ?", comment.ID).Count(&count).Error)
	assert.Zero(t, count, "no interaction row survives a refused charge")
}

func TestSettlePendingRewardsReplaysMissedEarns(t *testing.T) {
	social, tm, article := socialFixture(t)
	author := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	reactor := createTestAccount(t, tm.DB, func(a *models.Account) { a.SpendableXP = 100 })
	ctx := context.Background()

	comment, err := social.PostComment(ctx, author.ID, article.ID, "Pending", nil)
	require.NoError(t, err)

	// Simulate a crash between the spend and the author earn: an unsettled
	// interaction row older than the sweep cutoff
	interaction := models.CommentInteraction{
		CommentID:    comment.ID,
		AccountID:    reactor.ID,
		Type:         models.InteractionSilver,
		XPCost:       15,
		AuthorReward: 7,
	}
	require.NoError(t, tm.DB.Create(&interaction).Error)
	require.NoError(t, tm.DB.Model(&interaction).
		Update("created_at", interaction.CreatedAt.Add(-5*time.Minute)).Error)

	settled, err := social.SettlePendingRewards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	var reloaded models.CommentInteraction
	require.NoError(t, tm.DB.First(&reloaded, "id = ?", interaction.ID).Error)
	assert.True(t, reloaded.RewardSettled)

	var authorAccount models.Account
	require.NoError(t, tm.DB.First(&authorAccount, "id = ?", author.ID).Error)
	// 100 - comment cost 10 + replayed reward 7
	assert.Equal(t, int64(97), authorAccount.SpendableXP)

	// A second sweep finds nothing
	settled, err = social.SettlePendingRewards(ctx)
	require.NoError(t, err)
	assert.Zero(t, settled)
}
