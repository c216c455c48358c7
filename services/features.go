package services

import (
	"context"
	"fmt"
	"log"

	"verifast/models"

	"gorm.io/gorm"
)

// Feature keys
const (
	FeatureTwoWordChunking        = "two_word_chunking"
	FeatureThreeWordChunking      = "three_word_chunking"
	FeatureSmartConnectorGrouping = "smart_connector_grouping"
	FeatureSmartSymbolHandling    = "smart_symbol_handling"
	FeaturePremiumFonts           = "premium_fonts"
	FeatureDarkMode               = "dark_mode"
)

// FeatureDefinition describes one purchasable feature.
type FeatureDefinition struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	Cost          int64    `json:"cost"`
	Category      string   `json:"category"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// featureDefinitions is the static catalog. Runtime price adjustments are
// explicit FeaturePriceOverride rows, never in-place mutation; the catalog
// value itself is immutable once built.
var featureDefinitions = []FeatureDefinition{
	{Key: FeatureTwoWordChunking, Name: "2-Word Chunking", Cost: 50, Category: "chunking"},
	{Key: FeatureThreeWordChunking, Name: "3-Word Chunking", Cost: 100, Category: "chunking", Prerequisites: []string{FeatureTwoWordChunking}},
	{Key: FeatureSmartConnectorGrouping, Name: "Smart Connector Grouping", Cost: 75, Category: "chunking", Prerequisites: []string{FeatureTwoWordChunking}},
	{Key: FeatureSmartSymbolHandling, Name: "Smart Symbol Handling", Cost: 60, Category: "reading"},
	{Key: FeaturePremiumFonts, Name: "Premium Fonts", Cost: 40, Category: "appearance"},
	{Key: FeatureDarkMode, Name: "Dark Mode", Cost: 30, Category: "appearance"},
}

// featureColumn maps a feature key to its ownership column on the accounts
// table, for updates inside a transaction that must not clobber balance
// fields mutated on another copy of the row.
var featureColumn = map[string]string{
	FeatureTwoWordChunking:        "has_two_word_chunking",
	FeatureThreeWordChunking:      "has_three_word_chunking",
	FeatureSmartConnectorGrouping: "has_smart_connector_grouping",
	FeatureSmartSymbolHandling:    "has_smart_symbol_handling",
	FeaturePremiumFonts:           "has_premium_fonts",
	FeatureDarkMode:               "has_dark_mode",
}

// featureFlag maps a feature key to its ownership flag on Account.
var featureFlag = map[string]func(a *models.Account) *bool{
	FeatureTwoWordChunking:        func(a *models.Account) *bool { return &a.HasTwoWordChunking },
	FeatureThreeWordChunking:      func(a *models.Account) *bool { return &a.HasThreeWordChunking },
	FeatureSmartConnectorGrouping: func(a *models.Account) *bool { return &a.HasSmartConnectorGrouping },
	FeatureSmartSymbolHandling:    func(a *models.Account) *bool { return &a.HasSmartSymbolHandling },
	FeaturePremiumFonts:           func(a *models.Account) *bool { return &a.HasPremiumFonts },
	FeatureDarkMode:               func(a *models.Account) *bool { return &a.HasDarkMode },
}

// FeatureCatalog is the immutable view of purchasable features, built at
// startup from the static definitions plus any price overrides.
type FeatureCatalog struct {
	features map[string]FeatureDefinition
	order    []string
}

// Get returns the definition for a key.
func (c *FeatureCatalog) Get(key string) (FeatureDefinition, bool) {
	def, ok := c.features[key]
	return def, ok
}

// All returns the definitions in catalog order.
func (c *FeatureCatalog) All() []FeatureDefinition {
	out := make([]FeatureDefinition, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.features[key])
	}
	return out
}

// FeatureService handles feature checkout and recommendations.
type FeatureService struct {
	DB      *gorm.DB
	Tx      *TransactionManager
	catalog *FeatureCatalog
}

func NewFeatureService(db *gorm.DB, tx *TransactionManager) (*FeatureService, error) {
	s := &FeatureService{DB: db, Tx: tx}
	if err := s.ReloadCatalog(); err != nil {
		return nil, err
	}
	return s, nil
}

// ReloadCatalog rebuilds the immutable catalog from definitions + overrides.
// Called at startup and after an admin price adjustment.
func (s *FeatureService) ReloadCatalog() error {
	var overrides []models.FeaturePriceOverride
	if err := s.DB.Find(&overrides).Error; err != nil {
		return err
	}
	overrideCost := make(map[string]int64, len(overrides))
	for _, o := range overrides {
		overrideCost[o.FeatureKey] = o.Cost
	}

	catalog := &FeatureCatalog{features: make(map[string]FeatureDefinition, len(featureDefinitions))}
	for _, def := range featureDefinitions {
		if cost, ok := overrideCost[def.Key]; ok {
			def.Cost = cost
		}
		catalog.features[def.Key] = def
		catalog.order = append(catalog.order, def.Key)
	}
	s.catalog = catalog
	return nil
}

// Catalog returns the current immutable catalog.
func (s *FeatureService) Catalog() *FeatureCatalog { return s.catalog }

// Ownership returns the per-key ownership map for an account. Staff accounts
// own everything.
func Ownership(account *models.Account) map[string]bool {
	owned := make(map[string]bool, len(featureFlag))
	for key, flag := range featureFlag {
		owned[key] = account.IsStaff || *flag(account)
	}
	return owned
}

// Purchase runs the checkout flow: validate → spend → set ownership flag →
// record the purchase. Prerequisites are enforced here, not just in the
// recommendation UI. Staff checkout is a recorded no-cost ownership grant.
func (s *FeatureService) Purchase(ctx context.Context, accountID, featureKey string) (*models.FeaturePurchase, error) {
	def, ok := s.catalog.Get(featureKey)
	if !ok {
		return nil, ErrInvalidFeature
	}

	var account models.Account
	if err := s.DB.Where("id = ?", accountID).First(&account).Error; err != nil {
		return nil, err
	}

	if *featureFlag[featureKey](&account) {
		return nil, ErrFeatureAlreadyOwned
	}

	if !account.IsStaff {
		for _, prereq := range def.Prerequisites {
			if !*featureFlag[prereq](&account) {
				return nil, fmt.Errorf("%w: %s requires %s", ErrPrerequisiteMissing, def.Key, prereq)
			}
		}
	}

	purchase := models.FeaturePurchase{
		AccountID:  accountID,
		FeatureKey: featureKey,
	}

	if account.IsStaff {
		log.Printf("💳 staff account %s: feature %s granted without charge", accountID, featureKey)
	}

	// The flag, the purchase row and the charge commit in one transaction;
	// a concurrent checkout racing past the ownership check trips the
	// (account_id, feature_key) unique index and rolls the spend back too.
	key := featureKey
	_, err := s.Tx.SpendWith(ctx, accountID, def.Cost,
		models.SourceFeaturePurchase,
		fmt.Sprintf("Unlocked %s", def.Name),
		LedgerRef{FeatureKey: &key},
		func(tx *gorm.DB, entry *models.LedgerEntry) error {
			if entry != nil {
				purchase.LedgerEntryID = &entry.ID
				purchase.PricePaid = def.Cost
			}
			err := tx.Model(&models.Account{}).Where("id = ?", accountID).
				Update(featureColumn[featureKey], true).Error
			if err != nil {
				return err
			}
			return tx.Create(&purchase).Error
		})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrFeatureAlreadyOwned
		}
		return nil, err
	}

	return &purchase, nil
}

// AdjustPrice records an explicit admin price override and rebuilds the
// catalog.
func (s *FeatureService) AdjustPrice(featureKey string, cost int64, adjustedBy string) error {
	if _, ok := s.catalog.Get(featureKey); !ok {
		return ErrInvalidFeature
	}
	if cost <= 0 {
		return ErrInvalidAmount
	}

	override := models.FeaturePriceOverride{FeatureKey: featureKey}
	err := s.DB.Where("feature_key = ?", featureKey).
		Assign(models.FeaturePriceOverride{Cost: cost, AdjustedBy: adjustedBy}).
		FirstOrCreate(&override).Error
	if err != nil {
		return err
	}
	return s.ReloadCatalog()
}

// FeatureRecommendation is one purchasable next step for a user.
type FeatureRecommendation struct {
	FeatureDefinition
	Affordable bool `json:"affordable"`
}

// Recommend lists unowned features whose prerequisite chains are satisfied,
// flagged by affordability.
func (s *FeatureService) Recommend(account *models.Account) []FeatureRecommendation {
	owned := Ownership(account)
	var recs []FeatureRecommendation
	for _, def := range s.catalog.All() {
		if owned[def.Key] {
			continue
		}
		ready := true
		for _, prereq := range def.Prerequisites {
			if !owned[prereq] {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		recs = append(recs, FeatureRecommendation{
			FeatureDefinition: def,
			Affordable:        account.SpendableXP >= def.Cost,
		})
	}
	return recs
}
