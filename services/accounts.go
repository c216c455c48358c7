// services/accounts.go
package services

import (
	"errors"
	"log"

	"verifast/models"

	"gorm.io/gorm"
)

// AccountService provisions and loads reader accounts. Identity lives in the
// profile service; the row here carries only the XP economy state.
type AccountService struct {
	DB *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{DB: db}
}

// EnsureAccount loads the account for a gateway user id, creating a zeroed
// row on first contact. Staff status follows the gateway role claim.
func (s *AccountService) EnsureAccount(userID string, isStaff bool) (*models.Account, error) {
	var account models.Account
	err := s.DB.Where("id = ?", userID).First(&account).Error
	if err == nil {
		if isStaff && !account.IsStaff {
			// Role promoted upstream; mirror it locally
			if err := s.DB.Model(&account).Update("is_staff", true).Error; err != nil {
				return nil, err
			}
			account.IsStaff = true
		}
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// The gateway user id is both our primary key and the external identity
	account = models.Account{ID: userID, ExternalUserID: userID, IsStaff: isStaff}
	if err := s.DB.Create(&account).Error; err != nil {
		// Lost a create race; the row exists now
		if createErr := s.DB.Where("id = ?", userID).First(&account).Error; createErr != nil {
			return nil, err
		}
		return &account, nil
	}
	log.Printf("✅ provisioned account %s (staff=%t)", userID, isStaff)
	return &account, nil
}
