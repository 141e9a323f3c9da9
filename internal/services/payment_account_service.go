package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"invest-service/internal/models"
)

type PaymentAccountService struct {
	DB *gorm.DB
}

func NewPaymentAccountService(db *gorm.DB) *PaymentAccountService {
	return &PaymentAccountService{DB: db}
}

type CreatePaymentAccountDTO struct {
	UserId            int64
	Type              models.PaymentAccountType
	Provider          string
	AccountIdentifier string
	AccountName       string
	IsDefault         bool
}

// Create adds an account. The user's first account, or one created with
// IsDefault, becomes the only default.
func (s *PaymentAccountService) Create(ctx context.Context, data CreatePaymentAccountDTO) (*models.PaymentAccount, error) {
	if data.Type != models.PaymentAccountCrypto && data.Type != models.PaymentAccountMobile {
		return nil, validationError("account type must be CRYPTO or MOBILE")
	}
	if strings.TrimSpace(data.Provider) == "" || strings.TrimSpace(data.AccountIdentifier) == "" {
		return nil, validationError("provider and account identifier are required")
	}

	account := models.PaymentAccount{
		UserId:            data.UserId,
		Type:              data.Type,
		Provider:          strings.TrimSpace(data.Provider),
		AccountIdentifier: strings.TrimSpace(data.AccountIdentifier),
		AccountName:       strings.TrimSpace(data.AccountName),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.PaymentAccount{}).Where("user_id = ?", data.UserId).Count(&existing).Error; err != nil {
			return err
		}
		account.IsDefault = data.IsDefault || existing == 0
		if account.IsDefault {
			if err := clearDefault(tx, data.UserId); err != nil {
				return err
			}
		}
		return tx.Create(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *PaymentAccountService) List(ctx context.Context, userId int64) ([]models.PaymentAccount, error) {
	accounts := make([]models.PaymentAccount, 0)
	err := s.DB.WithContext(ctx).Where("user_id = ?", userId).
		Order("is_default DESC").Order("id DESC").
		Find(&accounts).Error
	return accounts, err
}

// SetDefault makes the account the user's only default.
func (s *PaymentAccountService) SetDefault(ctx context.Context, userId, accountId int64) (*models.PaymentAccount, error) {
	var account models.PaymentAccount
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", accountId, userId).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("payment account", accountId)
			}
			return err
		}
		if err := clearDefault(tx, userId); err != nil {
			return err
		}
		account.IsDefault = true
		return tx.Model(&account).Update("is_default", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Delete soft-deletes the account. Deleting the default hands the flag to the
// most recently added remaining account.
func (s *PaymentAccountService) Delete(ctx context.Context, userId, accountId int64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.PaymentAccount
		if err := tx.Where("id = ? AND user_id = ?", accountId, userId).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("payment account", accountId)
			}
			return err
		}
		if err := tx.Delete(&account).Error; err != nil {
			return err
		}
		if !account.IsDefault {
			return nil
		}

		var next models.PaymentAccount
		err := tx.Where("user_id = ?", userId).Order("created_at DESC").Order("id DESC").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&next).Update("is_default", true).Error
	})
}

func clearDefault(tx *gorm.DB, userId int64) error {
	return tx.Model(&models.PaymentAccount{}).
		Where("user_id = ? AND is_default = ?", userId, true).
		Update("is_default", false).Error
}
