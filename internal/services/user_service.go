package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"invest-service/internal/models"
	"invest-service/pkg/common"
)

const referralCodeLength = 8

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

type RegisterUserDTO struct {
	Email        string
	FullName     string
	CountryCode  string
	ReferralCode string
}

// Register creates a user flagged as new. A valid referral code links the user
// to the referrer and opens a PENDING referral.
func (s *UserService) Register(ctx context.Context, data RegisterUserDTO) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(data.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationError("a valid email is required")
	}

	var user models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referrer *models.User
		if code := strings.ToUpper(strings.TrimSpace(data.ReferralCode)); code != "" {
			var r models.User
			if err := tx.Where("referral_code = ?", code).First(&r).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return validationError("unknown referral code %q", code)
				}
				return err
			}
			referrer = &r
		}

		user = models.User{
			Email:       email,
			FullName:    strings.TrimSpace(data.FullName),
			CountryCode: strings.ToUpper(strings.TrimSpace(data.CountryCode)),
			Role:        models.RoleUser,
			IsNewUser:   true,
		}
		if referrer != nil {
			user.ReferredBy = &referrer.ID
		}

		if err := createWithReferralCode(tx, &user); err != nil {
			return err
		}

		if referrer == nil {
			return nil
		}
		return tx.Create(&models.Referral{
			ReferredBy: referrer.ID,
			UserId:     user.ID,
			Earnings:   decimal.Zero,
			Status:     models.ReferralPending,
			SignedUpAt: time.Now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "referred": user.ReferredBy != nil}).Info("user registered")
	return &user, nil
}

// createWithReferralCode inserts the user, drawing a new referral code on collision.
func createWithReferralCode(tx *gorm.DB, user *models.User) error {
	var lastErr error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		user.ID = 0
		user.ReferralCode = common.GenerateCode(referralCodeLength)
		err := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(user).Error
		})
		if err == nil {
			return nil
		}
		if !isDuplicateKey(err) {
			return err
		}
		var taken int64
		if cerr := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&taken).Error; cerr == nil && taken > 0 {
			return validationError("email %s is already registered", user.Email)
		}
		lastErr = err
	}
	return fmt.Errorf("allocate referral code: %w", lastErr)
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("user", id)
		}
		return nil, err
	}
	return &user, nil
}
