package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invest-service/internal/models"
)

// BonusRates is the percentage snapshot one approval works with from start to end.
type BonusRates struct {
	Registration decimal.Decimal
	Referral     decimal.Decimal
	FirstDeposit decimal.Decimal
}

type SettingsService struct {
	DB *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

var percentageSettings = map[string]bool{
	models.SettingRegistrationBonusPercentage: true,
	models.SettingReferralBonusPercentage:     true,
	models.SettingFirstDepositBonusPercentage: true,
	models.SettingWithdrawalFeePercentage:     true,
	models.SettingMinimumWithdrawal:           false,
	models.SettingMinimumDeposit:              false,
}

// All returns every known setting, zero-valued when unset.
func (s *SettingsService) All(ctx context.Context) (map[string]decimal.Decimal, error) {
	var rows []models.SystemSetting
	if err := s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(percentageSettings))
	for key := range percentageSettings {
		out[key] = decimal.Zero
	}
	for _, row := range rows {
		if _, known := percentageSettings[row.Key]; !known {
			continue
		}
		v, err := decimal.NewFromString(row.Value)
		if err != nil {
			return nil, fmt.Errorf("setting %s has invalid value %q: %w", row.Key, row.Value, err)
		}
		out[row.Key] = v
	}
	return out, nil
}

func (s *SettingsService) Get(ctx context.Context, key string) (decimal.Decimal, error) {
	all, err := s.All(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	v, ok := all[key]
	if !ok {
		return decimal.Zero, validationError("unknown setting %q", key)
	}
	return v, nil
}

// Update upserts the given settings. Values must be non-negative and percentages at most 100.
func (s *SettingsService) Update(ctx context.Context, values map[string]decimal.Decimal) error {
	if len(values) == 0 {
		return validationError("no settings given")
	}

	rows := make([]models.SystemSetting, 0, len(values))
	for key, v := range values {
		isPercentage, known := percentageSettings[key]
		if !known {
			return validationError("unknown setting %q", key)
		}
		if v.IsNegative() {
			return validationError("%s must not be negative", key)
		}
		if isPercentage && v.GreaterThan(hundred) {
			return validationError("%s must be at most 100", key)
		}
		rows = append(rows, models.SystemSetting{Key: key, Value: v.String(), UpdatedAt: time.Now()})
	}

	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
}

// BonusRates reads the three bonus percentages once.
func (s *SettingsService) BonusRates(ctx context.Context) (BonusRates, error) {
	all, err := s.All(ctx)
	if err != nil {
		return BonusRates{}, err
	}
	return BonusRates{
		Registration: all[models.SettingRegistrationBonusPercentage],
		Referral:     all[models.SettingReferralBonusPercentage],
		FirstDeposit: all[models.SettingFirstDepositBonusPercentage],
	}, nil
}
