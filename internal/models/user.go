package models

import (
	"time"
)

const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleService = "service"
)

type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id,string"`
	Email        string    `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	FullName     string    `gorm:"column:full_name;size:255" json:"full_name"`
	CountryCode  string    `gorm:"column:country_code;size:2" json:"country_code"`
	Role         string    `gorm:"column:role;size:20;not null" json:"role"`
	ReferralCode string    `gorm:"column:referral_code;size:20;not null;uniqueIndex" json:"referral_code"`
	ReferredBy   *int64    `gorm:"column:referred_by;index" json:"referred_by,string,omitempty"`
	IsNewUser    bool      `gorm:"column:is_new_user;not null" json:"is_new_user"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
