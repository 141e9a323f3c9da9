package models

import "time"

type Notification struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id,string"`
	UserId      int64          `gorm:"column:user_id;not null;index" json:"user_id,string"`
	Type        string         `gorm:"column:type;size:50;not null" json:"type"`
	Title       string         `gorm:"column:title;size:255;not null" json:"title"`
	Message     string         `gorm:"column:message;type:text" json:"message"`
	Metadata    map[string]any `gorm:"column:metadata;type:text;serializer:json" json:"metadata,omitempty"`
	IsRead      bool           `gorm:"column:is_read;not null" json:"is_read"`
	DeliveredAt *time.Time     `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// AdminActivity is the audit trail of administrator decisions.
type AdminActivity struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id,string"`
	AdminId    int64          `gorm:"column:admin_id;not null;index" json:"admin_id,string"`
	Action     string         `gorm:"column:action;size:100;not null" json:"action"`
	EntityType string         `gorm:"column:entity_type;size:50;not null" json:"entity_type"`
	EntityId   int64          `gorm:"column:entity_id;not null" json:"entity_id,string"`
	IpAddress  string         `gorm:"column:ip_address;size:64" json:"ip_address"`
	UserAgent  string         `gorm:"column:user_agent;size:512" json:"user_agent"`
	Metadata   map[string]any `gorm:"column:metadata;type:text;serializer:json" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AdminActivity) TableName() string {
	return "admin_activities"
}
