package services

import (
	"context"

	"gorm.io/gorm"

	"invest-service/internal/models"
)

type AuditService struct {
	DB *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{DB: db}
}

type AuditEntryDTO struct {
	AdminId    int64
	Action     string
	EntityType string
	EntityId   int64
	IpAddress  string
	UserAgent  string
	Metadata   map[string]any
}

func (s *AuditService) Record(ctx context.Context, data AuditEntryDTO) error {
	return s.DB.WithContext(ctx).Create(&models.AdminActivity{
		AdminId:    data.AdminId,
		Action:     data.Action,
		EntityType: data.EntityType,
		EntityId:   data.EntityId,
		IpAddress:  data.IpAddress,
		UserAgent:  data.UserAgent,
		Metadata:   data.Metadata,
	}).Error
}
