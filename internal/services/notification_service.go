package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"invest-service/internal/models"
	"invest-service/pkg/common"
)

const (
	TypeNotificationDeliver = "notification:deliver"
	TypeGatewayPoll         = "deposit:poll-gateway"
)

// TaskEnqueuer is the part of *asynq.Client the services need.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type NotificationService struct {
	DB     *gorm.DB
	Queue  TaskEnqueuer
	Mailer Mailer
}

func NewNotificationService(db *gorm.DB, queue TaskEnqueuer, mailer Mailer) *NotificationService {
	return &NotificationService{DB: db, Queue: queue, Mailer: mailer}
}

type NotifyDTO struct {
	UserId   int64
	Type     string
	Title    string
	Message  string
	Metadata map[string]any
}

type NotificationDeliverPayload struct {
	NotificationId int64 `json:"notificationId"`
}

// Notify stores an in-app notification and queues its email delivery.
func (s *NotificationService) Notify(ctx context.Context, data NotifyDTO) (*models.Notification, error) {
	n := models.Notification{
		UserId:   data.UserId,
		Type:     data.Type,
		Title:    data.Title,
		Message:  data.Message,
		Metadata: data.Metadata,
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if s.Queue != nil {
		payload, err := json.Marshal(NotificationDeliverPayload{NotificationId: n.ID})
		if err != nil {
			return &n, err
		}
		task := asynq.NewTask(TypeNotificationDeliver, payload)
		if _, err := s.Queue.EnqueueContext(ctx, task,
			asynq.TaskID(fmt.Sprintf("notification:%d", n.ID)),
			asynq.MaxRetry(5),
		); err != nil {
			return &n, fmt.Errorf("enqueue notification %d: %w", n.ID, err)
		}
	}
	return &n, nil
}

// Deliver emails a stored notification once. Already delivered notifications are skipped.
func (s *NotificationService) Deliver(ctx context.Context, notificationId int64) error {
	db := s.DB.WithContext(ctx)

	var n models.Notification
	if err := db.First(&n, notificationId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("notification", notificationId)
		}
		return err
	}
	if n.DeliveredAt != nil {
		return nil
	}

	var user models.User
	if err := db.First(&user, n.UserId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("user", n.UserId)
		}
		return err
	}

	mailer := s.Mailer
	if mailer == nil {
		mailer = LogMailer{}
	}
	if err := mailer.Send(ctx, user.Email, n.Title, n.Message); err != nil {
		return err
	}

	now := time.Now()
	return db.Model(&models.Notification{}).
		Where("id = ? AND delivered_at IS NULL", n.ID).
		Update("delivered_at", now).Error
}

func (s *NotificationService) List(ctx context.Context, userId int64, page, limit int) ([]models.Notification, common.Pagination, error) {
	page, limit = common.NormalizePage(page, limit)
	query := s.DB.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userId)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, common.Pagination{}, err
	}

	notifications := make([]models.Notification, 0)
	if err := query.Order("id DESC").Offset(common.Offset(page, limit)).Limit(limit).Find(&notifications).Error; err != nil {
		return nil, common.Pagination{}, err
	}
	return notifications, common.NewPagination(total, page, limit), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userId, notificationId int64) error {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationId, userId).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL reports zero affected rows when the flag was already set.
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationId, userId).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFoundError("notification", notificationId)
	}
	return nil
}
