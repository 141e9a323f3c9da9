package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"invest-service/internal/services"
)

// Task types handled by the worker.
const (
	TypeNotificationDeliver = services.TypeNotificationDeliver
	TypeGatewayPoll         = services.TypeGatewayPoll
)

func (w *Worker) HandleNotificationDeliver(ctx context.Context, t *asynq.Task) error {
	var p services.NotificationDeliverPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	err := w.Notifications.Deliver(ctx, p.NotificationId)
	if errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// HandleGatewayPoll settles one crypto deposit from its gateway status. Deposits
// that were decided in the meantime are dropped without retry.
func (w *Worker) HandleGatewayPoll(ctx context.Context, t *asynq.Task) error {
	var p services.GatewayPollPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	outcome, err := w.Deposits.SyncGatewayStatus(ctx, p.TransactionId)
	switch {
	case errors.Is(err, services.ErrAlreadyProcessed),
		errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrValidation):
		logrus.WithError(err).WithField("transaction_id", p.TransactionId).Info("gateway poll skipped")
		return nil
	case err != nil:
		return err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": p.TransactionId,
		"outcome":        outcome,
	}).Debug("gateway poll finished")
	return nil
}
