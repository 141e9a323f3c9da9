package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-service/internal/models"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func TestNotifyStoresAndEnqueues(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "notify@example.com", nil, false)

	n, err := env.notifications.Notify(context.Background(), NotifyDTO{
		UserId: user.ID, Type: "DEPOSIT_APPROVED", Title: "Deposit approved", Message: "done",
		Metadata: map[string]any{"transactionId": "42"},
	})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.False(t, n.IsRead)

	require.Equal(t, 1, env.queue.count(TypeNotificationDeliver))
	var payload NotificationDeliverPayload
	require.NoError(t, json.Unmarshal(env.queue.tasks[0].Payload(), &payload))
	assert.Equal(t, n.ID, payload.NotificationId)
}

func TestNotifyKeepsRowWhenQueueFails(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = errors.New("queue down")
	user := env.createUser(t, "notify-down@example.com", nil, false)

	n, err := env.notifications.Notify(context.Background(), NotifyDTO{UserId: user.ID, Type: "X", Title: "t"})
	require.Error(t, err)
	require.NotNil(t, n)

	var stored int64
	require.NoError(t, env.db.Model(&models.Notification{}).Where("id = ?", n.ID).Count(&stored).Error)
	assert.Equal(t, int64(1), stored)
}

func TestDeliverSendsOnce(t *testing.T) {
	env := newTestEnv(t)
	mailer := &recordingMailer{}
	env.notifications.Mailer = mailer
	user := env.createUser(t, "deliver@example.com", nil, false)
	n, err := env.notifications.Notify(context.Background(), NotifyDTO{UserId: user.ID, Type: "X", Title: "Hello"})
	require.NoError(t, err)

	require.NoError(t, env.notifications.Deliver(context.Background(), n.ID))
	require.NoError(t, env.notifications.Deliver(context.Background(), n.ID))
	assert.Equal(t, []string{"deliver@example.com|Hello"}, mailer.sent)

	var stored models.Notification
	require.NoError(t, env.db.First(&stored, n.ID).Error)
	assert.NotNil(t, stored.DeliveredAt)

	assert.ErrorIs(t, env.notifications.Deliver(context.Background(), 999), ErrNotFound)
}

func TestDeliverFailureLeavesNotificationUndelivered(t *testing.T) {
	env := newTestEnv(t)
	env.notifications.Mailer = &recordingMailer{err: errors.New("smtp down")}
	user := env.createUser(t, "deliver-fail@example.com", nil, false)
	n, err := env.notifications.Notify(context.Background(), NotifyDTO{UserId: user.ID, Type: "X", Title: "Hello"})
	require.NoError(t, err)

	require.Error(t, env.notifications.Deliver(context.Background(), n.ID))
	var stored models.Notification
	require.NoError(t, env.db.First(&stored, n.ID).Error)
	assert.Nil(t, stored.DeliveredAt)
}

func TestListAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "inbox@example.com", nil, false)
	other := env.createUser(t, "inbox-other@example.com", nil, false)

	var last *models.Notification
	for i := 0; i < 3; i++ {
		n, err := env.notifications.Notify(ctx, NotifyDTO{UserId: user.ID, Type: "X", Title: "t"})
		require.NoError(t, err)
		last = n
	}

	items, page, err := env.notifications.List(ctx, user.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, last.ID, items[0].ID)
	assert.Equal(t, int64(3), page.Total)

	require.NoError(t, env.notifications.MarkRead(ctx, user.ID, last.ID))
	require.NoError(t, env.notifications.MarkRead(ctx, user.ID, last.ID))
	assert.ErrorIs(t, env.notifications.MarkRead(ctx, other.ID, last.ID), ErrNotFound)

	var stored models.Notification
	require.NoError(t, env.db.First(&stored, last.ID).Error)
	assert.True(t, stored.IsRead)
}

func TestPlunkMailer(t *testing.T) {
	var got plunkSendBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	mailer := NewPlunkMailer("sk_test", "noreply@example.com")
	mailer.APIURL = srv.URL
	require.NoError(t, mailer.Send(context.Background(), "to@example.com", "Subject", "Body"))
	assert.Equal(t, plunkSendBody{To: "to@example.com", Subject: "Subject", Body: "Body", From: "noreply@example.com"}, got)

	assert.Error(t, NewPlunkMailer("", "").Send(context.Background(), "to@example.com", "s", "b"))
}
