package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"invest-service/pkg/common"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

const defaultPlunkURL = "https://api.useplunk.com/v1/send"

// PlunkMailer sends transactional email through the Plunk HTTP API.
type PlunkMailer struct {
	APIKey string
	From   string
	APIURL string
}

func NewPlunkMailer(apiKey, from string) *PlunkMailer {
	return &PlunkMailer{APIKey: apiKey, From: from, APIURL: defaultPlunkURL}
}

type plunkSendBody struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
}

func (m *PlunkMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.APIKey == "" {
		return fmt.Errorf("plunk not configured: set PLUNK_API_KEY")
	}
	payload := plunkSendBody{To: to, Subject: subject, Body: body, From: m.From}
	headers := map[string]string{"Authorization": "Bearer " + m.APIKey}
	if err := common.PostJSON(ctx, m.APIURL, payload, headers, nil); err != nil {
		return fmt.Errorf("plunk send failed: %w", err)
	}
	return nil
}

// LogMailer writes messages to the log. Used when no email provider is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email delivery skipped, no provider configured")
	return nil
}
