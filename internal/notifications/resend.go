package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fluxior-backend/internal/models"
	"github.com/resend/resend-go/v2"
)

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendClient mails the agency inbox when a lead comes in.
type ResendClient struct {
	emails   emailSender
	from     string
	notifyTo string
}

// NewResendClient returns nil when the API key, sender or recipient is missing.
func NewResendClient(apiKey, senderEmail, senderName, notifyTo string) *ResendClient {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(senderEmail) == "" || strings.TrimSpace(notifyTo) == "" {
		return nil
	}
	if strings.TrimSpace(senderName) == "" {
		senderName = senderEmail
	}
	return &ResendClient{
		emails:   resend.NewClient(apiKey).Emails,
		from:     fmt.Sprintf("%s <%s>", senderName, senderEmail),
		notifyTo: notifyTo,
	}
}

func (c *ResendClient) SendNewLeadNotification(ctx context.Context, lead models.Lead) (string, error) {
	if c == nil {
		return "", errors.New("resend client is nil")
	}
	htmlBody, err := buildNewLeadHTML(lead)
	if err != nil {
		return "", err
	}
	subject := "Nouveau lead : " + lead.Name
	if company := models.Deref(lead.Company); company != "" {
		subject += " (" + company + ")"
	}
	return c.sendHTML(ctx, c.notifyTo, subject, htmlBody, lead.Email)
}

func (c *ResendClient) sendHTML(ctx context.Context, to, subject, htmlBody, replyTo string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("missing recipient email")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("missing subject")
	}
	if strings.TrimSpace(htmlBody) == "" {
		return "", errors.New("missing html body")
	}

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
		ReplyTo: replyTo,
	}
	sent, err := c.emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	if sent == nil || strings.TrimSpace(sent.Id) == "" {
		return "", errors.New("resend response missing id")
	}
	return sent.Id, nil
}
