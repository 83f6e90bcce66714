// Package notify delivers diversion notifications over SMS and email.
package notify

import (
	"context"
	"fmt"

	commonaws "dispatch-workers/internal/common/aws"
	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Sender delivers one notification. It does not retry.
type Sender interface {
	Send(ctx context.Context, action models.NotificationAction) ([]Channel, error)
}

type SenderConfig struct {
	SMSEnabled   bool
	SenderID     string
	EmailEnabled bool
	FromEmail    string
}

// AWSSender sends SMS through SNS and email through SES.
type AWSSender struct {
	sms   commonaws.SMSPublisher
	email commonaws.EmailSender
	cfg   SenderConfig
}

func NewAWSSender(sms commonaws.SMSPublisher, email commonaws.EmailSender, cfg SenderConfig) *AWSSender {
	return &AWSSender{sms: sms, email: email, cfg: cfg}
}

// Send uses every channel the recipient has that is enabled. It fails only when
// no channel delivered.
func (s *AWSSender) Send(ctx context.Context, action models.NotificationAction) ([]Channel, error) {
	var sent []Channel
	var lastErr error

	if s.cfg.SMSEnabled && s.sms != nil && action.Recipient.Phone != "" {
		if err := s.sendSMS(ctx, action); err != nil {
			lastErr = err
		} else {
			sent = append(sent, ChannelSMS)
		}
	}

	if s.cfg.EmailEnabled && s.email != nil && action.Recipient.Email != "" {
		if err := s.sendEmail(ctx, action); err != nil {
			lastErr = err
		} else {
			sent = append(sent, ChannelEmail)
		}
	}

	if len(sent) > 0 {
		return sent, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no enabled channel for recipient %q", action.Recipient.Role)
	}
	return nil, errors.NewNotificationSendFailedError(string(action.Type), lastErr)
}

func (s *AWSSender) sendSMS(ctx context.Context, action models.NotificationAction) error {
	smsType := "Promotional"
	if action.Urgency == models.UrgencyUrgent {
		smsType = "Transactional"
	}

	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String(smsType)},
	}
	if s.cfg.SenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.cfg.SenderID)}
	}

	_, err := s.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(action.Recipient.Phone),
		Message:           aws.String(action.Message),
		MessageAttributes: attrs,
	})
	return err
}

func (s *AWSSender) sendEmail(ctx context.Context, action models.NotificationAction) error {
	subject := action.Subject
	if subject == "" {
		subject = string(action.Type)
	}

	_, err := s.email.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{action.Recipient.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(action.Message)},
			},
		},
		Source: aws.String(s.cfg.FromEmail),
	})
	return err
}
