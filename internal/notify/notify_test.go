package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         int
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls++
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       int
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls++
	return m.PublishFunc(ctx, params, optFns...)
}

func okSNS(t *testing.T) *MockSNSService {
	return &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
		assert.NotEmpty(t, *params.PhoneNumber)
		return &sns.PublishOutput{}, nil
	}}
}

func okSES(t *testing.T) *MockSESService {
	return &MockSESService{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		assert.Equal(t, "dispatch@example.com", *params.Source)
		return &ses.SendEmailOutput{}, nil
	}}
}

func enabled() SenderConfig {
	return SenderConfig{SMSEnabled: true, SenderID: "DISPATCH", EmailEnabled: true, FromEmail: "dispatch@example.com"}
}

func action(phone, email string) models.NotificationAction {
	return models.NotificationAction{
		ID:        "n-1",
		Type:      models.NotifyTechnicianDiversion,
		Recipient: models.Recipient{Contact: models.Contact{Phone: phone, Email: email}, Role: models.RoleTechnician},
		Subject:   "Emergency assignment job-1",
		Message:   "EMERGENCY: go to job-1",
		Urgency:   models.UrgencyUrgent,
	}
}

// ==========================
// Sender
// ==========================

func TestAWSSender_SMSAttributes(t *testing.T) {
	snsMock := &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
		assert.Equal(t, "+15550100", *params.PhoneNumber)
		assert.Equal(t, "EMERGENCY: go to job-1", *params.Message)
		assert.Equal(t, "Transactional", *params.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue)
		assert.Equal(t, "DISPATCH", *params.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue)
		return &sns.PublishOutput{}, nil
	}}

	channels, err := NewAWSSender(snsMock, okSES(t), enabled()).Send(context.Background(), action("+15550100", ""))
	require.NoError(t, err)
	assert.Equal(t, []Channel{ChannelSMS}, channels)
}

func TestAWSSender_EmailContent(t *testing.T) {
	sesMock := &MockSESService{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		assert.Equal(t, []string{"tech@example.com"}, params.Destination.ToAddresses)
		assert.Equal(t, "Emergency assignment job-1", *params.Message.Subject.Data)
		assert.Equal(t, "EMERGENCY: go to job-1", *params.Message.Body.Text.Data)
		return &ses.SendEmailOutput{}, nil
	}}

	channels, err := NewAWSSender(okSNS(t), sesMock, enabled()).Send(context.Background(), action("", "tech@example.com"))
	require.NoError(t, err)
	assert.Equal(t, []Channel{ChannelEmail}, channels)
}

func TestAWSSender_PartialFailureStillDelivers(t *testing.T) {
	snsMock := &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
		return nil, errors.New("throttled")
	}}

	channels, err := NewAWSSender(snsMock, okSES(t), enabled()).Send(context.Background(), action("+15550100", "tech@example.com"))
	require.NoError(t, err)
	assert.Equal(t, []Channel{ChannelEmail}, channels)
}

func TestAWSSender_Failures(t *testing.T) {
	failing := &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
		return nil, errors.New("throttled")
	}}

	tests := []struct {
		name   string
		sender *AWSSender
		action models.NotificationAction
	}{
		{"sms error", NewAWSSender(failing, okSES(t), enabled()), action("+15550100", "")},
		{"no contact", NewAWSSender(okSNS(t), okSES(t), enabled()), action("", "")},
		{"channels disabled", NewAWSSender(okSNS(t), okSES(t), SenderConfig{}), action("+15550100", "tech@example.com")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channels, err := tt.sender.Send(context.Background(), tt.action)
			require.Error(t, err)
			assert.Nil(t, channels)
			assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, apperrors.CodeOf(err))
		})
	}
}

// ==========================
// Dispatcher
// ==========================

type blockingSender struct{}

func (blockingSender) Send(ctx context.Context, action models.NotificationAction) ([]Channel, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDispatcher_ReportsPerAction(t *testing.T) {
	snsMock := &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
		return &sns.PublishOutput{}, nil
	}}
	d := NewDispatcher(NewAWSSender(snsMock, nil, SenderConfig{SMSEnabled: true}), time.Second, logger.NewTestLogger(t))

	first := action("+15550100", "")
	second := action("", "")
	second.ID = "n-2"
	third := action("+15550101", "")
	third.ID = "n-3"

	results := d.Dispatch(context.Background(), []models.NotificationAction{first, second, third})

	require.Len(t, results, 3)
	assert.True(t, results[0].Delivered)
	assert.False(t, results[1].Delivered)
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].Delivered)
	assert.Equal(t, "n-3", results[2].ActionID)
	assert.Equal(t, 2, snsMock.calls)
}

func TestDispatcher_TimeoutPerSend(t *testing.T) {
	d := NewDispatcher(blockingSender{}, 20*time.Millisecond, logger.NewNoOpLogger())

	start := time.Now()
	results := d.Dispatch(context.Background(), []models.NotificationAction{action("+1", ""), action("+2", "")})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Delivered)
		assert.Contains(t, r.Error, "deadline exceeded")
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestDispatcher_Empty(t *testing.T) {
	d := NewDispatcher(blockingSender{}, 0, logger.NewNoOpLogger())
	assert.Empty(t, d.Dispatch(context.Background(), nil))
}
