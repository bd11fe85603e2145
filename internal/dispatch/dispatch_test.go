// internal/dispatch/dispatch_test.go
package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"

	"storefront-notifier/internal/common/logger"
	"storefront-notifier/internal/models"
)

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

func testNotification() *models.Notification {
	return &models.Notification{
		ID:     "n1",
		UserID: "u1",
		Type:   "birthday",
		Title:  models.LocalizedText{EN: "Happy birthday!", EL: "Χρόνια πολλά!"},
		Message: models.LocalizedText{
			EN: "Enjoy 15% off.",
			EL: "Απολαύστε 15% έκπτωση.",
		},
	}
}

func TestNotifyEmail_UsesRecipientLocale(t *testing.T) {
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			assert.Equal(t, "maria@example.com", params.Destination.ToAddresses[0])
			assert.Equal(t, "noreply@storefront.example", *params.Source)
			assert.Equal(t, "Χρόνια πολλά!", *params.Message.Subject.Data)
			return &ses.SendEmailOutput{}, nil
		},
	}

	d := NewWithClients(Config{EmailEnabled: true, FromEmail: "noreply@storefront.example"},
		logger.NewTestLogger(t), mockSES, nil)

	user := models.User{ID: "u1", Email: "maria@example.com", Locale: "el"}
	d.NotifyEmail(context.Background(), user, testNotification())
	assert.Equal(t, 1, mockSES.calls)
}

func TestNotifyEmail_DisabledOrNoAddress(t *testing.T) {
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return &ses.SendEmailOutput{}, nil
		},
	}

	d := NewWithClients(Config{EmailEnabled: false}, logger.NewNoOpLogger(), mockSES, nil)
	d.NotifyEmail(context.Background(), models.User{Email: "a@b.c"}, testNotification())
	assert.Equal(t, 0, mockSES.calls)

	d = NewWithClients(Config{EmailEnabled: true, FromEmail: "x@y.z"}, logger.NewNoOpLogger(), mockSES, nil)
	d.NotifyEmail(context.Background(), models.User{Email: ""}, testNotification())
	assert.Equal(t, 0, mockSES.calls)
}

func TestNotifyEmail_FailureIsSwallowed(t *testing.T) {
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("ses throttled")
		},
	}

	d := NewWithClients(Config{EmailEnabled: true, FromEmail: "x@y.z"},
		logger.NewTestLogger(t), mockSES, nil)

	// Must not panic or propagate.
	d.NotifyEmail(context.Background(), models.User{ID: "u1", Email: "a@b.c"}, testNotification())
	assert.Equal(t, 1, mockSES.calls)
}

func TestNotifySMS(t *testing.T) {
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			assert.Equal(t, "+306912345678", *params.PhoneNumber)
			return &sns.PublishOutput{}, nil
		},
	}

	d := NewWithClients(Config{SMSEnabled: true}, logger.NewTestLogger(t), nil, mockSNS)
	d.NotifySMS(context.Background(), models.User{ID: "u1", Phone: "+306912345678"}, testNotification())
	assert.Equal(t, 1, mockSNS.calls)

	// No phone on file: skipped.
	d.NotifySMS(context.Background(), models.User{ID: "u2"}, testNotification())
	assert.Equal(t, 1, mockSNS.calls)
}
