// internal/dispatch/dispatch.go
// Package dispatch pushes created notifications out on external channels.
// The notification row is the record of delivery; dispatch is best-effort and
// a channel failure never fails the unit of work that created the row.
package dispatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"storefront-notifier/internal/common/logger"
	"storefront-notifier/internal/models"
)

// Interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	AWSRegion    string
	BaseURL      string
}

// Dispatcher sends notification copies by email and expiry reminders by SMS.
type Dispatcher struct {
	config    Config
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
}

func New(cfg Config, log logger.Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "dispatch"}),
	}

	if !cfg.EmailEnabled && !cfg.SMSEnabled {
		return d, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	d.sesClient = ses.NewFromConfig(awsCfg)
	d.snsClient = sns.NewFromConfig(awsCfg)
	return d, nil
}

// NewWithClients builds a Dispatcher around explicit clients. Used by tests.
func NewWithClients(cfg Config, log logger.Logger, sesClient SESService, snsClient SNSService) *Dispatcher {
	return &Dispatcher{
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatch"}),
		sesClient: sesClient,
		snsClient: snsClient,
	}
}

// NotifyEmail mails the user their localized copy of the notification.
// Failures are logged and swallowed.
func (d *Dispatcher) NotifyEmail(ctx context.Context, user models.User, n *models.Notification) {
	if !d.config.EmailEnabled || d.sesClient == nil || user.Email == "" {
		return
	}

	subject := n.Title.ForLocale(user.Locale)
	body := n.Message.ForLocale(user.Locale)
	if n.LinkURL != nil && d.config.BaseURL != "" {
		body += "\n\n" + d.config.BaseURL + *n.LinkURL
	}

	_, err := d.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{user.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.config.FromEmail),
	})
	if err != nil {
		d.logger.Warn("email dispatch failed", map[string]interface{}{
			"userId": user.ID,
			"type":   n.Type,
			"error":  err,
		})
	}
}

// NotifySMS texts the user an expiry reminder. Failures are logged and
// swallowed.
func (d *Dispatcher) NotifySMS(ctx context.Context, user models.User, n *models.Notification) {
	if !d.config.SMSEnabled || d.snsClient == nil || user.Phone == "" {
		return
	}

	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(user.Phone),
		Message:     aws.String(n.Message.ForLocale(user.Locale)),
	})
	if err != nil {
		d.logger.Warn("SMS dispatch failed", map[string]interface{}{
			"userId": user.ID,
			"type":   n.Type,
			"error":  err,
		})
	}
}
