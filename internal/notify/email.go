// internal/notify/email.go
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"hackathon-portal/internal/common/config"
	apperrors "hackathon-portal/internal/common/errors"
	"hackathon-portal/internal/common/logger"
	"hackathon-portal/internal/models"
)

// Mailer sends applicant-facing mail. NoopMailer stands in when email is
// disabled in config or in tests.
type Mailer interface {
	SendDecisionEmail(ctx context.Context, to, name, formKey, decision string) error
}

// NoopMailer drops every send.
type NoopMailer struct{}

func (NoopMailer) SendDecisionEmail(context.Context, string, string, string, string) error {
	return nil
}

// SESMailer sends mail through AWS SES.
type SESMailer struct {
	client *ses.Client
	from   string
	log    logger.Logger
}

// NewMailer builds the configured mailer. Returns NoopMailer when decision
// email is disabled.
func NewMailer(ctx context.Context, cfg *config.Config, log logger.Logger) (Mailer, error) {
	if !cfg.Notify.Email.Enabled {
		return NoopMailer{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Notify.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.Notify.Email.FromEmail,
		log:    log,
	}, nil
}

// SendDecisionEmail tells an applicant their application was decided. The
// decision itself is not in the mail; applicants read it on the portal.
func (m *SESMailer) SendDecisionEmail(ctx context.Context, to, name, formKey, decision string) error {
	if decision != models.StatusAccepted && decision != models.StatusRejected {
		return nil
	}

	subject := "Your application status has been updated"
	body := fmt.Sprintf(
		"Hi %s,\n\nThere is an update on your application (%s). "+
			"Log in to the portal to view your status.\n\nThe HackDuke Team",
		name, formKey)

	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return apperrors.NewUpstreamFailureError("ses", err)
	}

	m.log.Info("decision email sent", map[string]interface{}{
		"to":       to,
		"form_key": formKey,
	})
	return nil
}
