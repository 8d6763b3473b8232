package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/pkg/logger"
)

// SESNotifier emails potential approvers when a device request is waiting.
type SESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewSESNotifier creates a notifier backed by AWS SES.
func NewSESNotifier(region, fromAddress, baseURL string, log *slog.Logger) (*SESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      log,
	}, nil
}

// NotifyPendingRequest emails each recipient about the pending request.
// A failure for one recipient does not stop the rest; the last error is
// returned so the caller can log it.
func (n *SESNotifier) NotifyPendingRequest(ctx context.Context, req *models.AuthRequest, requester *models.User, recipients []*models.User) error {
	reviewLink := fmt.Sprintf("%s/requests/%s", n.baseURL, req.ID)

	subject := fmt.Sprintf("%s is waiting for device approval", requester.Username)

	textBody := fmt.Sprintf(`%s is trying to sign in from a new device and needs approval.

Device: %s
Requested at: %s

Review the request:
%s

If you don't recognize this activity, you can ignore this email or ask an admin to reject the request.
`, requester.Username, req.UserAgent, req.CreatedAt.Format("Jan 2, 2006 15:04 MST"), reviewLink)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .meta { background-color: #f8f9fa; padding: 10px; border-radius: 4px; font-size: 14px; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Device Approval Needed</h1>
        </div>
        <div class="content">
            <p><strong>%s</strong> is trying to sign in from a new device and needs approval.</p>
            <div class="meta">
                Device: %s<br>
                Requested at: %s
            </div>
            <p><a href="%s" class="button">Review Request</a></p>
            <p>If you don't recognize this activity, you can ignore this email or ask an admin to reject the request.</p>
        </div>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, requester.Username, req.UserAgent, req.CreatedAt.Format("Jan 2, 2006 15:04 MST"), reviewLink)

	var lastErr error
	sent := 0
	for _, recipient := range recipients {
		if recipient.Email == nil {
			continue
		}

		input := &ses.SendEmailInput{
			Source: aws.String(n.fromAddress),
			Destination: &types.Destination{
				ToAddresses: []string{*recipient.Email},
			},
			Message: &types.Message{
				Subject: &types.Content{
					Data: aws.String(subject),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data: aws.String(htmlBody),
					},
					Text: &types.Content{
						Data: aws.String(textBody),
					},
				},
			},
		}

		result, err := n.sesClient.SendEmail(ctx, input)
		if err != nil {
			n.logger.Error("failed to send approval notification via SES",
				slog.String("email", logger.SanitizedEmail(*recipient.Email)),
				slog.Any("error", err))
			lastErr = err
			continue
		}

		sent++
		n.logger.Info("approval notification sent",
			slog.String("email", logger.SanitizedEmail(*recipient.Email)),
			slog.String("message_id", *result.MessageId))
	}

	n.logger.Info("approver notifications dispatched",
		slog.Any("request_id", req.ID),
		slog.Int("sent", sent),
		slog.Int("recipients", len(recipients)),
	)

	return lastErr
}
