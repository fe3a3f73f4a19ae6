package ses

import (
	"context"
	"fmt"
	"html"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"labdesk/internal/domain"
	"labdesk/internal/port"
)

// emailAPI is the subset of the SES v2 client used here.
type emailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesSender struct {
	client      emailAPI
	fromAddress string
	recipients  []string
}

// NewSESSender creates an SES-backed AlertSender that mails reconciliation
// alerts to the configured operator recipients.
func NewSESSender(region, fromAddress string, recipients []string) (port.AlertSender, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("SES alert sender: no recipients configured")
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return newSender(sesv2.NewFromConfig(cfg), fromAddress, recipients), nil
}

func newSender(client emailAPI, fromAddress string, recipients []string) *sesSender {
	return &sesSender{client: client, fromAddress: fromAddress, recipients: recipients}
}

func (s *sesSender) SendReconciliationAlert(ctx context.Context, billID string, a domain.Ambiguity) error {
	subject := fmt.Sprintf("Payment mismatch on test request %s (%s)", billID, a.Direction)
	textBody := buildAlertText(billID, a)
	htmlBody := buildAlertHTML(billID, a)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &s.fromAddress,
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildAlertText(billID string, a domain.Ambiguity) string {
	return fmt.Sprintf("The remote paid amount and the local payment log disagree for test request %s.\n\n"+
		"Remote paid: %s\nLocal total: %s\nDifference: %s (%s)\n\n"+
		"The console shows the larger figure. Check the payment log and the lab system before verifying this bill.\n",
		billID, a.RemotePaid.StringFixed(2), a.LocalTotal.StringFixed(2), a.Difference.StringFixed(2), a.Direction)
}

func buildAlertHTML(billID string, a domain.Ambiguity) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Payment mismatch</h2>
  <p>The remote paid amount and the local payment log disagree for test request <strong>%s</strong>.</p>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 12px;">Remote paid</td><td style="padding: 4px 12px;">%s</td></tr>
    <tr><td style="padding: 4px 12px;">Local total</td><td style="padding: 4px 12px;">%s</td></tr>
    <tr><td style="padding: 4px 12px;">Difference</td><td style="padding: 4px 12px;">%s (%s)</td></tr>
  </table>
  <p>The console shows the larger figure. Check the payment log and the lab system before verifying this bill.</p>
</body>
</html>`, html.EscapeString(billID), a.RemotePaid.StringFixed(2), a.LocalTotal.StringFixed(2),
		a.Difference.StringFixed(2), html.EscapeString(string(a.Direction)))
}
