// Package ses provides review alert emails via AWS SES
package ses

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/utils"
)

// Client is the subset of the SES API used by the service.
type Client interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Service handles SES email operations
type Service struct {
	client    Client
	fromEmail string
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	ReplyTo  string
}

// ReviewAlertParams contains data for a manual review alert
type ReviewAlertParams struct {
	Recipient    string
	RequestID    string
	Kind         models.EntityKind
	Score        float64
	Threshold    float64
	ModelVersion string
	TopFactors   []models.Factor
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service
func NewService(ctx context.Context, region, fromEmail string) (*Service, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(ses.NewFromConfig(cfg), fromEmail), nil
}

// NewWithClient wraps an existing SES client
func NewWithClient(client Client, fromEmail string) *Service {
	return &Service{client: client, fromEmail: fromEmail}
}

// SendEmail sends a basic email
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (*SendEmailResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{params.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	// Add HTML body if provided
	if params.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	// Add text body if provided
	if params.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	// Add reply-to
	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		utils.GetLogger().Error("Failed to send email",
			zap.String("to", params.To),
			zap.String("subject", params.Subject),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	messageID := aws.ToString(result.MessageId)
	utils.GetLogger().Info("Email sent successfully",
		zap.String("to", params.To),
		zap.String("subject", params.Subject),
		zap.String("messageId", messageID),
	)

	return &SendEmailResult{
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}

// SendReviewAlert notifies underwriting that a score fell below threshold
func (s *Service) SendReviewAlert(ctx context.Context, params ReviewAlertParams) (*SendEmailResult, error) {
	htmlBody, err := renderReviewAlertHTML(params)
	if err != nil {
		return nil, fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Manual review: %s applicant scored %.0f (threshold %.0f)",
		params.Kind, params.Score, params.Threshold)

	return s.SendEmail(ctx, EmailParams{
		To:       params.Recipient,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: renderReviewAlertText(params),
	})
}

var reviewAlertTemplate = template.Must(template.New("review_alert").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #b03a2e; color: white; padding: 20px; border-radius: 8px 8px 0 0; }
        .content { background: #f9f9f9; padding: 20px; border-radius: 0 0 8px 8px; }
        table { width: 100%; border-collapse: collapse; }
        td, th { padding: 6px; border-bottom: 1px solid #ddd; text-align: left; }
        .negative { color: #b03a2e; }
        .positive { color: #1e8449; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Application flagged for manual review</h2>
        <p>{{.Kind}} applicant scored {{printf "%.1f" .Score}}, below the review threshold of {{printf "%.0f" .Threshold}}.</p>
    </div>
    <div class="content">
        <p>Request: <code>{{.RequestID}}</code><br>Scorer: <code>{{.ModelVersion}}</code></p>
        <table>
            <tr><th>Factor</th><th>Contribution</th></tr>
            {{range .TopFactors}}
            <tr><td>{{.Factor}}</td><td class="{{.Direction}}">{{printf "%+.1f" .Contribution}}</td></tr>
            {{end}}
        </table>
    </div>
</body>
</html>`))

func renderReviewAlertHTML(params ReviewAlertParams) (string, error) {
	var buf bytes.Buffer
	if err := reviewAlertTemplate.Execute(&buf, params); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderReviewAlertText(params ReviewAlertParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A %s applicant scored %.1f, below the review threshold of %.0f.\n\n",
		params.Kind, params.Score, params.Threshold)
	fmt.Fprintf(&b, "Request: %s\nScorer: %s\n\n", params.RequestID, params.ModelVersion)
	b.WriteString("Main factors:\n")
	for i, f := range params.TopFactors {
		fmt.Fprintf(&b, "%d. %s %+.1f\n", i+1, f.Factor, f.Contribution)
	}

	return b.String()
}
