// Package notify sends best-effort completion emails. Failures are logged
// and never propagated to the caller.
package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	appconfig "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/config"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/pipeline"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
)

type sesSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, opts ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailNotifier mails the user when their project finishes generating.
type EmailNotifier struct {
	client    sesSender
	fromEmail string
	logger    logger.Logger
}

func NewEmailNotifier(ctx context.Context, cfg appconfig.NotificationConfig, log logger.Logger) (*EmailNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}
	return &EmailNotifier{
		client:    ses.NewFromConfig(awsCfg),
		fromEmail: cfg.Email.FromEmail,
		logger:    log,
	}, nil
}

func (n *EmailNotifier) GenerationCompleted(ctx context.Context, email string, project *pipeline.Project) {
	noun := "video"
	if project.Kind == quota.KindComic {
		noun = "comic"
	}
	subject := fmt.Sprintf("Your %s %q is ready", noun, project.Title)
	body := fmt.Sprintf(
		"Hi,\n\nYour %s %q has finished generating with %d scenes.\n\nOpen the app to watch it.\n",
		noun, project.Title, len(project.Scenes),
	)

	input := &ses.SendEmailInput{
		Source: &n.fromEmail,
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: &subject},
			Body: &types.Body{
				Text: &types.Content{Data: &body},
			},
		},
	}

	if _, err := n.client.SendEmail(ctx, input); err != nil {
		n.logger.Warn("completion email failed", map[string]interface{}{
			"project_id": project.ID,
			"error":      err.Error(),
		})
		return
	}

	n.logger.Info("completion email sent", map[string]interface{}{
		"project_id": project.ID,
	})
}
