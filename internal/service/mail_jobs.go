package service

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/saludbit/impactou-api/pkg/jobs"
	"github.com/saludbit/impactou-api/pkg/mailer"
)

// JobSendMail delivers a mailer.Message in the background.
const JobSendMail = "mail.send"

// NewMailJobHandler delivers queued messages through m. Returned errors make
// the queue retry the job.
func NewMailJobHandler(m mailer.Mailer, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			logger.Error("mail job with unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		if err := m.Send(ctx, msg); err != nil {
			return fmt.Errorf("send %s mail: %w", msg.Category, err)
		}
		logger.Info("mail delivered", zap.String("job_id", job.ID), zap.String("category", msg.Category))
		return nil
	}
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
