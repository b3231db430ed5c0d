package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/trungle-dev/vid2mp3/internal/domain"
)

// Notifier delivers a "your conversion is ready" message to the requester
// recorded on the job.
type Notifier interface {
	Notify(ctx context.Context, job *domain.Job) error
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	User     string
	Password string
}

// SMTPNotifier sends notifications as plain-text email.
type SMTPNotifier struct {
	config *SMTPConfig
	logger *slog.Logger
}

// NewSMTPNotifier creates an SMTP-backed notifier.
func NewSMTPNotifier(config *SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		config: config,
		logger: logger,
	}
}

func (n *SMTPNotifier) Notify(ctx context.Context, job *domain.Job) error {
	if job.Requester == "" {
		return fmt.Errorf("job %s has no requester address", job.JobID)
	}

	body := fmt.Sprintf(
		"To: %s\r\nSubject: Your MP3 is ready\r\n\r\n"+
			"Conversion %s finished. Download it with file id %s.\r\n",
		job.Requester, job.JobID, job.OutputRef,
	)

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)

	var auth smtp.Auth
	if n.config.User != "" {
		auth = smtp.PlainAuth("", n.config.User, n.config.Password, n.config.Host)
	}

	if err := smtp.SendMail(addr, auth, n.config.From, []string{job.Requester}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send notification mail: %w", err)
	}

	n.logger.Info("Notification mail sent",
		slog.String("job_id", job.JobID),
		slog.String("requester", job.Requester),
	)

	return nil
}

// LogNotifier writes notifications to the log only. Used when SMTP is
// disabled and as the default for local runs.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, job *domain.Job) error {
	n.logger.Info("Conversion ready",
		slog.String("job_id", job.JobID),
		slog.String("requester", job.Requester),
		slog.String("output_ref", job.OutputRef),
	)
	return nil
}
