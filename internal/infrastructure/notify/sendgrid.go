// Package notify delivers escalation messages to members.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/notification"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
	"github.com/nardi-attend/attendance-hub/pkg/retry"
)

const (
	defaultHost    = "https://api.sendgrid.com"
	endpoint       = "/v3/mail/send"
	defaultTimeout = 10 * time.Second
)

// SendGridConfig configures SendGridSender.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string

	// SubjectPrefix is prepended to every subject, e.g. "[Attendance] ".
	SubjectPrefix string

	// Host overrides the API host.
	Host string

	// RequestTimeout bounds a single API call, retries excluded.
	RequestTimeout time.Duration
}

// SendGridSender sends escalation emails through the SendGrid v3 API.
type SendGridSender struct {
	config  SendGridConfig
	from    *sgmail.Email
	client  *rest.Client
	retrier *retry.Retrier
	logger  *slog.Logger
}

var _ notification.Sender = (*SendGridSender)(nil)

// NewSendGridSender creates a SendGridSender.
func NewSendGridSender(cfg SendGridConfig, log *slog.Logger) (*SendGridSender, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, shared.NewDomainError("notify", "NewSendGridSender", shared.ErrConfiguration,
			"sendgrid api key and sender address are required")
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &SendGridSender{
		config:  cfg,
		from:    sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: cfg.RequestTimeout}},
		retrier: retry.EmailRetrier(),
		logger:  log.With(logger.Component("sendgrid")),
	}, nil
}

// SendWarning implements notification.Sender.
func (s *SendGridSender) SendWarning(ctx context.Context, m *member.Member, streak int) error {
	return s.send(ctx, notification.WarningMessage(m, streak))
}

// SendBlock implements notification.Sender.
func (s *SendGridSender) SendBlock(ctx context.Context, m *member.Member) error {
	return s.send(ctx, notification.BlockMessage(m))
}

func (s *SendGridSender) prepare(msg notification.Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.config.SubjectPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.Name, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	return m
}

func (s *SendGridSender) send(ctx context.Context, msg notification.Message) error {
	if msg.To == "" {
		return shared.ErrNoRecipient
	}

	body := sgmail.GetRequestBody(s.prepare(msg))

	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		req := sendgrid.GetRequest(s.config.APIKey, endpoint, s.config.Host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := s.do(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(err)
			}
			return retry.Retryable(err)
		}
		switch {
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
			return retry.Retryable(fmt.Errorf("sendgrid status %d", res.StatusCode))
		case res.StatusCode >= http.StatusBadRequest:
			return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "email delivery failed",
			slog.String("kind", string(msg.Kind)),
			logger.Err(err),
		)
		return shared.WrapError("notify", "Send", shared.ErrExternalService, "email delivery failed", err)
	}

	s.logger.InfoContext(ctx, "email sent", slog.String("kind", string(msg.Kind)))
	return nil
}

// do sends req bound to ctx. The package-level sendgrid.API uses a shared
// client that never sees the context.
func (s *SendGridSender) do(ctx context.Context, req rest.Request) (*rest.Response, error) {
	httpReq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, err
	}
	httpRes, err := s.client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return rest.BuildResponse(httpRes)
}
