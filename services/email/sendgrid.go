package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/MC-tan/school-database-app/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"

	maxAttempts = 3
	retryDelay  = 2 * time.Second // multiplied by the attempt number
)

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return &sendgridService{
		key:        conf.SendgridAPIKey,
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
				return
			}
			if err := svc.send(*msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email %q: %v", msg.Subject, err), err)
			}
		}(msg)
	}
}

func (svc sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	// roster workbooks travel base64 encoded, as the v3 API expects
	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// send posts msg to SendGrid. Transport errors and 5xx answers are retried; 4xx answers are not.
func (svc sendgridService) send(msg core.EmailMessage) error {
	body := sgmail.GetRequestBody(svc.prepare(msg))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req := sendgrid.GetRequest(svc.key, endpoint, host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := sendgrid.API(req)
		switch {
		case err != nil:
			lastErr = errors.Wrap(err, "calling sendgrid")
		case res.StatusCode >= http.StatusInternalServerError:
			lastErr = errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			return errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		default:
			return nil
		}
		if attempt < maxAttempts {
			time.Sleep(retryDelay * time.Duration(attempt))
		}
	}
	return lastErr
}
