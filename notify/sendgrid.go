package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	auth "github.com/classpad/portal-auth"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridNotifier delivers reset links through the sendgrid mail API.
type SendgridNotifier struct {
	key     string
	from    *sgmail.Email
	appName string
	baseURL string
}

// NewSendgridNotifier builds a notifier for the given API key and sender.
func NewSendgridNotifier(apiKey, fromName, fromAddress, appName, baseURL string) *SendgridNotifier {
	return &SendgridNotifier{
		key:     apiKey,
		from:    sgmail.NewEmail(fromName, fromAddress),
		appName: appName,
		baseURL: baseURL,
	}
}

// Notify implements auth.Notifier.
func (n *SendgridNotifier) Notify(_ context.Context, msg auth.Notification) error {
	req := sendgrid.GetRequest(n.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(n.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email - status: %d - body: %s", res.StatusCode, res.Body)
	}

	return nil
}

func (n *SendgridNotifier) prepare(msg auth.Notification) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = fmt.Sprintf("[%s] %s", n.appName, subjectFor(msg))
	p.AddTos(sgmail.NewEmail(msg.Name, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)

	text := textBody(n.baseURL, msg)
	m.AddContent(
		sgmail.NewContent("text/plain", text),
	)

	return m
}

var _ auth.Notifier = (*SendgridNotifier)(nil)
