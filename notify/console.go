// Package notify holds the delivery channels behind password reset links:
// a console writer for development and a sendgrid sender for production.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	auth "github.com/classpad/portal-auth"
)

// ConsoleNotifier prints reset links to the process log. It is the
// development default so the full flow works without an email provider.
type ConsoleNotifier struct {
	AppName string
	BaseURL string
	// DisableOutput silences the log writer, used by tests.
	DisableOutput bool
}

// NewConsoleNotifier returns a console-backed notifier.
func NewConsoleNotifier(appName, baseURL string) *ConsoleNotifier {
	return &ConsoleNotifier{
		AppName: appName,
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Notify implements auth.Notifier.
func (n *ConsoleNotifier) Notify(_ context.Context, msg auth.Notification) error {
	body := new(strings.Builder)

	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: [%s] %s\r\n", n.AppName, subjectFor(msg))
	_, _ = fmt.Fprintf(body, "To: %s\r\n", msg.To)
	_, _ = fmt.Fprint(body, "\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", textBody(n.BaseURL, msg))

	if !n.DisableOutput {
		log.Println(body.String())
	}

	return nil
}

func subjectFor(msg auth.Notification) string {
	switch msg.Kind {
	case auth.NotificationPasswordReset:
		return "Reset your password"
	default:
		return string(msg.Kind)
	}
}

func textBody(baseURL string, msg auth.Notification) string {
	name := msg.Name
	if name == "" {
		name = "there"
	}

	link := fmt.Sprintf("%s/password-reset/%s", baseURL, msg.Token)

	return fmt.Sprintf(
		"Hi %s,\n\nFollow this link to choose a new password:\n\n  %s\n\nThe link expires at %s. If you did not ask for this, ignore this message.",
		name,
		link,
		msg.Expires.Format(time.RFC1123Z),
	)
}

var _ auth.Notifier = (*ConsoleNotifier)(nil)
