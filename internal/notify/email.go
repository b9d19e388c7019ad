package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/example/room-reservations/internal/application"
)

// Message is a rendered e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender transmits a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends through an SMTP relay with optional PLAIN auth.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Send implements Sender. net/smtp has no context support, so ctx is only
// checked before the dial.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("notify: message has no recipient")
	}

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "From: %s\r\n", s.From)
	fmt.Fprintf(&body, "To: %s\r\n", msg.To)
	fmt.Fprintf(&body, "Subject: %s\r\n", msg.Subject)
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	body.WriteString(msg.HTML)

	send := s.send
	if send == nil {
		send = smtp.SendMail
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	if err := send(addr, auth, s.From, []string{msg.To}, body.Bytes()); err != nil {
		return fmt.Errorf("notify: smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// EmailSink renders an HTML message per event and mails it to the
// reservation owner.
type EmailSink struct {
	sender Sender
}

// NewEmailSink returns a sink that sends through sender.
func NewEmailSink(sender Sender) *EmailSink {
	return &EmailSink{sender: sender}
}

// Name implements Sink.
func (s *EmailSink) Name() string { return "email" }

// Deliver implements Sink. Owners without an address are skipped.
func (s *EmailSink) Deliver(ctx context.Context, event application.Event) error {
	if strings.TrimSpace(event.User.Email) == "" {
		return nil
	}
	msg, err := RenderEmail(event)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

// RenderEmail builds the message for event.
func RenderEmail(event application.Event) (Message, error) {
	tmpl, ok := emailTemplates[event.Kind]
	if !ok {
		return Message{}, fmt.Errorf("notify: no e-mail template for %q", event.Kind)
	}

	r := event.Reservation
	data := emailData{
		Username: event.User.Username,
		RoomName: r.RoomName,
		Date:     r.Window.Date.String(),
		Start:    r.Window.Start.String(),
		End:      r.Window.End.String(),
		Status:   string(r.Status),
	}

	var buf bytes.Buffer
	if err := tmpl.body.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s e-mail: %w", event.Kind, err)
	}
	return Message{
		To:      event.User.Email,
		Subject: fmt.Sprintf(tmpl.subject, r.RoomName),
		HTML:    buf.String(),
	}, nil
}

type emailData struct {
	Username string
	RoomName string
	Date     string
	Start    string
	End      string
	Status   string
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

const emailLayout = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333333;">
<div style="max-width: 600px; margin: 0 auto;">
<div style="background-color: #a51618; color: #ffffff; padding: 16px; text-align: center;">
<h1 style="margin: 0;">Conference Room Reservation System</h1>
</div>
<div style="padding: 20px;">
<p>Dear {{.Username}},</p>
{{template "content" .}}
<table style="border-collapse: collapse; margin-top: 12px;">
<tr><td style="padding: 4px 12px 4px 0;"><strong>Room</strong></td><td>{{.RoomName}}</td></tr>
<tr><td style="padding: 4px 12px 4px 0;"><strong>Date</strong></td><td>{{.Date}}</td></tr>
<tr><td style="padding: 4px 12px 4px 0;"><strong>Time</strong></td><td>{{.Start}} - {{.End}}</td></tr>
<tr><td style="padding: 4px 12px 4px 0;"><strong>Status</strong></td><td>{{.Status}}</td></tr>
</table>
</div>
<div style="font-size: 12px; color: #777777; padding: 16px; text-align: center;">
This is an automated message. Please do not reply.
</div>
</div>
</body>
</html>{{end}}`

var emailTemplates = map[application.EventKind]emailTemplate{
	application.EventSubmitted: newEmailTemplate("Reservation Request Received - %s",
		`<p>We have received your reservation request. An administrator will review it shortly.</p>`),
	application.EventConflictWarning: newEmailTemplate("Reservation Conflict Warning - %s",
		`<p style="color: #FF9800;"><strong>The time you requested overlaps an approved reservation.</strong></p>
<p>Your request stays pending, but it is unlikely to be approved for this slot.</p>`),
	application.EventApproved: newEmailTemplate("Reservation Approved - %s",
		`<p style="color: #4CAF50;"><strong>Your reservation has been approved.</strong></p>`),
	application.EventRejected: newEmailTemplate("Reservation Rejected - %s",
		`<p style="color: #f44336;"><strong>Your reservation request has been rejected.</strong></p>
<p>Please choose another room or time.</p>`),
	application.EventCancelled: newEmailTemplate("Reservation Cancelled - %s",
		`<p>Your reservation has been cancelled.</p>`),
}

func newEmailTemplate(subject, content string) emailTemplate {
	body := template.Must(template.New("email").Parse(emailLayout))
	template.Must(body.New("content").Parse(content))
	return emailTemplate{subject: subject, body: body}
}
