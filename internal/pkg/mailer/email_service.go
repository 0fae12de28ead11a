package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendFeedbackNotice(comment, replyTo string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	opsEmail    string
}

func NewEmailService(host string, port int, username, password, senderEmail, opsEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		opsEmail:    opsEmail,
	}
}

// SendFeedbackNotice forwards a feedback submission to the ops inbox.
// replyTo may be empty when the submitter chose not to leave an address.
func (s *emailService) SendFeedbackNotice(comment, replyTo string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", s.opsEmail)
	m.SetHeader("Subject", "New feedback submitted")
	if replyTo != "" {
		m.SetHeader("Reply-To", replyTo)
	}

	contact := "not provided"
	if replyTo != "" {
		contact = replyTo
	}
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>New feedback</h2>
			<p style="white-space: pre-wrap;">%s</p>
			<hr/>
			<p>Contact email: %s</p>
		</div>
	`, comment, contact)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send feedback notice: %v\n", err)
		return err
	}

	fmt.Printf("[MAILER] Feedback notice sent to %s\n", s.opsEmail)
	return nil
}
