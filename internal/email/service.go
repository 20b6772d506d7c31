package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// Service handles email sending via SMTP
type Service struct {
	host       string
	port       string
	from       string
	recipients []string
	sendMail   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service that sends alerts to recipients
func NewService(host, port, from string, recipients []string) *Service {
	return &Service{
		host:       host,
		port:       port,
		from:       from,
		recipients: recipients,
		sendMail:   smtp.SendMail,
	}
}

// SendLowStockAlert mails one alert to every configured recipient
func (s *Service) SendLowStockAlert(alert LowStockAlert) error {
	if len(s.recipients) == 0 {
		return errors.New("no alert recipients configured")
	}
	return s.send(s.recipients, BuildLowStockSubject(alert), BuildLowStockBody(alert))
}

func (s *Service) send(to []string, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, strings.Join(to, ", "), subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, nil, s.from, to, []byte(msg))
}

