package email

import (
	"fmt"
	"net/smtp"

	"github.com/shopspring/decimal"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []OrderItem) error {
	subject := fmt.Sprintf("Order confirmation (order %s)", shortID(orderID))
	body := BuildOrderConfirmationBody(orderID, total, items)
	return s.send(to, subject, body)
}

// SendRefundNotice tells a buyer or seller that a refund request changed.
func (s *Service) SendRefundNotice(to string, n RefundNotice) error {
	subject := fmt.Sprintf("%s (order %s)", n.Headline, shortID(n.OrderID))
	return s.send(to, subject, BuildRefundNoticeBody(n))
}

func (s *Service) SendSaleAlert(to string, a SaleAlert) error {
	return s.send(to, fmt.Sprintf("%s is on sale", a.ProductName), BuildSaleAlertBody(a))
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
