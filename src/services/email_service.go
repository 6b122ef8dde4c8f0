package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/username/kncbank/web/src/config"
	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/models"
)

// Receipt is a confirmed transaction as quoted in the receipt e-mail.
type Receipt struct {
	Kind         models.TransactionKind
	Amount       string
	NewBalance   string
	Reference    string
	Counterparty string
	Notes        string
	Message      string
	When         time.Time
}

type EmailService interface {
	SendTransactionReceipt(toEmail, name string, r Receipt) error
}

func NewEmailService() EmailService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			SMTPServer:   config.Cfg.SMTPServer,
			SMTPPort:     config.Cfg.SMTPPort,
			SMTPUser:     config.Cfg.SMTPUser,
			SMTPPassword: config.Cfg.SMTPPassword,
			SenderEmail:  config.Cfg.SenderEmail,
			SenderName:   config.Cfg.SenderName,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{}
	}
}

func receiptSubject(r Receipt) string {
	return fmt.Sprintf("KNC Bank receipt: %s %s", r.Kind.Label(), r.Amount)
}

func receiptText(name string, r Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n%s.\n\n", name, r.Message)
	fmt.Fprintf(&b, "Type: %s\n", r.Kind.Label())
	fmt.Fprintf(&b, "Amount: %s\n", r.Amount)
	if r.Counterparty != "" {
		fmt.Fprintf(&b, "To: %s\n", r.Counterparty)
	}
	if r.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", r.Notes)
	}
	if r.Reference != "" {
		fmt.Fprintf(&b, "Reference number: %s\n", r.Reference)
	}
	fmt.Fprintf(&b, "New balance: %s\n", r.NewBalance)
	fmt.Fprintf(&b, "Date: %s\n\n", r.When.Format("01/02/2006 03:04 PM"))
	b.WriteString("If you did not make this transaction, contact us immediately.\n\nThanks,\nThe KNC Bank Team")
	return b.String()
}

func receiptHTML(name string, r Receipt) string {
	rows := [][2]string{{"Type", r.Kind.Label()}, {"Amount", r.Amount}}
	if r.Counterparty != "" {
		rows = append(rows, [2]string{"To", r.Counterparty})
	}
	if r.Notes != "" {
		rows = append(rows, [2]string{"Notes", r.Notes})
	}
	if r.Reference != "" {
		rows = append(rows, [2]string{"Reference number", r.Reference})
	}
	rows = append(rows, [2]string{"New balance", r.NewBalance}, [2]string{"Date", r.When.Format("01/02/2006 03:04 PM")})

	var table strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&table, `<tr><td style="padding: 4px 12px 4px 0; color: #666;">%s</td><td style="padding: 4px 0; font-weight: bold;">%s</td></tr>`,
			html.EscapeString(row[0]), html.EscapeString(row[1]))
	}
	return fmt.Sprintf(`
	<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6;">
			<p>Hi %s,</p>
			<p>%s.</p>
			<table>%s</table>
			<p>If you did not make this transaction, contact us immediately.</p>
			<p>Thanks,<br>The KNC Bank Team</p>
		</body>
	</html>`, html.EscapeString(name), html.EscapeString(r.Message), table.String())
}

type SMTPEmailService struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
	SenderName   string
}

func (s *SMTPEmailService) SendTransactionReceipt(toEmail, name string, r Receipt) error {
	from := s.SenderEmail
	to := []string{toEmail}

	header := make(map[string]string)
	header["From"] = fmt.Sprintf("%s <%s>", s.SenderName, from)
	header["To"] = toEmail
	header["Subject"] = receiptSubject(r)
	header["MIME-version"] = "1.0"
	header["Content-Type"] = "text/plain; charset=\"UTF-8\""
	message := ""
	for k, v := range header {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + receiptText(name, r)
	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	err := smtp.SendMail(addr, auth, from, to, []byte(message))
	if err != nil {
		logger.L.Error("Failed to send receipt via SMTP", "error", err, "to", toEmail)
		return fmt.Errorf("failed to send receipt via SMTP: %w", err)
	}
	logger.L.Info("Receipt sent successfully via SMTP", "to", toEmail, "reference", r.Reference)
	return nil
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) SendTransactionReceipt(toEmail, name string, r Receipt) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)

	message := s.mg.NewMessage(from, receiptSubject(r), receiptText(name, r), toEmail)
	message.SetHtml(receiptHTML(name, r))
	message.AddTag("receipt")
	message.AddTag(string(r.Kind))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send receipt via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Receipt sent successfully via Mailgun", "to", toEmail, "id", id, "reference", r.Reference)
	return nil
}

type MockEmailService struct{}

func (m *MockEmailService) SendTransactionReceipt(toEmail, name string, r Receipt) error {
	logger.L.Info("MockEmailService: Would send transaction receipt.",
		"to", toEmail, "name", name, "kind", string(r.Kind), "amount", r.Amount, "reference", r.Reference)
	return nil
}
