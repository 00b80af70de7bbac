package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mailgun/mailgun-go/v4"
)

// Dispatcher delivers one alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event) error
}

// LogDispatcher writes alerts to a logger instead of delivering them.
type LogDispatcher struct {
	Log *slog.Logger
}

func (d LogDispatcher) Dispatch(ctx context.Context, e Event) error {
	l := d.Log
	if l == nil {
		l = slog.Default()
	}
	l.WarnContext(ctx, "fraud alert",
		"alertId", e.ID,
		"riskLevel", string(e.RiskLevel),
		"transactionId", e.TransactionID,
		"amount", e.Amount,
		"transactionType", e.TransactionType,
		"probability", e.FraudProbability,
	)
	return nil
}

// MailgunDispatcher emails alerts through Mailgun.
type MailgunDispatcher struct {
	mg        mailgun.Mailgun
	sender    string
	recipient string
	log       *slog.Logger
}

// NewMailgunDispatcher sends alerts from sender to recipient.
func NewMailgunDispatcher(mg mailgun.Mailgun, sender, recipient string, logger *slog.Logger) *MailgunDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailgunDispatcher{mg: mg, sender: sender, recipient: recipient, log: logger}
}

func (d *MailgunDispatcher) Dispatch(ctx context.Context, e Event) error {
	message := d.mg.NewMessage(d.sender, Subject(e), Body(e), d.recipient)
	message.AddTag("fraud-alert")

	resp, id, err := d.mg.Send(ctx, message)
	if err != nil {
		d.log.Error("Failed to send fraud alert via Mailgun", "error", err, "alertId", e.ID, "mailgunResp", resp)
		return fmt.Errorf("alert: mailgun send failed: %w", err)
	}
	d.log.Info("Fraud alert sent via Mailgun", "alertId", e.ID, "mailgunId", id)
	return nil
}

// Subject is the email subject line of an alert.
func Subject(e Event) string {
	return fmt.Sprintf("%s Risk Transaction Alert - ₹%s", strings.ToUpper(string(e.RiskLevel)), formatAmount(e.Amount))
}

// Body is the plain-text email body of an alert.
func Body(e Event) string {
	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "%-19s %s\n", label+":", value)
	}

	fmt.Fprintf(&b, "A %s risk transaction was flagged as possible fraud.\n\n", e.RiskLevel)
	line("Amount", "₹"+formatAmount(e.Amount))
	line("Time", e.Timestamp.Format("02 Jan 2006 15:04:05"))
	line("Transaction type", e.TransactionType)
	line("Location", orDash(e.Location))
	line("Fraud probability", fmt.Sprintf("%.1f%%", e.FraudProbability*100))
	line("Transaction ID", orDash(e.TransactionID))
	if e.UserID != "" {
		line("User ID", e.UserID)
	}
	fmt.Fprintf(&b, "\nAlert ID: %s\n", e.ID)
	return b.String()
}

// formatAmount groups the integer part the Indian way, e.g. 12,34,567.50.
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return sign + intPart + "." + frac
	}

	head, last3 := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return sign + strings.Join(append(groups, last3), ",") + "." + frac
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
