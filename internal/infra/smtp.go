package infra

import (
	"bytes"
	"fmt"
	"net/smtp"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/config"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
)

// Mailer sends the socio-facing notifications through SMTP.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	from     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from:     fmt.Sprintf("%s <%s>", cfg.SRIRazonSocial, cfg.SMTPUser),
	}
}

// Configured reports whether an SMTP host was provided.
func (m *Mailer) Configured() bool { return m.host != "" }

// SendInvoiceNotification mails the authorized XML and, when present, the RIDE.
func (m *Mailer) SendInvoiceNotification(to, nombre, numeroFactura string, xmlAutorizado, ride []byte) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = "Factura electrónica " + numeroFactura
	e.Text = []byte(fmt.Sprintf(
		"Estimado(a) %s,\n\nAdjuntamos su factura electrónica %s autorizada por el SRI.\n", nombre, numeroFactura))

	if len(xmlAutorizado) > 0 {
		if _, err := e.Attach(bytes.NewReader(xmlAutorizado), "factura_"+numeroFactura+".xml", "application/xml"); err != nil {
			return fmt.Errorf("mailer: attach XML: %w", err)
		}
	}
	if len(ride) > 0 {
		if _, err := e.Attach(bytes.NewReader(ride), "factura_"+numeroFactura+".pdf", "application/pdf"); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}
	return m.send(e)
}

// SendFineNotification tells a socio a fine was charged for an absence.
func (m *Mailer) SendFineNotification(to, nombre, evento string, monto decimal.Decimal, vence time.Time) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = "Multa por inasistencia: " + evento
	e.Text = []byte(fmt.Sprintf(
		"Estimado(a) %s,\n\nSe registró una multa de $%s por inasistencia a %s.\nFecha de vencimiento: %s.\n",
		nombre, monto.StringFixed(2), evento, vence.Format("02/01/2006")))
	return m.send(e)
}

func (m *Mailer) send(e *email.Email) error {
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return e.Send(m.addr, auth)
}
