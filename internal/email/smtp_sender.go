package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig agrupa los datos del relay de correo.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// ImplicitTLS abre la conexión ya cifrada (465). Sin él se intenta STARTTLS.
	ImplicitTLS bool
	Timeout     time.Duration
}

// SMTPSender envía avisos de transferencia a través de un relay SMTP.
type SMTPSender struct {
	cfg    SMTPConfig
	sender mail.Address
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	from, err := mail.ParseAddress(strings.TrimSpace(cfg.From))
	if err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	from.Name = strings.TrimSpace(cfg.FromName)
	if cfg.Port == 0 {
		cfg.Port = 587
		if cfg.ImplicitTLS {
			cfg.Port = 465
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg, sender: *from}, nil
}

func (s *SMTPSender) SendTransferNotice(ctx context.Context, notice TransferNotice) error {
	to, err := mail.ParseAddress(strings.TrimSpace(notice.ToEmail))
	if err != nil {
		return fmt.Errorf("notice recipient: %w", err)
	}
	to.Name = notice.ToName

	subject, body := renderTransferNotice(notice)
	msg := composeNotice(s.sender, *to, subject, body, notice.TransferRef)

	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer client.Close()

	if err := s.deliver(client, to.Address, msg); err != nil {
		return err
	}
	return client.Quit()
}

// dial devuelve un cliente listo para autenticar: cifrado desde el inicio o
// mejorado con STARTTLS cuando el servidor lo anuncia.
func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if s.cfg.ImplicitTLS {
		conn, err = (&tls.Dialer{Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	// El diálogo completo comparte el mismo plazo que la conexión.
	_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !s.cfg.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsCfg); err != nil {
				client.Close()
				return nil, err
			}
		}
	}
	return client, nil
}

func (s *SMTPSender) deliver(client *smtp.Client, to string, msg []byte) error {
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.sender.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}

// composeNotice arma el mensaje en texto plano. La referencia de la
// transferencia viaja en una cabecera propia para poder rastrear rebotes.
func composeNotice(from, to mail.Address, subject, body, transferRef string) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", from.String())
	header("To", to.String())
	header("Subject", subject)
	if transferRef != "" {
		header("X-Transfer-Ref", transferRef)
	}
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
