package mail

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// reuseAlertText is the body sent when a revoked session token is
// presented again. Kept inline so the binary carries no template files.
const reuseAlertText = `Hello,

A sign-in token for your {{.AppName}} account was used after it had
already been rotated or revoked. As a precaution all sessions in the
affected chain have been signed out.

Device:  {{.Device}}
Address: {{.OriginAddress}}

If this was you, simply sign in again. If not, change your password now
and regenerate your backup codes.

{{.AppName}} Security
`

type Service struct {
	config   *config.MailConfig
	appName  string
	client   *mail.Client
	template *template.Template
	logger   *logging.Service
}

func NewService(cfg *config.MailConfig, appName string, logger *logging.Service) (*Service, error) {
	if !cfg.Enabled {
		logger.Info("mail service disabled, security alerts will only be logged")
		return &Service{config: cfg, appName: appName, logger: logger}, nil
	}

	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("PW_MAIL_FROM_ADDRESS is required when mail is enabled")
	}

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	switch cfg.Encryption {
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	tmpl, err := template.New("reuse_alert").Parse(reuseAlertText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail template: %w", err)
	}

	logger.Info("mail service initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("from_address", cfg.FromAddress))

	return &Service{
		config:   cfg,
		appName:  appName,
		client:   client,
		template: tmpl,
		logger:   logger,
	}, nil
}

// SendReuseAlert mails the account owner about a detected token reuse.
func (s *Service) SendReuseAlert(to, device, originAddress string) error {
	if s.client == nil {
		s.logger.Warn("token reuse alert suppressed, mail disabled",
			zap.String("recipient", to),
			zap.String("device", device),
			zap.String("origin_address", originAddress))
		return nil
	}

	var body bytes.Buffer
	err := s.template.Execute(&body, map[string]string{
		"AppName":       s.appName,
		"Device":        device,
		"OriginAddress": originAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to render reuse alert: %w", err)
	}

	message := mail.NewMsg()
	from := s.config.FromAddress
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}
	if err := message.From(from); err != nil {
		return fmt.Errorf("failed to set FROM address: %w", err)
	}
	if err := message.To(to); err != nil {
		return fmt.Errorf("failed to set TO address: %w", err)
	}
	message.Subject(fmt.Sprintf("%s security alert: session token reuse detected", s.appName))
	message.SetBodyString(mail.TypeTextPlain, body.String())

	start := time.Now()
	if err := s.client.DialAndSend(message); err != nil {
		s.logger.Error("failed to send reuse alert",
			zap.Error(err),
			zap.Duration("attempt_duration", time.Since(start)))
		return err
	}

	s.logger.Info("reuse alert sent",
		zap.String("recipient", to),
		zap.Duration("send_duration", time.Since(start)))
	return nil
}
