package mail

import (
	"pubcash-backend/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var Module = fx.Module("mail",
	fx.Provide(NewSender),
)

type Sender interface {
	Send(to, subject, htmlBody string) error
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

type Params struct {
	fx.In

	Config *config.Config
}

func NewSender(p Params) Sender {
	m := p.Config.Mail
	return &smtpSender{
		dialer: gomail.NewDialer(m.Host, m.Port, m.Username, m.Password),
		from:   m.From,
	}
}

func (s *smtpSender) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		zap.L().Error("failed to send email", zap.String("to", to), zap.Error(err))
		return err
	}

	return nil
}
