package mail

import (
	"fmt"
	"log"
	"time"

	"gopkg.in/gomail.v2"
)

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	OpsEmail string
}

func NewEmailSender(host string, port int, user, password, from, opsEmail string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		OpsEmail: opsEmail,
	}
}

// NotifyNoAgent alerta a operação que chegou mensagem numa sessão sem
// vendedor atribuído (a mensagem foi descartada; o lead não foi criado).
// Fire-and-forget: falha de SMTP é logada e engolida.
func (s *EmailSender) NotifyNoAgent(session, chatID string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ mail: panic no alerta: %v", r)
			}
		}()

		if s.Host == "" || s.OpsEmail == "" {
			log.Printf("⚠️ mail: SMTP não configurado, alerta suprimido (session=%s)", session)
			return
		}

		m := gomail.NewMessage()
		m.SetHeader("From", s.From)
		m.SetHeader("To", s.OpsEmail)
		m.SetHeader("Subject", fmt.Sprintf("[ligue-crm] Sessão %s sem vendedor atribuído", session))
		m.SetBody("text/plain", fmt.Sprintf(
			"Mensagem recebida na sessão %q do chat %q, mas nenhum vendedor ativo está atribuído à sessão.\n"+
				"O lead NÃO foi criado e a mensagem NÃO foi armazenada.\n"+
				"Atribua um vendedor à sessão para processar novas entregas.\n",
			session, chatID,
		))

		s.deliver(m)
	}()
}

// NotifyUnansweredLeads envia um resumo de leads parados sem resposta.
// Fire-and-forget, mesmo contrato do NotifyNoAgent.
func (s *EmailSender) NotifyUnansweredLeads(count int, window time.Duration) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ mail: panic no alerta: %v", r)
			}
		}()

		if s.Host == "" || s.OpsEmail == "" {
			return
		}

		m := gomail.NewMessage()
		m.SetHeader("From", s.From)
		m.SetHeader("To", s.OpsEmail)
		m.SetHeader("Subject", fmt.Sprintf("[ligue-crm] %d lead(s) sem resposta", count))
		m.SetBody("text/plain", fmt.Sprintf(
			"Existem %d lead(s) com mensagens não lidas há mais de %s.\n", count, window,
		))

		s.deliver(m)
	}()
}

func (s *EmailSender) deliver(m *gomail.Message) {
	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	if err := d.DialAndSend(m); err != nil {
		log.Printf("⚠️ mail: erro ao enviar SMTP: %v", err)
	}
}
