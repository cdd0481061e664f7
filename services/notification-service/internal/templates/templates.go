package templates

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"
)

type Audience string

const (
	Client   Audience = "client"
	Practice Audience = "practice"
)

var ErrUnknownEvent = errors.New("no template for event")

// EventReminder is rendered for reminder jobs; it never travels on Kafka.
const EventReminder = "notification.reminder.due.v1"

// Data is what every template sees.
type Data struct {
	PracticeName    string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	ServiceName     string
	Date            string
	Time            string
	DurationMinutes int
	Status          string
	Source          string
	PreviousDate    string
	PreviousTime    string
	PreviousStatus  string
}

type message struct {
	subject string
	body    string
}

var funcs = template.FuncMap{
	"br":     brDate,
	"status": statusLabel,
}

var catalog = map[string]map[Audience]message{
	"booking.appointment.booked.v1": {
		Client: {
			subject: "{{.PracticeName}}: agendamento recebido",
			body: `Olá {{.CustomerName}},

Recebemos seu agendamento{{with .ServiceName}} de {{.}}{{end}} para {{br .Date}} às {{.Time}} ({{.DurationMinutes}} min).
Situação: {{status .Status}}.

Até breve,
{{.PracticeName}}`,
		},
		Practice: {
			subject: "Novo agendamento: {{br .Date}} {{.Time}}",
			body: `{{.CustomerName}} agendou{{with .ServiceName}} {{.}}{{end}} para {{br .Date}} às {{.Time}} ({{.DurationMinutes}} min).
Telefone: {{.CustomerPhone}}{{with .CustomerEmail}}
Email: {{.}}{{end}}
Origem: {{.Source}}`,
		},
	},
	"booking.appointment.rescheduled.v1": {
		Client: {
			subject: "{{.PracticeName}}: horário alterado",
			body: `Olá {{.CustomerName}},

Seu atendimento{{with .ServiceName}} de {{.}}{{end}} foi remarcado de {{br .PreviousDate}} às {{.PreviousTime}} para {{br .Date}} às {{.Time}}.

{{.PracticeName}}`,
		},
		Practice: {
			subject: "Remarcação: {{br .Date}} {{.Time}}",
			body:    `{{.CustomerName}}: {{br .PreviousDate}} {{.PreviousTime}} -> {{br .Date}} {{.Time}} ({{.DurationMinutes}} min).`,
		},
	},
	"booking.appointment.status_changed.v1": {
		Client: {
			subject: "{{.PracticeName}}: agendamento {{status .Status}}",
			body: `Olá {{.CustomerName}},

Seu agendamento de {{br .Date}} às {{.Time}} agora está {{status .Status}}.

{{.PracticeName}}`,
		},
		Practice: {
			subject: "Situação alterada: {{br .Date}} {{.Time}}",
			body:    `{{.CustomerName}} ({{br .Date}} {{.Time}}): {{status .PreviousStatus}} -> {{status .Status}}.`,
		},
	},
	EventReminder: {
		Client: {
			subject: "{{.PracticeName}}: lembrete do seu atendimento",
			body: `Olá {{.CustomerName}},

Lembramos do seu atendimento{{with .ServiceName}} de {{.}}{{end}} em {{br .Date}} às {{.Time}}.
Se não puder comparecer, avise-nos para liberarmos o horário.

{{.PracticeName}}`,
		},
	},
	"booking.appointment.cancelled.v1": {
		Client: {
			subject: "{{.PracticeName}}: agendamento cancelado",
			body: `Olá {{.CustomerName}},

Seu agendamento de {{br .Date}} às {{.Time}} foi cancelado. Para marcar um novo horário, acesse nossa agenda online.

{{.PracticeName}}`,
		},
		Practice: {
			subject: "Cancelamento: {{br .Date}} {{.Time}}",
			body:    `{{.CustomerName}} cancelou{{with .ServiceName}} {{.}}{{end}} de {{br .Date}} às {{.Time}}. O horário está livre.`,
		},
	},
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// Renderer holds the parsed message set.
type Renderer struct {
	set map[string]map[Audience]compiled
}

func New() (*Renderer, error) {
	r := &Renderer{set: map[string]map[Audience]compiled{}}
	for event, audiences := range catalog {
		r.set[event] = map[Audience]compiled{}
		for aud, msg := range audiences {
			name := event + "/" + string(aud)
			subject, err := template.New(name + "/subject").Funcs(funcs).Parse(msg.subject)
			if err != nil {
				return nil, fmt.Errorf("parse %s subject: %w", name, err)
			}
			body, err := template.New(name + "/body").Funcs(funcs).Parse(msg.body)
			if err != nil {
				return nil, fmt.Errorf("parse %s body: %w", name, err)
			}
			r.set[event][aud] = compiled{subject: subject, body: body}
		}
	}
	return r, nil
}

func (r *Renderer) Render(eventType string, aud Audience, data Data) (subject string, body string, err error) {
	c, ok := r.set[eventType][aud]
	if !ok {
		return "", "", fmt.Errorf("%w: %s/%s", ErrUnknownEvent, eventType, aud)
	}
	var sb, bb bytes.Buffer
	if err := c.subject.Execute(&sb, data); err != nil {
		return "", "", err
	}
	if err := c.body.Execute(&bb, data); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(sb.String()), strings.TrimSpace(bb.String()), nil
}

func brDate(iso string) string {
	d, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return d.Format("02/01/2006")
}

func statusLabel(s string) string {
	switch s {
	case "pending":
		return "pendente"
	case "confirmed":
		return "confirmado"
	case "completed":
		return "concluído"
	case "cancelled":
		return "cancelado"
	default:
		return s
	}
}
