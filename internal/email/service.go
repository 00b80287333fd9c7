package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/jwalitptl/leadsla/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const notAvailable = "N/A"

// Message is a rendered email ready for a Transport.
type Message struct {
	Subject string
	HTML    string
}

// Composer renders the three notification emails. Lead links point at
// {appURL}/leads/{id}.
type Composer struct {
	appURL string
}

func NewComposer(appURL string) *Composer {
	return &Composer{appURL: strings.TrimRight(appURL, "/")}
}

func (c *Composer) LeadURL(lead *model.Lead) string {
	return fmt.Sprintf("%s/leads/%s", c.appURL, lead.ID)
}

type assignmentData struct {
	AssigneeName string
	LeadName     string
	Website      string
	Source       string
	Deadline     string
	Notes        string
	LeadURL      string
}

type reminderData struct {
	AssigneeName string
	LeadName     string
	Status       string
	Deadline     string
	LeadURL      string
}

type breachData struct {
	LeadName    string
	Source      string
	SLADeadline string
	LeadURL     string
}

func (c *Composer) Assignment(lead *model.Lead, assignee *model.User) (*Message, error) {
	return render("assignment.html", fmt.Sprintf("New Lead Assignment: %s", lead.Name), assignmentData{
		AssigneeName: assignee.DisplayName(),
		LeadName:     lead.Name,
		Website:      orNA(lead.Website),
		Source:       orNA(lead.Source),
		Deadline:     orNA(lead.Deadline.String()),
		Notes:        orNA(lead.Notes),
		LeadURL:      c.LeadURL(lead),
	})
}

func (c *Composer) Reminder(lead *model.Lead, assignee *model.User) (*Message, error) {
	return render("reminder.html", fmt.Sprintf("Reminder: Lead %s deadline approaching", lead.Name), reminderData{
		AssigneeName: assignee.DisplayName(),
		LeadName:     lead.Name,
		Status:       orNA(string(lead.Status)),
		Deadline:     orNA(lead.Deadline.String()),
		LeadURL:      c.LeadURL(lead),
	})
}

func (c *Composer) Breach(lead *model.Lead) (*Message, error) {
	return render("sla_breach.html", fmt.Sprintf("SLA Breach Alert: Lead %s", lead.Name), breachData{
		LeadName:    lead.Name,
		Source:      orNA(lead.Source),
		SLADeadline: orNA(lead.SLADeadline.String()),
		LeadURL:     c.LeadURL(lead),
	})
}

func render(name, subject string, data interface{}) (*Message, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return &Message{Subject: subject, HTML: body.String()}, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
