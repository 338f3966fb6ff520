package notifications

import (
	"bytes"
	"html/template"

	"fluxior-backend/internal/models"
)

const newLeadTemplate = `<!DOCTYPE html>
<html>
<body>
  <h3>Nouveau lead : {{.Name}}</h3>
  <p><strong>Email:</strong> {{.Email}}</p>
  {{if .Phone}}<p><strong>Telephone:</strong> {{.Phone}}</p>{{end}}
  {{if .Company}}<p><strong>Societe:</strong> {{.Company}}</p>{{end}}
  {{if .ProjectType}}<p><strong>Type de projet:</strong> {{.ProjectType}}</p>{{end}}
  {{if .Budget}}<p><strong>Budget:</strong> {{.Budget}}</p>{{end}}
  <p><strong>Source:</strong> {{.Source}}</p>
  <p><strong>Recu le:</strong> {{.Date}}</p>
  {{if .Goals}}<p><strong>Objectifs:</strong></p>
  <ul>{{range .Goals}}<li>{{.}}</li>{{end}}</ul>{{end}}
  {{if .Features}}<p><strong>Fonctionnalites:</strong></p>
  <ul>{{range .Features}}<li>{{.}}</li>{{end}}</ul>{{end}}
  {{if .Message}}<p><strong>Message:</strong><br/>{{.Message}}</p>{{end}}
  <p><strong>ID:</strong> {{.ID}}</p>
</body>
</html>`

var newLeadTmpl = template.Must(template.New("new_lead").Parse(newLeadTemplate))

type newLeadData struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	Company     string
	ProjectType string
	Budget      string
	Source      string
	Date        string
	Message     string
	Goals       []string
	Features    []string
}

var sourceLabels = map[models.LeadSource]string{
	models.SourceWizard:      "Configurateur de projet",
	models.SourceContactForm: "Formulaire de contact",
}

func buildNewLeadHTML(lead models.Lead) (string, error) {
	data := newLeadData{
		ID:          lead.ID,
		Name:        lead.Name,
		Email:       lead.Email,
		Phone:       models.Deref(lead.Phone),
		Company:     models.Deref(lead.Company),
		ProjectType: models.Deref(lead.ProjectType),
		Budget:      models.Deref(lead.Budget),
		Source:      sourceLabels[lead.Source],
		Date:        lead.CreatedAt.Format("02/01/2006 15:04"),
		Message:     models.Deref(lead.Message),
	}
	if data.Source == "" {
		data.Source = string(lead.Source)
	}
	if w := lead.Details.Wizard; w != nil {
		data.Goals = w.Goals
		data.Features = w.Features
		if data.Message == "" {
			data.Message = w.AdditionalDetails
		}
	}

	var buf bytes.Buffer
	if err := newLeadTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
