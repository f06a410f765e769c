package mail

import (
	"bytes"
	"testing"
	"text/template"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_Disabled(t *testing.T) {
	service, err := NewService(&config.MailConfig{Enabled: false}, "PlanWriter", nil)
	require.NoError(t, err)

	// Alerts degrade to log lines when mail is off.
	assert.NoError(t, service.SendReuseAlert("writer@example.com", "Firefox on Linux", "198.51.100.7"))
}

func TestNewService_RequiresFromAddress(t *testing.T) {
	_, err := NewService(&config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587}, "PlanWriter", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FROM_ADDRESS")
}

func TestNewService_Enabled(t *testing.T) {
	service, err := NewService(&config.MailConfig{
		Enabled:     true,
		Host:        "smtp.example.com",
		Port:        587,
		Encryption:  "starttls",
		FromAddress: "security@example.com",
		FromName:    "PlanWriter Security",
	}, "PlanWriter", nil)
	require.NoError(t, err)
	assert.NotNil(t, service.client)
	assert.NotNil(t, service.template)
}

func TestReuseAlertTemplate(t *testing.T) {
	tmpl, err := template.New("reuse_alert").Parse(reuseAlertText)
	require.NoError(t, err)

	var body bytes.Buffer
	require.NoError(t, tmpl.Execute(&body, map[string]string{
		"AppName":       "PlanWriter",
		"Device":        "Firefox on Linux",
		"OriginAddress": "198.51.100.7",
	}))

	assert.Contains(t, body.String(), "Firefox on Linux")
	assert.Contains(t, body.String(), "198.51.100.7")
	assert.Contains(t, body.String(), "PlanWriter Security")
	assert.Contains(t, body.String(), "signed out")
}
