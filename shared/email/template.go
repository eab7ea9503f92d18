package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"mime"
	"strings"

	"weather-agent/internal/models"
)

//go:embed templates/alert.html
var templateFS embed.FS

var alertTemplate = template.Must(template.New("alert.html").Funcs(template.FuncMap{
	"join":          strings.Join,
	"severityColor": severityColor,
}).ParseFS(templateFS, "templates/alert.html"))

func severityColor(s models.NotificationSeverity) template.CSS {
	switch s {
	case models.NotificationSeverityExtreme:
		return "#7a0916"
	case models.NotificationSeverityHigh:
		return "#d92d20"
	case models.NotificationSeverityModerate:
		return "#f79009"
	default:
		return "#1570ef"
	}
}

// Subject is the mail subject line for a notification
func Subject(n models.Notification) string {
	return fmt.Sprintf("Weather Alert: %s (%s)", n.Title, n.Location.DisplayName())
}

// RenderHTML renders the HTML body for a notification
func RenderHTML(n models.Notification) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("failed to render alert email: %w", err)
	}
	return buf.String(), nil
}

// buildMessage assembles an RFC 5322 message with an HTML body
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
