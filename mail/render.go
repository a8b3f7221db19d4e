package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the embedded HTML templates.
type Renderer struct {
	tmpl    *template.Template
	appName string
}

// NewRenderer parses the embedded templates. appName is exposed to every
// template as .AppName.
func NewRenderer(appName string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("mail: parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, appName: appName}, nil
}

// Render returns the subject and HTML body for msg.
func (r *Renderer) Render(msg Message) (string, string, error) {
	name := string(msg.Template) + ".html"
	if r.tmpl.Lookup(name) == nil {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, msg.Template)
	}

	data := make(map[string]any, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["AppName"] = r.appName

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", "", fmt.Errorf("mail: render %s: %w", msg.Template, err)
	}
	return msg.Template.Subject(), buf.String(), nil
}
