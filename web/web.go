// Package web embeds the landing page template.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templates embed.FS

// Templates parses every embedded page.
func Templates() (*template.Template, error) {
	return template.ParseFS(templates, "templates/*.html")
}
