// internal/web/web.go

// Package web embeds the form page.
package web

import (
	"embed"
	"html/template"
)

//go:embed form.html
var files embed.FS

// Templates parses the embedded pages.
func Templates() *template.Template {
	return template.Must(template.ParseFS(files, "form.html"))
}
