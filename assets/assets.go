// Package assets embeds the default resolution template.
package assets

import (
	"embed"
	"io/fs"
)

// DefaultTemplateName is the file name of the bundled template.
const DefaultTemplateName = "resolucion.tex.tmpl"

//go:embed templates/*.tmpl
var TemplatesFS embed.FS

// DefaultTemplate returns the bundled LaTeX template source.
func DefaultTemplate() (string, error) {
	b, err := fs.ReadFile(TemplatesFS, "templates/"+DefaultTemplateName)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
