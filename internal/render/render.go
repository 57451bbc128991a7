// Package render escapes record data and expands it into a LaTeX template.
//
// Templates use text/template with "<<" and ">>" as delimiters so LaTeX
// braces can be written verbatim.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	derrors "resoluciones/internal/errors"
	"resoluciones/internal/latex"
	"resoluciones/internal/log"
)

const (
	LeftDelim  = "<<"
	RightDelim = ">>"
)

// undefinedTemplate matches the execution error text/template reports for a
// template action naming a template that was never defined.
var undefinedTemplate = regexp.MustCompile(`template "[^"]*" not defined`)

// Renderer expands templates with LaTeX-safe data.
type Renderer struct {
	logger  *log.Logger
	escaper *latex.Escaper
}

// NewRenderer creates a Renderer. A nil logger discards output.
func NewRenderer(logger *log.Logger) *Renderer {
	logger = log.OrNop(logger)
	return &Renderer{
		logger:  logger.WithComponent(log.ComponentRenderer),
		escaper: latex.NewEscaper(logger),
	}
}

// Render reads the template at templatePath and renders data into it. Every
// text leaf of data is escaped first.
func (r *Renderer) Render(templatePath string, data map[string]any) (string, error) {
	src, err := ReadTemplate(templatePath)
	if err != nil {
		r.logger.Warn("template not usable", log.FieldTemplate, templatePath, log.FieldError, err.Error())
		return "", err
	}
	return r.RenderSource(filepath.Base(templatePath), src, data)
}

// RenderSource renders an in-memory template.
func (r *Renderer) RenderSource(name, src string, data map[string]any) (string, error) {
	tpl, err := template.New(name).Delims(LeftDelim, RightDelim).Funcs(funcs).Parse(src)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeTemplateRenderFailed, "parse template "+name).
			WithContext(log.FieldTemplate, name)
	}

	escaped, _ := escapeLeaves(data, r.escapeLeaf).(map[string]any)

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, escaped); err != nil {
		if undefinedTemplate.MatchString(err.Error()) {
			return "", derrors.Wrap(err, derrors.CodeTemplateNotFound, "template "+name+" references an undefined template").
				WithContext(log.FieldTemplate, name)
		}
		return "", derrors.Wrap(err, derrors.CodeTemplateRenderFailed, "render template "+name).
			WithContext(log.FieldTemplate, name)
	}
	r.logger.Debug("template rendered", log.FieldTemplate, name, "bytes", buf.Len())
	return buf.String(), nil
}

// ReadTemplate loads a template file, telling apart a missing path, a path
// that is not a regular file, and a file that cannot be read.
func ReadTemplate(path string) (string, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", derrors.Newf(derrors.CodeTemplateNotFound, "template file not found: %s", path).
			WithContext(log.FieldTemplate, path)
	case errors.Is(err, fs.ErrPermission):
		return "", derrors.Wrap(err, derrors.CodeTemplateUnreadable, "template file is not readable: "+path).
			WithContext(log.FieldTemplate, path)
	case err != nil:
		return "", derrors.Wrap(err, derrors.CodeTemplateUnreadable, "cannot inspect template: "+path).
			WithContext(log.FieldTemplate, path)
	case !info.Mode().IsRegular():
		return "", derrors.Newf(derrors.CodeTemplateNotAFile, "template path is not a file: %s", path).
			WithContext(log.FieldTemplate, path)
	}

	// #nosec G304 -- the template path is operator configuration.
	content, err := os.ReadFile(path)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeTemplateUnreadable, "template file is not readable: "+path).
			WithContext(log.FieldTemplate, path)
	}
	return string(content), nil
}

// escapeLeaf escapes one text leaf and logs when the result still carries
// unescaped characters.
func (r *Renderer) escapeLeaf(s string) string {
	out, err := r.escaper.Escape(s)
	if err != nil {
		return latex.EscapeString(s)
	}
	r.escaper.Validate(out)
	return out
}

// EscapeData returns a copy of v with latex.EscapeString applied to every
// text leaf, at any depth. Numbers, booleans and nil are kept as they are.
func EscapeData(v any) any {
	return escapeLeaves(v, latex.EscapeString)
}

func escapeLeaves(v any, leaf func(string) string) any {
	switch t := v.(type) {
	case string:
		return leaf(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = escapeLeaves(val, leaf)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = escapeLeaves(val, leaf)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = leaf(s)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = escapeLeaves(m, leaf)
		}
		return out
	default:
		return v
	}
}

var funcs = template.FuncMap{
	"add1": func(i int) int { return i + 1 },
	"join": func(sep string, items any) string {
		switch t := items.(type) {
		case []string:
			return strings.Join(t, sep)
		case []any:
			parts := make([]string, len(t))
			for i, v := range t {
				parts[i] = fmt.Sprint(v)
			}
			return strings.Join(parts, sep)
		default:
			return fmt.Sprint(items)
		}
	},
	"empty": func(items any) bool {
		switch t := items.(type) {
		case nil:
			return true
		case []any:
			return len(t) == 0
		case []string:
			return len(t) == 0
		case string:
			return strings.TrimSpace(t) == ""
		default:
			return false
		}
	},
}
