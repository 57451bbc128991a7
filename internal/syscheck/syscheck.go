// Package syscheck inspects the environment a generation depends on: the
// LaTeX compiler, the template, the record file and the output directory.
package syscheck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"resoluciones/assets"
	"resoluciones/internal/compiler"
	"resoluciones/internal/log"
	"resoluciones/internal/records"
	"resoluciones/internal/schema"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Check is the verdict on one dependency.
type Check struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Guidance string `json:"guidance,omitempty"`
}

// Report collects every check. OK is false when any check errored.
type Report struct {
	OK       bool     `json:"ok"`
	Platform string   `json:"platform"`
	Checks   []Check  `json:"checks"`
	Created  []string `json:"created,omitempty"`
}

// Failed returns the checks with error status.
func (r Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Status == StatusError {
			out = append(out, c)
		}
	}
	return out
}

// CompilerProbe reports on the document compiler.
type CompilerProbe interface {
	Binary() string
	Available() bool
	Version(ctx context.Context) (string, error)
}

// RecordLoader reads a stored record.
type RecordLoader interface {
	Load(path string) (map[string]any, error)
}

// Paths names what to inspect. An empty TemplatePath means the embedded
// default template.
type Paths struct {
	TemplatePath string
	RecordPath   string
	OutputDir    string
	Resources    []string
}

type Checker struct {
	compiler CompilerProbe
	loader   RecordLoader
	logger   *log.Logger
}

func New(c CompilerProbe, loader RecordLoader, logger *log.Logger) *Checker {
	return &Checker{
		compiler: c,
		loader:   loader,
		logger:   log.OrNop(logger).WithComponent(log.ComponentSysCheck),
	}
}

// Run performs every check. With createTemplate set, a missing template is
// written from the embedded default instead of reported.
func (c *Checker) Run(ctx context.Context, p Paths, createTemplate bool) Report {
	rep := Report{Platform: runtime.GOOS + "/" + runtime.GOARCH}

	rep.Checks = append(rep.Checks, c.checkCompiler(ctx))
	tpl, created := c.checkTemplate(p.TemplatePath, createTemplate)
	rep.Checks = append(rep.Checks, tpl)
	if created {
		rep.Created = append(rep.Created, p.TemplatePath)
	}
	if p.TemplatePath != "" {
		rep.Checks = append(rep.Checks, checkResources(filepath.Dir(p.TemplatePath), p.Resources)...)
	}
	if p.RecordPath != "" {
		rep.Checks = append(rep.Checks, c.checkRecord(p.RecordPath))
	}
	rep.Checks = append(rep.Checks, checkOutputDir(p.OutputDir))

	rep.OK = len(rep.Failed()) == 0
	c.logger.InfoContext(ctx, "system check finished",
		"ok", rep.OK,
		log.FieldErrors, len(rep.Failed()))
	return rep
}

func (c *Checker) checkCompiler(ctx context.Context) Check {
	ch := Check{Name: "compiler"}
	if c.compiler == nil || !c.compiler.Available() {
		name := "pdflatex"
		if c.compiler != nil {
			name = c.compiler.Binary()
		}
		ch.Status = StatusError
		ch.Message = name + " is not installed or not on PATH"
		ch.Guidance = compiler.InstallGuidance
		return ch
	}
	version, err := c.compiler.Version(ctx)
	if err != nil {
		ch.Status = StatusError
		ch.Message = fmt.Sprintf("%s is installed but does not run: %v", c.compiler.Binary(), err)
		return ch
	}
	ch.Status = StatusOK
	ch.Message = version
	return ch
}

// Markers every compilable template carries.
var templateMarkers = []string{`\documentclass`, `\begin{document}`, `\end{document}`}

func (c *Checker) checkTemplate(path string, create bool) (Check, bool) {
	ch := Check{Name: "template"}
	if path == "" {
		ch.Status = StatusOK
		ch.Message = "using embedded template " + assets.DefaultTemplateName
		return ch, false
	}

	src, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && create:
		if err := WriteDefaultTemplate(path); err != nil {
			ch.Status = StatusError
			ch.Message = err.Error()
			return ch, false
		}
		c.logger.Info("default template created", log.FieldTemplate, path)
		ch.Status = StatusOK
		ch.Message = "created default template at " + path
		return ch, true
	case errors.Is(err, fs.ErrNotExist):
		ch.Status = StatusError
		ch.Message = "template not found: " + path
		ch.Guidance = "Run the check command with --create-template, or point the template path at an existing file."
		return ch, false
	case err != nil:
		ch.Status = StatusError
		ch.Message = fmt.Sprintf("template is not readable: %v", err)
		return ch, false
	}

	var missing []string
	for _, m := range templateMarkers {
		if !strings.Contains(string(src), m) {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		ch.Status = StatusWarning
		ch.Message = "template lacks " + strings.Join(missing, ", ")
		return ch, false
	}
	ch.Status = StatusOK
	ch.Message = path
	return ch, false
}

// WriteDefaultTemplate writes the embedded template to path, creating its
// directory. An existing file is never overwritten.
func WriteDefaultTemplate(path string) error {
	src, err := assets.DefaultTemplate()
	if err != nil {
		return fmt.Errorf("read embedded template: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create template directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	if _, err := f.WriteString(src); err != nil {
		_ = f.Close()
		return fmt.Errorf("write template: %w", err)
	}
	return f.Close()
}

func checkResources(dir string, names []string) []Check {
	var out []Check
	for _, name := range names {
		ch := Check{Name: "resource " + name, Status: StatusOK, Message: filepath.Join(dir, name)}
		if _, err := os.Stat(ch.Message); err != nil {
			ch.Status = StatusWarning
			ch.Message = "missing " + ch.Message + "; the document may not compile if the template references it"
		}
		out = append(out, ch)
	}
	return out
}

func (c *Checker) checkRecord(path string) Check {
	ch := Check{Name: "record"}
	if c.loader == nil {
		ch.Status = StatusWarning
		ch.Message = "no record loader configured"
		return ch
	}
	record, err := c.loader.Load(path)
	if errors.Is(err, records.ErrNotFound) {
		ch.Status = StatusWarning
		ch.Message = "record not found: " + path
		ch.Guidance = "Create one with the draft command."
		return ch
	}
	if err != nil {
		ch.Status = StatusError
		ch.Message = err.Error()
		return ch
	}
	res := schema.Validate(record)
	switch {
	case !res.OK():
		ch.Status = StatusError
		ch.Message = res.Summary() + ": " + strings.Join(res.Errors, "; ")
	case len(res.Warnings) > 0:
		ch.Status = StatusWarning
		ch.Message = res.Summary()
	default:
		ch.Status = StatusOK
		ch.Message = path
	}
	return ch
}

func checkOutputDir(dir string) Check {
	if dir == "" {
		dir = "."
	}
	ch := Check{Name: "output directory", Status: StatusOK, Message: dir}
	if err := compiler.EnsureOutputDir(dir); err != nil {
		ch.Status = StatusError
		ch.Message = err.Error()
	}
	return ch
}
