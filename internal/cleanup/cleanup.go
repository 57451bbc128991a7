// Package cleanup removes the auxiliary files a LaTeX run leaves next to its
// output.
package cleanup

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"resoluciones/internal/log"
)

// DefaultExtensions are the pdflatex byproducts removed after a compile.
var DefaultExtensions = []string{".aux", ".log", ".fls", ".fdb_latexmk", ".synctex.gz"}

// Failure records a file that could not be removed.
type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report summarizes one cleanup pass. Cleanup problems never fail the caller.
type Report struct {
	Cleaned          []string  `json:"cleaned"`
	Failed           []Failure `json:"failed"`
	PermissionDenied []string  `json:"permission_denied"`
}

// TotalCleaned returns the number of removed files.
func (r Report) TotalCleaned() int { return len(r.Cleaned) }

// TotalFailed returns the number of files left behind for any reason.
func (r Report) TotalFailed() int { return len(r.Failed) + len(r.PermissionDenied) }

// Clean is a convenience wrapper around Cleaner.Clean with a discarding logger.
func Clean(basePath string, exts []string) Report {
	return NewCleaner(nil).Clean(basePath, exts)
}

// Cleaner removes intermediate files.
type Cleaner struct {
	logger *log.Logger
}

// NewCleaner creates a Cleaner. A nil logger discards output.
func NewCleaner(logger *log.Logger) *Cleaner {
	return &Cleaner{logger: log.OrNop(logger).WithComponent(log.ComponentCleaner)}
}

// Clean removes basePath+ext for every extension in exts. A nil exts uses
// DefaultExtensions. Missing files are skipped silently.
func (c *Cleaner) Clean(basePath string, exts []string) Report {
	if exts == nil {
		exts = DefaultExtensions
	}
	var rep Report
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		name := basePath + ext

		info, err := os.Stat(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			rep.Failed = append(rep.Failed, Failure{Name: name, Reason: err.Error()})
			continue
		}
		if !info.Mode().IsRegular() {
			rep.Failed = append(rep.Failed, Failure{Name: name, Reason: "not a regular file"})
			continue
		}
		if !writable(name) {
			c.logger.Warn("no permission to remove file", log.FieldFile, name)
			rep.PermissionDenied = append(rep.PermissionDenied, name)
			continue
		}

		if err := os.Remove(name); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				rep.PermissionDenied = append(rep.PermissionDenied, name)
			} else {
				rep.Failed = append(rep.Failed, Failure{Name: name, Reason: err.Error()})
			}
			continue
		}
		rep.Cleaned = append(rep.Cleaned, name)
	}

	if len(rep.Cleaned) > 0 {
		c.logger.Info("temporary files cleaned", "count", len(rep.Cleaned))
	}
	if n := rep.TotalFailed(); n > 0 {
		c.logger.Warn("some temporary files were left behind", "count", n)
	}
	return rep
}

// writable reports whether the file can be opened for writing.
func writable(name string) bool {
	f, err := os.OpenFile(name, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
