// Package compiler runs pdflatex over a rendered source file and classifies
// the result.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
)

// ArtifactExt is the extension of the compiled document.
const ArtifactExt = ".pdf"

const versionTimeout = 10 * time.Second

// InstallGuidance tells users how to get a LaTeX distribution.
const InstallGuidance = "Install a LaTeX distribution that provides pdflatex:\n" +
	"  linux:   sudo apt-get install texlive-latex-base texlive-latex-extra\n" +
	"  macos:   brew install --cask mactex\n" +
	"  windows: MiKTeX (https://miktex.org/download) or TeX Live (https://www.tug.org/texlive/)"

// Outcome describes one compiler run.
type Outcome struct {
	Success         bool
	Stdout          string
	Stderr          string
	ExitCode        int
	ArtifactCreated bool
	ArtifactPath    string
	Duration        time.Duration
}

// Log joins both output streams.
func (o *Outcome) Log() string {
	switch {
	case o.Stderr == "":
		return o.Stdout
	case o.Stdout == "":
		return o.Stderr
	default:
		return o.Stdout + "\n" + o.Stderr
	}
}

// Compiler invokes the external LaTeX compiler in batch mode.
type Compiler struct {
	binary  string
	timeout time.Duration
	runner  Runner
	logger  *log.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRunner replaces the process runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(c *Compiler) {
		if r != nil {
			c.runner = r
		}
	}
}

// New creates a Compiler for binary. timeout bounds every compile run and
// must be positive.
func New(binary string, timeout time.Duration, logger *log.Logger, opts ...Option) (*Compiler, error) {
	if strings.TrimSpace(binary) == "" {
		return nil, errors.New("compiler binary is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("compile timeout must be positive, got %v", timeout)
	}
	c := &Compiler{
		binary:  binary,
		timeout: timeout,
		runner:  ExecRunner{},
		logger:  log.OrNop(logger).WithComponent(log.ComponentCompiler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Binary returns the configured compiler binary.
func (c *Compiler) Binary() string {
	return c.binary
}

// Timeout returns the bound applied to every compile run.
func (c *Compiler) Timeout() time.Duration {
	return c.timeout
}

// Available reports whether the compiler binary can be found.
func (c *Compiler) Available() bool {
	_, err := c.runner.LookPath(c.binary)
	return err == nil
}

// Version returns the first line of "<binary> --version".
func (c *Compiler) Version(ctx context.Context) (string, error) {
	path, err := c.runner.LookPath(c.binary)
	if err != nil {
		return "", c.unavailable(err)
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	res, err := c.runner.Run(ctx, path, "--version")
	if err != nil {
		return "", fmt.Errorf("query %s version: %w", c.binary, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("query %s version: exit code %d", c.binary, res.ExitCode)
	}
	first, _, _ := strings.Cut(decode(res.Stdout), "\n")
	return strings.TrimSpace(first), nil
}

// Compile runs the compiler over sourcePath, writing into outputDir.
//
// The run succeeds when the artifact exists or the exit code is zero:
// pdflatex exits non-zero on mere warnings while still producing a usable
// document. A failed run is reported through Outcome.Success, not through the
// error, which is reserved for unmet preconditions and timeouts. Files left
// behind by a timed-out run are kept for inspection.
func (c *Compiler) Compile(ctx context.Context, sourcePath, outputDir string) (*Outcome, error) {
	binPath, err := c.runner.LookPath(c.binary)
	if err != nil {
		c.logger.Error("compiler not found", "binary", c.binary)
		return nil, c.unavailable(err)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeSourceNotFound, "source file not found: "+sourcePath).
			WithContext(log.FieldTexPath, sourcePath)
	}

	artifact := ArtifactPath(sourcePath, outputDir)
	args := []string{"-interaction=nonstopmode", "-output-directory", outputDir, sourcePath}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Info("compiling document", log.FieldTexPath, sourcePath, log.FieldOutputDir, outputDir)
	start := time.Now()
	res, runErr := c.runner.Run(runCtx, binPath, args...)
	out := &Outcome{
		Stdout:       decode(res.Stdout),
		Stderr:       decode(res.Stderr),
		ExitCode:     res.ExitCode,
		ArtifactPath: artifact,
		Duration:     time.Since(start),
	}

	if runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			c.logger.Error("compilation timed out", log.FieldTexPath, sourcePath, "timeout", c.timeout.String())
			return out, derrors.Wrap(runErr, derrors.CodeCompilationTimedOut,
				fmt.Sprintf("compilation timed out after %s", c.timeout)).
				WithGuidance("The document took too long to compile. Check the .log file next to "+
					"the source for a stuck \\input or missing package, then retry.").
				WithContext(log.FieldTexPath, sourcePath)
		}
		return out, derrors.Wrap(runErr, derrors.CodeCompilationFailed, "could not run "+c.binary).
			WithContext(log.FieldTexPath, sourcePath)
	}

	out.ArtifactCreated = fileExists(artifact)
	out.Success = out.ArtifactCreated || out.ExitCode == 0

	if out.Success {
		c.logger.Info("compilation finished",
			log.FieldPDFPath, artifact,
			log.FieldExitCode, out.ExitCode,
			log.FieldDuration, out.Duration.Milliseconds())
	} else {
		c.logger.Error("compilation failed",
			log.FieldExitCode, out.ExitCode,
			log.FieldTexPath, sourcePath)
	}
	return out, nil
}

func (c *Compiler) unavailable(err error) *derrors.Error {
	return derrors.Wrap(err, derrors.CodeCompilerUnavailable, c.binary+" is not available").
		WithGuidance(InstallGuidance).
		WithContext("binary", c.binary)
}

// ArtifactPath is where the compiler writes the document for sourcePath.
func ArtifactPath(sourcePath, outputDir string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(outputDir, base+ArtifactExt)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

// ParseVersion extracts the first dotted version number from s, or returns
// s trimmed when there is none.
func ParseVersion(s string) string {
	if m := versionPattern.FindStringSubmatch(s); len(m) >= 2 {
		return m[1]
	}
	return strings.TrimSpace(s)
}
