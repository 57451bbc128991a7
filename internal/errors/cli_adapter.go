package errors

import (
	"fmt"
	"strings"
)

// CLIErrorAdapter handles error presentation and exit code determination for
// the command line binaries.
type CLIErrorAdapter struct {
	verbose bool
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool) *CLIErrorAdapter {
	return &CLIErrorAdapter{verbose: verbose}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	e, ok := As(err)
	if !ok {
		return 1
	}
	switch e.Code {
	case CodeValidationFailed, CodeInvalidInputType, CodeRecordNotFound:
		return 2
	case CodeTemplateNotFound, CodeTemplateNotAFile, CodeTemplateUnreadable, CodeTemplateRenderFailed:
		return 3
	case CodeCompilerUnavailable:
		return 4
	case CodeCompilationFailed, CodeCompilationTimedOut, CodeSourceNotFound:
		return 5
	case CodeDirectoryUnwritable, CodeFileWriteFailed:
		return 6
	default:
		return 10
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	e, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}

	var b strings.Builder
	if a.verbose {
		b.WriteString(e.Error())
	} else {
		fmt.Fprintf(&b, "Error [%s]: %s", e.Code, e.Message)
	}
	if e.Stage != "" {
		fmt.Fprintf(&b, " (stage: %s)", e.Stage)
	}
	if e.Guidance != "" {
		b.WriteString("\n")
		b.WriteString(e.Guidance)
	}
	return b.String()
}
