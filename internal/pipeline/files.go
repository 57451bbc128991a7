package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"resoluciones/internal/log"
)

const fallbackFileBase = "Resolucion"

// SafeFileBase folds accents away and keeps only letters, digits, spaces,
// '-' and '_' so the name is usable on every filesystem and by pdflatex.
func SafeFileBase(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if out == "" {
		return fallbackFileBase
	}
	return out
}

// removeSameDay deletes earlier outputs of the same resolution code so a
// document regenerated on the same day replaces the previous one. Failures
// are logged only.
func removeSameDay(dir, code string, logger *log.Logger) []string {
	if code == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), code) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("cannot remove previous output", log.FieldFile, path, log.FieldError, err.Error())
			continue
		}
		removed = append(removed, e.Name())
	}
	if len(removed) > 0 {
		logger.Info("replaced same-day resolution", "files", removed)
	}
	return removed
}

// copyResources copies the named files from srcDir into outputDir and into
// outputDir/legacyDir, where older templates look for them. Missing sources
// are skipped and copy failures are logged only.
func copyResources(srcDir, outputDir, legacyDir string, names []string, logger *log.Logger) []string {
	if len(names) == 0 || srcDir == "" {
		return nil
	}
	targets := []string{outputDir}
	if legacyDir != "" {
		legacy := filepath.Join(outputDir, legacyDir)
		if err := os.MkdirAll(legacy, 0o750); err != nil {
			logger.Warn("cannot create legacy resource directory", log.FieldFile, legacy, log.FieldError, err.Error())
		} else {
			targets = append(targets, legacy)
		}
	}

	var copied []string
	for _, name := range names {
		src := filepath.Join(srcDir, name)
		if _, err := os.Stat(src); err != nil {
			logger.Debug("resource file not found", log.FieldFile, src)
			continue
		}
		ok := true
		for _, dir := range targets {
			if err := copyFile(src, filepath.Join(dir, name)); err != nil {
				logger.Warn("cannot copy resource file", log.FieldFile, name, log.FieldError, err.Error())
				ok = false
			}
		}
		if ok {
			copied = append(copied, name)
		}
	}
	return copied
}

func copyFile(src, dst string) error {
	if sameFile(src, dst) {
		return nil
	}
	// #nosec G304 -- resource names come from configuration.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
