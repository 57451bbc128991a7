// Package records loads and saves budget records as JSON or YAML files.
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
	"resoluciones/internal/schema"
)

// ErrNotFound is returned when the record file does not exist.
var ErrNotFound = errors.New("record file not found")

// Format is the on-disk encoding of a record.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from the file extension. Anything that is not
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Store reads and writes record files.
type Store struct {
	logger *log.Logger
}

// NewStore creates a Store. A nil logger discards output.
func NewStore(logger *log.Logger) *Store {
	return &Store{logger: log.OrNop(logger).WithComponent(log.ComponentRecords)}
}

// Load reads the record at path.
func (s *Store) Load(path string) (map[string]any, error) {
	// #nosec G304 -- record path is chosen by the operator.
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", path, err)
	}
	record, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("decode record %s: %w", path, err)
	}
	s.logger.Info("record loaded", log.FieldFile, path)
	return record, nil
}

// Save validates record and writes it to path, creating the directory when
// needed. Invalid records are refused with CodeValidationFailed and the file
// is left untouched.
func (s *Store) Save(path string, record map[string]any) (schema.Result, error) {
	res := schema.Validate(record)
	if !res.OK() {
		s.logger.Warn("refusing to save invalid record", log.FieldFile, path, log.FieldErrors, len(res.Errors))
		return res, derrors.New(derrors.CodeValidationFailed, res.Summary()+": "+strings.Join(res.Errors, "; ")).
			WithContext(log.FieldFile, path)
	}

	data, err := Encode(record, FormatFor(path))
	if err != nil {
		return res, fmt.Errorf("encode record: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return res, derrors.Wrap(err, derrors.CodeDirectoryUnwritable, "cannot create record directory: "+dir)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return res, derrors.Wrap(err, derrors.CodeFileWriteFailed, "cannot write record: "+path)
	}
	s.logger.Info("record saved", log.FieldFile, path, log.FieldWarnings, len(res.Warnings))
	return res, nil
}

// Decode parses data in the given format into an untyped record.
func Decode(data []byte, format Format) (map[string]any, error) {
	var record map[string]any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &record); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, err
		}
	}
	if record == nil {
		return nil, errors.New("record is empty")
	}
	return record, nil
}

// Encode serializes record. JSON uses two-space indentation and keeps
// characters such as '&' and '<' literal.
func Encode(record map[string]any, format Format) ([]byte, error) {
	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(record); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
