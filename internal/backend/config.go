package backend

import (
	"errors"
	"fmt"
	"strings"

	"resoluciones/internal/config"
)

// ParseBackendType accepts a backend name in any case.
func ParseBackendType(s string) (BackendType, error) {
	bt := BackendType(strings.ToLower(strings.TrimSpace(s)))
	if !bt.IsValid() {
		names := make([]string, 0, len(GetBackendTypes()))
		for _, t := range GetBackendTypes() {
			names = append(names, t.String())
		}
		return "", fmt.Errorf("unknown ledger backend %q (want one of %s)", s, strings.Join(names, ", "))
	}
	return bt, nil
}

// FromAppConfig selects the ledger settings out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	bt, err := ParseBackendType(appConfig.LedgerBackend)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Type:                  bt,
		SQLiteDBPath:          appConfig.SQLiteDBPath,
		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleSheetName:       appConfig.GoogleSheetName,
		GoogleCredentialsJSON: appConfig.GoogleCredentialsJSON,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
		DataDirectory:         "data",
	}, nil
}

// Validate reports the first setting the selected backend is missing.
func (c Config) Validate() error {
	switch c.Type {
	case MemoryBackend:
		return nil
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite ledger needs SQLITE_DB_PATH")
		}
		return nil
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("sheets ledger needs GOOGLE_SPREADSHEET_ID")
		}
		if c.GoogleSheetName == "" {
			return errors.New("sheets ledger needs GOOGLE_SHEET_NAME")
		}
		return nil
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
}

// GetBackendTypes returns all valid backend types.
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, SheetsBackend}
}
