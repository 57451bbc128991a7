package compiler

import (
	"os"

	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
)

// EnsureOutputDir creates dir when missing and checks that it is a directory
// the process can both write to and list.
func EnsureOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return unwritable(err, "cannot create output directory: "+dir, dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return unwritable(err, "cannot access output directory: "+dir, dir)
	}
	if !info.IsDir() {
		return unwritable(nil, "output path exists but is not a directory: "+dir, dir)
	}

	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return unwritable(err, "output directory is not writable: "+dir, dir)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	if _, err := os.ReadDir(dir); err != nil {
		return unwritable(err, "output directory is not readable: "+dir, dir)
	}
	return nil
}

func unwritable(err error, msg, dir string) error {
	e := derrors.New(derrors.CodeDirectoryUnwritable, msg).WithContext(log.FieldOutputDir, dir)
	e.Cause = err
	return e
}
