package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ensureDir creates a directory and its parents.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v as indented JSON through a temp file and rename,
// so readers never see a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ReadReport reads report.json from a run directory.
func ReadReport(reportDir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(reportDir, ReportFile)) //#nosec G304 -- run directory chosen by the user
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ReportFile, err)
	}
	return &r, nil
}
