package suite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/cyborg/pkg/core"
)

// ReportFile is the report name inside an output directory.
const ReportFile = "report.json"

// WriteReport writes res as indented JSON to path. The file is replaced
// atomically so readers never see a partial report.
func WriteReport(path string, res *core.SuiteResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.json")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*core.SuiteResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var res core.SuiteResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &res, nil
}
