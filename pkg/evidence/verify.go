package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ReadRun reads run.json from runDir.
func ReadRun(runDir string) (*RunRecord, error) {
	if runDir == "" {
		return nil, fmt.Errorf("runDir is required")
	}
	data, err := os.ReadFile(filepath.Join(runDir, "run.json"))
	if err != nil {
		return nil, fmt.Errorf("read run json: %w", err)
	}
	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse run json: %w", err)
	}
	return &record, nil
}

// VerifyRun checks that the outputs recorded in runDir still have the
// recorded hashes. Output paths are relative to the working directory the
// stage ran in.
func VerifyRun(runDir string) error {
	record, err := ReadRun(runDir)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(record.OutputHashes))
	for path := range record.OutputHashes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		actual, err := HashFile(path)
		if err != nil {
			return fmt.Errorf("missing output file %s: %w", path, err)
		}
		if actual != record.OutputHashes[path] {
			return fmt.Errorf("hash mismatch for %s", path)
		}
	}
	return nil
}
