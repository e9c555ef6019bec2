// Package evidence writes JSON records of stage configuration and execution.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Kinds of run.
const (
	KindConfigure = "configure"
	KindExecute   = "execute"
)

// Statuses of a run.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunRecord captures one configure or execute run of a stage.
type RunRecord struct {
	ID             string            `json:"id"`
	Kind           string            `json:"kind"`
	Timestamp      time.Time         `json:"timestamp"`
	Stage          string            `json:"stage"`
	Class          string            `json:"class"`
	StageID        string            `json:"stage_id"`
	ParamsHash     string            `json:"params_hash,omitempty"`
	Outputs        map[string]string `json:"outputs,omitempty"`
	OutputHashes   map[string]string `json:"output_hashes,omitempty"`
	Status         string            `json:"status"`
	Error          string            `json:"error,omitempty"`
	DurationMillis int64             `json:"duration_ms"`
}

// InvocationRecord captures one call of the pipeline manager.
type InvocationRecord struct {
	Stage          string   `json:"stage"`
	Command        []string `json:"command"`
	Stdout         string   `json:"stdout,omitempty"`
	Stderr         string   `json:"stderr,omitempty"`
	ExitCode       int      `json:"exit_code"`
	DurationMillis int64    `json:"duration_ms"`
}

// Writer writes the records of one run to disk.
type Writer struct {
	runID  string
	runDir string
}

// NewRunID returns a fresh run id.
func NewRunID() string {
	return uuid.NewString()
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	for _, dir := range []string{runDir, filepath.Join(runDir, "invocations")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
		if err := os.Chmod(dir, 0700); err != nil {
			return nil, err
		}
	}

	return &Writer{runID: runID, runDir: runDir}, nil
}

// ID returns the run id.
func (w *Writer) ID() string {
	return w.runID
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteInvocation writes a pipeline manager call to invocations/<stage>.json.
func (w *Writer) WriteInvocation(record InvocationRecord) error {
	if record.Stage == "" {
		return fmt.Errorf("stage name is required")
	}
	path := filepath.Join(w.runDir, "invocations", fmt.Sprintf("%s.json", record.Stage))
	return writeJSON(path, record)
}

// HashParams returns the hex SHA-256 of the compact JSON of a parameter set.
func HashParams(p map[string]any) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashFile returns the hex SHA-256 of a file's content.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
