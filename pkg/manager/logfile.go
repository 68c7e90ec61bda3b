package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LogWriter writes one plain-text log file per job id with the final
// captured output of its last attempt. The files are informational; the
// store row stays authoritative.
type LogWriter struct {
	Dir string
}

// NewLogWriter creates a LogWriter rooted at dir, creating it if needed.
func NewLogWriter(dir string) (*LogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &LogWriter{Dir: dir}, nil
}

// Path returns the log file path for a job id. Path separators in the id
// are flattened so an id cannot escape the log directory.
func (w *LogWriter) Path(id string) string {
	safe := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(id)
	return filepath.Join(w.Dir, safe+".log")
}

// Write replaces the job's log file with the attempt's outcome.
func (w *LogWriter) Write(id string, exitCode *int, stdout, stderr string) error {
	code := "none"
	if exitCode != nil {
		code = fmt.Sprintf("%d", *exitCode)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== EXIT CODE ===\n%s\n\n", code)
	fmt.Fprintf(&b, "=== STDOUT ===\n%s\n\n", stdout)
	fmt.Fprintf(&b, "=== STDERR ===\n%s\n", stderr)

	if err := os.WriteFile(w.Path(id), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write job log: %w", err)
	}
	return nil
}

// Read returns the raw log file contents for a job id.
func (w *LogWriter) Read(id string) (string, error) {
	data, err := os.ReadFile(w.Path(id))
	if err != nil {
		return "", fmt.Errorf("read job log: %w", err)
	}
	return string(data), nil
}
