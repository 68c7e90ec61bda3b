package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command against the given data directory and
// returns stdout.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	cmd := NewCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--data_dir", dataDir}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestInitCreatesDataDirectory(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "queue")

	_, err := runCLI(t, dataDir, "init")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dataDir, "queuectl.db"))
	assert.NoError(t, err, "init should create the database")
	_, err = os.Stat(filepath.Join(dataDir, "logs"))
	assert.NoError(t, err, "init should create the log directory")
}

func TestEnqueueListRoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "enqueue", "--id", "j1", "--command", "echo hi", "--priority", "5")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "list", "--json")
	require.NoError(t, err)

	var jobs []struct {
		ID       string `json:"id"`
		Command  string `json:"command"`
		Priority int    `json:"priority"`
		State    string `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "j1", jobs[0].ID)
	assert.Equal(t, "echo hi", jobs[0].Command)
	assert.Equal(t, 5, jobs[0].Priority)
	assert.Equal(t, "pending", jobs[0].State)
}

func TestEnqueueJSONPayload(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "enqueue", `{"id":"j9","command":"true","priority":2}`)
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "list", "--json")
	require.NoError(t, err)

	var jobs []struct {
		ID       string `json:"id"`
		Priority int    `json:"priority"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "j9", jobs[0].ID)
	assert.Equal(t, 2, jobs[0].Priority)
}

func TestEnqueueJSONRejectsUnknownKeys(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "enqueue", `{"id":"j1","command":"true","color":"red"}`)
	require.Error(t, err)
}

func TestEnqueueDuplicateIDFails(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "enqueue", "--id", "j1", "--command", "true")
	require.NoError(t, err)

	_, err = runCLI(t, dataDir, "enqueue", "--id", "j1", "--command", "false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestEnqueueRejectsBadRunAt(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "enqueue", "--id", "j1", "--command", "true", "--run-at", "tomorrow-ish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestListRejectsUnknownState(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "list", "--state", "bogus")
	require.Error(t, err)
}

func TestStatusJSON(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "enqueue", "--id", "j1", "--command", "true")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "status", "--json")
	require.NoError(t, err)

	var status struct {
		Counts        map[string]int `json:"counts"`
		ActiveWorkers int            `json:"active_workers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 1, status.Counts["pending"])
	assert.Equal(t, 0, status.ActiveWorkers)
}

func TestConfigShowAndSet(t *testing.T) {
	dataDir := t.TempDir()

	out, err := runCLI(t, dataDir, "config", "show", "--json")
	require.NoError(t, err)

	var values map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, "3", values["max_retries"])

	_, err = runCLI(t, dataDir, "config", "set", "max_retries", "5")
	require.NoError(t, err)

	out, err = runCLI(t, dataDir, "config", "show", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, "5", values["max_retries"])
}

func TestConfigSetRejectsBadValues(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "config", "set", "max_retries", "many")
	require.Error(t, err)

	_, err = runCLI(t, dataDir, "config", "set", "unknown_key", "1")
	require.Error(t, err)
}

func TestLogsUnknownJobFails(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "logs", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDLQRetryRequiresDeadJob(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "enqueue", "--id", "j1", "--command", "true")
	require.NoError(t, err)

	_, err = runCLI(t, dataDir, "dlq", "retry", "j1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not dead")
}

func TestWorkerReapOnEmptyQueue(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "worker", "reap", "--json")
	require.NoError(t, err)

	var res map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 0, res["reaped"])
}
