//go:build e2e

// Package e2e runs the built binary against the live MythX service. The
// account comes from MYTHX_ETH_ADDRESS and MYTHX_PASSWORD (or .env) and must
// be listed in MYTHX_ALLOWED_TEST_ACCOUNTS.
package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/mythx-go/testutil"
)

var (
	binaryPath string
	address    string

	// realHomeDir is HOME before TestMain overrides it.
	realHomeDir string
	tempRoot    string
)

func TestMain(m *testing.M) {
	moduleRoot := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(moduleRoot, ".env"))
	address = testutil.ValidateAllowlist("MYTHX_ETH_ADDRESS")

	if os.Getenv("MYTHX_PASSWORD") == "" {
		fmt.Fprintln(os.Stderr, "FATAL: MYTHX_PASSWORD not set")
		os.Exit(1)
	}

	var err error

	tempRoot, err = os.MkdirTemp("", "mythx-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tempRoot, "mythx-go")

	build := exec.Command("go", "build", "-o", binaryPath, ".")
	build.Dir = moduleRoot
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr

	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.RemoveAll(tempRoot)
		os.Exit(1)
	}

	setupIsolation()

	code := m.Run()

	os.RemoveAll(tempRoot)
	os.Exit(code)
}

// setupIsolation points HOME and the XDG directories at tempRoot so that no
// real config, session, or job history is read or written.
func setupIsolation() {
	realHomeDir, _ = os.UserHomeDir()

	os.Unsetenv("MYTHX_CONFIG")

	for _, v := range []string{"HOME", "XDG_CONFIG_HOME", "XDG_DATA_HOME", "XDG_CACHE_HOME"} {
		dir := filepath.Join(tempRoot, strings.ToLower(v))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: creating %s: %v\n", dir, err)
			os.Exit(1)
		}

		os.Setenv(v, dir)
	}

	home, _ := os.UserHomeDir()
	if !strings.HasPrefix(home, tempRoot) {
		fmt.Fprintf(os.Stderr, "FATAL: isolation check failed: HOME is %s\n", home)
		os.Exit(1)
	}
}

// runCLI runs the binary and returns stdout, stderr, and the exit code.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode()
	}

	require.NoError(t, err)

	return stdout.String(), stderr.String(), 0
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()

	stdout, stderr, code := runCLI(t, args...)
	require.Zerof(t, code, "mythx-go %v failed\nstdout: %s\nstderr: %s", args, stdout, stderr)

	return stdout
}

func TestE2E_Version(t *testing.T) {
	stdout := mustRunCLI(t, "version", "--json")

	var versions map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &versions))
	assert.Contains(t, versions, "api")
	assert.Contains(t, versions, "mythx-go")
}

func TestE2E_SessionIsIsolated(t *testing.T) {
	mustRunCLI(t, "login")

	matches, err := filepath.Glob(filepath.Join(tempRoot, "xdg_data_home", "mythx-go", "sessions", "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	if realHomeDir != "" {
		for _, m := range matches {
			assert.NotContains(t, m, realHomeDir)
		}
	}
}

func TestE2E_AnalyzeRoundTrip(t *testing.T) {
	payload := filepath.Join("testdata", "quick.json")

	stdout, stderr, code := runCLI(t, "analyze", payload, "--json")

	var out struct {
		UUID   string            `json:"uuid"`
		Status string            `json:"status"`
		Issues []json.RawMessage `json:"issues"`
	}

	switch code {
	case 0:
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, "Finished", out.Status)
		assert.NotEmpty(t, out.UUID)
	case 2:
		// The service queue can exceed the quick budget; the job must still
		// be resumable from the local history.
		assert.Contains(t, stderr, "mythx-go resume")
	default:
		t.Fatalf("analyze exited %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}

	jobs := mustRunCLI(t, "jobs", "--json")

	var recorded []struct {
		UUID    string `json:"uuid"`
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal([]byte(jobs), &recorded))
	require.NotEmpty(t, recorded)
	assert.True(t, strings.EqualFold(address, recorded[0].Address))

	if out.UUID != "" {
		assert.Equal(t, out.UUID, recorded[0].UUID)

		status := mustRunCLI(t, "status", out.UUID, "--json")
		assert.Contains(t, status, out.UUID)
	}
}

func TestE2E_List(t *testing.T) {
	stdout := mustRunCLI(t, "list", "--json")

	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &list))
	assert.GreaterOrEqual(t, list.Total, 0)
}

func TestE2E_InvalidUUID(t *testing.T) {
	_, stderr, code := runCLI(t, "status", "not-a-uuid")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid analysis uuid")
}
