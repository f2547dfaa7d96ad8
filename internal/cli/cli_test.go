package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cmdrelay/internal/remote"
	"github.com/mesh-intelligence/cmdrelay/internal/sqlite"
	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// stubInvoker answers every request with the output registered for its
// host.
type stubInvoker struct {
	mu      sync.Mutex
	outputs map[string]string
	calls   []remote.Request
}

func (s *stubInvoker) Invoke(_ context.Context, req remote.Request) (remote.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return remote.Output{Stdout: s.outputs[req.Host]}, nil
}

type cliEnv struct {
	configDir string
	dataDir   string
	invoker   *stubInvoker
}

func newEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("CMDRELAY_LOG_LEVEL", "")
	dir := t.TempDir()
	return &cliEnv{
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
		invoker:   &stubInvoker{outputs: map[string]string{}},
	}
}

// run executes one cmdrelay invocation and returns stdout, stderr, and the
// exit code.
func (e *cliEnv) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	a := &app{
		log: zerolog.Nop(),
		newInvoker: func(string) (remote.Invoker, error) {
			return e.invoker, nil
		},
	}
	root := newRootCmd(a)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...))

	err := root.ExecuteContext(context.Background())
	code := exitCode(&stderr, err)
	return stdout.String(), stderr.String(), code
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, code := e.run(t, args...)
	require.Equal(t, exitSuccess, code, "args %v\nstdout: %s\nstderr: %s", args, stdout, stderr)
	return stdout
}

func TestInitCreatesConfigAndStore(t *testing.T) {
	env := newEnv(t)

	out := env.mustRun(t, "init")
	assert.Contains(t, out, "cmdrelay initialized successfully")
	assert.FileExists(t, filepath.Join(env.configDir, "config.yaml"))
	assert.FileExists(t, filepath.Join(env.dataDir, sqlite.DatabaseFile))

	var res initResult
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "init", "--json")), &res))
	assert.Equal(t, "G2", res.Detected)
	assert.Equal(t, "G2", res.Current)
}

func TestInvalidConfigIsUserError(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, os.MkdirAll(env.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.configDir, "config.yaml"),
		[]byte("ssh:\n  connect_timeout: 0s\n"), 0o644))

	_, stderr, code := env.run(t, "command", "list")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "connect timeout must be positive")
}

func TestConfigTimeoutsReachInvoker(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, os.MkdirAll(env.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.configDir, "config.yaml"),
		[]byte("ssh:\n  connect_timeout: 5s\n  exec_timeout: 2m\n"), 0o644))
	t.Setenv("CMDRELAY_SSH_EXEC_TIMEOUT", "90s")

	env.mustRun(t, "exec", "--", "whoami")
	require.Len(t, env.invoker.calls, 1)
	assert.Equal(t, "5s", env.invoker.calls[0].ConnectTimeout.String())
	assert.Equal(t, "1m30s", env.invoker.calls[0].ExecTimeout.String(), "env overrides config.yaml")
}

func TestCommandLifecycle(t *testing.T) {
	env := newEnv(t)

	out := env.mustRun(t, "command", "add", "  Lights ", "lights.exe", "--target", "Garage", "--target", "Primary")
	assert.Contains(t, out, `Added command "lights"`)

	var c types.Command
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "command", "get", "lights", "--json")), &c))
	assert.Equal(t, []string{"Garage", "Primary"}, c.Aliases)

	_, stderr, code := env.run(t, "command", "add", "LIGHTS", "other.exe")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "command name already exists")

	id := jsonID(c.ID)
	env.mustRun(t, "command", "update", id, "--target", "Backup")
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "command", "get", "lights", "--json")), &c))
	assert.Equal(t, []string{"Backup"}, c.Aliases)
	assert.Equal(t, "lights.exe", c.Executable, "unchanged flags keep their value")

	list := env.mustRun(t, "command", "list")
	assert.Contains(t, list, "lights")
	assert.Contains(t, list, "notes", "bootstrap commands are listed")

	env.mustRun(t, "command", "delete", id)
	_, _, code = env.run(t, "command", "get", "lights")
	assert.Equal(t, exitUserError, code)
	_, _, code = env.run(t, "command", "delete", id)
	assert.Equal(t, exitUserError, code)
	_, _, code = env.run(t, "command", "delete", "abc")
	assert.Equal(t, exitUserError, code)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestProfileLifecycle(t *testing.T) {
	env := newEnv(t)

	out := env.mustRun(t, "profile", "set", "Backup", "--host", "10.0.0.2", "--user", "ops", "--password", "pw")
	assert.Contains(t, out, `Created profile "Backup" (10.0.0.2:22)`)

	out = env.mustRun(t, "profile", "set", "Backup", "--port", "2222")
	assert.Contains(t, out, `Updated profile "Backup" (10.0.0.2:2222)`)

	env.mustRun(t, "command", "add", "dir", "dir /s", "--target", "Backup")
	env.mustRun(t, "profile", "set", "Office", "--rename-from", "Backup")

	var c types.Command
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "command", "get", "dir", "--json")), &c))
	assert.Equal(t, []string{"Office"}, c.Aliases, "rename moves associations")

	var views []profileView
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "profile", "list", "--json")), &views))
	require.Len(t, views, 2)
	assert.Equal(t, profileView{Alias: "Office", Host: "10.0.0.2", Port: 2222, Username: "ops", HasPassword: true}, views[0])
	assert.Equal(t, types.DefaultAlias, views[1].Alias)

	list := env.mustRun(t, "profile", "list")
	assert.NotContains(t, list, "pw", "passwords are never printed")

	_, stderr, code := env.run(t, "profile", "set", "Ghost", "--rename-from", "Missing")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "not found")

	_, _, code = env.run(t, "profile", "set", "Bad", "--host", "h", "--port", "70000")
	assert.Equal(t, exitUserError, code)

	env.mustRun(t, "profile", "delete", "Office")
	_, _, code = env.run(t, "profile", "get", "Office")
	assert.Equal(t, exitUserError, code)
}

func TestRunCommand(t *testing.T) {
	env := newEnv(t)
	env.invoker.outputs["10.0.0.1"] = "launched"
	env.mustRun(t, "profile", "set", "Primary", "--host", "10.0.0.1")
	env.mustRun(t, "command", "add", "lights", "lights.exe")

	out := env.mustRun(t, "run", "Lights")
	assert.Equal(t, "launched\nCommand succeeded\n", out)
	require.Len(t, env.invoker.calls, 1)
	assert.Equal(t, "lights.exe", env.invoker.calls[0].Command)

	var report types.Report
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "run", "lights", "--json")), &report))
	assert.False(t, report.OverallFailure)
	assert.Equal(t, "lights", report.Name)
}

func TestAddSeededCommandNameFails(t *testing.T) {
	env := newEnv(t)

	_, stderr, code := env.run(t, "command", "add", "Music", "player.exe")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "command name already exists: music")

	var c types.Command
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "command", "get", "music", "--json")), &c))
	assert.Equal(t, `C:\Program Files\Audacity\Audacity.exe`, c.Executable, "the seeded payload is untouched")
	assert.Equal(t, []string{types.DefaultAlias}, c.Aliases)
}

func TestRunFailuresExitOne(t *testing.T) {
	env := newEnv(t)
	env.invoker.outputs["10.0.0.1"] = "launched"
	env.mustRun(t, "profile", "set", "Primary", "--host", "10.0.0.1")
	env.mustRun(t, "command", "add", "lights", "lights.exe", "--target", "Primary", "--target", "Backup")

	out, stderr, code := env.run(t, "run", "lights")
	assert.Equal(t, exitUserError, code)
	assert.Empty(t, stderr, "the report is the only output")
	assert.Contains(t, out, "[Backup]\nError: no connection profile for alias \"Backup\"")
	assert.Contains(t, out, "[Primary]\nlaunched")
	assert.Contains(t, out, "[Backup] target_not_configured")
	assert.Contains(t, out, "A problem occurred")

	out, _, code = env.run(t, "run", "set", "the", "mood")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, out, `Error: command not recognized: "set the mood"`)
}

func TestExecDirect(t *testing.T) {
	env := newEnv(t)
	env.invoker.outputs["10.0.0.1"] = "Windows IP Configuration"
	env.invoker.outputs["10.0.0.2"] = "Access is denied."
	env.mustRun(t, "profile", "set", "A", "--host", "10.0.0.1")
	env.mustRun(t, "profile", "set", "B", "--host", "10.0.0.2")

	var report types.Report
	out, _, code := env.run(t, "exec", "--json", "--target", "B", "--target", "A", "--", "ipconfig.exe", "/all")
	assert.Equal(t, exitUserError, code)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Targets, 2)
	assert.Equal(t, "A", report.Targets[0].Alias)
	assert.True(t, report.Targets[0].Success)
	assert.Equal(t, types.ResultRemoteFailure, report.Targets[1].Kind)
	assert.Equal(t, "denied", report.Targets[1].Marker)
	assert.Equal(t, "ipconfig.exe /all", report.Executable)
}

func TestExportImport(t *testing.T) {
	src := newEnv(t)
	src.mustRun(t, "profile", "set", "Garage", "--host", "10.0.0.9", "--user", "u")
	src.mustRun(t, "command", "add", "door", "door.exe", "--target", "Garage")

	for _, name := range []string{"backup.json", "backup.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			out := src.mustRun(t, "export", "--file", path)
			assert.Contains(t, out, "Exported 6 command(s) and 2 profile(s)")

			dst := newEnv(t)
			out = dst.mustRun(t, "import", "--file", path, "--mode", "replace")
			assert.Contains(t, out, "Imported 6 command(s) and 2 profile(s) (replace)")

			var c types.Command
			require.NoError(t, json.Unmarshal([]byte(dst.mustRun(t, "command", "get", "door", "--json")), &c))
			assert.Equal(t, []string{"Garage"}, c.Aliases)
		})
	}

	t.Run("stdout", func(t *testing.T) {
		out := src.mustRun(t, "export", "--file", "-")
		var doc types.Document
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		assert.Len(t, doc.Commands, 6)
	})

	t.Run("bad mode", func(t *testing.T) {
		_, stderr, code := src.run(t, "import", "--file", "x.json", "--mode", "append")
		assert.Equal(t, exitUserError, code)
		assert.Contains(t, stderr, "unknown import mode")
	})
}

func TestVersion(t *testing.T) {
	env := newEnv(t)
	out := env.mustRun(t, "version")
	assert.Contains(t, out, "cmdrelay v"+Version)
	assert.Contains(t, out, modulePath)
}
