package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/gitpm/internal/config"
)

// resetFlags restores every command flag variable to its default, since
// cobra keeps parsed values between executions.
func resetFlags() {
	configDir, dbPath, verbose = "", "", false
	addFlagForce = false
	listFlagRefresh = false
	removeFlagDryRun, removeFlagYes, removeFlagNoSnapshot = false, false, false
	updateFlagAllGit, updateFlagYes, updateFlagNoSnapshot = false, false, false
	historyFlagLimit, historyFlagSession = 20, ""
	undoFlagList, undoFlagYes = false, false
	serveStop, servePIDFile, serveLogFile, serveMetricsAddr, serveAcceptAll = false, "", "", "", false
}

// execute runs gitpm with --config-dir dir and the given args, feeding stdin
// to prompts. It returns everything written to the command's output.
func execute(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetIn(strings.NewReader(stdin))
	defer func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetIn(nil)
	}()

	RootCmd.SetArgs(append([]string{"--config-dir", dir}, args...))
	err := RootCmd.Execute()
	return out.String(), err
}

// writePackage creates a local package directory with a package.json.
func writePackage(t *testing.T, name, version string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	body := `{"name": "` + name + `", "version": "` + version + `"}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "gitpm" {
		t.Errorf("expected Use to be 'gitpm', got '%s'", RootCmd.Use)
	}
	if RootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}
	if !strings.Contains(RootCmd.Long, "gitdependencies") {
		t.Error("expected Long description to explain gitdependencies")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Name()] = true
	}

	for _, expected := range []string{"add", "remove", "list", "search", "update", "history", "undo", "serve"} {
		if !found[expected] {
			t.Errorf("expected command '%s' to be registered", expected)
		}
	}
}

func TestRootCommandHasPersistentFlags(t *testing.T) {
	for _, name := range []string{"config-dir", "db", "verbose"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
			continue
		}
		if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	dir := t.TempDir()
	configDir = dir
	dbPath = filepath.Join(dir, "custom.db")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.DBPath != dbPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, dbPath)
	}
	if cfg.PackagesDir != filepath.Join(dir, "packages") {
		t.Errorf("PackagesDir = %q", cfg.PackagesDir)
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte("log_level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}
	configDir = dir

	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig() should reject an unknown log level")
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, err := execute(t, t.TempDir(), "", "blorp")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected unknown command error, got: %v", err)
	}
}

func TestExecute_BareShowsHelp(t *testing.T) {
	out, err := execute(t, t.TempDir(), "")
	if err != nil {
		t.Fatalf("bare gitpm returned error: %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected help output, got: %s", out)
	}
}
