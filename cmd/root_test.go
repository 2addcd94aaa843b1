package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/iksnae/assistant-session/internal"
	"github.com/iksnae/assistant-session/testutil"
)

// isolate points config and data directories at a temp dir and clears
// provider settings from the environment
func isolate(t *testing.T) string {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "ANTHROPIC_API_KEY",
		"WEBHOOK_URL", "ASSISTANT_GATEWAY_URL", "ASSISTANT_TITLE_URL",
		"ASSISTANT_STORAGE", "ASSISTANT_ADDR", "ASSISTANT_RATE_LIMIT",
	} {
		t.Setenv(key, "")
	}
	return dir
}

// resetFlags restores every flag of every command to its default, since
// cobra keeps parsed values between Execute calls
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the root command and returns what it wrote
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	err := rootCmd.Execute()
	return out.String(), err
}

// seededDB writes the fixture sessions to a database in dir
func seededDB(t *testing.T, dir string) string {
	t.Helper()
	dbPath := filepath.Join(dir, "sessions.db")
	testutil.CreateSQLiteFixture(t, dbPath)
	return dbPath
}

// openStore loads the store persisted at dbPath
func openStore(t *testing.T, dbPath string) *internal.Store {
	t.Helper()
	db, err := internal.OpenDatabase(dbPath)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	kv, err := internal.NewSQLiteKV(db, dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteKV() error = %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	store := internal.NewStore(kv)
	store.Load()
	return store
}

func TestRootCommand(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{name: "version flag", args: []string{"--version"}, want: "commit:"},
		{name: "help flag", args: []string{"--help"}, want: "assistant-session"},
		{name: "nonexistent command", args: []string{"nonexistent-command"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want != "" && !strings.Contains(out, tt.want) {
				t.Errorf("output %q does not contain %q", out, tt.want)
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"chat", "list", "show", "new", "use", "rename", "delete", "theme", "export", "import", "serve", "healthcheck", "inspect", "config"}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestRootCommand_VerboseFlag(t *testing.T) {
	dir := isolate(t)
	t.Cleanup(func() { internal.SetVerbose(false) })

	if _, err := run(t, "--verbose", "--storage", seededDB(t, dir), "list"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !verbose {
		t.Error("--verbose should be parsed into the verbose flag")
	}
}

func TestMemoryFlagDoesNotTouchDisk(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, "--memory", "new", "--title", "Scratch")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Error("new should print the session id")
	}

	paths, err := internal.DetectDataPaths()
	if err != nil {
		t.Fatalf("DetectDataPaths() error = %v", err)
	}
	if paths.DatabaseExists() {
		t.Errorf("database %s should not exist with --memory (tmp %s)", paths.DBPath, dir)
	}
}
